package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"botdeck/backend/internal/model"
	"botdeck/backend/internal/notification"
	"botdeck/backend/internal/util"
	"botdeck/backend/pkg/logger"

	redisHelper "botdeck/backend/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// PrincipalKey is the gin context key holding the authenticated model.Principal
const PrincipalKey = "principal"

// Client represents a connected dashboard over WebSocket
type Client struct {
	Hub       *WSHub
	Conn      *websocket.Conn
	Principal model.Principal
	Send      chan []byte
}

// WSHub handles WebSocket connections and bridges Redis pub/sub to them
type WSHub struct {
	clients    map[*Client]bool
	userConns  map[string][]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	mu         sync.RWMutex

	redisClient *redisHelper.Client
	bus         *notification.Bus
	upgrader    websocket.Upgrader
	log         *logger.Logger
}

// NewWSHub creates the hub. New connections receive the notifications already queued for their user.
func NewWSHub(redisClient *redisHelper.Client, bus *notification.Bus, allowedOrigins []string) *WSHub {
	h := &WSHub{
		clients:     make(map[*Client]bool),
		userConns:   make(map[string][]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan []byte),
		done:        make(chan struct{}),
		redisClient: redisClient,
		bus:         bus,
		log:         logger.GetLogger().Component("ws"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Run owns the client registry until ctx is done
func (h *WSHub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.userConns[client.Principal.UserID] = append(h.userConns[client.Principal.UserID], client)
			h.mu.Unlock()
			h.log.Infof("WS Client registered: UserID=%s", client.Principal.UserID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.log.Infof("WS Client unregistered: UserID=%s", client.Principal.UserID)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with h.mu held
func (h *WSHub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)

	userID := client.Principal.UserID
	conns := h.userConns[userID]
	for i, c := range conns {
		if c == client {
			h.userConns[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.userConns[userID]) == 0 {
		delete(h.userConns, userID)
	}
}

func (h *WSHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.remove(client)
	}
}

// Broadcast sends a message to all connected clients
func (h *WSHub) Broadcast(msg model.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Errorf("Failed to marshal WS broadcast message: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// sendRaw delivers an encoded message to every connection of userID
func (h *WSHub) sendRaw(userID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.userConns[userID] {
		select {
		case client.Send <- data:
		default:
			// Buffer full, handled by unregistering later
		}
	}
}

// ActivePrincipals returns one principal per user with a live connection
func (h *WSHub) ActivePrincipals() []model.Principal {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]model.Principal, 0, len(h.userConns))
	for _, conns := range h.userConns {
		if len(conns) > 0 {
			out = append(out, conns[0].Principal)
		}
	}
	return out
}

// ReadPump handles messages from the client (e.g., heartbeats)
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Errorf("WS error: %v", err)
			}
			break
		}
		c.handle(data)
	}
}

// clientCommand is what the dashboard may send: {"type":"dismiss","id":"..."} or {"type":"ping"}
type clientCommand struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (c *Client) handle(data []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return
	}

	switch cmd.Type {
	case "dismiss":
		if c.Hub.bus == nil {
			return
		}
		if n, ok := c.Hub.bus.Get(cmd.ID); ok && (n.UserID == "" || n.UserID == c.Principal.UserID) {
			c.Hub.bus.Dismiss(cmd.ID)
		}
	case "ping":
		if data, err := json.Marshal(model.WSMessage{Type: model.MessageTypePong}); err == nil {
			c.Hub.sendTo(c, data)
		}
	}
}

// sendTo delivers data to a single client unless the hub already dropped it
func (h *WSHub) sendTo(client *Client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.clients[client] {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}

// WritePump handles outgoing messages to the client
func (c *Client) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// StartPubSubListener bridges the per-user and broadcast Redis channels to connected sockets
func (h *WSHub) StartPubSubListener(ctx context.Context) {
	broadcastKey := redisHelper.GetWSBroadcastKey()
	userPrefix := redisHelper.GetWSUserKey("")

	pubsub := h.redisClient.Subscribe(ctx, broadcastKey)
	defer pubsub.Close()

	// Pattern subscriptions need PSUBSCRIBE; a plain SUBSCRIBE treats '*' literally
	userSub := h.redisClient.PSubscribe(ctx, redisHelper.GetWSUserPattern())
	defer userSub.Close()

	broadcastCh := pubsub.Channel()
	userCh := userSub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-broadcastCh:
			if !ok {
				return
			}
			var wsMsg model.WSMessage
			if err := json.Unmarshal([]byte(msg.Payload), &wsMsg); err == nil {
				h.Broadcast(wsMsg)
			}

		case msg, ok := <-userCh:
			if !ok {
				return
			}
			if userID, found := strings.CutPrefix(msg.Channel, userPrefix); found && userID != "" {
				h.sendRaw(userID, []byte(msg.Payload))
			}
		}
	}
}

// ServeWS handles WebSocket upgrade requests
func (h *WSHub) ServeWS(c *gin.Context) {
	v, exists := c.Get(PrincipalKey)
	principal, ok := v.(*model.Principal)
	if !exists || !ok {
		util.SendError(c, util.ErrUnauthorized("User not authenticated"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorf("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		Hub:       h,
		Conn:      conn,
		Principal: *principal,
		Send:      make(chan []byte, 256),
	}

	h.sendSnapshot(client)
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// sendSnapshot queues the notifications the user should already see
func (h *WSHub) sendSnapshot(client *Client) {
	if h.bus == nil {
		return
	}
	for _, n := range h.bus.ListFor(client.Principal.UserID) {
		data, err := marshalWS(model.MessageTypeNotificationAdded, n)
		if err != nil {
			continue
		}
		select {
		case client.Send <- data:
		default:
			return
		}
	}
}
