package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"botdeck/backend/internal/model"
	"botdeck/backend/internal/notification"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:5173"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req), "non-browser clients send no origin")

	req.Header.Set("Origin", "http://LOCALHOST:5173")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}

func TestServeWSSendsSnapshotAndAcceptsDismiss(t *testing.T) {
	gin.SetMode(gin.TestMode)
	bus := newTestBus(t)
	bus.Success("Bot paused", notification.ForUser(testPrincipal.UserID))
	bus.Info("for someone else", notification.ForUser("user-2"))

	hub := NewWSHub(nil, bus, []string{"*"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		p := testPrincipal
		c.Set(PrincipalKey, &p)
	}, hub.ServeWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type    model.WSMessageType       `json:"type"`
		Payload notification.Notification `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, model.MessageTypeNotificationAdded, msg.Type)
	assert.Equal(t, "Bot paused", msg.Payload.Message)

	assert.Eventually(t, func() bool {
		active := hub.ActivePrincipals()
		return len(active) == 1 && active[0].UserID == testPrincipal.UserID
	}, 2*time.Second, 10*time.Millisecond)

	foreign := bus.ListFor("user-2")[0].ID
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dismiss", "id": foreign}))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dismiss", "id": msg.Payload.ID}))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))

	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong","payload":null}`, string(data))

	assert.Eventually(t, func() bool {
		return len(bus.ListFor(testPrincipal.UserID)) == 0 && len(bus.List()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServeWSRequiresPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewWSHub(nil, nil, nil)

	r := gin.New()
	r.GET("/ws", hub.ServeWS)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
