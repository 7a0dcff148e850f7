package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"botdeck/backend/internal/model"
	"botdeck/backend/internal/notification"
	"botdeck/backend/pkg/logger"
	"botdeck/backend/pkg/redis"
)

// Publisher is the pub/sub side of Redis
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

type outbound struct {
	channel string
	data    []byte
}

// NotificationService handles publishing events to Redis for WebSocket broadcasting.
// It is also a notification.Sink: queue changes are forwarded without blocking the bus.
type NotificationService struct {
	redis Publisher
	log   *logger.Logger

	queue    chan outbound
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool
}

func NewNotificationService(pub Publisher) *NotificationService {
	ns := &NotificationService{
		redis: pub,
		log:   logger.GetLogger().Component("notifications"),
		queue: make(chan outbound, 256),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	go ns.run()

	return ns
}

// NotificationAdded forwards a new notification to its audience
func (s *NotificationService) NotificationAdded(n notification.Notification) {
	s.enqueue(n.UserID, model.MessageTypeNotificationAdded, n)
}

// NotificationRemoved tells the audience to drop a notification
func (s *NotificationService) NotificationRemoved(n notification.Notification) {
	s.enqueue(n.UserID, model.MessageTypeNotificationRemoved, model.WSNotificationRemovedPayload{ID: n.ID})
}

// NotifyUser sends a message to a specific user via WebSocket
func (s *NotificationService) NotifyUser(ctx context.Context, userID string, msgType model.WSMessageType, payload interface{}) {
	data, err := marshalWS(msgType, payload)
	if err != nil {
		s.log.Errorf("Failed to marshal notification: %v", err)
		return
	}

	channel := redis.GetWSUserKey(userID)
	if err := s.redis.Publish(ctx, channel, data); err != nil {
		s.log.Errorf("Failed to publish notification to channel %s: %v", channel, err)
	}
}

// Broadcast sends a message to all connected users
func (s *NotificationService) Broadcast(ctx context.Context, msgType model.WSMessageType, payload interface{}) {
	data, err := marshalWS(msgType, payload)
	if err != nil {
		s.log.Errorf("Failed to marshal broadcast notification: %v", err)
		return
	}

	channel := redis.GetWSBroadcastKey()
	if err := s.redis.Publish(ctx, channel, data); err != nil {
		s.log.Errorf("Failed to publish broadcast notification to channel %s: %v", channel, err)
	}
}

func (s *NotificationService) enqueue(userID string, msgType model.WSMessageType, payload interface{}) {
	if s.stopped.Load() {
		return
	}

	data, err := marshalWS(msgType, payload)
	if err != nil {
		s.log.Errorf("Failed to marshal notification: %v", err)
		return
	}

	channel := redis.GetWSBroadcastKey()
	if userID != "" {
		channel = redis.GetWSUserKey(userID)
	}

	select {
	case s.queue <- outbound{channel: channel, data: data}:
	default:
		s.log.Warnf("Notification queue full, dropping %s for %s", msgType, channel)
	}
}

func (s *NotificationService) run() {
	defer close(s.done)

	for {
		select {
		case msg := <-s.queue:
			s.publish(msg)
		case <-s.stop:
			// flush what the bus already handed us
			for {
				select {
				case msg := <-s.queue:
					s.publish(msg)
				default:
					return
				}
			}
		}
	}
}

func (s *NotificationService) publish(msg outbound) {
	if err := s.redis.Publish(context.Background(), msg.channel, msg.data); err != nil {
		s.log.Errorf("Failed to publish notification to channel %s: %v", msg.channel, err)
	}
}

// Stop flushes queued messages and stops the worker
func (s *NotificationService) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		close(s.stop)
	})
	<-s.done
}

func marshalWS(msgType model.WSMessageType, payload interface{}) ([]byte, error) {
	return json.Marshal(model.WSMessage{
		Type:    msgType,
		Payload: payload,
	})
}
