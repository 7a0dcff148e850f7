// Package repository provides data access for the application and interacts with Redis.
package repository

import (
	"context"
	"errors"
	"time"

	"botdeck/backend/internal/model"
	"botdeck/backend/pkg/redis"
)

// ErrSessionNotFound is returned when a session is missing or expired
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository handles dashboard session storage
type SessionRepository struct {
	redis *redis.Client
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(redisClient *redis.Client) *SessionRepository {
	return &SessionRepository{
		redis: redisClient,
	}
}

// Create stores a session and indexes it under its user
func (r *SessionRepository) Create(ctx context.Context, session *model.Session, ttl time.Duration) error {
	if err := r.redis.SetJSON(ctx, redis.SessionKey(session.ID), session, ttl); err != nil {
		return err
	}

	userKey := redis.UserSessionsKey(session.UserID)
	if err := r.redis.SAdd(ctx, userKey, session.ID); err != nil {
		return err
	}
	return r.redis.Expire(ctx, userKey, ttl)
}

// GetByID gets a session by ID
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*model.Session, error) {
	var session model.Session
	if err := r.redis.GetJSON(ctx, redis.SessionKey(sessionID), &session); err != nil {
		if redis.IsNil(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

// Delete removes one session
func (r *SessionRepository) Delete(ctx context.Context, session *model.Session) error {
	if err := r.redis.Del(ctx, redis.SessionKey(session.ID)); err != nil {
		return err
	}
	return r.redis.SRem(ctx, redis.UserSessionsKey(session.UserID), session.ID)
}

// DeleteAllForUser removes every session of a user.
// Used when the trading service rejects the user's token: all of them share it.
func (r *SessionRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	userKey := redis.UserSessionsKey(userID)
	ids, err := r.redis.SMembers(ctx, userKey)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, redis.SessionKey(id))
	}
	keys = append(keys, userKey)

	return r.redis.Del(ctx, keys...)
}
