package redis

import "fmt"

// Redis key patterns for the application
// Following the pattern: entity:id or entity:id:attribute

// Session keys
func SessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func UserSessionsKey(userID string) string {
	return fmt.Sprintf("user_sessions:%s", userID)
}

// Bot list cache, one per user
func BotListKey(userID string) string {
	return fmt.Sprintf("bot_list:%s", userID)
}

// Rate limiting keys
func RateLimitKey(identifier, action string) string {
	return fmt.Sprintf("rate_limit:%s:%s", action, identifier)
}

// WebSocket fan-out channels
const (
	wsUserPrefix = "ws:user:"
	wsBroadcast  = "ws:broadcast"
)

// GetWSUserKey returns the pub/sub channel for a single user's sockets
func GetWSUserKey(userID string) string {
	return wsUserPrefix + userID
}

// GetWSBroadcastKey returns the pub/sub channel every socket listens on
func GetWSBroadcastKey() string {
	return wsBroadcast
}

// GetWSUserPattern matches every per-user channel
func GetWSUserPattern() string {
	return wsUserPrefix + "*"
}
