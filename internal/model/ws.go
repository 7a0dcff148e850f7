package model

// WSMessageType represents the type of WebSocket message
type WSMessageType string

const (
	MessageTypeNotificationAdded   WSMessageType = "notification_added"
	MessageTypeNotificationRemoved WSMessageType = "notification_removed"
	MessageTypeBotUpdate           WSMessageType = "bot_update"
	MessageTypeDashboardUpdate     WSMessageType = "dashboard_update"
	MessageTypeSessionExpired      WSMessageType = "session_expired"
	MessageTypeError               WSMessageType = "error"
	MessageTypePong                WSMessageType = "pong"
)

// WSMessage is the envelope for all WebSocket messages
type WSMessage struct {
	Type    WSMessageType `json:"type"`
	Payload interface{}   `json:"payload"`
}

// WSNotificationRemovedPayload identifies a notification that left the queue
type WSNotificationRemovedPayload struct {
	ID string `json:"id"`
}

// WSBotUpdatePayload carries a bot's state after an action settled
type WSBotUpdatePayload struct {
	BotID    string      `json:"bot_id"`
	Status   string      `json:"status"`
	Controls BotControls `json:"controls"`
}

// WSSessionExpiredPayload tells the client where to go next
type WSSessionExpiredPayload struct {
	Redirect string `json:"redirect"`
}
