package model

import "time"

// Session is a signed-in dashboard session stored in Redis.
// The trading service token never leaves the server unsealed.
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	SealedToken string    `json:"sealed_token"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// IsExpired checks if the session is past its expiry time
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Principal is the authenticated caller attached to a request
type Principal struct {
	SessionID string
	UserID    string
	Username  string
	Token     string // trading service bearer token
}

// SafeUser is the user profile returned to the dashboard
type SafeUser struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	EmailNotifications bool   `json:"email_notifications"`
}

// LoginResponse is returned after a successful sign-in or sign-up
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      SafeUser  `json:"user"`
}
