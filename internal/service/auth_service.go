package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"botdeck/backend/internal/model"
	"botdeck/backend/internal/repository"
	"botdeck/backend/internal/util"
	"botdeck/backend/pkg/botapi"
	"botdeck/backend/pkg/crypto"
	"botdeck/backend/pkg/jwt"
	"botdeck/backend/pkg/logger"

	"github.com/google/uuid"
)

// SessionStore persists dashboard sessions
type SessionStore interface {
	Create(ctx context.Context, session *model.Session, ttl time.Duration) error
	GetByID(ctx context.Context, sessionID string) (*model.Session, error)
	Delete(ctx context.Context, session *model.Session) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

// AuthService signs users in against the trading service and keeps their sessions
type AuthService struct {
	client        AccountClient
	sessions      SessionStore
	jwtManager    *jwt.JWTManager
	encryptionKey string
	ws            UserNotifier
	now           func() time.Time
	log           *logger.Logger
}

// NewAuthService creates a new auth service. ws may be nil.
func NewAuthService(client AccountClient, sessions SessionStore, jwtManager *jwt.JWTManager, encryptionKey string, ws UserNotifier) *AuthService {
	return &AuthService{
		client:        client,
		sessions:      sessions,
		jwtManager:    jwtManager,
		encryptionKey: encryptionKey,
		ws:            ws,
		now:           time.Now,
		log:           logger.GetLogger().Component("auth"),
	}
}

// Login authenticates with the trading service and opens a session
func (s *AuthService) Login(ctx context.Context, req *botapi.LoginRequest) (*model.LoginResponse, error) {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	fields := make(map[string]string)
	if req.Email == "" {
		fields["email"] = "Email is required"
	}
	if req.Password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		return nil, util.ErrValidation("Email and password are required", fields)
	}

	resp, err := s.client.Login(ctx, req)
	if err != nil {
		return nil, s.authFailure(err, "Invalid email or password")
	}
	return s.startSession(ctx, resp)
}

// Register creates an account with the trading service and opens a session
func (s *AuthService) Register(ctx context.Context, req *botapi.RegisterRequest) (*model.LoginResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	fields := make(map[string]string)
	if req.Name == "" {
		fields["name"] = "Name is required"
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		fields["email"] = "A valid email is required"
	}
	if len(req.Password) < 6 {
		fields["password"] = "Password must be at least 6 characters"
	}
	if len(fields) > 0 {
		return nil, util.ErrValidation("Please fix the highlighted fields", fields)
	}

	resp, err := s.client.Register(ctx, req)
	if err != nil {
		if f := botapi.FieldErrorsOf(err); f != nil {
			return nil, util.ErrValidation(messageOr(err, "Registration failed"), f)
		}
		return nil, s.authFailure(err, "Registration failed")
	}
	return s.startSession(ctx, resp)
}

func (s *AuthService) authFailure(err error, fallback string) error {
	var apiErr *botapi.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
		return util.NewAppError(http.StatusUnauthorized, util.ErrCodeUnauthorized, messageOr(err, fallback))
	}
	s.log.Error("Trading service auth call failed", err)
	return util.ErrRemoteFailure(fallback, err)
}

func (s *AuthService) startSession(ctx context.Context, resp *botapi.AuthResponse) (*model.LoginResponse, error) {
	if resp.Token == "" {
		return nil, util.ErrRemoteFailure("Login failed", errors.New("trading service returned no token"))
	}

	sealed, err := crypto.Encrypt(resp.Token, s.encryptionKey)
	if err != nil {
		s.log.Error("Failed to seal trading service token", err)
		return nil, util.ErrInternalServer("Failed to start session")
	}

	now := s.now()
	session := &model.Session{
		ID:          uuid.New().String(),
		UserID:      resp.User.ID,
		Username:    resp.User.Name,
		Email:       resp.User.Email,
		SealedToken: sealed,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.jwtManager.TokenDuration()),
	}

	if err := s.sessions.Create(ctx, session, s.jwtManager.TokenDuration()); err != nil {
		s.log.Error("Failed to store session", err)
		return nil, util.ErrInternalServer("Failed to start session")
	}

	token, err := s.jwtManager.GenerateSessionToken(session.ID, session.UserID, session.Username)
	if err != nil {
		s.log.Error("Failed to sign session token", err)
		return nil, util.ErrInternalServer("Failed to start session")
	}

	s.log.WithField("user_id", session.UserID).Info("Session started")

	return &model.LoginResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User: model.SafeUser{
			ID:                 resp.User.ID,
			Name:               resp.User.Name,
			Email:              resp.User.Email,
			EmailNotifications: resp.User.EmailNotifications,
		},
	}, nil
}

// Authenticate resolves a session token into the calling principal
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.Principal, error) {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, util.NewAppError(http.StatusUnauthorized, util.ErrCodeTokenInvalid, "Invalid or expired token")
	}

	session, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, util.ErrSessionExpired(err)
		}
		return nil, util.ErrInternalServer("Failed to load session")
	}
	if session.IsExpired(s.now()) || session.UserID != claims.UserID {
		return nil, util.ErrSessionExpired(nil)
	}

	upstream, err := crypto.Decrypt(session.SealedToken, s.encryptionKey)
	if err != nil {
		s.log.Error("Failed to unseal session token", err)
		return nil, util.ErrSessionExpired(err)
	}

	return &model.Principal{
		SessionID: session.ID,
		UserID:    session.UserID,
		Username:  session.Username,
		Token:     upstream,
	}, nil
}

// Expire drops every session of the principal's user and tells open dashboards to go to the login page
func (s *AuthService) Expire(ctx context.Context, p model.Principal) {
	if err := s.sessions.DeleteAllForUser(ctx, p.UserID); err != nil {
		s.log.Error("Failed to clear sessions", err)
	}
	if s.ws != nil {
		s.ws.NotifyUser(ctx, p.UserID, model.MessageTypeSessionExpired, model.WSSessionExpiredPayload{Redirect: "/login"})
	}
}

// Logout ends the current session
func (s *AuthService) Logout(ctx context.Context, p model.Principal) error {
	if err := s.sessions.Delete(ctx, &model.Session{ID: p.SessionID, UserID: p.UserID}); err != nil {
		return util.ErrInternalServer("Failed to logout")
	}
	return nil
}

// Profile returns the signed-in user from the trading service
func (s *AuthService) Profile(ctx context.Context, p model.Principal) (*model.SafeUser, error) {
	user, err := s.client.GetProfile(ctx, p.Token)
	if err != nil {
		if botapi.IsUnauthorized(err) {
			s.Expire(context.WithoutCancel(ctx), p)
			return nil, util.ErrSessionExpired(err)
		}
		return nil, util.ErrRemoteFailure("Failed to load profile", err)
	}
	return &model.SafeUser{
		ID:                 user.ID,
		Name:               user.Name,
		Email:              user.Email,
		EmailNotifications: user.EmailNotifications,
	}, nil
}

func messageOr(err error, fallback string) string {
	if msg := botapi.MessageOf(err); msg != "" {
		return msg
	}
	return fallback
}
