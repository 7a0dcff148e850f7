package service

import (
	"context"

	"botdeck/backend/internal/model"
	"botdeck/backend/internal/notification"
	"botdeck/backend/internal/util"
	"botdeck/backend/pkg/botapi"
	"botdeck/backend/pkg/logger"
)

// BotClient is the part of the trading service used for bots and strategies
type BotClient interface {
	ListBots(ctx context.Context, token string) ([]botapi.Bot, error)
	GetBot(ctx context.Context, token, botID string) (*botapi.Bot, error)
	GetBotAnalytics(ctx context.Context, token, botID string) (botapi.BotAnalytics, error)
	BotAction(ctx context.Context, token, botID, action string) (*botapi.MessageResponse, error)
	DeleteBot(ctx context.Context, token, botID string) error
	CreateBot(ctx context.Context, token string, req *botapi.CreateBotRequest) (*botapi.Bot, error)
	ListStrategies(ctx context.Context, token string) ([]botapi.Strategy, error)
	GetStrategy(ctx context.Context, token, strategyID string) (*botapi.Strategy, error)
}

// DashboardClient fetches the dashboard aggregate
type DashboardClient interface {
	GetDashboard(ctx context.Context, token string) (*botapi.DashboardAggregate, error)
}

// ExchangeClient manages exchange credentials
type ExchangeClient interface {
	ListExchangeAccounts(ctx context.Context, token string) ([]botapi.ExchangeAccount, error)
	AddExchangeAccount(ctx context.Context, token string, req *botapi.AddExchangeAccountRequest) (*botapi.ExchangeAccount, error)
	DeleteExchangeAccount(ctx context.Context, token, accountID string) error
	TestExchangeAccount(ctx context.Context, token, accountID string) (*botapi.ConnectionTestResult, error)
}

// AccountClient covers sign-in, profile and settings calls
type AccountClient interface {
	Login(ctx context.Context, req *botapi.LoginRequest) (*botapi.AuthResponse, error)
	Register(ctx context.Context, req *botapi.RegisterRequest) (*botapi.AuthResponse, error)
	GetProfile(ctx context.Context, token string) (*botapi.User, error)
	UpdateEmailSettings(ctx context.Context, token string, req *botapi.EmailSettings) (*botapi.MessageResponse, error)
	SendTestEmail(ctx context.Context, token string) error
}

// BotListCache is the locally held copy of a user's bot list
type BotListCache interface {
	Save(ctx context.Context, userID string, bots []botapi.Bot) error
	Get(ctx context.Context, userID string) ([]botapi.Bot, bool, error)
	Upsert(ctx context.Context, userID string, bot botapi.Bot) error
	Remove(ctx context.Context, userID, botID string) error
}

// SessionExpirer resets a session once the trading service stops accepting its token
type SessionExpirer interface {
	Expire(ctx context.Context, principal model.Principal)
}

// UserNotifier pushes a typed message to one user's live sockets
type UserNotifier interface {
	NotifyUser(ctx context.Context, userID string, msgType model.WSMessageType, payload interface{})
}

// remoteErrors turns trading service failures into user-facing outcomes.
// A rejected token resets the session without an operation toast. Anything else gets an error toast.
type remoteErrors struct {
	bus      *notification.Bus
	sessions SessionExpirer
	log      *logger.Logger
}

// failure prefers the service's own message and falls back to fallback
func (r remoteErrors) failure(ctx context.Context, p model.Principal, err error, fallback string) error {
	if expired := r.expired(ctx, p, err); expired != nil {
		return expired
	}

	msg := botapi.MessageOf(err)
	if msg == "" {
		msg = fallback
	}
	r.bus.Error(msg, notification.ForUser(p.UserID))
	return util.ErrRemoteFailure(msg, err)
}

// load always shows message; used for reads where server text is not meaningful to users
func (r remoteErrors) load(ctx context.Context, p model.Principal, err error, message string) error {
	if expired := r.expired(ctx, p, err); expired != nil {
		return expired
	}

	r.bus.Error(message, notification.ForUser(p.UserID))
	return util.ErrRemoteFailure(message, err)
}

func (r remoteErrors) expired(ctx context.Context, p model.Principal, err error) error {
	if !botapi.IsUnauthorized(err) {
		return nil
	}
	r.log.WithField("user_id", p.UserID).Info("Trading service rejected session token")
	if r.sessions != nil {
		r.sessions.Expire(context.WithoutCancel(ctx), p)
	}
	return util.ErrSessionExpired(err)
}
