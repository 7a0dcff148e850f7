package service

import (
	"context"
	"fmt"
	"strings"

	"botdeck/backend/internal/lifecycle"
	"botdeck/backend/internal/model"
	"botdeck/backend/internal/notification"
	"botdeck/backend/internal/util"
	"botdeck/backend/pkg/botapi"
	"botdeck/backend/pkg/logger"
)

// SupportedExchanges lists the venues the trading service accepts credentials for
var SupportedExchanges = []string{"binance", "delta"}

// ExchangeService manages exchange credentials.
// Delete and test share a per-account guard, separate from the bot guard.
type ExchangeService struct {
	client ExchangeClient
	guard  *lifecycle.Guard
	bus    *notification.Bus
	remote remoteErrors
	log    *logger.Logger
}

// NewExchangeService creates a new exchange service
func NewExchangeService(client ExchangeClient, bus *notification.Bus, sessions SessionExpirer) *ExchangeService {
	log := logger.GetLogger().Component("exchanges")
	return &ExchangeService{
		client: client,
		guard:  lifecycle.NewGuard(),
		bus:    bus,
		remote: remoteErrors{bus: bus, sessions: sessions, log: log},
		log:    log,
	}
}

// List returns the user's exchange accounts
func (s *ExchangeService) List(ctx context.Context, p model.Principal) ([]botapi.ExchangeAccount, error) {
	accounts, err := s.client.ListExchangeAccounts(ctx, p.Token)
	if err != nil {
		return nil, s.remote.load(ctx, p, err, "Failed to load exchange accounts")
	}
	return accounts, nil
}

// Add stores new credentials after basic validation
func (s *ExchangeService) Add(ctx context.Context, p model.Principal, req *botapi.AddExchangeAccountRequest) (*botapi.ExchangeAccount, error) {
	req.Exchange = strings.ToLower(strings.TrimSpace(req.Exchange))
	req.Label = strings.TrimSpace(req.Label)
	req.APIKey = strings.TrimSpace(req.APIKey)
	req.APISecret = strings.TrimSpace(req.APISecret)

	fields := make(map[string]string)
	if !isSupportedExchange(req.Exchange) {
		fields["exchange"] = fmt.Sprintf("Exchange must be one of %s", strings.Join(SupportedExchanges, ", "))
	}
	if req.Label == "" {
		fields["label"] = "Label is required"
	}
	if req.APIKey == "" {
		fields["api_key"] = "API key is required"
	}
	if req.APISecret == "" {
		fields["api_secret"] = "API secret is required"
	}
	if len(fields) > 0 {
		const msg = "Please fix the highlighted fields"
		s.bus.Error(msg, notification.ForUser(p.UserID))
		return nil, util.ErrValidation(msg, fields)
	}

	account, err := s.client.AddExchangeAccount(ctx, p.Token, req)
	if err != nil {
		return nil, s.remote.failure(ctx, p, err, "Failed to add exchange account")
	}

	s.bus.Success("Exchange account added successfully!", notification.ForUser(p.UserID))
	return account, nil
}

// Delete removes an account after explicit confirmation
func (s *ExchangeService) Delete(ctx context.Context, p model.Principal, accountID string, confirmed bool) error {
	if !confirmed {
		return util.ErrConfirmationRequired(fmt.Errorf("%w: delete exchange account %s", ErrConfirmationRequired, accountID))
	}
	if !s.guard.TryAcquire(accountID) {
		return util.ErrActionInProgress(fmt.Errorf("%w: exchange account %s", lifecycle.ErrActionInProgress, accountID))
	}
	defer s.guard.Release(accountID)

	ctx = context.WithoutCancel(ctx)
	if err := s.client.DeleteExchangeAccount(ctx, p.Token, accountID); err != nil {
		return s.remote.failure(ctx, p, err, "Failed to delete account")
	}

	s.bus.Success("Exchange account deleted successfully", notification.ForUser(p.UserID))
	return nil
}

// Test checks stored credentials against the exchange
func (s *ExchangeService) Test(ctx context.Context, p model.Principal, accountID string) (*botapi.ConnectionTestResult, error) {
	if !s.guard.TryAcquire(accountID) {
		return nil, util.ErrActionInProgress(fmt.Errorf("%w: exchange account %s", lifecycle.ErrActionInProgress, accountID))
	}
	defer s.guard.Release(accountID)

	ctx = context.WithoutCancel(ctx)
	result, err := s.client.TestExchangeAccount(ctx, p.Token, accountID)
	if err != nil {
		return nil, s.remote.failure(ctx, p, err, "Connection test failed")
	}

	if !result.Success {
		msg := result.Message
		if msg == "" {
			msg = "Connection test failed"
		}
		s.bus.Error(msg, notification.ForUser(p.UserID))
		return result, nil
	}

	s.bus.Success("Connection test successful!", notification.ForUser(p.UserID))
	return result, nil
}

// Busy reports whether a delete or test is running for accountID
func (s *ExchangeService) Busy(accountID string) bool {
	return s.guard.IsLocked(accountID)
}

func isSupportedExchange(name string) bool {
	for _, e := range SupportedExchanges {
		if e == name {
			return true
		}
	}
	return false
}
