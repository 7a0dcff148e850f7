package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"botdeck/backend/internal/lifecycle"
	"botdeck/backend/internal/model"
	"botdeck/backend/internal/notification"
	"botdeck/backend/internal/util"
	"botdeck/backend/pkg/botapi"
	"botdeck/backend/pkg/logger"
)

// ErrConfirmationRequired is returned for destructive operations the user has not confirmed
var ErrConfirmationRequired = errors.New("confirmation required")

// DefaultActionTimeout bounds a lifecycle call when none is configured
const DefaultActionTimeout = 30 * time.Second

// BotActionService runs bot lifecycle actions against the trading service.
// At most one action per bot is in flight; different bots proceed concurrently.
type BotActionService struct {
	client  BotClient
	cache   BotListCache
	guard   *lifecycle.Guard
	bus     *notification.Bus
	ws      UserNotifier
	remote  remoteErrors
	timeout time.Duration
	log     *logger.Logger
}

// BotActionConfig wires a BotActionService
type BotActionConfig struct {
	Client        BotClient
	Cache         BotListCache
	Guard         *lifecycle.Guard
	Bus           *notification.Bus
	Sessions      SessionExpirer
	Notifier      UserNotifier
	ActionTimeout time.Duration
}

// NewBotActionService creates a new bot action orchestrator
func NewBotActionService(cfg BotActionConfig) *BotActionService {
	if cfg.Guard == nil {
		cfg.Guard = lifecycle.NewGuard()
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = DefaultActionTimeout
	}

	log := logger.GetLogger().Component("bot_actions")
	return &BotActionService{
		client:  cfg.Client,
		cache:   cfg.Cache,
		guard:   cfg.Guard,
		bus:     cfg.Bus,
		ws:      cfg.Notifier,
		remote:  remoteErrors{bus: cfg.Bus, sessions: cfg.Sessions, log: log},
		timeout: cfg.ActionTimeout,
		log:     log,
	}
}

// Guard exposes the per-bot lock so views can render busy controls
func (s *BotActionService) Guard() *lifecycle.Guard {
	return s.guard
}

// Controls returns the actions the user may trigger for bot right now
func (s *BotActionService) Controls(bot botapi.Bot) model.BotControls {
	return buildControls(bot, s.guard)
}

// ControlsByID resolves the bot's last known status and returns its controls
func (s *BotActionService) ControlsByID(ctx context.Context, p model.Principal, botID string) (model.BotControls, error) {
	bot, err := s.lastKnown(ctx, p, botID, "")
	if err != nil {
		return model.BotControls{}, err
	}
	return s.Controls(*bot), nil
}

// ActionRequest identifies a lifecycle action by bot id.
// KnownStatus is the status the caller rendered; empty means look it up.
type ActionRequest struct {
	BotID       string
	Action      lifecycle.Action
	KnownStatus string
	Scope       model.ActionScope
}

// PerformByID resolves the bot's last known status, then runs Perform
func (s *BotActionService) PerformByID(ctx context.Context, p model.Principal, req ActionRequest) (*model.ActionResult, error) {
	bot, err := s.lastKnown(ctx, p, req.BotID, req.KnownStatus)
	if err != nil {
		return nil, err
	}
	return s.Perform(ctx, p, *bot, req.Action, req.Scope)
}

// Perform validates action against bot's last known status, runs it remotely and settles the outcome.
// The remote call is detached from ctx so the lock is always released and the outcome always reported.
func (s *BotActionService) Perform(ctx context.Context, p model.Principal, bot botapi.Bot, action lifecycle.Action, scope model.ActionScope) (*model.ActionResult, error) {
	if err := lifecycle.Validate(lifecycle.Status(bot.Status), action); err != nil {
		return nil, util.ErrInvalidTransition(err)
	}

	if !s.guard.TryAcquire(bot.ID) {
		return nil, util.ErrActionInProgress(fmt.Errorf("%w: bot %s", lifecycle.ErrActionInProgress, bot.ID))
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	log := s.log.WithFields(map[string]interface{}{
		"user_id": p.UserID,
		"bot_id":  bot.ID,
		"action":  string(action),
	})

	resp, err := s.call(actx, p, bot.ID, action)
	if err != nil {
		log.Warnf("Bot action failed: %v", err)
		return nil, s.remote.failure(actx, p, err, fmt.Sprintf("Failed to %s bot", action))
	}

	msg := resp.Message
	if msg == "" {
		msg = fmt.Sprintf("Bot %s successfully", action.PastTense())
	}
	s.bus.Success(msg, notification.ForUser(p.UserID))
	log.Info("Bot action completed")

	result := &model.ActionResult{
		BotID:   bot.ID,
		Action:  string(action),
		Message: msg,
	}

	// the refetch gets its own budget so a slow action does not starve it
	rctx, rcancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer rcancel()

	if scope == model.ScopeList {
		result.Bots = s.refreshList(rctx, p)
		for i := range result.Bots {
			if result.Bots[i].ID == bot.ID {
				result.Bot = &result.Bots[i]
				break
			}
		}
	} else {
		result.Bot = s.refreshBot(rctx, p, bot.ID)
	}

	if result.Bot != nil && s.ws != nil {
		s.ws.NotifyUser(rctx, p.UserID, model.MessageTypeBotUpdate, model.WSBotUpdatePayload{
			BotID:    result.Bot.ID,
			Status:   result.Bot.Status,
			Controls: s.Controls(*result.Bot),
		})
	}

	return result, nil
}

// call holds the bot's lock only for the duration of the remote action
func (s *BotActionService) call(ctx context.Context, p model.Principal, botID string, action lifecycle.Action) (*botapi.MessageResponse, error) {
	defer s.guard.Release(botID)
	return s.client.BotAction(ctx, p.Token, botID, string(action))
}

// DeleteOptions controls a bot deletion
type DeleteOptions struct {
	Confirmed  bool
	FromDetail bool
}

// Delete removes a bot after explicit confirmation and prunes it from the cached list.
// It does not take the bot's action lock.
func (s *BotActionService) Delete(ctx context.Context, p model.Principal, botID string, opts DeleteOptions) (*model.DeleteResult, error) {
	if !opts.Confirmed {
		return nil, util.ErrConfirmationRequired(fmt.Errorf("%w: delete bot %s", ErrConfirmationRequired, botID))
	}

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.client.DeleteBot(dctx, p.Token, botID); err != nil {
		s.log.WithField("bot_id", botID).Warnf("Bot delete failed: %v", err)
		return nil, s.remote.failure(dctx, p, err, "Failed to delete bot")
	}

	const msg = "Bot deleted successfully"
	s.bus.Success(msg, notification.ForUser(p.UserID))

	if s.cache != nil {
		if err := s.cache.Remove(dctx, p.UserID, botID); err != nil {
			s.log.Errorf("Failed to prune bot %s from cached list: %v", botID, err)
		}
	}

	result := &model.DeleteResult{BotID: botID, Message: msg}
	if opts.FromDetail {
		result.Redirect = "/bots"
	}
	return result, nil
}

// lastKnown returns the bot as the user last saw it: the caller's status, the cached list, or a fresh fetch
func (s *BotActionService) lastKnown(ctx context.Context, p model.Principal, botID, knownStatus string) (*botapi.Bot, error) {
	if knownStatus != "" {
		if _, err := lifecycle.ParseStatus(knownStatus); err != nil {
			return nil, util.ErrInvalidTransition(err)
		}
		return &botapi.Bot{ID: botID, Status: knownStatus}, nil
	}

	if s.cache != nil {
		if bots, ok, err := s.cache.Get(ctx, p.UserID); err == nil && ok {
			for i := range bots {
				if bots[i].ID == botID {
					return &bots[i], nil
				}
			}
		}
	}

	bot, err := s.client.GetBot(ctx, p.Token, botID)
	if err != nil {
		return nil, s.remote.load(ctx, p, err, "Failed to load bot details")
	}
	return bot, nil
}

func (s *BotActionService) refreshBot(ctx context.Context, p model.Principal, botID string) *botapi.Bot {
	bot, err := s.client.GetBot(ctx, p.Token, botID)
	if err != nil {
		_ = s.remote.load(ctx, p, err, "Failed to load bot details")
		return nil
	}
	if s.cache != nil {
		if err := s.cache.Upsert(ctx, p.UserID, *bot); err != nil {
			s.log.Errorf("Failed to update cached bot %s: %v", botID, err)
		}
	}
	return bot
}

func (s *BotActionService) refreshList(ctx context.Context, p model.Principal) []botapi.Bot {
	bots, err := s.client.ListBots(ctx, p.Token)
	if err != nil {
		_ = s.remote.load(ctx, p, err, "Failed to load bots")
		return nil
	}
	if s.cache != nil {
		if err := s.cache.Save(ctx, p.UserID, bots); err != nil {
			s.log.Errorf("Failed to cache bot list: %v", err)
		}
	}
	return bots
}

// buildControls maps a bot's status to enabled controls. A busy bot shows none.
func buildControls(bot botapi.Bot, guard *lifecycle.Guard) model.BotControls {
	status := lifecycle.Status(bot.Status)
	controls := model.BotControls{
		BotID:   bot.ID,
		Status:  bot.Status,
		Actions: []model.ControlAction{},
		Busy:    guard != nil && guard.IsLocked(bot.ID),
	}
	if controls.Busy {
		return controls
	}
	for _, a := range lifecycle.LegalActions(status) {
		controls.Actions = append(controls.Actions, model.ControlAction{
			Action: string(a),
			Label:  lifecycle.ActionLabel(status, a),
		})
	}
	return controls
}
