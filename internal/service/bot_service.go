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

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// MinAllocation is the smallest capital a bot may be created with
var MinAllocation = decimal.NewFromInt(10)

// DefaultCurrency is used when the create form leaves the currency empty
const DefaultCurrency = "USDT"

// BotService serves bot list, detail, creation and strategy views
type BotService struct {
	bots      BotClient
	exchanges ExchangeClient
	cache     BotListCache
	guard     *lifecycle.Guard
	bus       *notification.Bus
	remote    remoteErrors
	log       *logger.Logger
}

// NewBotService creates a new bot service
func NewBotService(bots BotClient, exchanges ExchangeClient, cache BotListCache, guard *lifecycle.Guard, bus *notification.Bus, sessions SessionExpirer) *BotService {
	log := logger.GetLogger().Component("bots")
	return &BotService{
		bots:      bots,
		exchanges: exchanges,
		cache:     cache,
		guard:     guard,
		bus:       bus,
		remote:    remoteErrors{bus: bus, sessions: sessions, log: log},
		log:       log,
	}
}

// BotListItem is a bot together with its current controls
type BotListItem struct {
	botapi.Bot
	Controls model.BotControls `json:"controls"`
}

// List fetches the user's bots and refreshes the cached list
func (s *BotService) List(ctx context.Context, p model.Principal) ([]BotListItem, error) {
	bots, err := s.bots.ListBots(ctx, p.Token)
	if err != nil {
		return nil, s.remote.load(ctx, p, err, "Failed to load bots")
	}

	if err := s.cache.Save(ctx, p.UserID, bots); err != nil {
		s.log.Errorf("Failed to cache bot list: %v", err)
	}

	items := make([]BotListItem, 0, len(bots))
	for _, b := range bots {
		items = append(items, BotListItem{Bot: b, Controls: buildControls(b, s.guard)})
	}
	return items, nil
}

// Detail fetches a bot and its analytics concurrently. Missing analytics do not fail the page.
func (s *BotService) Detail(ctx context.Context, p model.Principal, botID string) (*model.BotDetail, error) {
	var (
		bot       *botapi.Bot
		analytics botapi.BotAnalytics
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bot, err = s.bots.GetBot(gctx, p.Token, botID)
		return err
	})
	g.Go(func() error {
		a, err := s.bots.GetBotAnalytics(gctx, p.Token, botID)
		if err != nil {
			s.log.WithField("bot_id", botID).Warnf("Bot analytics unavailable: %v", err)
			return nil
		}
		analytics = a
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, s.remote.load(ctx, p, err, "Failed to load bot details")
	}

	if err := s.cache.Upsert(ctx, p.UserID, *bot); err != nil {
		s.log.Errorf("Failed to update cached bot %s: %v", botID, err)
	}

	return &model.BotDetail{
		Bot:       bot,
		Analytics: analytics,
		Controls:  buildControls(*bot, s.guard),
	}, nil
}

// CreateOptions is what the create form needs: strategies and exchange accounts
type CreateOptions struct {
	Strategies       []botapi.Strategy        `json:"strategies"`
	ExchangeAccounts []botapi.ExchangeAccount `json:"exchange_accounts"`
}

// CreateOptions loads the create form's choices concurrently
func (s *BotService) CreateOptions(ctx context.Context, p model.Principal) (*CreateOptions, error) {
	var opts CreateOptions

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		opts.Strategies, err = s.bots.ListStrategies(gctx, p.Token)
		return err
	})
	g.Go(func() error {
		var err error
		opts.ExchangeAccounts, err = s.exchanges.ListExchangeAccounts(gctx, p.Token)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, s.remote.load(ctx, p, err, "Failed to load initial data")
	}
	return &opts, nil
}

// Strategies lists strategy templates
func (s *BotService) Strategies(ctx context.Context, p model.Principal) ([]botapi.Strategy, error) {
	strategies, err := s.bots.ListStrategies(ctx, p.Token)
	if err != nil {
		return nil, s.remote.load(ctx, p, err, "Failed to load strategies")
	}
	return strategies, nil
}

// Strategy returns one template with its parameters
func (s *BotService) Strategy(ctx context.Context, p model.Principal, strategyID string) (*botapi.Strategy, error) {
	strategy, err := s.bots.GetStrategy(ctx, p.Token, strategyID)
	if err != nil {
		return nil, s.remote.load(ctx, p, err, "Failed to load strategy details")
	}
	return strategy, nil
}

// Create validates the form, fills strategy defaults and creates the bot
func (s *BotService) Create(ctx context.Context, p model.Principal, in *model.CreateBotInput) (*botapi.Bot, error) {
	req, fields := buildCreateRequest(in)
	if len(fields) > 0 {
		return nil, s.invalid(p, "Please fix the highlighted fields", fields)
	}

	strategy, err := s.bots.GetStrategy(ctx, p.Token, req.StrategyID)
	if err != nil {
		return nil, s.remote.load(ctx, p, err, "Failed to load strategy details")
	}
	req.Settings = mergeSettings(strategy, req.Settings)
	if fields := missingParameters(strategy, req.Settings); len(fields) > 0 {
		return nil, s.invalid(p, "Please fill in the required strategy settings", fields)
	}

	bot, err := s.bots.CreateBot(ctx, p.Token, req)
	if err != nil {
		if fields := botapi.FieldErrorsOf(err); fields != nil && !botapi.IsUnauthorized(err) {
			msg := botapi.MessageOf(err)
			if msg == "" {
				msg = "Failed to create bot"
			}
			return nil, s.invalid(p, msg, fields)
		}
		return nil, s.remote.failure(ctx, p, err, "Failed to create bot")
	}

	s.bus.Success("Trading bot created successfully!", notification.ForUser(p.UserID))
	if err := s.cache.Upsert(ctx, p.UserID, *bot); err != nil {
		s.log.Errorf("Failed to add bot %s to cached list: %v", bot.ID, err)
	}
	return bot, nil
}

func (s *BotService) invalid(p model.Principal, message string, fields map[string]string) error {
	s.bus.Error(message, notification.ForUser(p.UserID))
	return util.ErrValidation(message, fields)
}

func buildCreateRequest(in *model.CreateBotInput) (*botapi.CreateBotRequest, map[string]string) {
	fields := make(map[string]string)

	name := strings.TrimSpace(in.Name)
	if name == "" {
		fields["name"] = "Name is required"
	}
	symbol := strings.ToUpper(strings.TrimSpace(in.Symbol))
	if symbol == "" {
		fields["symbol"] = "Symbol is required"
	} else if !strings.Contains(symbol, "/") {
		fields["symbol"] = "Symbol must look like BASE/QUOTE"
	}
	if in.StrategyID == "" {
		fields["strategy_id"] = "Strategy is required"
	}
	if in.ExchangeAccountID == "" {
		fields["exchange_account_id"] = "Exchange account is required"
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	switch {
	case err != nil:
		fields["amount"] = "Amount must be a number"
	case amount.LessThan(MinAllocation):
		fields["amount"] = fmt.Sprintf("Amount must be at least %s", MinAllocation.String())
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	return &botapi.CreateBotRequest{
		Name:              name,
		Symbol:            symbol,
		ExchangeAccountID: in.ExchangeAccountID,
		StrategyID:        in.StrategyID,
		Allocation:        botapi.Allocation{Amount: amount, Currency: currency},
		Settings:          in.Settings,
	}, fields
}

// mergeSettings overlays user settings on the strategy defaults
func mergeSettings(strategy *botapi.Strategy, user map[string]interface{}) map[string]interface{} {
	settings := strategy.DefaultSettings()
	for k, v := range user {
		settings[k] = v
	}
	return settings
}

func missingParameters(strategy *botapi.Strategy, settings map[string]interface{}) map[string]string {
	fields := make(map[string]string)
	for _, param := range strategy.Parameters {
		if !param.Required {
			continue
		}
		v, ok := settings[param.Name]
		if !ok || v == nil || v == "" {
			fields["settings."+param.Name] = param.Name + " is required"
		}
	}
	return fields
}
