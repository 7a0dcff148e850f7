package service

import (
	"context"
	"time"

	"botdeck/backend/internal/lifecycle"
	"botdeck/backend/internal/model"
	"botdeck/backend/internal/notification"
	"botdeck/backend/internal/util"
	"botdeck/backend/pkg/botapi"
	"botdeck/backend/pkg/logger"

	"github.com/shopspring/decimal"
)

// MaxRecentBots caps the recent-bots panel
const MaxRecentBots = 5

// DashboardService builds the dashboard view from one aggregate fetch
type DashboardService struct {
	client DashboardClient
	guard  *lifecycle.Guard
	remote remoteErrors
	now    func() time.Time
	log    *logger.Logger
}

// NewDashboardService creates a new dashboard service. guard may be nil.
func NewDashboardService(client DashboardClient, bus *notification.Bus, sessions SessionExpirer, guard *lifecycle.Guard) *DashboardService {
	log := logger.GetLogger().Component("dashboard")
	return &DashboardService{
		client: client,
		guard:  guard,
		remote: remoteErrors{bus: bus, sessions: sessions, log: log},
		now:    time.Now,
		log:    log,
	}
}

// Load fetches the aggregate and derives the view. On failure nothing partial is returned.
func (s *DashboardService) Load(ctx context.Context, p model.Principal) (*model.DashboardView, error) {
	agg, err := s.client.GetDashboard(ctx, p.Token)
	if err != nil {
		s.log.WithField("user_id", p.UserID).Warnf("Dashboard load failed: %v", err)
		appErr := s.remote.load(ctx, p, err, "Failed to load dashboard data")
		if ae := util.GetAppError(appErr); ae != nil && ae.Code == util.ErrCodeRemoteFailure {
			return nil, ae.WithDetails(map[string]bool{"retryable": true})
		}
		return nil, appErr
	}

	return s.Build(agg), nil
}

// Build derives the dashboard view from an aggregate
func (s *DashboardService) Build(agg *botapi.DashboardAggregate) *model.DashboardView {
	view := &model.DashboardView{
		Bots:             agg.Bots,
		Trades:           agg.Trades,
		PnLTrend:         PnLTrend(agg.Trades.TotalPnl),
		PnLDisplay:       FormatPnL(agg.Trades.TotalPnl),
		ExchangeAccounts: agg.ExchangeAccounts,
		RecentBots:       make([]model.BotCard, 0, MaxRecentBots),
		GeneratedAt:      s.now(),
	}

	for i, bot := range agg.RecentBots {
		if i == MaxRecentBots {
			break
		}
		view.RecentBots = append(view.RecentBots, s.card(bot))
	}
	return view
}

func (s *DashboardService) card(bot botapi.Bot) model.BotCard {
	if err := bot.Performance.Validate(); err != nil {
		s.log.WithField("bot_id", bot.ID).Warnf("Inconsistent bot performance: %v", err)
	}

	card := model.BotCard{
		ID:          bot.ID,
		Name:        bot.Name,
		Symbol:      bot.Symbol,
		Status:      bot.Status,
		TotalPnl:    bot.Performance.TotalPnl,
		PnLTrend:    PnLTrend(bot.Performance.TotalPnl),
		PnLDisplay:  FormatPnL(bot.Performance.TotalPnl),
		TotalTrades: bot.Performance.TotalTrades,
		WinRate:     WinRate(bot.Performance),
		Controls:    buildControls(bot, s.guard),
	}
	if bot.Strategy != nil {
		card.Strategy = bot.Strategy.Name
	}
	return card
}

// PnLTrend is up for zero or positive P&L and down otherwise
func PnLTrend(pnl decimal.Decimal) string {
	if pnl.IsNegative() {
		return model.TrendDown
	}
	return model.TrendUp
}

// FormatPnL renders P&L with two decimals and an explicit plus sign for gains
func FormatPnL(pnl decimal.Decimal) string {
	if pnl.IsNegative() {
		return pnl.StringFixed(2)
	}
	return "+" + pnl.StringFixed(2)
}

// WinRate is winning trades as a percentage of all trades, 0 when there are none.
// Counters that disagree are clamped to [0, 100].
func WinRate(p botapi.Performance) float64 {
	if p.TotalTrades <= 0 || p.WinningTrades <= 0 {
		return 0
	}
	if p.WinningTrades >= p.TotalTrades {
		return 100
	}
	rate, _ := decimal.NewFromInt(int64(p.WinningTrades)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(p.TotalTrades))).
		Round(1).
		Float64()
	return rate
}
