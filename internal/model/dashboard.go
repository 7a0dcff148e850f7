package model

import (
	"time"

	"botdeck/backend/pkg/botapi"

	"github.com/shopspring/decimal"
)

// Trend values for P&L figures
const (
	TrendUp   = "up"
	TrendDown = "down"
)

// DashboardView is the rendered dashboard: remote counters plus derived card data
type DashboardView struct {
	Bots             botapi.BotCounts  `json:"bots"`
	Trades           botapi.TradeStats `json:"trades"`
	PnLTrend         string            `json:"pnl_trend"`
	PnLDisplay       string            `json:"pnl_display"`
	ExchangeAccounts int               `json:"exchange_accounts"`
	RecentBots       []BotCard         `json:"recent_bots"`
	GeneratedAt      time.Time         `json:"generated_at"`
}

// BotCard is one recent-bot tile
type BotCard struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Symbol      string          `json:"symbol"`
	Status      string          `json:"status"`
	Strategy    string          `json:"strategy,omitempty"`
	TotalPnl    decimal.Decimal `json:"total_pnl"`
	PnLTrend    string          `json:"pnl_trend"`
	PnLDisplay  string          `json:"pnl_display"`
	TotalTrades int             `json:"total_trades"`
	WinRate     float64         `json:"win_rate"`
	Controls    BotControls     `json:"controls"`
}
