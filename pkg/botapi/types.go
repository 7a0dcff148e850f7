package botapi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Bot status values reported by the trading service
const (
	StatusStopped = "stopped"
	StatusRunning = "running"
	StatusPaused  = "paused"
	StatusError   = "error"
)

// Bot is a configured strategy instance bound to one exchange account and symbol
type Bot struct {
	ID            string                 `json:"_id"`
	Name          string                 `json:"name"`
	Symbol        string                 `json:"symbol"`
	Status        string                 `json:"status"`
	Strategy      *StrategyRef           `json:"strategyId,omitempty"`
	Exchange      *ExchangeAccountRef    `json:"exchangeAccountId,omitempty"`
	Performance   Performance            `json:"performance"`
	Allocation    Allocation             `json:"allocation"`
	Settings      map[string]interface{} `json:"settings,omitempty"`
	LastExecution *time.Time             `json:"lastExecution,omitempty"`
	ErrorMessage  string                 `json:"errorMessage,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// StrategyRef is the populated strategy reference embedded in a bot
type StrategyRef struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// ExchangeAccountRef is the populated account reference embedded in a bot
type ExchangeAccountRef struct {
	ID       string `json:"_id"`
	Exchange string `json:"exchange"`
	Label    string `json:"label"`
}

// Performance holds the bot's running trade statistics
type Performance struct {
	TotalPnl      decimal.Decimal `json:"totalPnl"`
	TotalTrades   int             `json:"totalTrades"`
	WinningTrades int             `json:"winningTrades"`
	LosingTrades  int             `json:"losingTrades"`
	MaxDrawdown   float64         `json:"maxDrawdown"`
}

// Validate checks the counters the service is expected to keep consistent
func (p Performance) Validate() error {
	if p.TotalTrades < 0 || p.WinningTrades < 0 || p.LosingTrades < 0 {
		return fmt.Errorf("trade counters must be non-negative")
	}
	if p.WinningTrades+p.LosingTrades > p.TotalTrades {
		return fmt.Errorf("winning (%d) + losing (%d) trades exceed total (%d)",
			p.WinningTrades, p.LosingTrades, p.TotalTrades)
	}
	if p.MaxDrawdown < 0 || p.MaxDrawdown > 1 {
		return fmt.Errorf("max drawdown %.4f outside [0,1]", p.MaxDrawdown)
	}
	return nil
}

// Allocation is the capital assigned to a bot
type Allocation struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// BotAnalytics is passed through as-is; its shape belongs to the service
type BotAnalytics map[string]json.RawMessage

// MessageResponse is returned by lifecycle and settings operations
type MessageResponse struct {
	Message string `json:"message"`
}

// CreateBotRequest is the payload for creating a bot
type CreateBotRequest struct {
	Name              string                 `json:"name"`
	Symbol            string                 `json:"symbol"`
	ExchangeAccountID string                 `json:"exchangeAccountId"`
	StrategyID        string                 `json:"strategyId"`
	Allocation        Allocation             `json:"allocation"`
	Settings          map[string]interface{} `json:"settings"`
}

// Strategy describes a strategy template and its tunable parameters
type Strategy struct {
	ID          string              `json:"_id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	RiskLevel   string              `json:"riskLevel,omitempty"`
	MinBalance  decimal.Decimal     `json:"minBalance"`
	Parameters  []StrategyParameter `json:"parameters"`
}

// StrategyParameter is one entry of a strategy's settings form
type StrategyParameter struct {
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	Description  string        `json:"description"`
	Required     bool          `json:"required"`
	DefaultValue interface{}   `json:"defaultValue,omitempty"`
	Options      []interface{} `json:"options,omitempty"`
}

// DefaultSettings returns a settings map pre-filled with every parameter default
func (s *Strategy) DefaultSettings() map[string]interface{} {
	settings := make(map[string]interface{}, len(s.Parameters))
	for _, p := range s.Parameters {
		settings[p.Name] = p.DefaultValue
	}
	return settings
}

// DashboardAggregate is the composed summary fetched as one unit
type DashboardAggregate struct {
	Bots             BotCounts  `json:"bots"`
	Trades           TradeStats `json:"trades"`
	ExchangeAccounts int        `json:"exchangeAccounts"`
	RecentBots       []Bot      `json:"recentBots"`
}

// BotCounts breaks the user's bots down by status
type BotCounts struct {
	Total   int `json:"total"`
	Running int `json:"running"`
	Paused  int `json:"paused"`
	Stopped int `json:"stopped"`
}

// TradeStats summarises trading activity
type TradeStats struct {
	Total    int             `json:"total"`
	Today    int             `json:"today"`
	TotalPnl decimal.Decimal `json:"totalPnl"`
}

// ExchangeAccount is a stored set of exchange credentials (secrets never returned)
type ExchangeAccount struct {
	ID           string       `json:"_id"`
	Exchange     string       `json:"exchange"`
	Label        string       `json:"label"`
	Testnet      bool         `json:"testnet"`
	IsActive     bool         `json:"isActive"`
	Permissions  *Permissions `json:"permissions,omitempty"`
	LastVerified *time.Time   `json:"lastVerified,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Permissions lists the trading scopes granted to an API key
type Permissions struct {
	Spot   bool `json:"spot"`
	Future bool `json:"future"`
	Margin bool `json:"margin"`
}

// AddExchangeAccountRequest is the payload for storing new credentials
type AddExchangeAccountRequest struct {
	Exchange  string `json:"exchange"`
	Label     string `json:"label"`
	APIKey    string `json:"apiKey"`
	APISecret string `json:"apiSecret"`
	Testnet   bool   `json:"testnet"`
}

// ConnectionTestResult reports whether stored credentials still work
type ConnectionTestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LoginRequest holds sign-in credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest holds sign-up details
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by login and register
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// User is the profile of the signed-in account
type User struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	EmailNotifications bool   `json:"emailNotifications"`
}

// EmailSettings toggles email alerts
type EmailSettings struct {
	EmailNotifications bool `json:"emailNotifications"`
}
