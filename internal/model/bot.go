package model

import (
	"botdeck/backend/pkg/botapi"
)

// ActionScope says which view triggered a lifecycle action.
// List-scoped actions refresh the cached bot list as well as the bot itself.
type ActionScope string

const (
	ScopeDetail ActionScope = "detail"
	ScopeList   ActionScope = "list"
)

// ParseActionScope defaults to the detail scope for anything unrecognised
func ParseActionScope(s string) ActionScope {
	if ActionScope(s) == ScopeList {
		return ScopeList
	}
	return ScopeDetail
}

// ControlAction is one enabled button on a bot card or detail page
type ControlAction struct {
	Action string `json:"action"`
	Label  string `json:"label"`
}

// BotControls describes what the user may do with a bot right now
type BotControls struct {
	BotID   string          `json:"bot_id"`
	Status  string          `json:"status"`
	Actions []ControlAction `json:"actions"`
	Busy    bool            `json:"busy"`
}

// BotDetail is the bot page payload. Analytics may be missing when that call failed.
type BotDetail struct {
	Bot       *botapi.Bot         `json:"bot"`
	Analytics botapi.BotAnalytics `json:"analytics,omitempty"`
	Controls  BotControls         `json:"controls"`
}

// ActionResult is returned after a lifecycle action settles successfully
type ActionResult struct {
	BotID   string       `json:"bot_id"`
	Action  string       `json:"action"`
	Message string       `json:"message"`
	Bot     *botapi.Bot  `json:"bot,omitempty"`
	Bots    []botapi.Bot `json:"bots,omitempty"`
}

// DeleteResult is returned after a bot is deleted
type DeleteResult struct {
	BotID    string `json:"bot_id"`
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

// CreateBotInput is the dashboard's create-bot form
type CreateBotInput struct {
	Name              string                 `json:"name"`
	Symbol            string                 `json:"symbol"`
	StrategyID        string                 `json:"strategy_id"`
	ExchangeAccountID string                 `json:"exchange_account_id"`
	Amount            string                 `json:"amount"`
	Currency          string                 `json:"currency"`
	Settings          map[string]interface{} `json:"settings"`
}
