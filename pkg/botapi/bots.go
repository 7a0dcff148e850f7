package botapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ListBots returns the caller's bots in service order
func (c *Client) ListBots(ctx context.Context, token string) ([]Bot, error) {
	var result struct {
		Bots []Bot `json:"bots"`
	}
	if err := c.do(ctx, http.MethodGet, "/strategies/bots/my", token, nil, &result); err != nil {
		return nil, err
	}
	return result.Bots, nil
}

// GetBot returns one bot's current state
func (c *Client) GetBot(ctx context.Context, token, botID string) (*Bot, error) {
	var result struct {
		Bot *Bot `json:"bot"`
	}
	if err := c.do(ctx, http.MethodGet, "/bots/"+url.PathEscape(botID), token, nil, &result); err != nil {
		return nil, err
	}
	if result.Bot == nil {
		return nil, fmt.Errorf("bot %s missing from response", botID)
	}
	return result.Bot, nil
}

// GetBotAnalytics returns the analytics snapshot for a bot
func (c *Client) GetBotAnalytics(ctx context.Context, token, botID string) (BotAnalytics, error) {
	var result BotAnalytics
	path := "/dashboard/bots/" + url.PathEscape(botID) + "/analytics"
	if err := c.do(ctx, http.MethodGet, path, token, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// BotAction invokes start, stop, pause or resume for a bot
func (c *Client) BotAction(ctx context.Context, token, botID, action string) (*MessageResponse, error) {
	switch action {
	case "start", "stop", "pause", "resume":
	default:
		return nil, fmt.Errorf("unsupported bot action %q", action)
	}

	var result MessageResponse
	path := "/bots/" + url.PathEscape(botID) + "/" + action
	if err := c.do(ctx, http.MethodPost, path, token, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteBot removes a bot
func (c *Client) DeleteBot(ctx context.Context, token, botID string) error {
	return c.do(ctx, http.MethodDelete, "/bots/"+url.PathEscape(botID), token, nil, nil)
}

// CreateBot creates a bot from a strategy template
func (c *Client) CreateBot(ctx context.Context, token string, req *CreateBotRequest) (*Bot, error) {
	var result struct {
		Bot *Bot `json:"bot"`
	}
	if err := c.do(ctx, http.MethodPost, "/strategies/bots", token, req, &result); err != nil {
		return nil, err
	}
	if result.Bot == nil {
		return nil, fmt.Errorf("created bot missing from response")
	}
	return result.Bot, nil
}

// ListStrategies returns available strategy templates
func (c *Client) ListStrategies(ctx context.Context, token string) ([]Strategy, error) {
	var result struct {
		Strategies []Strategy `json:"strategies"`
	}
	if err := c.do(ctx, http.MethodGet, "/strategies", token, nil, &result); err != nil {
		return nil, err
	}
	return result.Strategies, nil
}

// GetStrategy returns one strategy template with its parameters
func (c *Client) GetStrategy(ctx context.Context, token, strategyID string) (*Strategy, error) {
	var result struct {
		Strategy *Strategy `json:"strategy"`
	}
	if err := c.do(ctx, http.MethodGet, "/strategies/"+url.PathEscape(strategyID), token, nil, &result); err != nil {
		return nil, err
	}
	if result.Strategy == nil {
		return nil, fmt.Errorf("strategy %s missing from response", strategyID)
	}
	return result.Strategy, nil
}
