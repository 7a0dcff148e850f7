package botapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Login exchanges credentials for a service token
func (c *Client) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	var result AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", req, &result); err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, fmt.Errorf("login response carried no token")
	}
	return &result, nil
}

// Register creates an account and returns a service token
func (c *Client) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	var result AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetProfile returns the signed-in user
func (c *Client) GetProfile(ctx context.Context, token string) (*User, error) {
	var result struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/profile", token, nil, &result); err != nil {
		return nil, err
	}
	return &result.User, nil
}

// GetDashboard returns the aggregate summary for the caller
func (c *Client) GetDashboard(ctx context.Context, token string) (*DashboardAggregate, error) {
	var result struct {
		Dashboard *DashboardAggregate `json:"dashboard"`
	}
	if err := c.do(ctx, http.MethodGet, "/dashboard", token, nil, &result); err != nil {
		return nil, err
	}
	if result.Dashboard == nil {
		return nil, fmt.Errorf("dashboard missing from response")
	}
	return result.Dashboard, nil
}

// ListExchangeAccounts returns stored exchange credentials (without secrets)
func (c *Client) ListExchangeAccounts(ctx context.Context, token string) ([]ExchangeAccount, error) {
	var result struct {
		Accounts []ExchangeAccount `json:"account"`
	}
	if err := c.do(ctx, http.MethodGet, "/exchange/accounts", token, nil, &result); err != nil {
		return nil, err
	}
	return result.Accounts, nil
}

// AddExchangeAccount stores new exchange credentials
func (c *Client) AddExchangeAccount(ctx context.Context, token string, req *AddExchangeAccountRequest) (*ExchangeAccount, error) {
	var result struct {
		Account *ExchangeAccount `json:"account"`
	}
	if err := c.do(ctx, http.MethodPost, "/exchange/accounts", token, req, &result); err != nil {
		return nil, err
	}
	return result.Account, nil
}

// DeleteExchangeAccount removes stored credentials
func (c *Client) DeleteExchangeAccount(ctx context.Context, token, accountID string) error {
	return c.do(ctx, http.MethodDelete, "/exchange/account/"+url.PathEscape(accountID), token, nil, nil)
}

// TestExchangeAccount asks the service to verify stored credentials against the exchange
func (c *Client) TestExchangeAccount(ctx context.Context, token, accountID string) (*ConnectionTestResult, error) {
	var result ConnectionTestResult
	path := "/exchange/account/" + url.PathEscape(accountID) + "/test"
	if err := c.do(ctx, http.MethodPost, path, token, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateEmailSettings toggles email alerts for the caller
func (c *Client) UpdateEmailSettings(ctx context.Context, token string, req *EmailSettings) (*MessageResponse, error) {
	var result MessageResponse
	if err := c.do(ctx, http.MethodPut, "/settings/email", token, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendTestEmail asks the service to send a test email
func (c *Client) SendTestEmail(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/settings/email/test", token, nil, nil)
}
