// Package botapi is the client for the trading service that owns bots, trades and exchange
// accounts. Every call carries the caller's bearer token.
package botapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client represents the trading service API client
type Client struct {
	apiURL     string
	httpClient *http.Client
}

// NewClient creates a new trading service client
func NewClient(apiURL string, timeout time.Duration) *Client {
	return &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a non-2xx answer from the trading service
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("trading service error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("trading service error (%d)", e.StatusCode)
}

// IsUnauthorized reports whether err is an authentication failure
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// MessageOf returns the server-supplied message carried by err, or ""
func MessageOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// FieldErrorsOf returns field-level validation details carried by err, or nil
func FieldErrorsOf(err error) map[string]string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		return apiErr.Fields
	}
	return nil
}

// errorBody covers the error shapes the service emits: {message}, {error}, and
// {errors: [{param|path, msg}]} or {errors: {field: message}}
type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Errors  json.RawMessage `json:"errors"`
}

type fieldError struct {
	Param string `json:"param"`
	Path  string `json:"path"`
	Field string `json:"field"`
	Msg   string `json:"msg"`
	Text  string `json:"message"`
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return apiErr
	}
	apiErr.Message = eb.Message
	if apiErr.Message == "" {
		apiErr.Message = eb.Error
	}

	if len(eb.Errors) == 0 {
		return apiErr
	}

	var list []fieldError
	if err := json.Unmarshal(eb.Errors, &list); err == nil {
		fields := make(map[string]string, len(list))
		for _, fe := range list {
			name := firstNonEmpty(fe.Param, fe.Path, fe.Field)
			if name == "" {
				continue
			}
			fields[name] = firstNonEmpty(fe.Msg, fe.Text)
		}
		if len(fields) > 0 {
			apiErr.Fields = fields
		}
		return apiErr
	}

	var byField map[string]string
	if err := json.Unmarshal(eb.Errors, &byField); err == nil && len(byField) > 0 {
		apiErr.Fields = byField
	}
	return apiErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// do sends a JSON request and decodes a JSON response into out (when non-nil)
func (c *Client) do(ctx context.Context, method, path, token string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
