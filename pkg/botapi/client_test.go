package botapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 5*time.Second)
}

func TestListBotsDecodesBots(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/strategies/bots/my", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"bots":[{"_id":"b1","name":"Grid","symbol":"BTC/USDT","status":"running",
			"performance":{"totalPnl":-12.5,"totalTrades":4,"winningTrades":1,"losingTrades":3,"maxDrawdown":0.1},
			"allocation":{"amount":"100","currency":"USDT"}}]}`))
	})

	bots, err := client.ListBots(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, bots, 1)
	assert.Equal(t, "b1", bots[0].ID)
	assert.Equal(t, StatusRunning, bots[0].Status)
	assert.True(t, bots[0].Performance.TotalPnl.Equal(decimal.RequireFromString("-12.5")))
	assert.True(t, bots[0].Allocation.Amount.Equal(decimal.NewFromInt(100)))
	assert.NoError(t, bots[0].Performance.Validate())
}

func TestBotActionPostsToActionPath(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bots/b1/pause", r.URL.Path)
		_ = json.NewEncoder(w).Encode(MessageResponse{Message: "Bot paused"})
	})

	resp, err := client.BotAction(context.Background(), "tok", "b1", "pause")
	require.NoError(t, err)
	assert.Equal(t, "Bot paused", resp.Message)

	_, err = client.BotAction(context.Background(), "tok", "b1", "explode")
	assert.Error(t, err)
}

func TestErrorResponsesCarryMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"exchange unreachable"}`))
	})

	_, err := client.BotAction(context.Background(), "tok", "b1", "start")
	require.Error(t, err)
	assert.Equal(t, "exchange unreachable", MessageOf(err))
	assert.False(t, IsUnauthorized(err))
}

func TestUnauthorizedIsDetected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Token expired"}`))
	})

	_, err := client.GetDashboard(context.Background(), "tok")
	assert.True(t, IsUnauthorized(err))
}

func TestFieldErrorsAreParsed(t *testing.T) {
	t.Run("list form", func(t *testing.T) {
		err := parseAPIError(400, []byte(`{"message":"Validation failed","errors":[{"param":"name","msg":"Name is required"},{"path":"symbol","msg":"Invalid symbol"}]}`))
		assert.Equal(t, "Validation failed", err.Message)
		assert.Equal(t, map[string]string{"name": "Name is required", "symbol": "Invalid symbol"}, err.Fields)
	})

	t.Run("map form", func(t *testing.T) {
		err := parseAPIError(422, []byte(`{"error":"bad input","errors":{"apiKey":"required"}}`))
		assert.Equal(t, "bad input", err.Message)
		assert.Equal(t, map[string]string{"apiKey": "required"}, FieldErrorsOf(err))
	})

	t.Run("not json", func(t *testing.T) {
		err := parseAPIError(500, []byte(`<html>`))
		assert.Empty(t, err.Message)
		assert.Nil(t, FieldErrorsOf(err))
	})
}

func TestGetDashboardRequiresPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.GetDashboard(context.Background(), "tok")
	assert.Error(t, err)
}

func TestPerformanceValidate(t *testing.T) {
	assert.Error(t, Performance{TotalTrades: 2, WinningTrades: 2, LosingTrades: 1}.Validate())
	assert.Error(t, Performance{MaxDrawdown: 1.5}.Validate())
	assert.NoError(t, Performance{}.Validate())
}
