package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"botdeck/backend/internal/model"
	"botdeck/backend/internal/notification"
	"botdeck/backend/pkg/botapi"
	"botdeck/backend/pkg/logger"
)

func init() {
	logger.Set(logger.Nop())
}

var testPrincipal = model.Principal{SessionID: "sess-1", UserID: "user-1", Username: "alice", Token: "upstream-token"}

var errNotStubbed = errors.New("not stubbed")

// fakeBotClient answers from per-method funcs and counts calls
type fakeBotClient struct {
	mu    sync.Mutex
	calls map[string]int

	listBots     func(ctx context.Context) ([]botapi.Bot, error)
	getBot       func(ctx context.Context, id string) (*botapi.Bot, error)
	analytics    func(ctx context.Context, id string) (botapi.BotAnalytics, error)
	botAction    func(ctx context.Context, id, action string) (*botapi.MessageResponse, error)
	deleteBot    func(ctx context.Context, id string) error
	createBot    func(ctx context.Context, req *botapi.CreateBotRequest) (*botapi.Bot, error)
	strategies   func(ctx context.Context) ([]botapi.Strategy, error)
	strategy     func(ctx context.Context, id string) (*botapi.Strategy, error)
	dashboard    func(ctx context.Context) (*botapi.DashboardAggregate, error)
	accounts     func(ctx context.Context) ([]botapi.ExchangeAccount, error)
	addAccount   func(ctx context.Context, req *botapi.AddExchangeAccountRequest) (*botapi.ExchangeAccount, error)
	delAccount   func(ctx context.Context, id string) error
	testAccount  func(ctx context.Context, id string) (*botapi.ConnectionTestResult, error)
	updateEmail  func(ctx context.Context, req *botapi.EmailSettings) (*botapi.MessageResponse, error)
	sendTest     func(ctx context.Context) error
	login        func(ctx context.Context, req *botapi.LoginRequest) (*botapi.AuthResponse, error)
	register     func(ctx context.Context, req *botapi.RegisterRequest) (*botapi.AuthResponse, error)
	profile      func(ctx context.Context) (*botapi.User, error)
}

func (f *fakeBotClient) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeBotClient) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBotClient) ListBots(ctx context.Context, _ string) ([]botapi.Bot, error) {
	f.count("ListBots")
	if f.listBots == nil {
		return nil, errNotStubbed
	}
	return f.listBots(ctx)
}

func (f *fakeBotClient) GetBot(ctx context.Context, _ string, id string) (*botapi.Bot, error) {
	f.count("GetBot")
	if f.getBot == nil {
		return nil, errNotStubbed
	}
	return f.getBot(ctx, id)
}

func (f *fakeBotClient) GetBotAnalytics(ctx context.Context, _ string, id string) (botapi.BotAnalytics, error) {
	f.count("GetBotAnalytics")
	if f.analytics == nil {
		return nil, errNotStubbed
	}
	return f.analytics(ctx, id)
}

func (f *fakeBotClient) BotAction(ctx context.Context, _ string, id, action string) (*botapi.MessageResponse, error) {
	f.count("BotAction")
	if f.botAction == nil {
		return nil, errNotStubbed
	}
	return f.botAction(ctx, id, action)
}

func (f *fakeBotClient) DeleteBot(ctx context.Context, _ string, id string) error {
	f.count("DeleteBot")
	if f.deleteBot == nil {
		return errNotStubbed
	}
	return f.deleteBot(ctx, id)
}

func (f *fakeBotClient) CreateBot(ctx context.Context, _ string, req *botapi.CreateBotRequest) (*botapi.Bot, error) {
	f.count("CreateBot")
	if f.createBot == nil {
		return nil, errNotStubbed
	}
	return f.createBot(ctx, req)
}

func (f *fakeBotClient) ListStrategies(ctx context.Context, _ string) ([]botapi.Strategy, error) {
	f.count("ListStrategies")
	if f.strategies == nil {
		return nil, errNotStubbed
	}
	return f.strategies(ctx)
}

func (f *fakeBotClient) GetStrategy(ctx context.Context, _ string, id string) (*botapi.Strategy, error) {
	f.count("GetStrategy")
	if f.strategy == nil {
		return nil, errNotStubbed
	}
	return f.strategy(ctx, id)
}

func (f *fakeBotClient) GetDashboard(ctx context.Context, _ string) (*botapi.DashboardAggregate, error) {
	f.count("GetDashboard")
	if f.dashboard == nil {
		return nil, errNotStubbed
	}
	return f.dashboard(ctx)
}

func (f *fakeBotClient) ListExchangeAccounts(ctx context.Context, _ string) ([]botapi.ExchangeAccount, error) {
	f.count("ListExchangeAccounts")
	if f.accounts == nil {
		return nil, errNotStubbed
	}
	return f.accounts(ctx)
}

func (f *fakeBotClient) AddExchangeAccount(ctx context.Context, _ string, req *botapi.AddExchangeAccountRequest) (*botapi.ExchangeAccount, error) {
	f.count("AddExchangeAccount")
	if f.addAccount == nil {
		return nil, errNotStubbed
	}
	return f.addAccount(ctx, req)
}

func (f *fakeBotClient) DeleteExchangeAccount(ctx context.Context, _ string, id string) error {
	f.count("DeleteExchangeAccount")
	if f.delAccount == nil {
		return errNotStubbed
	}
	return f.delAccount(ctx, id)
}

func (f *fakeBotClient) TestExchangeAccount(ctx context.Context, _ string, id string) (*botapi.ConnectionTestResult, error) {
	f.count("TestExchangeAccount")
	if f.testAccount == nil {
		return nil, errNotStubbed
	}
	return f.testAccount(ctx, id)
}

func (f *fakeBotClient) UpdateEmailSettings(ctx context.Context, _ string, req *botapi.EmailSettings) (*botapi.MessageResponse, error) {
	f.count("UpdateEmailSettings")
	if f.updateEmail == nil {
		return nil, errNotStubbed
	}
	return f.updateEmail(ctx, req)
}

func (f *fakeBotClient) SendTestEmail(ctx context.Context, _ string) error {
	f.count("SendTestEmail")
	if f.sendTest == nil {
		return errNotStubbed
	}
	return f.sendTest(ctx)
}

func (f *fakeBotClient) Login(ctx context.Context, req *botapi.LoginRequest) (*botapi.AuthResponse, error) {
	f.count("Login")
	if f.login == nil {
		return nil, errNotStubbed
	}
	return f.login(ctx, req)
}

func (f *fakeBotClient) Register(ctx context.Context, req *botapi.RegisterRequest) (*botapi.AuthResponse, error) {
	f.count("Register")
	if f.register == nil {
		return nil, errNotStubbed
	}
	return f.register(ctx, req)
}

func (f *fakeBotClient) GetProfile(ctx context.Context, _ string) (*botapi.User, error) {
	f.count("GetProfile")
	if f.profile == nil {
		return nil, errNotStubbed
	}
	return f.profile(ctx)
}

// memCache is an in-memory BotListCache
type memCache struct {
	mu    sync.Mutex
	lists map[string][]botapi.Bot
}

func newMemCache() *memCache {
	return &memCache{lists: make(map[string][]botapi.Bot)}
}

func (m *memCache) Save(_ context.Context, userID string, bots []botapi.Bot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[userID] = append([]botapi.Bot(nil), bots...)
	return nil
}

func (m *memCache) Get(_ context.Context, userID string) ([]botapi.Bot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bots, ok := m.lists[userID]
	return append([]botapi.Bot(nil), bots...), ok, nil
}

func (m *memCache) Upsert(_ context.Context, userID string, bot botapi.Bot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bots, ok := m.lists[userID]
	if !ok {
		return nil
	}
	for i := range bots {
		if bots[i].ID == bot.ID {
			bots[i] = bot
			return nil
		}
	}
	m.lists[userID] = append(bots, bot)
	return nil
}

func (m *memCache) Remove(_ context.Context, userID, botID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []botapi.Bot
	for _, b := range m.lists[userID] {
		if b.ID != botID {
			out = append(out, b)
		}
	}
	if _, ok := m.lists[userID]; ok {
		m.lists[userID] = out
	}
	return nil
}

// fakeExpirer records session resets
type fakeExpirer struct {
	mu      sync.Mutex
	expired []model.Principal
}

func (f *fakeExpirer) Expire(_ context.Context, p model.Principal) {
	f.mu.Lock()
	f.expired = append(f.expired, p)
	f.mu.Unlock()
}

func (f *fakeExpirer) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.expired)
}

// recordingNotifier captures websocket pushes
type recordingNotifier struct {
	mu       sync.Mutex
	messages []model.WSMessage
	users    []string
}

func (r *recordingNotifier) NotifyUser(_ context.Context, userID string, msgType model.WSMessageType, payload interface{}) {
	r.mu.Lock()
	r.messages = append(r.messages, model.WSMessage{Type: msgType, Payload: payload})
	r.users = append(r.users, userID)
	r.mu.Unlock()
}

func (r *recordingNotifier) Messages() []model.WSMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.WSMessage(nil), r.messages...)
}

func newTestBus(t *testing.T) *notification.Bus {
	t.Helper()
	bus := notification.NewBus(notification.WithLogger(logger.Nop()))
	t.Cleanup(bus.Close)
	return bus
}

func apiErr(status int, msg string) error {
	return &botapi.APIError{StatusCode: status, Message: msg}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting")
	}
}
