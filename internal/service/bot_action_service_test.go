package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"botdeck/backend/internal/lifecycle"
	"botdeck/backend/internal/model"
	"botdeck/backend/internal/notification"
	"botdeck/backend/internal/util"
	"botdeck/backend/pkg/botapi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type actionFixture struct {
	client   *fakeBotClient
	cache    *memCache
	bus      *notification.Bus
	expirer  *fakeExpirer
	notifier *recordingNotifier
	svc      *BotActionService
}

func newActionFixture(t *testing.T) *actionFixture {
	t.Helper()
	f := &actionFixture{
		client:   &fakeBotClient{},
		cache:    newMemCache(),
		bus:      newTestBus(t),
		expirer:  &fakeExpirer{},
		notifier: &recordingNotifier{},
	}
	f.svc = NewBotActionService(BotActionConfig{
		Client:        f.client,
		Cache:         f.cache,
		Bus:           f.bus,
		Sessions:      f.expirer,
		Notifier:      f.notifier,
		ActionTimeout: time.Second,
	})
	return f
}

func bot(id string, status lifecycle.Status) botapi.Bot {
	return botapi.Bot{ID: id, Name: "grid " + id, Symbol: "BTC/USDT", Status: string(status)}
}

func TestPerformPauseFromListRefreshesList(t *testing.T) {
	f := newActionFixture(t)
	f.client.botAction = func(_ context.Context, id, action string) (*botapi.MessageResponse, error) {
		assert.Equal(t, "b1", id)
		assert.Equal(t, "pause", action)
		return &botapi.MessageResponse{Message: "Bot paused"}, nil
	}
	f.client.listBots = func(context.Context) ([]botapi.Bot, error) {
		return []botapi.Bot{bot("b1", lifecycle.StatusPaused), bot("b2", lifecycle.StatusRunning)}, nil
	}

	result, err := f.svc.Perform(context.Background(), testPrincipal, bot("b1", lifecycle.StatusRunning), lifecycle.ActionPause, model.ScopeList)
	require.NoError(t, err)

	assert.Equal(t, "Bot paused", result.Message)
	require.Len(t, result.Bots, 2)
	require.NotNil(t, result.Bot)
	assert.Equal(t, "paused", result.Bot.Status)
	assert.Equal(t, 0, f.client.Calls("GetBot"))

	toasts := f.bus.ListFor(testPrincipal.UserID)
	require.Len(t, toasts, 1)
	assert.Equal(t, notification.KindSuccess, toasts[0].Kind)
	assert.Equal(t, "Bot paused", toasts[0].Message)

	cached, ok, _ := f.cache.Get(context.Background(), testPrincipal.UserID)
	require.True(t, ok)
	assert.Len(t, cached, 2)

	assert.False(t, f.svc.Guard().IsLocked("b1"))

	msgs := f.notifier.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.MessageTypeBotUpdate, msgs[0].Type)
	payload := msgs[0].Payload.(model.WSBotUpdatePayload)
	assert.Equal(t, "paused", payload.Status)
	require.Len(t, payload.Controls.Actions, 2)
	assert.Equal(t, "resume", payload.Controls.Actions[0].Action)
}

func TestPerformFromDetailRefreshesBot(t *testing.T) {
	f := newActionFixture(t)
	f.client.botAction = func(context.Context, string, string) (*botapi.MessageResponse, error) {
		return &botapi.MessageResponse{}, nil
	}
	f.client.getBot = func(_ context.Context, id string) (*botapi.Bot, error) {
		b := bot(id, lifecycle.StatusRunning)
		return &b, nil
	}

	result, err := f.svc.Perform(context.Background(), testPrincipal, bot("b1", lifecycle.StatusStopped), lifecycle.ActionStart, model.ScopeDetail)
	require.NoError(t, err)

	assert.Equal(t, "Bot started successfully", result.Message)
	require.NotNil(t, result.Bot)
	assert.Equal(t, "running", result.Bot.Status)
	assert.Empty(t, result.Bots)
	assert.Equal(t, 1, f.client.Calls("GetBot"))
	assert.Equal(t, 0, f.client.Calls("ListBots"))
}

func TestPerformFailureUsesServerMessage(t *testing.T) {
	f := newActionFixture(t)
	f.client.botAction = func(context.Context, string, string) (*botapi.MessageResponse, error) {
		return nil, apiErr(500, "Exchange credentials invalid")
	}

	result, err := f.svc.Perform(context.Background(), testPrincipal, bot("b1", lifecycle.StatusError), lifecycle.ActionStart, model.ScopeDetail)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, util.HasCode(err, util.ErrCodeRemoteFailure))

	toasts := f.bus.ListFor(testPrincipal.UserID)
	require.Len(t, toasts, 1)
	assert.Equal(t, notification.KindError, toasts[0].Kind)
	assert.Equal(t, "Exchange credentials invalid", toasts[0].Message)

	assert.False(t, f.svc.Guard().IsLocked("b1"))
	assert.Equal(t, 0, f.client.Calls("GetBot"))
	assert.Empty(t, f.notifier.Messages())
}

func TestPerformPauseFailureKeepsCachedBotRunning(t *testing.T) {
	f := newActionFixture(t)
	require.NoError(t, f.cache.Save(context.Background(), testPrincipal.UserID, []botapi.Bot{
		bot("b1", lifecycle.StatusRunning),
	}))
	f.client.botAction = func(_ context.Context, _, action string) (*botapi.MessageResponse, error) {
		assert.Equal(t, "pause", action)
		return nil, apiErr(502, "exchange unreachable")
	}

	_, err := f.svc.PerformByID(context.Background(), testPrincipal, ActionRequest{
		BotID:  "b1",
		Action: lifecycle.ActionPause,
		Scope:  model.ScopeList,
	})
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.ErrCodeRemoteFailure))

	toasts := f.bus.ListFor(testPrincipal.UserID)
	require.Len(t, toasts, 1)
	assert.Equal(t, notification.KindError, toasts[0].Kind)
	assert.Equal(t, "exchange unreachable", toasts[0].Message)

	cached, ok, err := f.cache.Get(context.Background(), testPrincipal.UserID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cached, 1)
	assert.Equal(t, string(lifecycle.StatusRunning), cached[0].Status)
	assert.False(t, f.svc.Guard().IsLocked("b1"))
	assert.Equal(t, 0, f.client.Calls("GetBot"))
	assert.Equal(t, 0, f.client.Calls("ListBots"))
}

func TestPerformSlowActionLeavesRefetchItsOwnTimeout(t *testing.T) {
	f := newActionFixture(t)
	f.client.botAction = func(context.Context, string, string) (*botapi.MessageResponse, error) {
		time.Sleep(600 * time.Millisecond)
		return &botapi.MessageResponse{}, nil
	}
	f.client.getBot = func(ctx context.Context, id string) (*botapi.Bot, error) {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		if time.Until(deadline) < 700*time.Millisecond {
			return nil, context.DeadlineExceeded
		}
		b := bot(id, lifecycle.StatusStopped)
		return &b, nil
	}

	result, err := f.svc.Perform(context.Background(), testPrincipal, bot("b1", lifecycle.StatusRunning), lifecycle.ActionStop, model.ScopeDetail)
	require.NoError(t, err)
	require.NotNil(t, result.Bot)
	assert.Equal(t, string(lifecycle.StatusStopped), result.Bot.Status)

	toasts := f.bus.ListFor(testPrincipal.UserID)
	require.Len(t, toasts, 1)
	assert.Equal(t, notification.KindSuccess, toasts[0].Kind)
}

func TestPerformFailureFallsBackToGenericMessage(t *testing.T) {
	f := newActionFixture(t)
	f.client.botAction = func(context.Context, string, string) (*botapi.MessageResponse, error) {
		return nil, errors.New("connection refused")
	}

	_, err := f.svc.Perform(context.Background(), testPrincipal, bot("b1", lifecycle.StatusRunning), lifecycle.ActionStop, model.ScopeList)
	require.Error(t, err)

	toasts := f.bus.ListFor(testPrincipal.UserID)
	require.Len(t, toasts, 1)
	assert.Equal(t, "Failed to stop bot", toasts[0].Message)
}

func TestPerformRejectsIllegalActionWithoutRemoteCall(t *testing.T) {
	f := newActionFixture(t)

	_, err := f.svc.Perform(context.Background(), testPrincipal, bot("b1", lifecycle.StatusStopped), lifecycle.ActionPause, model.ScopeDetail)
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.ErrCodeInvalidTransition))
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	assert.Equal(t, 0, f.client.Calls("BotAction"))
	assert.Empty(t, f.bus.List())
	assert.False(t, f.svc.Guard().IsLocked("b1"))
}

func TestPerformRejectsSecondActionOnSameBot(t *testing.T) {
	f := newActionFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.client.botAction = func(context.Context, string, string) (*botapi.MessageResponse, error) {
		close(entered)
		<-release
		return &botapi.MessageResponse{}, nil
	}
	f.client.getBot = func(_ context.Context, id string) (*botapi.Bot, error) {
		b := bot(id, lifecycle.StatusStopped)
		return &b, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Perform(context.Background(), testPrincipal, bot("b1", lifecycle.StatusRunning), lifecycle.ActionStop, model.ScopeDetail)
		done <- err
	}()
	waitFor(t, entered)

	assert.True(t, f.svc.Controls(bot("b1", lifecycle.StatusRunning)).Busy)
	assert.Empty(t, f.svc.Controls(bot("b1", lifecycle.StatusRunning)).Actions)

	_, err := f.svc.Perform(context.Background(), testPrincipal, bot("b1", lifecycle.StatusRunning), lifecycle.ActionPause, model.ScopeDetail)
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.ErrCodeActionInProgress))
	assert.ErrorIs(t, err, lifecycle.ErrActionInProgress)
	assert.Empty(t, f.bus.List())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.client.Calls("BotAction"))
	assert.False(t, f.svc.Guard().IsLocked("b1"))
}

func TestPerformDifferentBotsRunConcurrently(t *testing.T) {
	f := newActionFixture(t)

	var arrived sync.WaitGroup
	arrived.Add(2)
	bothIn := make(chan struct{})
	go func() {
		arrived.Wait()
		close(bothIn)
	}()

	f.client.botAction = func(context.Context, string, string) (*botapi.MessageResponse, error) {
		arrived.Done()
		select {
		case <-bothIn:
			return &botapi.MessageResponse{}, nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("actions were serialised")
		}
	}
	f.client.getBot = func(_ context.Context, id string) (*botapi.Bot, error) {
		b := bot(id, lifecycle.StatusPaused)
		return &b, nil
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"b1", "b2"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.svc.Perform(context.Background(), testPrincipal, bot(id, lifecycle.StatusRunning), lifecycle.ActionPause, model.ScopeDetail)
		}(i, id)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Len(t, f.bus.ListFor(testPrincipal.UserID), 2)
}

func TestPerformSurvivesCallerCancellation(t *testing.T) {
	f := newActionFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.client.botAction = func(actx context.Context, _, _ string) (*botapi.MessageResponse, error) {
		if err := actx.Err(); err != nil {
			return nil, err
		}
		return &botapi.MessageResponse{Message: "Bot resumed"}, nil
	}
	f.client.getBot = func(_ context.Context, id string) (*botapi.Bot, error) {
		b := bot(id, lifecycle.StatusRunning)
		return &b, nil
	}

	result, err := f.svc.Perform(ctx, testPrincipal, bot("b1", lifecycle.StatusPaused), lifecycle.ActionResume, model.ScopeDetail)
	require.NoError(t, err)
	assert.Equal(t, "Bot resumed", result.Message)
	assert.Len(t, f.bus.ListFor(testPrincipal.UserID), 1)
}

func TestPerformExpiredSessionSkipsToast(t *testing.T) {
	f := newActionFixture(t)
	f.client.botAction = func(context.Context, string, string) (*botapi.MessageResponse, error) {
		return nil, apiErr(401, "Token expired")
	}

	_, err := f.svc.Perform(context.Background(), testPrincipal, bot("b1", lifecycle.StatusRunning), lifecycle.ActionPause, model.ScopeList)
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.ErrCodeSessionExpired))
	assert.Equal(t, 1, f.expirer.Count())
	assert.Empty(t, f.bus.List())
	assert.False(t, f.svc.Guard().IsLocked("b1"))
}

func TestPerformRefetchFailureStillSucceeds(t *testing.T) {
	f := newActionFixture(t)
	f.client.botAction = func(context.Context, string, string) (*botapi.MessageResponse, error) {
		return &botapi.MessageResponse{Message: "Bot stopped"}, nil
	}
	f.client.getBot = func(context.Context, string) (*botapi.Bot, error) {
		return nil, apiErr(503, "unavailable")
	}

	result, err := f.svc.Perform(context.Background(), testPrincipal, bot("b1", lifecycle.StatusRunning), lifecycle.ActionStop, model.ScopeDetail)
	require.NoError(t, err)
	assert.Nil(t, result.Bot)

	var messages []string
	for _, n := range f.bus.ListFor(testPrincipal.UserID) {
		messages = append(messages, n.Message)
	}
	assert.Equal(t, []string{"Bot stopped", "Failed to load bot details"}, messages)
	assert.Empty(t, f.notifier.Messages())
}

func TestPerformByIDUsesCachedStatus(t *testing.T) {
	f := newActionFixture(t)
	require.NoError(t, f.cache.Save(context.Background(), testPrincipal.UserID, []botapi.Bot{bot("b1", lifecycle.StatusPaused)}))

	_, err := f.svc.PerformByID(context.Background(), testPrincipal, ActionRequest{BotID: "b1", Action: lifecycle.ActionPause})
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.ErrCodeInvalidTransition))
	assert.Equal(t, 0, f.client.Calls("GetBot"))
	assert.Equal(t, 0, f.client.Calls("BotAction"))
}

func TestPerformByIDRejectsUnknownKnownStatus(t *testing.T) {
	f := newActionFixture(t)

	_, err := f.svc.PerformByID(context.Background(), testPrincipal, ActionRequest{BotID: "b1", Action: lifecycle.ActionStart, KnownStatus: "sleeping"})
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.ErrCodeInvalidTransition))
}

func TestPerformByIDFetchesWhenUncached(t *testing.T) {
	f := newActionFixture(t)
	f.client.getBot = func(_ context.Context, id string) (*botapi.Bot, error) {
		b := bot(id, lifecycle.StatusError)
		return &b, nil
	}
	f.client.botAction = func(_ context.Context, _, action string) (*botapi.MessageResponse, error) {
		assert.Equal(t, "start", action)
		return &botapi.MessageResponse{}, nil
	}

	_, err := f.svc.PerformByID(context.Background(), testPrincipal, ActionRequest{BotID: "b1", Action: lifecycle.ActionStart})
	require.NoError(t, err)
	assert.Equal(t, 2, f.client.Calls("GetBot"))
}

func TestControlsByStatus(t *testing.T) {
	f := newActionFixture(t)

	errored := f.svc.Controls(bot("b1", lifecycle.StatusError))
	require.Len(t, errored.Actions, 1)
	assert.Equal(t, model.ControlAction{Action: "start", Label: "Restart"}, errored.Actions[0])

	unknown := f.svc.Controls(botapi.Bot{ID: "b2", Status: "archived"})
	assert.Empty(t, unknown.Actions)
	assert.False(t, unknown.Busy)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	f := newActionFixture(t)

	_, err := f.svc.Delete(context.Background(), testPrincipal, "b1", DeleteOptions{})
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.ErrCodeConfirmationRequired))
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Equal(t, 0, f.client.Calls("DeleteBot"))
	assert.Empty(t, f.bus.List())
}

func TestDeleteFromDetailRedirectsAndPrunesCache(t *testing.T) {
	f := newActionFixture(t)
	require.NoError(t, f.cache.Save(context.Background(), testPrincipal.UserID, []botapi.Bot{
		bot("b1", lifecycle.StatusStopped), bot("b2", lifecycle.StatusRunning),
	}))
	f.client.deleteBot = func(_ context.Context, id string) error {
		assert.Equal(t, "b1", id)
		return nil
	}

	result, err := f.svc.Delete(context.Background(), testPrincipal, "b1", DeleteOptions{Confirmed: true, FromDetail: true})
	require.NoError(t, err)
	assert.Equal(t, "/bots", result.Redirect)
	assert.Equal(t, "Bot deleted successfully", result.Message)

	cached, _, _ := f.cache.Get(context.Background(), testPrincipal.UserID)
	require.Len(t, cached, 1)
	assert.Equal(t, "b2", cached[0].ID)

	toasts := f.bus.ListFor(testPrincipal.UserID)
	require.Len(t, toasts, 1)
	assert.Equal(t, "Bot deleted successfully", toasts[0].Message)
}

func TestDeleteFromListStaysOnPage(t *testing.T) {
	f := newActionFixture(t)
	f.client.deleteBot = func(context.Context, string) error { return nil }

	result, err := f.svc.Delete(context.Background(), testPrincipal, "b1", DeleteOptions{Confirmed: true})
	require.NoError(t, err)
	assert.Empty(t, result.Redirect)
}

func TestDeleteFailureToastsAndReleases(t *testing.T) {
	f := newActionFixture(t)
	f.client.deleteBot = func(context.Context, string) error { return errors.New("boom") }

	_, err := f.svc.Delete(context.Background(), testPrincipal, "b1", DeleteOptions{Confirmed: true})
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.ErrCodeRemoteFailure))

	toasts := f.bus.ListFor(testPrincipal.UserID)
	require.Len(t, toasts, 1)
	assert.Equal(t, "Failed to delete bot", toasts[0].Message)
	assert.False(t, f.svc.Guard().IsLocked("b1"))
}

func TestDeleteIgnoresActionLock(t *testing.T) {
	f := newActionFixture(t)
	f.client.deleteBot = func(context.Context, string) error { return nil }

	require.True(t, f.svc.Guard().TryAcquire("b1"))
	defer f.svc.Guard().Release("b1")

	result, err := f.svc.Delete(context.Background(), testPrincipal, "b1", DeleteOptions{Confirmed: true})
	require.NoError(t, err)
	assert.Equal(t, "Bot deleted successfully", result.Message)
	assert.Equal(t, 1, f.client.Calls("DeleteBot"))
	assert.True(t, f.svc.Guard().IsLocked("b1"), "delete must not release a lock it never took")
}

func TestActionDuringPendingDeleteIsNotRejected(t *testing.T) {
	f := newActionFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.client.deleteBot = func(context.Context, string) error {
		close(entered)
		<-release
		return nil
	}
	f.client.botAction = func(context.Context, string, string) (*botapi.MessageResponse, error) {
		return &botapi.MessageResponse{}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Delete(context.Background(), testPrincipal, "b1", DeleteOptions{Confirmed: true})
		done <- err
	}()
	waitFor(t, entered)

	assert.False(t, f.svc.Guard().IsLocked("b1"))
	_, err := f.svc.Perform(context.Background(), testPrincipal, bot("b1", lifecycle.StatusRunning), lifecycle.ActionStop, model.ScopeDetail)
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
}
