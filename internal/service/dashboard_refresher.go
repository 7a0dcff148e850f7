package service

import (
	"context"
	"sync"
	"time"

	"botdeck/backend/internal/model"
	"botdeck/backend/pkg/botapi"
	"botdeck/backend/pkg/logger"

	"github.com/robfig/cron/v3"
)

// PrincipalSource lists users with a live dashboard connection
type PrincipalSource interface {
	ActivePrincipals() []model.Principal
}

// DashboardRefresher periodically pushes fresh dashboard data to connected users
type DashboardRefresher struct {
	cron      *cron.Cron
	schedule  string
	source    PrincipalSource
	client    DashboardClient
	dashboard *DashboardService
	notifier  UserNotifier
	sessions  SessionExpirer
	timeout   time.Duration
	log       *logger.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	running sync.Mutex
}

// NewDashboardRefresher creates a refresher. schedule uses cron syntax, "@every 30s" style included.
func NewDashboardRefresher(schedule string, source PrincipalSource, client DashboardClient, dashboard *DashboardService, notifier UserNotifier, sessions SessionExpirer, timeout time.Duration) *DashboardRefresher {
	ctx, cancel := context.WithCancel(context.Background())
	return &DashboardRefresher{
		cron:      cron.New(),
		schedule:  schedule,
		source:    source,
		client:    client,
		dashboard: dashboard,
		notifier:  notifier,
		sessions:  sessions,
		timeout:   timeout,
		log:       logger.GetLogger().Component("dashboard_refresher"),
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// Start registers the job and starts the scheduler
func (r *DashboardRefresher) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, func() { r.RefreshAll(r.baseCtx) }); err != nil {
		return err
	}
	r.cron.Start()
	r.log.Infof("Dashboard refresher started (%s)", r.schedule)
	return nil
}

// Stop cancels in-flight fetches and waits for the running job to finish
func (r *DashboardRefresher) Stop() {
	r.cancel()
	<-r.cron.Stop().Done()
	r.log.Info("Dashboard refresher stopped")
}

// RefreshAll pushes a dashboard_update to every connected user. Overlapping runs are skipped.
func (r *DashboardRefresher) RefreshAll(ctx context.Context) {
	if !r.running.TryLock() {
		r.log.Debug("Dashboard refresh still running, skipping")
		return
	}
	defer r.running.Unlock()

	for _, p := range r.source.ActivePrincipals() {
		if ctx.Err() != nil {
			return
		}
		r.refresh(ctx, p)
	}
}

// refresh never publishes toasts: a background poll failing is not something the user did
func (r *DashboardRefresher) refresh(ctx context.Context, p model.Principal) {
	fctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	agg, err := r.client.GetDashboard(fctx, p.Token)
	if err != nil {
		if botapi.IsUnauthorized(err) && r.sessions != nil {
			r.sessions.Expire(ctx, p)
			return
		}
		r.log.WithField("user_id", p.UserID).Warnf("Dashboard refresh failed: %v", err)
		return
	}

	r.notifier.NotifyUser(ctx, p.UserID, model.MessageTypeDashboardUpdate, r.dashboard.Build(agg))
}
