package service

import (
	"context"

	"botdeck/backend/internal/model"
	"botdeck/backend/internal/notification"
	"botdeck/backend/pkg/botapi"
	"botdeck/backend/pkg/logger"
)

// SettingsService updates per-user notification preferences
type SettingsService struct {
	client AccountClient
	bus    *notification.Bus
	remote remoteErrors
}

// NewSettingsService creates a new settings service
func NewSettingsService(client AccountClient, bus *notification.Bus, sessions SessionExpirer) *SettingsService {
	return &SettingsService{
		client: client,
		bus:    bus,
		remote: remoteErrors{bus: bus, sessions: sessions, log: logger.GetLogger().Component("settings")},
	}
}

// UpdateEmail turns email alerts on or off
func (s *SettingsService) UpdateEmail(ctx context.Context, p model.Principal, enabled bool) error {
	_, err := s.client.UpdateEmailSettings(ctx, p.Token, &botapi.EmailSettings{EmailNotifications: enabled})
	if err != nil {
		return s.remote.failure(ctx, p, err, "Failed to update settings")
	}
	s.bus.Success("Email settings updated successfully", notification.ForUser(p.UserID))
	return nil
}

// TestEmail asks the trading service to send a test alert
func (s *SettingsService) TestEmail(ctx context.Context, p model.Principal) error {
	if err := s.client.SendTestEmail(ctx, p.Token); err != nil {
		return s.remote.failure(ctx, p, err, "Failed to send test email")
	}
	s.bus.Success("Test email sent successfully! Check your inbox.", notification.ForUser(p.UserID))
	return nil
}
