package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-auth/internal/config"
	"github.com/spec-kit/marketplace-auth/internal/domain"
	"github.com/spec-kit/marketplace-auth/internal/events"
)

// NotificationService handles emitting notifications for account events.
type NotificationService struct {
	logger *zap.Logger
	cfg    config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		logger: logger,
		cfg:    cfg,
	}
}

// EventTypes lists the events the service reacts to.
func (n *NotificationService) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventAccountRegistered,
		events.EventAccountStatusChanged,
		events.EventAccountRoleChanged,
		events.EventAccountDeleted,
	}
}

// Handle routes one event to its notification channel.
func (n *NotificationService) Handle(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.EventAccountRegistered:
		return n.handleRegistered(ctx, event)
	case events.EventAccountStatusChanged:
		return n.handleStatusChanged(ctx, event)
	case events.EventAccountRoleChanged:
		n.logger.Info("AccountRoleChanged", zap.String("account_id", event.AccountID), zap.Any("payload", event.Payload))
		n.sendWebhookNotificationStub(ctx, event, "role_changed")
	case events.EventAccountDeleted:
		n.logger.Info("AccountDeleted", zap.String("account_id", event.AccountID), zap.Any("payload", event.Payload))
		n.sendWebhookNotificationStub(ctx, event, "deleted")
	}
	return nil
}

func (n *NotificationService) handleRegistered(ctx context.Context, event events.Event) error {
	n.logger.Info("AccountRegistered", zap.String("account_id", event.AccountID), zap.Any("payload", event.Payload))
	template := "welcome"
	if payload, ok := event.Payload.(events.AccountRegisteredPayload); ok && payload.Role == domain.RoleVendor {
		template = "vendor_pending_review"
	}
	n.sendEmailNotificationStub(ctx, event, template)
	return nil
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("AccountStatusChanged", zap.String("account_id", event.AccountID), zap.Any("payload", event.Payload))
	if payload, ok := event.Payload.(events.AccountStatusChangedPayload); ok &&
		payload.Role == domain.RoleVendor &&
		payload.NewStatus == domain.AccountStatusActive {
		n.sendEmailNotificationStub(ctx, event, "vendor_approved")
	}
	n.sendWebhookNotificationStub(ctx, event, "status_changed")
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event, template string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || event.Email == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", event.Email),
		zap.String("template", template),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event, kind string) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("account_id", event.AccountID),
		zap.String("kind", kind),
		zap.String("event_type", string(event.Type)))
}
