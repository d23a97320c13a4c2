// Package subscription manages the webhook subscription lifecycle against
// upstream systems: creation, proactive renewal before expiry, and deletion.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rush86999/atom-sub011/pkg/models"
	"github.com/rush86999/atom-sub011/pkg/persistence"
)

const (
	// DefaultHorizon is the lifetime granted to new and renewed subscriptions.
	DefaultHorizon = 24 * time.Hour

	// DefaultRenewalThreshold is how close to expiration a subscription must
	// be before the renewer extends it.
	DefaultRenewalThreshold = 2 * time.Hour

	renewalSchedule = "@hourly"
)

// UpstreamClient is the narrow interface to the upstream subscription API.
// Implementations live outside this core.
type UpstreamClient interface {
	Subscribe(ctx context.Context, targetAddress, resourceID, resourceType string) (channelID string, err error)
	Renew(ctx context.Context, channelID string, expiration time.Time) error
	Unsubscribe(ctx context.Context, channelID string) error
}

// Manager owns WebhookSubscription state. All mutations are written through
// to storage before being considered complete.
type Manager struct {
	subscriptions persistence.SubscriptionRepository
	upstream      UpstreamClient
	horizon       time.Duration
	threshold     time.Duration
	cron          *cron.Cron
	logger        *slog.Logger
	now           func() time.Time
}

// NewManager creates a subscription manager.
func NewManager(subscriptions persistence.SubscriptionRepository, upstream UpstreamClient, logger *slog.Logger) *Manager {
	return &Manager{
		subscriptions: subscriptions,
		upstream:      upstream,
		horizon:       DefaultHorizon,
		threshold:     DefaultRenewalThreshold,
		logger:        logger.With("module", "subscription_manager"),
		now:           time.Now,
	}
}

// Create registers a new subscription upstream and persists it with an
// expiration one horizon from now.
func (m *Manager) Create(ctx context.Context, targetAddress, resourceID, resourceType string) (*models.WebhookSubscription, error) {
	channelID, err := m.upstream.Subscribe(ctx, targetAddress, resourceID, resourceType)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream subscription for resource %s: %w", resourceID, err)
	}

	now := m.now().UTC()

	subscription := &models.WebhookSubscription{
		ID:            uuid.New().String(),
		ChannelID:     channelID,
		TargetAddress: targetAddress,
		ResourceID:    resourceID,
		ResourceType:  resourceType,
		Expiration:    now.Add(m.horizon),
		State:         models.SubscriptionStateActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := m.subscriptions.Save(ctx, subscription); err != nil {
		return nil, fmt.Errorf("failed to persist subscription: %w", err)
	}

	m.logger.InfoContext(ctx, "Created subscription",
		"subscription_id", subscription.ID, "resource_id", resourceID, "expiration", subscription.Expiration)

	return subscription, nil
}

// Get returns a subscription by id.
func (m *Manager) Get(ctx context.Context, id string) (*models.WebhookSubscription, error) {
	return m.subscriptions.GetByID(ctx, id)
}

// List returns all subscriptions.
func (m *Manager) List(ctx context.Context) ([]*models.WebhookSubscription, error) {
	return m.subscriptions.GetAll(ctx)
}

// Delete removes the local record. The upstream unsubscribe is best-effort:
// its failure is logged and does not block the local deletion.
func (m *Manager) Delete(ctx context.Context, id string) error {
	subscription, err := m.subscriptions.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := m.upstream.Unsubscribe(ctx, subscription.ChannelID); err != nil {
		m.logger.WarnContext(ctx, "Upstream unsubscribe failed, deleting local record anyway",
			"subscription_id", id, "channel_id", subscription.ChannelID, "error", err)
	}

	return m.subscriptions.Delete(ctx, id)
}

// Start schedules the hourly renewal pass.
func (m *Manager) Start(ctx context.Context) error {
	m.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := m.cron.AddFunc(renewalSchedule, func() {
		m.RenewExpiring(ctx)
	})
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "Starting subscription renewer",
		"schedule", renewalSchedule, "threshold", m.threshold, "horizon", m.horizon)
	m.cron.Start()

	return nil
}

// Stop halts the renewal schedule and waits for an in-progress pass.
func (m *Manager) Stop() {
	if m.cron == nil {
		return
	}

	<-m.cron.Stop().Done()
}

// RenewExpiring extends every active subscription whose expiration falls
// inside the renewal threshold. Renewal happens in place: the expiration is
// pushed one horizon out and the id never changes. Upstream renewal failures
// leave the subscription for the next pass.
func (m *Manager) RenewExpiring(ctx context.Context) {
	now := m.now().UTC()

	expiring, err := m.subscriptions.ListActiveExpiringBefore(ctx, now.Add(m.threshold))
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to list expiring subscriptions", "error", err)

		return
	}

	for _, subscription := range expiring {
		newExpiration := now.Add(m.horizon)

		if err := m.upstream.Renew(ctx, subscription.ChannelID, newExpiration); err != nil {
			m.logger.WarnContext(ctx, "Upstream renewal failed, will retry next pass",
				"subscription_id", subscription.ID, "error", err)

			continue
		}

		subscription.Expiration = newExpiration
		subscription.State = models.SubscriptionStateActive
		subscription.UpdatedAt = now

		if err := m.subscriptions.Save(ctx, subscription); err != nil {
			m.logger.ErrorContext(ctx, "Failed to persist renewed subscription",
				"subscription_id", subscription.ID, "error", err)

			continue
		}

		m.logger.InfoContext(ctx, "Renewed subscription",
			"subscription_id", subscription.ID, "expiration", newExpiration)
	}
}
