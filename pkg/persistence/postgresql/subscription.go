package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/rush86999/atom-sub011/pkg/models"
	"github.com/rush86999/atom-sub011/pkg/persistence"
)

// SubscriptionRepository handles webhook subscription database operations.
type SubscriptionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSubscriptionRepository creates a new subscription repository.
func NewSubscriptionRepository(db *sql.DB, logger *slog.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{db: db, logger: logger}
}

const subscriptionColumns = `
	id
  , channel_id
  , target_address
  , resource_id
  , resource_type
  , expiration
  , state
  , created_at
  , updated_at
`

// Save upserts a subscription.
func (r *SubscriptionRepository) Save(ctx context.Context, subscription *models.WebhookSubscription) error {
	query := `
		INSERT INTO webhook_subscriptions
			(id, channel_id, target_address, resource_id, resource_type, expiration, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			channel_id = EXCLUDED.channel_id,
			expiration = EXCLUDED.expiration,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		subscription.ID,
		subscription.ChannelID,
		subscription.TargetAddress,
		subscription.ResourceID,
		subscription.ResourceType,
		subscription.Expiration,
		subscription.State,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "subscription", subscription.ID, err)
	}

	return nil
}

// GetByID returns a subscription by its ID.
func (r *SubscriptionRepository) GetByID(ctx context.Context, id string) (*models.WebhookSubscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM webhook_subscriptions WHERE id = $1`

	subscription, err := r.scanSubscription(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "subscription", id, persistence.ErrSubscriptionNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", "subscription", id, err)
	}

	return subscription, nil
}

// GetAll returns all subscriptions.
func (r *SubscriptionRepository) GetAll(ctx context.Context) ([]*models.WebhookSubscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM webhook_subscriptions ORDER BY created_at DESC`

	return r.list(ctx, "GetAll", query)
}

// ListActiveExpiringBefore returns active subscriptions expiring at or before t.
func (r *SubscriptionRepository) ListActiveExpiringBefore(ctx context.Context, t time.Time) ([]*models.WebhookSubscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM webhook_subscriptions
		WHERE state = $1 AND expiration <= $2
		ORDER BY expiration`

	return r.list(ctx, "ListActiveExpiringBefore", query, models.SubscriptionStateActive, t)
}

// Delete removes a subscription.
func (r *SubscriptionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM webhook_subscriptions WHERE id = $1`, id)
	if err != nil {
		return persistence.NewStoreError("Delete", "subscription", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("Delete", "subscription", id, err)
	}

	if rowsAffected == 0 {
		return persistence.NewStoreError("Delete", "subscription", id, persistence.ErrSubscriptionNotFound)
	}

	return nil
}

func (r *SubscriptionRepository) list(ctx context.Context, op, query string, args ...any) ([]*models.WebhookSubscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError(op, "subscription", "", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	subscriptions := make([]*models.WebhookSubscription, 0)

	for rows.Next() {
		subscription, err := r.scanSubscription(rows)
		if err != nil {
			return nil, persistence.NewStoreError(op, "subscription", "", err)
		}

		subscriptions = append(subscriptions, subscription)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError(op, "subscription", "", err)
	}

	return subscriptions, nil
}

func (r *SubscriptionRepository) scanSubscription(scanner interface {
	Scan(dest ...any) error
}) (*models.WebhookSubscription, error) {
	var subscription models.WebhookSubscription

	err := scanner.Scan(
		&subscription.ID,
		&subscription.ChannelID,
		&subscription.TargetAddress,
		&subscription.ResourceID,
		&subscription.ResourceType,
		&subscription.Expiration,
		&subscription.State,
		&subscription.CreatedAt,
		&subscription.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &subscription, nil
}
