package file

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rush86999/atom-sub011/pkg/models"
	"github.com/rush86999/atom-sub011/pkg/persistence"
)

// SubscriptionRepository handles webhook subscription file operations.
type SubscriptionRepository struct {
	root string
	mu   sync.RWMutex
}

// NewSubscriptionRepository creates a new subscription repository.
func NewSubscriptionRepository(root string) *SubscriptionRepository {
	return &SubscriptionRepository{root: root}
}

func (sr *SubscriptionRepository) dir() string {
	return filepath.Join(sr.root, "subscriptions")
}

func (sr *SubscriptionRepository) path(id string) string {
	return filepath.Join(sr.dir(), id+".json")
}

// Save writes the subscription document, creating or replacing it.
func (sr *SubscriptionRepository) Save(ctx context.Context, subscription *models.WebhookSubscription) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if err := writeDocument(sr.path(subscription.ID), subscription); err != nil {
		return persistence.NewStoreError("Save", "subscription", subscription.ID, err)
	}

	return nil
}

// GetByID returns the subscription with the given id.
func (sr *SubscriptionRepository) GetByID(ctx context.Context, id string) (*models.WebhookSubscription, error) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	subscription := &models.WebhookSubscription{}
	if err := readDocument(sr.path(id), subscription); err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrSubscriptionNotFound
		}

		return nil, persistence.NewStoreError("GetByID", "subscription", id, err)
	}

	return subscription, nil
}

// GetAll returns all subscriptions ordered by creation time.
func (sr *SubscriptionRepository) GetAll(ctx context.Context) ([]*models.WebhookSubscription, error) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	ids, err := listDocumentIDs(sr.dir())
	if err != nil {
		return nil, persistence.NewStoreError("GetAll", "subscription", "", err)
	}

	subscriptions := make([]*models.WebhookSubscription, 0, len(ids))

	for _, id := range ids {
		subscription := &models.WebhookSubscription{}
		if err := readDocument(sr.path(id), subscription); err != nil {
			return nil, persistence.NewStoreError("GetAll", "subscription", id, err)
		}

		subscriptions = append(subscriptions, subscription)
	}

	sort.Slice(subscriptions, func(i, j int) bool {
		return subscriptions[i].CreatedAt.Before(subscriptions[j].CreatedAt)
	})

	return subscriptions, nil
}

// ListActiveExpiringBefore returns active subscriptions expiring at or before t.
func (sr *SubscriptionRepository) ListActiveExpiringBefore(ctx context.Context, t time.Time) ([]*models.WebhookSubscription, error) {
	all, err := sr.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	expiring := make([]*models.WebhookSubscription, 0)

	for _, subscription := range all {
		if subscription.State == models.SubscriptionStateActive && !subscription.Expiration.After(t) {
			expiring = append(expiring, subscription)
		}
	}

	return expiring, nil
}

// Delete removes the subscription document.
func (sr *SubscriptionRepository) Delete(ctx context.Context, id string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if err := os.Remove(sr.path(id)); err != nil {
		if os.IsNotExist(err) {
			return persistence.ErrSubscriptionNotFound
		}

		return persistence.NewStoreError("Delete", "subscription", id, err)
	}

	return nil
}
