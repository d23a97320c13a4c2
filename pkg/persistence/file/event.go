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

// EventRepository handles trigger event file operations.
type EventRepository struct {
	root string
	mu   sync.RWMutex
}

// NewEventRepository creates a new event repository.
func NewEventRepository(root string) *EventRepository {
	return &EventRepository{root: root}
}

func (er *EventRepository) dir() string {
	return filepath.Join(er.root, "events")
}

func (er *EventRepository) path(id string) string {
	return filepath.Join(er.dir(), id+".json")
}

// Save writes the event document, creating or replacing it.
func (er *EventRepository) Save(ctx context.Context, event *models.TriggerEvent) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	if err := writeDocument(er.path(event.ID), event); err != nil {
		return persistence.NewStoreError("Save", "event", event.ID, err)
	}

	return nil
}

// GetByID returns the event with the given id.
func (er *EventRepository) GetByID(ctx context.Context, id string) (*models.TriggerEvent, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	event := &models.TriggerEvent{}
	if err := readDocument(er.path(id), event); err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrEventNotFound
		}

		return nil, persistence.NewStoreError("GetByID", "event", id, err)
	}

	return event, nil
}

// ListPending returns unprocessed events with fewer than maxAttempts attempts, oldest first.
func (er *EventRepository) ListPending(ctx context.Context, maxAttempts int) ([]*models.TriggerEvent, error) {
	all, err := er.getAll()
	if err != nil {
		return nil, err
	}

	pending := make([]*models.TriggerEvent, 0)

	for _, event := range all {
		if !event.Processed && event.ProcessingAttempts < maxAttempts {
			pending = append(pending, event)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Timestamp.Before(pending[j].Timestamp)
	})

	return pending, nil
}

// DeleteProcessedBefore purges processed events older than cutoff.
func (er *EventRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	all, err := er.getAll()
	if err != nil {
		return 0, err
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	deleted := 0

	for _, event := range all {
		if !event.Processed || !event.Timestamp.Before(cutoff) {
			continue
		}

		if err := os.Remove(er.path(event.ID)); err != nil && !os.IsNotExist(err) {
			return deleted, persistence.NewStoreError("DeleteProcessedBefore", "event", event.ID, err)
		}

		deleted++
	}

	return deleted, nil
}

func (er *EventRepository) getAll() ([]*models.TriggerEvent, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	ids, err := listDocumentIDs(er.dir())
	if err != nil {
		return nil, persistence.NewStoreError("getAll", "event", "", err)
	}

	events := make([]*models.TriggerEvent, 0, len(ids))

	for _, id := range ids {
		event := &models.TriggerEvent{}
		if err := readDocument(er.path(id), event); err != nil {
			return nil, persistence.NewStoreError("getAll", "event", id, err)
		}

		events = append(events, event)
	}

	return events, nil
}
