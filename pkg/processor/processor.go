package processor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rush86999/atom-sub011/pkg/eventbus"
	"github.com/rush86999/atom-sub011/pkg/events"
	"github.com/rush86999/atom-sub011/pkg/models"
	"github.com/rush86999/atom-sub011/pkg/persistence"
)

// DefaultInterval is the tick period of the processing loop.
const DefaultInterval = 5 * time.Second

// Handler processes one trigger event. Handlers must be idempotent: a crash
// between a successful handler call and marking the event processed causes a
// re-attempt.
type Handler func(ctx context.Context, event *models.TriggerEvent) error

// Processor drains pending trigger events on a fixed tick. Events within a
// tick are handled sequentially, so a single instance never double-processes
// an event. Shutdown waits for the current tick to finish.
type Processor struct {
	events    persistence.EventRepository
	handlers  map[string]Handler
	policy    RetryPolicy
	interval  time.Duration
	publisher eventbus.EventPublisher
	logger    *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewProcessor creates an event processor. publisher may be nil, in which
// case dead-letter notifications are not emitted.
func NewProcessor(events persistence.EventRepository, policy RetryPolicy, publisher eventbus.EventPublisher, logger *slog.Logger) *Processor {
	return &Processor{
		events:    events,
		handlers:  make(map[string]Handler),
		policy:    policy,
		interval:  DefaultInterval,
		publisher: publisher,
		logger:    logger.With("module", "event_processor"),
		stopCh:    make(chan struct{}),
	}
}

// RegisterHandler binds a handler to an event type. Events without a handler
// are marked processed with a terminal "no processor" error.
func (p *Processor) RegisterHandler(eventType string, handler Handler) {
	p.handlers[eventType] = handler
}

// Start launches the background loop. It returns immediately; the loop stops
// when ctx is cancelled or Stop is called, after the in-progress tick
// completes.
func (p *Processor) Start(ctx context.Context) {
	p.logger.InfoContext(ctx, "Starting event processor", "interval", p.interval, "max_attempts", p.policy.MaxAttempts)

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Info("Context cancelled, stopping event processor")

				return
			case <-p.stopCh:
				p.logger.Info("Event processor stopped")

				return
			case <-ticker.C:
				p.Tick(ctx)
			}
		}
	}()
}

// Stop signals the loop to stop and waits for the current tick to finish.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
}

// Tick selects all pending events below the attempt cap and processes them
// sequentially. Failures are contained per event; the loop itself never
// crashes on a bad event.
func (p *Processor) Tick(ctx context.Context) {
	pending, err := p.events.ListPending(ctx, p.policy.MaxAttempts)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to list pending events", "error", err)

		return
	}

	if len(pending) == 0 {
		return
	}

	p.logger.DebugContext(ctx, "Processing pending events", "count", len(pending))

	for _, event := range pending {
		p.processEvent(ctx, event)
	}
}

func (p *Processor) processEvent(ctx context.Context, event *models.TriggerEvent) {
	logger := p.logger.With("event_id", event.ID, "event_type", event.EventType)

	handler, ok := p.handlers[event.EventType]
	if !ok {
		// Terminal: retrying cannot make a handler appear.
		event.Processed = true
		event.ErrorMessage = fmt.Sprintf("no processor registered for event type %q", event.EventType)

		if err := p.events.Save(ctx, event); err != nil {
			logger.ErrorContext(ctx, "Failed to mark unhandled event processed", "error", err)
		}

		logger.WarnContext(ctx, "No processor for event type, marked processed")

		return
	}

	if err := handler(ctx, event); err != nil {
		event.ProcessingAttempts++
		event.ErrorMessage = err.Error()

		if p.policy.Exhausted(event.ProcessingAttempts) {
			event.Processed = true

			logger.ErrorContext(ctx, "Event dead-lettered after exhausting retries",
				"attempts", event.ProcessingAttempts, "error", err)

			p.publishDeadLettered(ctx, event)
		} else {
			logger.WarnContext(ctx, "Event processing failed, will retry",
				"attempts", event.ProcessingAttempts, "error", err)
		}

		if saveErr := p.events.Save(ctx, event); saveErr != nil {
			logger.ErrorContext(ctx, "Failed to persist event attempt", "error", saveErr)
		}

		if p.policy.Backoff > 0 {
			time.Sleep(p.policy.Backoff)
		}

		return
	}

	event.Processed = true
	event.ErrorMessage = ""

	if err := p.events.Save(ctx, event); err != nil {
		logger.ErrorContext(ctx, "Failed to mark event processed", "error", err)

		return
	}

	logger.InfoContext(ctx, "Event processed")
}

func (p *Processor) publishDeadLettered(ctx context.Context, event *models.TriggerEvent) {
	if p.publisher == nil {
		return
	}

	notification := events.NewEventDeadLettered(uuid.New().String(), event)
	if err := p.publisher.Publish(ctx, event.ID, notification); err != nil {
		p.logger.WarnContext(ctx, "Failed to publish dead-letter notification", "error", err)
	}
}
