// Package queue consumes internal signals from a Redis list and turns them
// into pending trigger events. It covers first-party producers that do not
// go through the signed webhook endpoint.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rush86999/atom-sub011/pkg/persistence"
	"github.com/rush86999/atom-sub011/pkg/webhook"
)

const (
	// DefaultQueue is the Redis list consumed when no queue name is configured.
	DefaultQueue = "atomflow:signals"

	popTimeout = 1 * time.Second
)

// Source drains a Redis list and persists each message as a pending trigger
// event. Messages use the same shapes the webhook parser accepts.
type Source struct {
	addr     string
	password string
	db       int
	queue    string

	client redis.UniversalClient
	parser *webhook.Parser
	events persistence.EventRepository
	logger *slog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Config holds Redis connection settings for a Source.
type Config struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

// NewSource creates a queue source. The connection is established on Start.
func NewSource(config Config, events persistence.EventRepository, logger *slog.Logger) *Source {
	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}

	if config.Queue == "" {
		config.Queue = DefaultQueue
	}

	return &Source{
		addr:     config.Addr,
		password: config.Password,
		db:       config.DB,
		queue:    config.Queue,
		parser:   webhook.NewParser(logger),
		events:   events,
		stopCh:   make(chan struct{}),
		logger: logger.With(
			"module", "queue_source",
			"queue", config.Queue,
		),
	}
}

// Start connects to Redis and launches the consumer loop.
func (s *Source) Start(ctx context.Context) error {
	s.client = redis.NewClient(&redis.Options{
		Addr:     s.addr,
		Password: s.password,
		DB:       s.db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s.logger.InfoContext(ctx, "Connected to Redis", "addr", s.addr, "db", s.db)

	s.wg.Add(1)

	go s.consume(ctx)

	return nil
}

func (s *Source) consume(ctx context.Context) {
	defer s.wg.Done()

	s.logger.InfoContext(ctx, "Starting queue consumer")

	for {
		select {
		case <-s.stopCh:
			s.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			err := s.processMessage(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (s *Source) processMessage(ctx context.Context) error {
	result, err := s.client.BLPop(ctx, popTimeout, s.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	message := []byte(result[1])

	events, err := s.parser.Parse(message)
	if err != nil {
		// Malformed messages are dropped; there is no producer to bounce
		// them back to.
		s.logger.WarnContext(ctx, "Dropping unparseable queue message", "error", err)

		return nil
	}

	for _, event := range events {
		if err := s.events.Save(ctx, event); err != nil {
			return fmt.Errorf("failed to persist trigger event %s: %w", event.ID, err)
		}

		s.logger.InfoContext(ctx, "Queued trigger event",
			"event_id", event.ID, "event_type", event.EventType)
	}

	return nil
}

// Stop halts the consumer loop and closes the Redis connection.
func (s *Source) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping queue source")

	close(s.stopCh)
	s.wg.Wait()

	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
