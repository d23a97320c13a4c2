package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rush86999/atom-sub011/pkg/models"
)

// ErrUnknownPayload indicates a payload shape the parser does not recognize.
// No events are created for such payloads.
var ErrUnknownPayload = errors.New("unknown webhook payload shape")

// resourceStateEvents maps vendor change-notification resource states to
// normalized event types.
var resourceStateEvents = map[string]string{
	"add":    "file_created",
	"update": "file_updated",
	"trash":  "file_deleted",
	"remove": "file_deleted",
}

// Parser normalizes raw webhook and internal-signal payloads into trigger
// events. Parsing is all-or-nothing: a malformed payload yields an error and
// zero events.
type Parser struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewParser creates a payload parser.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{
		logger: logger.With("module", "webhook_parser"),
		now:    time.Now,
	}
}

// Parse maps a raw payload to one or more trigger events. Two shapes are
// recognized: a vendor change notification (channel_id/resource_id/
// resource_state) producing one event, and a generic shape carrying either a
// single event_type or a batch under "events".
func (p *Parser) Parse(raw []byte) ([]*models.TriggerEvent, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrUnknownPayload, err)
	}

	if _, ok := payload["resource_state"]; ok {
		event, err := p.parseChangeNotification(payload)
		if err != nil {
			return nil, err
		}

		return []*models.TriggerEvent{event}, nil
	}

	if rawEvents, ok := payload["events"]; ok {
		return p.parseBatch(rawEvents)
	}

	if _, ok := payload["event_type"]; ok {
		event, err := p.parseGeneric(payload)
		if err != nil {
			return nil, err
		}

		return []*models.TriggerEvent{event}, nil
	}

	return nil, ErrUnknownPayload
}

func (p *Parser) parseChangeNotification(payload map[string]any) (*models.TriggerEvent, error) {
	state, _ := payload["resource_state"].(string)

	eventType, ok := resourceStateEvents[state]
	if !ok {
		return nil, fmt.Errorf("%w: resource state %q", ErrUnknownPayload, state)
	}

	resourceID, _ := payload["resource_id"].(string)
	if resourceID == "" {
		return nil, fmt.Errorf("%w: change notification missing resource_id", ErrUnknownPayload)
	}

	resourceType, _ := payload["resource_type"].(string)
	if resourceType == "" {
		resourceType = "file"
	}

	userID, _ := payload["user_id"].(string)

	return &models.TriggerEvent{
		ID:           uuid.New().String(),
		EventType:    eventType,
		ResourceID:   resourceID,
		ResourceType: resourceType,
		UserID:       userID,
		Timestamp:    p.now().UTC(),
		Payload:      payload,
	}, nil
}

func (p *Parser) parseBatch(rawEvents any) ([]*models.TriggerEvent, error) {
	list, ok := rawEvents.([]any)
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("%w: events must be a non-empty list", ErrUnknownPayload)
	}

	events := make([]*models.TriggerEvent, 0, len(list))

	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: event entry is not an object", ErrUnknownPayload)
		}

		event, err := p.parseGeneric(entry)
		if err != nil {
			return nil, err
		}

		events = append(events, event)
	}

	return events, nil
}

func (p *Parser) parseGeneric(payload map[string]any) (*models.TriggerEvent, error) {
	eventType, _ := payload["event_type"].(string)
	if eventType == "" {
		return nil, fmt.Errorf("%w: missing event_type", ErrUnknownPayload)
	}

	resourceID, _ := payload["resource_id"].(string)
	resourceType, _ := payload["resource_type"].(string)
	userID, _ := payload["user_id"].(string)

	eventPayload, _ := payload["payload"].(map[string]any)
	if eventPayload == nil {
		eventPayload = payload
	}

	return &models.TriggerEvent{
		ID:           uuid.New().String(),
		EventType:    eventType,
		ResourceID:   resourceID,
		ResourceType: resourceType,
		UserID:       userID,
		Timestamp:    p.now().UTC(),
		Payload:      eventPayload,
	}, nil
}
