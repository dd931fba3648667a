package event

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository"
)

// Emitter records domain events for the outbox worker to publish.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{})
}

type EventService struct {
	outboxRepo repository.OutboxRepository
}

func NewEventService(outboxRepo repository.OutboxRepository) *EventService {
	return &EventService{outboxRepo: outboxRepo}
}

// Emit writes the event to the outbox. The change it describes is already
// committed, so failures are logged and not returned.
func (s *EventService) Emit(ctx context.Context, eventType string, payload interface{}) {
	event, err := model.NewOutboxEvent(eventType, payload)
	if err == nil {
		err = s.outboxRepo.Create(ctx, event)
	}
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("event_type", eventType).Msg("failed to record domain event")
	}
}

// Nop drops every event.
type Nop struct{}

func (Nop) Emit(context.Context, string, interface{}) {}
