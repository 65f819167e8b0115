package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
)

// EventPublisher доставляет доменные события внешним подписчикам
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// publish is best effort: a broker outage never fails the business operation.
func publish(ctx context.Context, p EventPublisher, event domain.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		log.Warn().Err(err).
			Str("event_type", string(event.Type())).
			Stringer("aggregate_id", event.AggregateID()).
			Msg("failed to publish event")
	}
}
