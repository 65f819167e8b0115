// Package messaging delivers domain events to subscribers outside the service.
package messaging

import (
	"context"

	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
)

// Noop drops events; used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, domain.Event) error { return nil }
