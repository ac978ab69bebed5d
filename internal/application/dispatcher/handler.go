package dispatcher

import (
	"context"

	"github.com/eddyoasis/procurement-workflow/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a registered handler
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}

// Stats is a point-in-time view of the dispatcher used by health checks
type Stats struct {
	Closed   bool  `json:"closed"`
	InFlight int64 `json:"in_flight"`
	Handlers int   `json:"handlers"`
}
