package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/almoxarifado/almoxarifado/internal/inventory"
)

// Named pairs a publisher with the name used in logs.
type Named struct {
	Name      string
	Publisher inventory.EventPublisher
}

// Fanout delivers each event to every publisher. One failing publisher does
// not stop the others.
type Fanout struct {
	publishers []Named
	logger     *slog.Logger
}

// NewFanout builds a Fanout, skipping nil publishers.
func NewFanout(logger *slog.Logger, publishers ...Named) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fanout{logger: logger}
	for _, p := range publishers {
		if p.Publisher != nil {
			f.publishers = append(f.publishers, p)
		}
	}
	return f
}

// Publish implements inventory.EventPublisher.
func (f *Fanout) Publish(ctx context.Context, evt inventory.StockEvent) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Publisher.Publish(ctx, evt); err != nil {
			f.logger.Warn("stock event delivery failed",
				slog.String("publisher", p.Name),
				slog.Int64("movement_id", evt.Movement.ID),
				slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
		}
	}
	return errors.Join(errs...)
}
