package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/liqa/internal/bridge"
)

// Mutations receives page mutation notices.
type Mutations interface {
	Notify(ctx context.Context)
}

// Run consumes page events until ctx is done or events is closed. Events are
// handled one at a time; scoring runs in the background.
func (d *Dispatcher) Run(ctx context.Context, events <-chan bridge.Event, mutations Mutations) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			d.handle(ctx, ev, mutations)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev bridge.Event, mutations Mutations) {
	switch ev.Type {
	case bridge.EventKeydown:
		d.HandleKey(ctx, ev.Key, ev.InTextField)
	case bridge.EventMutation:
		d.SyncPresence(ev.SlideIn)
		if mutations != nil {
			mutations.Notify(ctx)
		}
	case bridge.EventPagination:
		d.HandlePagination()
	case bridge.EventScoreClick:
		d.HandleScoreClick()
	case bridge.EventMessage:
		msg, err := bridge.DecodeMessage(ev.Message)
		if err != nil {
			d.logger.Debug("dropping message", zap.Error(err))
			return
		}
		d.HandleMessage(ctx, msg)
	default:
		d.logger.Debug("unknown page event", zap.String("type", string(ev.Type)))
	}
}
