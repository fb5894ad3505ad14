package confirm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/pubsub"
)

// Desk is the master's side of the handshake: it collects incoming requests
// for display and publishes the master's verdicts.
type Desk struct {
	bus    pubsub.Bus
	logger *zap.Logger
	ctx    context.Context

	mu      sync.Mutex
	pending map[string]map[string]Request // gameID -> requestID -> request
}

// NewDesk creates a Desk whose subscriptions live until ctx is cancelled.
func NewDesk(ctx context.Context, bus pubsub.Bus, logger *zap.Logger) *Desk {
	return &Desk{bus: bus, logger: logger, ctx: ctx, pending: make(map[string]map[string]Request)}
}

// Watch starts collecting requests published on gameID's channel. Calling it
// again for the same game is a no-op.
func (d *Desk) Watch(gameID string) error {
	d.mu.Lock()
	if _, ok := d.pending[gameID]; ok {
		d.mu.Unlock()
		return nil
	}
	d.pending[gameID] = make(map[string]Request)
	d.mu.Unlock()

	err := d.bus.Subscribe(d.ctx, gameID, func(_ context.Context, env pubsub.Envelope) {
		switch env.Event {
		case EventActionRequested:
			req, err := pubsub.Decode[Request](env)
			if err != nil {
				d.logger.Warn("ignoring malformed combat request", zap.Error(err))
				return
			}
			d.mu.Lock()
			d.pending[gameID][req.RequestID] = req
			d.mu.Unlock()
		case EventHitConfirmed:
			// another master session may have answered
			c, err := pubsub.Decode[Confirmation](env)
			if err != nil {
				return
			}
			d.mu.Lock()
			delete(d.pending[gameID], c.RequestID)
			d.mu.Unlock()
		}
	})
	if err != nil {
		d.mu.Lock()
		delete(d.pending, gameID)
		d.mu.Unlock()
	}
	return err
}

// Pending lists the game's unanswered requests ordered by id.
func (d *Desk) Pending(gameID string) []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Request, 0, len(d.pending[gameID]))
	for _, r := range d.pending[gameID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestID < out[j].RequestID })
	return out
}

// Respond publishes the master's verdict for requestID. The request stays
// pending when publishing fails so the master can answer again.
//
// Postcondition: Returns ErrUnknownRequest when the desk never saw the request.
func (d *Desk) Respond(ctx context.Context, gameID, requestID string, hit bool, masterID string) error {
	d.mu.Lock()
	req, ok := d.pending[gameID][requestID]
	if ok {
		delete(d.pending[gameID], requestID)
	}
	d.mu.Unlock()
	if !ok {
		return ErrUnknownRequest
	}
	err := pubsub.Publish(ctx, d.bus, gameID, EventHitConfirmed, masterID, Confirmation{
		RequestID:   requestID,
		Hit:         hit,
		ConfirmedBy: masterID,
	})
	if err != nil {
		d.logger.Warn("publishing hit confirmation",
			zap.String("game_id", gameID),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		d.mu.Lock()
		if games, ok := d.pending[gameID]; ok {
			games[requestID] = req
		}
		d.mu.Unlock()
		return fmt.Errorf("publishing confirmation for %q: %w", requestID, err)
	}
	d.logger.Info("master answered hit confirmation",
		zap.String("game_id", gameID),
		zap.String("request_id", requestID),
		zap.Bool("hit", hit),
	)
	return nil
}
