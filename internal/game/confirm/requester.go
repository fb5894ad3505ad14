package confirm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/pubsub"
)

type pending struct {
	req    Request
	done   chan struct{}
	answer Confirmation
}

// Requester is the acting side of the handshake. It publishes requests and
// matches incoming confirmations to them by request id; confirmations for ids
// it does not hold are ignored.
type Requester struct {
	bus     pubsub.Bus
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	pending map[string]*pending
	watched map[string]bool
	ctx     context.Context
}

// NewRequester creates a Requester. A timeout of 0 waits indefinitely.
// Subscriptions opened by the Requester live until ctx is cancelled.
//
// Precondition: ctx, bus and logger must be non-nil.
func NewRequester(ctx context.Context, bus pubsub.Bus, logger *zap.Logger, timeout time.Duration) *Requester {
	return &Requester{
		bus:     bus,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
		pending: make(map[string]*pending),
		watched: make(map[string]bool),
		ctx:     ctx,
	}
}

// Request registers req as pending and publishes it. An empty RequestID is
// filled from NewRequestID.
//
// Postcondition: Returns the request id.
func (r *Requester) Request(ctx context.Context, req Request) (string, error) {
	if req.Action.Healing {
		return "", ErrHealing
	}
	if err := r.watch(req.GameID); err != nil {
		return "", err
	}
	if req.RequestID == "" {
		req.RequestID = NewRequestID(req.ActorID, req.Action.ID, r.now())
	}

	r.mu.Lock()
	if _, dup := r.pending[req.RequestID]; dup {
		r.mu.Unlock()
		return "", fmt.Errorf("confirm: request %q already pending", req.RequestID)
	}
	r.pending[req.RequestID] = &pending{req: req, done: make(chan struct{})}
	r.mu.Unlock()

	if err := pubsub.Publish(ctx, r.bus, req.GameID, EventActionRequested, req.RequestedBy, req); err != nil {
		r.forget(req.RequestID)
		return "", err
	}
	r.logger.Debug("hit confirmation requested",
		zap.String("request_id", req.RequestID),
		zap.String("actor", req.ActorName),
		zap.String("action", req.Action.Name),
	)
	return req.RequestID, nil
}

// Await blocks until the master answers id, ctx ends, or the timeout elapses.
// The request stays registered so Take can settle it afterwards.
func (r *Requester) Await(ctx context.Context, id string) (Confirmation, error) {
	r.mu.Lock()
	p, ok := r.pending[id]
	r.mu.Unlock()
	if !ok {
		return Confirmation{}, ErrUnknownRequest
	}

	var expire <-chan time.Time
	if r.timeout > 0 {
		t := time.NewTimer(r.timeout)
		defer t.Stop()
		expire = t.C
	}
	select {
	case <-p.done:
		return p.answer, nil
	case <-expire:
		r.forget(id)
		return Confirmation{}, ErrNoResponse
	case <-ctx.Done():
		return Confirmation{}, ctx.Err()
	}
}

// Take settles an answered request and removes it.
//
// Postcondition: Returns ErrAwaitingMaster while unanswered and
// ErrUnknownRequest when id is not pending.
func (r *Requester) Take(id string) (Request, Confirmation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[id]
	if !ok {
		return Request{}, Confirmation{}, ErrUnknownRequest
	}
	select {
	case <-p.done:
	default:
		return Request{}, Confirmation{}, ErrAwaitingMaster
	}
	delete(r.pending, id)
	return p.req, p.answer, nil
}

// Answer returns an answered request and its confirmation without settling
// it.
//
// Postcondition: Returns ErrAwaitingMaster while unanswered and
// ErrUnknownRequest when id is not pending.
func (r *Requester) Answer(id string) (Request, Confirmation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[id]
	if !ok {
		return Request{}, Confirmation{}, ErrUnknownRequest
	}
	select {
	case <-p.done:
		return p.req, p.answer, nil
	default:
		return Request{}, Confirmation{}, ErrAwaitingMaster
	}
}

// Restore puts a request taken with Take back as answered, so a resolution
// that failed before changing anything can be retried. A request already
// pending under the same id is left alone.
func (r *Requester) Restore(req Request, answer Confirmation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[req.RequestID]; ok {
		return
	}
	p := &pending{req: req, done: make(chan struct{}), answer: answer}
	close(p.done)
	r.pending[req.RequestID] = p
}

// Lookup returns a pending request without settling it.
func (r *Requester) Lookup(id string) (Request, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[id]
	if !ok {
		return Request{}, false
	}
	return p.req, true
}

// Cancel drops a pending request without an answer.
func (r *Requester) Cancel(id string) error {
	if !r.forget(id) {
		return ErrUnknownRequest
	}
	return nil
}

// Pending lists unsettled request ids in sorted order.
func (r *Requester) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Requester) forget(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[id]
	delete(r.pending, id)
	return ok
}

func (r *Requester) watch(gameID string) error {
	if gameID == "" {
		return errors.New("confirm: game id must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watched[gameID] {
		return nil
	}
	if err := r.bus.Subscribe(r.ctx, gameID, pubsub.On(EventHitConfirmed, r.handle)); err != nil {
		return err
	}
	r.watched[gameID] = true
	return nil
}

func (r *Requester) handle(_ context.Context, env pubsub.Envelope) {
	c, err := pubsub.Decode[Confirmation](env)
	if err != nil {
		r.logger.Warn("ignoring malformed confirmation", zap.Error(err))
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[c.RequestID]
	if !ok {
		return
	}
	select {
	case <-p.done:
		// first answer wins
	default:
		p.answer = c
		close(p.done)
		r.logger.Debug("hit confirmation received",
			zap.String("request_id", c.RequestID),
			zap.Bool("hit", c.Hit),
		)
	}
}
