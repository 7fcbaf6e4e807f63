// Package broker turns a dApp request into a user decision that resolves
// exactly once.
package broker

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/AlexZinkM/xdaghub/internal/model"
	"github.com/AlexZinkM/xdaghub/internal/store"

	"github.com/filecoin-project/pubsub"
	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/lightningnetwork/lnd/clock"
)

var log = logging.Logger("broker")

// DefaultStaleAfter is the age after which pending requests are swept.
const DefaultStaleAfter = 3 * time.Hour

// ErrUnknownRequest is returned for decisions on requests that are not pending.
var ErrUnknownRequest = fmt.Errorf("%w: request is not pending", model.ErrState)

// Surface is an opened approval surface. Closed is closed once when the user
// dismisses it.
type Surface interface {
	Closed() <-chan struct{}
}

// SurfaceOpener opens the approval surface of a request.
type SurfaceOpener interface {
	Open(ctx context.Context, requestID, route string) (Surface, error)
}

// Request is one persisted approval request.
type Request[P, R any] struct {
	ID            string    `json:"id"`
	Origin        string    `json:"origin"`
	OriginFavIcon string    `json:"originFavIcon,omitempty"`
	Approved      *bool     `json:"approved"`
	CreatedDate   time.Time `json:"createdDate"`
	Payload       P         `json:"payload"`
	Result        *R        `json:"result,omitempty"`
	ResultError   string    `json:"resultError,omitempty"`
}

// Decision is the user's answer to a request.
type Decision[R any] struct {
	RequestID   string `json:"requestId"`
	Approved    bool   `json:"approved"`
	Result      *R     `json:"result,omitempty"`
	ResultError string `json:"resultError,omitempty"`
}

// Config selects where requests are stored and which surface route they open.
type Config struct {
	StoreKey   string
	Route      string // id is appended, e.g. "/dapp/approve/"
	StaleAfter time.Duration
}

// Broker is safe for concurrent use.
type Broker[P, R any] struct {
	cfg       Config
	store     store.Store
	opener    SurfaceOpener
	clock     clock.Clock
	decisions *pubsub.PubSub

	// mu guards read-modify-write of the persisted request map.
	mu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]struct{}
}

// New creates a broker.
func New[P, R any](cfg Config, st store.Store, opener SurfaceOpener, clk clock.Clock) *Broker[P, R] {
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &Broker[P, R]{
		cfg:       cfg,
		store:     st,
		opener:    opener,
		clock:     clk,
		decisions: pubsub.New(1),
		pending:   make(map[string]struct{}),
	}
}

// Request persists a new request, opens its surface and waits for either a
// decision or the surface closing. The request is removed before returning.
// A closed surface or a negative decision returns model.ErrRejected.
func (b *Broker[P, R]) Request(ctx context.Context, payload P, origin, favIcon string) (*Request[P, R], error) {
	if err := b.ClearStale(ctx); err != nil {
		log.Warnw("failed to clear stale requests", "key", b.cfg.StoreKey, "error", err)
	}

	req := &Request[P, R]{
		ID:            uuid.NewString(),
		Origin:        origin,
		OriginFavIcon: favIcon,
		CreatedDate:   b.clock.Now().UTC(),
		Payload:       payload,
	}
	if err := b.put(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to store request: %w", err)
	}

	// subscribe before the surface exists so no decision can be missed
	sub := b.decisions.SubOnce(req.ID)
	b.setPending(req.ID, true)

	surface, err := b.opener.Open(ctx, req.ID, b.cfg.Route+url.PathEscape(req.ID))
	if err != nil {
		b.finish(req.ID, sub, false)
		return nil, fmt.Errorf("failed to open approval surface: %w", err)
	}
	log.Debugw("awaiting decision", "id", req.ID, "origin", origin)

	var (
		decision *Decision[R]
		received bool
	)
	select {
	case <-surface.Closed():
	case msg, ok := <-sub:
		received = ok
		if ok {
			d := msg.(Decision[R])
			decision = &d
		}
	case <-ctx.Done():
	}

	b.finish(req.ID, sub, received)
	if err := b.remove(context.WithoutCancel(ctx), req.ID); err != nil {
		log.Errorw("failed to remove request", "id", req.ID, "error", err)
	}

	if decision == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, model.ErrRejected
	}
	if !decision.Approved {
		return nil, model.ErrRejected
	}

	approved := true
	req.Approved = &approved
	req.Result = decision.Result
	req.ResultError = decision.ResultError
	return req, nil
}

// finish drops the request from the pending set and releases the
// subscription when no message was taken from it.
func (b *Broker[P, R]) finish(id string, sub chan interface{}, received bool) {
	b.setPending(id, false)
	if !received {
		go b.decisions.Unsub(sub)
	}
}

// HandleMessage delivers a decision to the waiting request. Only the first
// decision per request is accepted.
func (b *Broker[P, R]) HandleMessage(d Decision[R]) error {
	b.pendingMu.Lock()
	_, ok := b.pending[d.RequestID]
	delete(b.pending, d.RequestID)
	b.pendingMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, d.RequestID)
	}
	b.decisions.Pub(d, d.RequestID)
	return nil
}

func (b *Broker[P, R]) setPending(id string, on bool) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	if on {
		b.pending[id] = struct{}{}
	} else {
		delete(b.pending, id)
	}
}

// IsPending reports whether id still awaits a decision.
func (b *Broker[P, R]) IsPending(id string) bool {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	_, ok := b.pending[id]
	return ok
}

// Requests returns the persisted request map.
func (b *Broker[P, R]) Requests(ctx context.Context) (map[string]Request[P, R], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load(ctx)
}

// Get returns one request, or model.ErrNotFound.
func (b *Broker[P, R]) Get(ctx context.Context, id string) (*Request[P, R], error) {
	reqs, err := b.Requests(ctx)
	if err != nil {
		return nil, err
	}
	req, ok := reqs[id]
	if !ok {
		return nil, fmt.Errorf("%w: request %s", model.ErrNotFound, id)
	}
	return &req, nil
}

// ClearStale removes decided requests and requests older than StaleAfter.
func (b *Broker[P, R]) ClearStale(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	reqs, err := b.load(ctx)
	if err != nil {
		return err
	}
	now := b.clock.Now()
	changed := false
	for id, req := range reqs {
		if req.Approved != nil || now.Sub(req.CreatedDate) >= b.cfg.StaleAfter {
			delete(reqs, id)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return b.store.Set(ctx, b.cfg.StoreKey, reqs)
}

func (b *Broker[P, R]) put(ctx context.Context, req *Request[P, R]) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	reqs, err := b.load(ctx)
	if err != nil {
		return err
	}
	reqs[req.ID] = *req
	return b.store.Set(ctx, b.cfg.StoreKey, reqs)
}

func (b *Broker[P, R]) remove(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	reqs, err := b.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := reqs[id]; !ok {
		return nil
	}
	delete(reqs, id)
	return b.store.Set(ctx, b.cfg.StoreKey, reqs)
}

func (b *Broker[P, R]) load(ctx context.Context) (map[string]Request[P, R], error) {
	reqs := make(map[string]Request[P, R])
	if _, err := b.store.Get(ctx, b.cfg.StoreKey, &reqs); err != nil {
		return nil, err
	}
	if reqs == nil {
		reqs = make(map[string]Request[P, R])
	}
	return reqs, nil
}
