// Package surface tracks the approval surfaces opened for pending requests.
package surface

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AlexZinkM/xdaghub/internal/broker"
	"github.com/AlexZinkM/xdaghub/internal/model"

	logging "github.com/ipfs/go-log/v2"
	"github.com/lightningnetwork/lnd/clock"
)

var log = logging.Logger("surface")

// Window is one opened approval surface.
type Window struct {
	RequestID string    `json:"requestId"`
	Route     string    `json:"route"`
	OpenedAt  time.Time `json:"openedAt"`

	closed   chan struct{}
	once     sync.Once
	gone     chan struct{}
	goneOnce sync.Once
}

// Closed is closed when the window is closed.
func (w *Window) Closed() <-chan struct{} {
	return w.closed
}

func (w *Window) close() {
	w.once.Do(func() { close(w.closed) })
}

// drop marks the window as no longer registered.
func (w *Window) drop() {
	w.goneOnce.Do(func() { close(w.gone) })
}

// Registry is the in-process set of open windows.
type Registry struct {
	clock clock.Clock

	mu      sync.Mutex
	windows map[string]*Window
}

var _ broker.SurfaceOpener = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry(clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &Registry{clock: clk, windows: make(map[string]*Window)}
}

// Open registers a window for requestID. The window leaves the registry
// when it is closed, forgotten or ctx is done.
func (r *Registry) Open(ctx context.Context, requestID, route string) (broker.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := &Window{
		RequestID: requestID,
		Route:     route,
		OpenedAt:  r.clock.Now().UTC(),
		closed:    make(chan struct{}),
		gone:      make(chan struct{}),
	}

	r.mu.Lock()
	if old, ok := r.windows[requestID]; ok {
		old.close()
		old.drop()
	}
	r.windows[requestID] = w
	r.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			r.remove(w)
		case <-w.gone:
		}
	}()

	log.Infow("approval surface opened", "id", requestID, "route", route)
	return w, nil
}

// Close closes the window of requestID.
func (r *Registry) Close(requestID string) error {
	r.mu.Lock()
	w, ok := r.windows[requestID]
	delete(r.windows, requestID)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no open surface for %s", model.ErrNotFound, requestID)
	}
	w.close()
	w.drop()
	log.Infow("approval surface closed", "id", requestID)
	return nil
}

// Forget drops a window without signalling closure, once its request is resolved.
func (r *Registry) Forget(requestID string) {
	r.mu.Lock()
	w, ok := r.windows[requestID]
	delete(r.windows, requestID)
	r.mu.Unlock()
	if ok {
		w.drop()
	}
}

// remove drops w unless it was already replaced.
func (r *Registry) remove(w *Window) {
	r.mu.Lock()
	if r.windows[w.RequestID] == w {
		delete(r.windows, w.RequestID)
	}
	r.mu.Unlock()
	w.drop()
}

// List returns the open windows, oldest first.
func (r *Registry) List() []*Window {
	r.mu.Lock()
	out := make([]*Window, 0, len(r.windows))
	for _, w := range r.windows {
		out = append(out, w)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].RequestID < out[j].RequestID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

// CloseAll closes every window.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	windows := r.windows
	r.windows = make(map[string]*Window)
	r.mu.Unlock()
	for _, w := range windows {
		w.close()
		w.drop()
	}
}
