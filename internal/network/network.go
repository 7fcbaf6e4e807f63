// Package network keeps the node environment the wallet talks to.
package network

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/AlexZinkM/xdaghub/internal/model"
	"github.com/AlexZinkM/xdaghub/internal/store"

	"github.com/filecoin-project/pubsub"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("network")

// Env names a node environment.
type Env string

const (
	Mainnet   Env = "mainnet"
	Testnet   Env = "testNet"
	Local     Env = "local"
	CustomRPC Env = "customRPC"
)

// TopicChanged carries the new Active after every successful SetActive.
const TopicChanged = "networkChanged"

const eventBuffer = 16

// Active is the selected environment and the node it resolves to.
type Active struct {
	Env      Env    `json:"env"`
	FullNode string `json:"fullNode"`
}

// stored is what goes into the store. FullNode is kept for CustomRPC only.
type stored struct {
	Env      Env    `json:"env"`
	FullNode string `json:"fullNode,omitempty"`
}

// Manager persists the active environment and announces changes.
type Manager struct {
	store    store.Store
	nodes    map[Env]string
	fallback Env
	apply    func(Active) error
	events   *pubsub.PubSub

	mu sync.Mutex
}

// NewManager creates a manager over the node URLs of the built-in
// environments. fallback is used until an environment has been selected.
// apply, when set, runs before a new selection is persisted; its error
// aborts the change.
func NewManager(s store.Store, nodes map[Env]string, fallback Env, apply func(Active) error) (*Manager, error) {
	if nodes[fallback] == "" {
		return nil, fmt.Errorf("%w: no node configured for %s", model.ErrValidation, fallback)
	}
	return &Manager{
		store:    s,
		nodes:    nodes,
		fallback: fallback,
		apply:    apply,
		events:   pubsub.New(eventBuffer),
	}, nil
}

// Active returns the selected environment, or the fallback when nothing
// usable is stored.
func (m *Manager) Active(ctx context.Context) (Active, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked(ctx)
}

func (m *Manager) activeLocked(ctx context.Context) (Active, error) {
	var s stored
	ok, err := m.store.Get(ctx, store.KeyNetwork, &s)
	if err != nil {
		return Active{}, err
	}
	if ok {
		if a, err := m.resolve(Active(s)); err == nil {
			return a, nil
		}
		log.Warnw("ignoring stored network", "env", s.Env)
	}
	return Active{Env: m.fallback, FullNode: m.nodes[m.fallback]}, nil
}

// SetActive selects an environment. Built-in environments resolve to their
// configured node and ignore FullNode; CustomRPC requires an http(s) URL.
func (m *Manager) SetActive(ctx context.Context, a Active) (Active, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	resolved, err := m.resolve(a)
	if err != nil {
		return Active{}, err
	}
	if m.apply != nil {
		if err := m.apply(resolved); err != nil {
			return Active{}, fmt.Errorf("failed to switch to %s: %w", resolved.Env, err)
		}
	}
	s := stored{Env: resolved.Env}
	if resolved.Env == CustomRPC {
		s.FullNode = resolved.FullNode
	}
	if err := m.store.Set(ctx, store.KeyNetwork, s); err != nil {
		return Active{}, err
	}
	log.Infow("network changed", "env", resolved.Env, "node", resolved.FullNode)
	m.events.Pub(resolved, TopicChanged)
	return resolved, nil
}

// Restore applies the stored selection, typically once at startup.
func (m *Manager) Restore(ctx context.Context) (Active, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.activeLocked(ctx)
	if err != nil {
		return Active{}, err
	}
	if m.apply != nil {
		if err := m.apply(a); err != nil {
			return Active{}, err
		}
	}
	return a, nil
}

func (m *Manager) resolve(a Active) (Active, error) {
	if a.Env == CustomRPC {
		if err := ValidateNodeURL(a.FullNode); err != nil {
			return Active{}, err
		}
		return a, nil
	}
	node, ok := m.nodes[a.Env]
	if !ok || node == "" {
		return Active{}, fmt.Errorf("%w: unknown network %q", model.ErrValidation, a.Env)
	}
	return Active{Env: a.Env, FullNode: node}, nil
}

// ValidateNodeURL accepts absolute http and https URLs with a host.
func ValidateNodeURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid custom RPC url %q: %v", model.ErrValidation, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: invalid custom RPC url %q", model.ErrValidation, raw)
	}
	return nil
}

// Subscribe returns a channel of TopicChanged events that closes once ctx
// is done.
func (m *Manager) Subscribe(ctx context.Context) <-chan any {
	sub := m.events.Sub(TopicChanged)
	out := make(chan any, eventBuffer)
	go func() {
		<-ctx.Done()
		m.events.Unsub(sub)
	}()
	go func() {
		defer close(out)
		for ev := range sub {
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}
	}()
	return out
}
