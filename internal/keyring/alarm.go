package keyring

import (
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

// lockAlarm fires once after the armed duration unless re-armed or cleared.
type lockAlarm struct {
	clock clock.Clock
	fire  func()

	mu     sync.Mutex
	cancel chan struct{}
}

func newLockAlarm(clk clock.Clock, fire func()) *lockAlarm {
	return &lockAlarm{clock: clk, fire: fire}
}

func (a *lockAlarm) set(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.clearLocked()
	cancel := make(chan struct{})
	a.cancel = cancel
	tick := a.clock.TickAfter(d)

	go func() {
		select {
		case <-tick:
			a.mu.Lock()
			current := a.cancel == cancel
			if current {
				a.cancel = nil
			}
			a.mu.Unlock()
			if current {
				a.fire()
			}
		case <-cancel:
		}
	}()
}

func (a *lockAlarm) clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clearLocked()
}

func (a *lockAlarm) clearLocked() {
	if a.cancel != nil {
		close(a.cancel)
		a.cancel = nil
	}
}
