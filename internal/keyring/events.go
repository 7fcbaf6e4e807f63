package keyring

import (
	"context"

	"github.com/filecoin-project/pubsub"
)

// Event topics.
const (
	TopicLockedStatus  = "lockedStatusUpdate"
	TopicAccounts      = "accountsChanged"
	TopicActiveAccount = "activeAccountChanged"
)

const eventBuffer = 16

// Subscribe returns a channel of events on the given topics. The channel is
// closed once ctx is done.
//
// Payloads: TopicLockedStatus carries a bool, TopicAccounts a
// []model.AccountInfo and TopicActiveAccount the address string.
func (k *Keyring) Subscribe(ctx context.Context, topics ...string) <-chan any {
	sub := k.events.Sub(topics...)
	out := make(chan any, eventBuffer)
	go func() {
		<-ctx.Done()
		k.events.Unsub(sub)
	}()
	go func() {
		defer close(out)
		// keep draining sub until pubsub closes it so Unsub never blocks
		for ev := range sub {
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}
	}()
	return out
}

func newEventBus() *pubsub.PubSub {
	return pubsub.New(eventBuffer)
}
