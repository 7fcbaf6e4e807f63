package broker

import (
	"context"
	"testing"

	"github.com/AlexZinkM/xdaghub/internal/model"
	"github.com/AlexZinkM/xdaghub/internal/store"

	"github.com/stretchr/testify/require"
)

func TestNextImageIndex(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	b := NewInscriptions(st, newFakeOpener(), nil)

	first, err := b.NextImageIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, "!!", first)

	second, err := b.NextImageIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, "!\"", second)

	// survives a restart
	again := NewInscriptions(st, newFakeOpener(), nil)
	third, err := again.NextImageIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, "!#", third)

	// wraps after the last tag
	require.NoError(t, st.Set(ctx, store.KeyInscriptionImageNo, imageNumber{N1: 125, N0: 125}))
	last, err := b.NextImageIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, "}}", last)
	wrapped, err := b.NextImageIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, "!!", wrapped)
}

func TestExecuteInscription(t *testing.T) {
	ctx := context.Background()
	opener := newFakeOpener()
	b := NewInscriptions(store.NewMemory(), opener, nil)

	type out struct {
		addrs []string
		err   error
	}
	ch := make(chan out, 1)
	go func() {
		addrs, err := b.ExecuteInscription(ctx, model.Inscription{AwardRatio: 10, ToAddress: "to"}, "o", "")
		ch <- out{addrs, err}
	}()

	id := opener.next(t)
	require.Equal(t, InscriptionRoute+id, opener.routes[id])
	req, err := b.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "!!", req.Payload.ImageIndex)

	addrs := []string{"a1", "a2"}
	require.NoError(t, b.HandleMessage(InscriptionDecision{RequestID: id, Approved: true, Result: &addrs}))
	o := <-ch
	require.NoError(t, o.err)
	require.Equal(t, addrs, o.addrs)
}
