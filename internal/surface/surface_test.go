package surface

import (
	"context"
	"testing"
	"time"

	"github.com/AlexZinkM/xdaghub/internal/model"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewTestClock(time.Unix(100, 0))
	r := NewRegistry(clk)

	a, err := r.Open(ctx, "a", "/dapp/approve/a")
	require.NoError(t, err)
	clk.SetTime(time.Unix(200, 0))
	_, err = r.Open(ctx, "b", "/dapp/approve/b")
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 2)
	require.Equal(t, "a", list[0].RequestID)

	require.NoError(t, r.Close("a"))
	select {
	case <-a.Closed():
	default:
		t.Fatal("window a not closed")
	}
	require.ErrorIs(t, r.Close("a"), model.ErrNotFound)

	r.Forget("b")
	require.Empty(t, r.List())
}

func TestRegistryCloseAll(t *testing.T) {
	r := NewRegistry(nil)
	s, err := r.Open(context.Background(), "x", "/r/x")
	require.NoError(t, err)

	r.CloseAll()
	<-s.Closed()
	require.Empty(t, r.List())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Open(ctx, "y", "/r/y")
	require.ErrorIs(t, err, context.Canceled)
}

func TestRegistryForgetsCancelled(t *testing.T) {
	r := NewRegistry(nil)
	ctx, cancel := context.WithCancel(context.Background())
	s, err := r.Open(ctx, "z", "/r/z")
	require.NoError(t, err)
	require.Len(t, r.List(), 1)

	cancel()
	require.Eventually(t, func() bool { return len(r.List()) == 0 }, time.Second, time.Millisecond)
	select {
	case <-s.Closed():
		t.Fatal("cancelled window must not report closure")
	default:
	}
}
