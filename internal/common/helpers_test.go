package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestXDAGToNano(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"1.5", 1_500_000_000},
		{"0", 0},
		{"12", 12_000_000_000},
		{"0.000000001", 1},
		{"0.0000000019", 1},
		{".25", 250_000_000},
		{" 3.1 ", 3_100_000_000},
	}
	for _, c := range cases {
		got, err := XDAGToNano(c.in)
		require.NoError(t, err, c.in)
		require.Equal(t, c.want, got, c.in)
	}

	for _, bad := range []string{"", "abc", "1.2.3", "-1", "+2"} {
		_, err := XDAGToNano(bad)
		require.Error(t, err, bad)
	}
}

func TestNanoToXDAG(t *testing.T) {
	require.Equal(t, "1.500000000", NanoToXDAG(1_500_000_000))
	require.Equal(t, "0.000000001", NanoToXDAG(1))
	require.Equal(t, "0.000000000", NanoToXDAG(0))
}

func TestCompareAmounts(t *testing.T) {
	cmp, err := CompareAmounts("1.1", "1.10")
	require.NoError(t, err)
	require.Equal(t, 0, cmp)

	cmp, err = CompareAmounts("0.3", "1")
	require.NoError(t, err)
	require.Equal(t, -1, cmp)

	_, err = CompareAmounts("x", "1")
	require.Error(t, err)
}
