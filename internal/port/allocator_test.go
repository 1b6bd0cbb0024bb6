package port

import (
	"errors"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindReturnsFreePort(t *testing.T) {
	a := Default()
	p, err := a.Find(RangeStart)
	require.NoError(t, err)
	require.GreaterOrEqual(t, p, RangeStart)
	require.LessOrEqual(t, p, RangeEnd)

	// The returned port must actually be bindable right after Find.
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(p)))
	require.NoError(t, err)
	_ = l.Close()
}

func TestFindSkipsOccupiedPort(t *testing.T) {
	a := Default()
	first, err := a.Find(RangeStart)
	require.NoError(t, err)

	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(first)))
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	second, err := a.Find(first)
	require.NoError(t, err)
	require.Greater(t, second, first)
}

func TestFindClampsBelowRange(t *testing.T) {
	a := Default()
	p, err := a.Find(1)
	require.NoError(t, err)
	require.GreaterOrEqual(t, p, RangeStart)
}

func TestFindExhaustionPastRangeEnd(t *testing.T) {
	a := Default()
	_, err := a.Find(RangeEnd + 1)
	var ex *ExhaustionError
	require.True(t, errors.As(err, &ex))
}

func TestFindExhaustionWhenRangeBusy(t *testing.T) {
	// A private 3-port range, all occupied.
	base := reserveBase(t, 3)
	a := NewAllocator(base, base+2, MaxRetries)
	_, err := a.Find(base)
	var ex *ExhaustionError
	require.True(t, errors.As(err, &ex))
	require.Equal(t, 3, ex.Attempts)
}

func TestFindBoundedByMaxRetries(t *testing.T) {
	base := reserveBase(t, 2)
	a := NewAllocator(base, base+50, 2)
	_, err := a.Find(base)
	var ex *ExhaustionError
	require.True(t, errors.As(err, &ex))
	require.Equal(t, 2, ex.Attempts)
}

// reserveBase binds n consecutive ports chosen by the OS and keeps them bound
// for the duration of the test, returning the first port.
func reserveBase(t *testing.T, n int) int {
	t.Helper()
	for attempt := 0; attempt < 20; attempt++ {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		base := l.Addr().(*net.TCPAddr).Port
		held := []net.Listener{l}
		ok := true
		for i := 1; i < n; i++ {
			li, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(base+i)))
			if err != nil {
				ok = false
				break
			}
			held = append(held, li)
		}
		if ok {
			for _, li := range held {
				li := li
				t.Cleanup(func() { _ = li.Close() })
			}
			return base
		}
		for _, li := range held {
			_ = li.Close()
		}
	}
	t.Fatal("could not reserve consecutive ports")
	return 0
}
