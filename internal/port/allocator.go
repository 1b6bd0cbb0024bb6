package port

import (
	"fmt"
	"net"
	"strconv"
)

// Stable contract constants for the mock server port range. Tests and the
// HTTP API rely on these values.
const (
	RangeStart = 4010
	RangeEnd   = 4099
	MaxRetries = 10
)

// ExhaustionError reports that no free port was found within the allowed
// range or within the attempt bound.
type ExhaustionError struct {
	Start    int
	End      int
	Attempts int
}

func (e *ExhaustionError) Error() string {
	return fmt.Sprintf("no free port in range %d-%d after %d attempts", e.Start, e.End, e.Attempts)
}

// Allocator finds free TCP ports by transiently binding candidates.
// Probing is sequential so the allocator never races its own probes; the
// probe-to-spawn window race is resolved by the manager's conflict retry.
type Allocator struct {
	rangeStart int
	rangeEnd   int
	maxRetries int
}

// NewAllocator returns an allocator over [start, end] with the given probe
// bound per Find call. Zero values fall back to the package defaults.
func NewAllocator(start, end, maxRetries int) *Allocator {
	if start <= 0 {
		start = RangeStart
	}
	if end <= 0 {
		end = RangeEnd
	}
	if maxRetries <= 0 {
		maxRetries = MaxRetries
	}
	return &Allocator{rangeStart: start, rangeEnd: end, maxRetries: maxRetries}
}

// Default returns an allocator over the standard mock server range.
func Default() *Allocator { return NewAllocator(RangeStart, RangeEnd, MaxRetries) }

// Find probes ports sequentially from startPort upward and returns the first
// one that accepts a bind. startPort below the range is clamped to the range
// start. A successful bind+release means "available"; the port is not
// reserved afterwards.
func (a *Allocator) Find(startPort int) (int, error) {
	if startPort < a.rangeStart {
		startPort = a.rangeStart
	}
	attempts := 0
	for p := startPort; p <= a.rangeEnd && attempts < a.maxRetries; p++ {
		attempts++
		if probe(p) {
			return p, nil
		}
	}
	return 0, &ExhaustionError{Start: startPort, End: a.rangeEnd, Attempts: attempts}
}

func probe(p int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(p)))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
