package queue

import (
	"fmt"
	"strings"
)

// BoundaryPolicy decides what Shift does when the head would move past
// the first or last item.
type BoundaryPolicy int

const (
	// Wrap continues from the other end of the queue.
	Wrap BoundaryPolicy = iota
	// Clamp stops at the first or last item.
	Clamp
	// NoOp refuses any move that would leave the queue.
	NoOp
)

// ParseBoundaryPolicy parses "wrap", "clamp" or "noop". Empty means Wrap.
func ParseBoundaryPolicy(s string) (BoundaryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wrap":
		return Wrap, nil
	case "clamp":
		return Clamp, nil
	case "noop", "no-op", "none":
		return NoOp, nil
	default:
		return Wrap, fmt.Errorf("unknown boundary policy %q", s)
	}
}

// String returns the policy name.
func (p BoundaryPolicy) String() string {
	switch p {
	case Wrap:
		return "wrap"
	case Clamp:
		return "clamp"
	case NoOp:
		return "noop"
	default:
		return "unknown"
	}
}

// target resolves head+offset in a queue of n items. moved is false when
// the head would not change.
func (p BoundaryPolicy) target(head, offset, n int) (idx int, moved bool) {
	if n == 0 {
		return 0, false
	}
	t := head + offset
	switch p {
	case Clamp:
		t = min(max(t, 0), n-1)
	case NoOp:
		if t < 0 || t >= n {
			return head, false
		}
	default:
		t = ((t % n) + n) % n
	}
	return t, t != head
}
