// Package sequence issues correlation ids for in-flight invocations under
// an admission-controlled budget. Rejecting new work up front keeps a
// saturated cluster connection from accumulating unbounded pending calls.
package sequence

import (
	"errors"
	"sync/atomic"
)

// ErrOverload signals that the outstanding-invocation budget is exhausted.
// It is surfaced synchronously to the caller and never retried.
var ErrOverload = errors.New("sequence: too many concurrent invocations")

// DefaultMaxConcurrent is the budget applied when none is configured.
const DefaultMaxConcurrent = 1000

// Sequence hands out unique, monotonically increasing correlation ids and
// tracks how many are outstanding. Next admits a new id only while the
// budget allows it; Renew bypasses admission so urgent control traffic
// (heartbeats, auth) cannot be starved by saturated normal traffic.
// Every issued id must be released with exactly one Complete call.
type Sequence struct {
	head atomic.Int64 // last issued id
	tail atomic.Int64 // number of released ids
	max  int64
}

func New(maxConcurrent int64) *Sequence {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Sequence{max: maxConcurrent}
}

// Next issues the next correlation id or fails with ErrOverload.
func (s *Sequence) Next() (int64, error) {
	for {
		head := s.head.Load()
		if head-s.tail.Load() >= s.max {
			return 0, ErrOverload
		}
		if s.head.CompareAndSwap(head, head+1) {
			return head + 1, nil
		}
	}
}

// Renew issues the next correlation id without an admission check. The id
// still counts as outstanding until completed.
func (s *Sequence) Renew() (int64, error) {
	return s.head.Add(1), nil
}

// Complete releases one outstanding id, freeing budget for new admissions.
func (s *Sequence) Complete() {
	s.tail.Add(1)
}

// Outstanding reports how many issued ids have not been completed yet.
func (s *Sequence) Outstanding() int64 {
	return s.head.Load() - s.tail.Load()
}

// Last reports the most recently issued id.
func (s *Sequence) Last() int64 {
	return s.head.Load()
}
