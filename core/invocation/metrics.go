package invocation

import "github.com/yilinwei/hazelcast/core/metrics"

// Metrics receives invocation lifecycle events. All methods must be safe
// for concurrent use.
type Metrics interface {
	// AttemptStarted fires per attempt, including retries.
	AttemptStarted(msgType string)
	// RetryScheduled fires when an attempt failed and a retry was accepted
	// by the scheduler.
	RetryScheduled(msgType string)
	// OverloadRejected fires when admission control rejected an invoke.
	OverloadRejected(msgType string)
	// Completed fires exactly once per invocation, on the terminal
	// transition.
	Completed(msgType string, success bool)
	// Duration times an invocation end to end, across all attempts.
	Duration(msgType string) metrics.Timer
}

type nopMetrics struct{}

func (nopMetrics) AttemptStarted(string)        {}
func (nopMetrics) RetryScheduled(string)        {}
func (nopMetrics) OverloadRejected(string)      {}
func (nopMetrics) Completed(string, bool)       {}
func (nopMetrics) Duration(string) metrics.Timer { return metrics.NopTimer() }

// NopMetrics returns a Metrics implementation that discards everything.
func NopMetrics() Metrics { return nopMetrics{} }
