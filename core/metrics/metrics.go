// Package metrics defines small instrumentation interfaces so that the core
// packages stay decoupled from any particular metrics backend.
package metrics

// Timer measures the duration of one operation. Call ObserveDuration when
// the operation completes to record the elapsed time.
type Timer interface {
	// ObserveDuration records the elapsed time since the timer was created.
	ObserveDuration()
}

// TimerFunc creates a new Timer, enabling deferred timing:
// defer m.InvocationDuration("map.get").ObserveDuration()
type TimerFunc func() Timer
