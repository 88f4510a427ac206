package metrics

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

// NopTimer returns a Timer that discards its observation.
func NopTimer() Timer { return nopTimer{} }

// NopTimerFunc returns a TimerFunc that always returns a no-op Timer.
func NopTimerFunc() TimerFunc { return func() Timer { return nopTimer{} } }
