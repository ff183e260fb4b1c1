package tlfu

import "fmt"

// CapacityZeroError is returned by New when Config.MaxCapacity is zero —
// construction with a zero capacity is rejected outright (spec.md §7).
type CapacityZeroError struct{}

func (CapacityZeroError) Error() string {
	return "tlfu: max capacity must be greater than zero"
}

// InvalidConfigError is returned by New when two configuration options
// contradict each other, e.g. a time-to-idle longer than the time-to-live,
// and by Insert when the Weigher returned zero for the inserted entry
// (spec.md §9 Open Questions: a zero weight is rejected rather than
// silently admitted).
type InvalidConfigError struct {
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return "tlfu: invalid config: " + e.Reason
}

// InitFailureError wraps the error a try_get_with producer returned. Every
// concurrent waiter for that key receives its own InitFailureError wrapping
// that same error value (spec.md §4.8).
type InitFailureError struct {
	Err error
}

func (e *InitFailureError) Error() string {
	return fmt.Sprintf("tlfu: value initializer failed: %v", e.Err)
}

func (e *InitFailureError) Unwrap() error { return e.Err }

// InitPanicError is delivered to every waiter of a get_with/try_get_with
// call when the producer function aborted abnormally instead of returning
// a value or an error (spec.md §7).
type InitPanicError struct {
	Recovered interface{}
}

func (e *InitPanicError) Error() string {
	return fmt.Sprintf("tlfu: value initializer aborted abnormally: %v", e.Recovered)
}
