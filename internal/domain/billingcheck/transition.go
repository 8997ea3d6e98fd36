package billingcheck

import "strconv"

// Serialized billing states
const (
	StateEnabled  = "true"
	StateDisabled = "false"
)

// PreviousState is the raw billing state recorded by the previous run.
// Found is false when nothing was recorded or the record expired.
type PreviousState struct {
	Value string
	Found bool
}

// AbsentState is the state of a credential that has never been checked
var AbsentState = PreviousState{}

// RecordedState wraps a value read from the store
func RecordedState(value string) PreviousState {
	return PreviousState{Value: value, Found: true}
}

// FormatState serializes a billing-enabled flag for storage
func FormatState(enabled bool) string {
	return strconv.FormatBool(enabled)
}

// DetectTransition reports whether billing moved from a recorded "false" to enabled.
// An absent, "true" or malformed previous value never counts, whatever current is.
func DetectTransition(previous PreviousState, current bool) bool {
	return previous.Found && previous.Value == StateDisabled && current
}
