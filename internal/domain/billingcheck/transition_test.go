package billingcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectTransition(t *testing.T) {
	tests := []struct {
		name     string
		previous PreviousState
		current  bool
		want     bool
	}{
		{"recorded false to enabled", RecordedState("false"), true, true},
		{"recorded false stays disabled", RecordedState("false"), false, false},
		{"recorded true stays enabled", RecordedState("true"), true, false},
		{"recorded true to disabled", RecordedState("true"), false, false},
		{"absent to enabled", AbsentState, true, false},
		{"absent to disabled", AbsentState, false, false},
		{"malformed to enabled", RecordedState("FALSE"), true, false},
		{"empty recorded value", RecordedState(""), true, false},
		{"zero value with false text is still absent", PreviousState{Value: "false"}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectTransition(tt.previous, tt.current))
		})
	}
}

func TestFormatState(t *testing.T) {
	assert.Equal(t, StateEnabled, FormatState(true))
	assert.Equal(t, StateDisabled, FormatState(false))
}

func TestOutcome(t *testing.T) {
	t.Run("skipped carries reason", func(t *testing.T) {
		o := Skipped(SkipReasonLeaseHeld)
		assert.True(t, o.IsSkipped())
		assert.Equal(t, SkipReasonLeaseHeld, o.SkipReason)
		assert.False(t, o.Transitioned)
	})

	t.Run("ran with projects is enabled", func(t *testing.T) {
		o := Ran([]string{"proj-1"}, true)
		assert.False(t, o.IsSkipped())
		assert.Equal(t, SkipReasonNone, o.SkipReason)
		assert.True(t, o.BillingEnabled)
		assert.True(t, o.Transitioned)
	})

	t.Run("ran without projects is disabled", func(t *testing.T) {
		o := Ran(nil, false)
		assert.Equal(t, StatusRan, o.Status)
		assert.False(t, o.BillingEnabled)
	})
}
