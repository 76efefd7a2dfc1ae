package enums

import "fmt"

// CancelState is the provider's claim cancellation eligibility.
type CancelState string

const (
	CancelStateFree        CancelState = "free"
	CancelStatePaid        CancelState = "paid"
	CancelStateUnavailable CancelState = "unavailable"
)

var validCancelStates = []CancelState{
	CancelStateFree,
	CancelStatePaid,
	CancelStateUnavailable,
}

// String implements fmt.Stringer.
func (c CancelState) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CancelState.
func (c CancelState) IsValid() bool {
	for _, candidate := range validCancelStates {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCancelState converts raw input into a CancelState. Anything the
// provider reports outside the known set is treated as unavailable so a
// vocabulary drift never auto-approves a cancellation.
func ParseCancelState(value string) (CancelState, error) {
	for _, candidate := range validCancelStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return CancelStateUnavailable, fmt.Errorf("invalid cancel state %q", value)
}
