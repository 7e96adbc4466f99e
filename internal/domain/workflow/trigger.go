package workflow

import (
	"fmt"
	"strings"
)

// Trigger represents an action that can cause a state transition
type Trigger string

const (
	TriggerApprove Trigger = "approve"
	TriggerReject  Trigger = "reject"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// ParseTrigger parses an action name
func ParseTrigger(s string) (Trigger, error) {
	switch t := Trigger(strings.ToLower(strings.TrimSpace(s))); t {
	case TriggerApprove, TriggerReject:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrValidation, s)
	}
}
