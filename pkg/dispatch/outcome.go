package dispatch

import (
	"fmt"
	"time"

	"localagent/pkg/capability"
)

// Kind tags the result of one dispatch.
type Kind int

const (
	// Ignored means the payload was not a non-empty object; nothing was logged or run.
	Ignored Kind = iota
	// Executed means the capability ran and returned without error.
	Executed
	// RejectedInvalid means the command was missing or params was not an object.
	RejectedInvalid
	// RejectedUnknown means the command is not registered.
	RejectedUnknown
	// RejectedUnconfirmed means a dangerous or critical request lacked confirm == true.
	RejectedUnconfirmed
	// RejectedPolicy means a layered security policy refused the request.
	RejectedPolicy
	// Failed means the capability was resolved but the invocation failed,
	// either on a parameter mismatch or at runtime.
	Failed
)

var kindNames = map[Kind]string{
	Ignored:             "ignored",
	Executed:            "executed",
	RejectedInvalid:     "rejected_invalid",
	RejectedUnknown:     "rejected_unknown",
	RejectedUnconfirmed: "rejected_unconfirmed",
	RejectedPolicy:      "rejected_policy",
	Failed:              "failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Outcome is the result of dispatching one request. It is used for
// logging and reporting only; it is never persisted or sent back to the
// producer.
type Outcome struct {
	Kind      Kind
	Name      string
	Tier      capability.Tier
	Params    capability.Params
	Err       error
	StartTime time.Time
	Duration  time.Duration
}

// Rejected reports whether the request was refused before invocation.
func (o Outcome) Rejected() bool {
	switch o.Kind {
	case RejectedInvalid, RejectedUnknown, RejectedUnconfirmed, RejectedPolicy:
		return true
	}
	return false
}

func (o Outcome) String() string {
	switch {
	case o.Name == "" && o.Err == nil:
		return o.Kind.String()
	case o.Err == nil:
		return fmt.Sprintf("%s %s", o.Kind, o.Name)
	default:
		return fmt.Sprintf("%s %s: %v", o.Kind, o.Name, o.Err)
	}
}
