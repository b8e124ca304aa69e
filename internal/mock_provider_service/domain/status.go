package domain

import (
	"fmt"
	"strings"
)

// ResourceKind distinguishes text messages from voice calls.
type ResourceKind int

const (
	ResourceKindMessage ResourceKind = iota + 1
	ResourceKindCall
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceKindMessage:
		return "message"
	case ResourceKindCall:
		return "call"
	default:
		return "unknown"
	}
}

// SIDPrefix is the two-letter prefix of identifiers issued for this kind.
func (k ResourceKind) SIDPrefix() string {
	switch k {
	case ResourceKindMessage:
		return "SM"
	case ResourceKindCall:
		return "CA"
	default:
		return ""
	}
}

// ParseResourceKind accepts singular and plural forms ("message", "messages").
func ParseResourceKind(s string) (ResourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "message", "messages":
		return ResourceKindMessage, nil
	case "call", "calls":
		return ResourceKindCall, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownResourceKind, s)
	}
}

// Status is the lifecycle status of a message or a call.
type Status int

const (
	StatusQueued Status = iota + 1
	StatusSent
	StatusDelivered
	StatusRinging
	StatusInProgress
	StatusCompleted
	StatusFailed
)

var statusNames = map[Status]string{
	StatusQueued:     "queued",
	StatusSent:       "sent",
	StatusDelivered:  "delivered",
	StatusRinging:    "ringing",
	StatusInProgress: "in-progress",
	StatusCompleted:  "completed",
	StatusFailed:     "failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsTerminal reports whether no further transition follows s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// ParseStatus maps a wire/storage name back to a Status.
func ParseStatus(s string) (Status, error) {
	for status, name := range statusNames {
		if name == s {
			return status, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// Outcome is the simulated fate of a destination number.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeSucceed
	OutcomeFail
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceed:
		return "succeed"
	case OutcomeFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Sequence returns the statuses a resource passes through after queued.
// A failing resource goes straight to failed. Unknown outcomes (and unknown
// kinds) have no sequence.
func Sequence(kind ResourceKind, outcome Outcome) []Status {
	switch kind {
	case ResourceKindMessage:
		switch outcome {
		case OutcomeSucceed:
			return []Status{StatusSent, StatusDelivered}
		case OutcomeFail:
			return []Status{StatusFailed}
		}
	case ResourceKindCall:
		switch outcome {
		case OutcomeSucceed:
			return []Status{StatusRinging, StatusInProgress, StatusCompleted}
		case OutcomeFail:
			return []Status{StatusFailed}
		}
	}
	return nil
}
