package chat

import (
	"errors"
	"fmt"

	"github.com/realmchat/chat-engine/internal/notice"
)

// Kind classifies why an event was not delivered.
type Kind uint8

const (
	// KindSilentNoop has no effect, no notice and no log line.
	KindSilentNoop Kind = iota
	// KindProtocolViolation is malformed or contradictory client input. Logged.
	KindProtocolViolation
	// KindPermissionDenied is a rule the sender does not satisfy. Noticed.
	KindPermissionDenied
	// KindRateOrStateGate is a time-based gate such as an active mute. Noticed.
	KindRateOrStateGate
	// KindNotFound is an unresolvable target. Noticed.
	KindNotFound
	// KindContentRejected is a body that failed content validation. Logged.
	KindContentRejected
)

var kindNames = [...]string{
	KindSilentNoop:        "silent_noop",
	KindProtocolViolation: "protocol_violation",
	KindPermissionDenied:  "permission_denied",
	KindRateOrStateGate:   "rate_or_state_gate",
	KindNotFound:          "not_found",
	KindContentRejected:   "content_rejected",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind_%d", uint8(k))
}

// Rejection is the error every gate returns when an event must be dropped.
// Reason is a package sentinel usable with errors.Is. Kick asks the session
// layer to terminate the sender's connection.
type Rejection struct {
	Kind   Kind
	Reason error
	Notice notice.Key
	Args   []any
	Kick   bool
}

// Reject returns a rejection without a client notice.
func Reject(kind Kind, reason error) *Rejection {
	return &Rejection{Kind: kind, Reason: reason}
}

// RejectWithNotice returns a rejection that tells the sender why.
func RejectWithNotice(kind Kind, reason error, key notice.Key, args ...any) *Rejection {
	return &Rejection{Kind: kind, Reason: reason, Notice: key, Args: args}
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("chat: %s: %v", r.Kind, r.Reason)
}

func (r *Rejection) Unwrap() error { return r.Reason }

// AsRejection extracts a *Rejection from err.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// KindOf returns the rejection kind of err, or KindSilentNoop when err is
// not a rejection.
func KindOf(err error) Kind {
	if r, ok := AsRejection(err); ok {
		return r.Kind
	}
	return KindSilentNoop
}
