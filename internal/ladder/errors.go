package ladder

import (
	"errors"
	"fmt"
)

// Kind classifies a ladder error so callers can branch on the failure
// class instead of matching message text.
type Kind int

const (
	// KindValidation marks malformed input, e.g. an unparseable score token
	// or a match-level draw.
	KindValidation Kind = iota + 1
	// KindRuleViolation marks a sanity-check failure: already challenged,
	// wrong rank order, active timeout.
	KindRuleViolation
	// KindNotFound marks a missing player or challenge.
	KindNotFound
	// KindExpired marks an operation outside the 7-day window. Distinct
	// from KindRuleViolation so callers can offer the expired override.
	KindExpired
	// KindConsistency marks a broken store invariant (equal ranks, winner
	// id matching neither participant). Never retried, always logged loud.
	KindConsistency
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRuleViolation:
		return "rule_violation"
	case KindNotFound:
		return "not_found"
	case KindExpired:
		return "expired"
	case KindConsistency:
		return "consistency"
	default:
		return "unknown"
	}
}

// Error is a ladder failure tagged with a Kind. Player carries the
// offending player's display name when one is known, for user-facing
// reporting by the front end.
type Error struct {
	Kind   Kind
	Player string
	msg    string
	err    error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Errf builds a tagged error.
func Errf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// PlayerErrf builds a tagged error attributed to a player.
func PlayerErrf(kind Kind, player, format string, args ...any) *Error {
	return &Error{Kind: kind, Player: player, msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error without losing it for errors.Is/As.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, msg: msg, err: err}
}

// KindOf extracts the Kind from err, or 0 when err is not a ladder error.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return 0
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
