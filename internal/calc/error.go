package calc

import (
	"fmt"
)

// ErrorKind classifies evaluation failures.
type ErrorKind int

const (
	EmptyExpression ErrorKind = iota + 1
	UnexpectedToken
	UnbalancedParentheses
	DivisionByZero
	NonFiniteResult
)

func (k ErrorKind) String() string {
	switch k {
	case EmptyExpression:
		return "EmptyExpression"
	case UnexpectedToken:
		return "UnexpectedToken"
	case UnbalancedParentheses:
		return "UnbalancedParentheses"
	case DivisionByZero:
		return "DivisionByZero"
	case NonFiniteResult:
		return "NonFiniteResult"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is an evaluation failure. Pos is the byte offset of the offending
// token, or -1 when the failure has no single position.
type Error struct {
	Kind ErrorKind
	Pos  int
	Msg  string
}

func (e *Error) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("%s at %d: %s", e.Kind, e.Pos, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is matches another *Error of the same kind, so callers can write
// errors.Is(err, &calc.Error{Kind: calc.DivisionByZero}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func unexpected(pos int, msg string) *Error {
	return &Error{Kind: UnexpectedToken, Pos: pos, Msg: msg}
}
