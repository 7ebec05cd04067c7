// Package wsv implements the world-state view: the live account/asset/role
// graph, instruction execution, trigger dispatch, and read queries (§4.4).
// wsv depends on kura and consensus but neither depends back on wsv — the
// one-directional wiring that replaces the teacher's Arc<WSV>↔Arc<Kura>
// cycle (§9 Design Notes).
package wsv

import "fmt"

type ErrorCode string

const (
	ErrNotFound         ErrorCode = "WSV_NOT_FOUND"
	ErrAlreadyExists    ErrorCode = "WSV_ALREADY_EXISTS"
	ErrOverflow         ErrorCode = "WSV_MATH_OVERFLOW"
	ErrNotEnoughQuantity ErrorCode = "WSV_NOT_ENOUGH_QUANTITY"
	ErrPermissionDenied ErrorCode = "WSV_PERMISSION_DENIED"
	ErrInvalidInstruction ErrorCode = "WSV_INVALID_INSTRUCTION"
	ErrDuplicateTxHash  ErrorCode = "WSV_DUPLICATE_TX_HASH"
)

type Error struct {
	Code ErrorCode
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func notFound(msg string) error      { return &Error{Code: ErrNotFound, Msg: msg} }
func alreadyExists(msg string) error { return &Error{Code: ErrAlreadyExists, Msg: msg} }
func permDenied(msg string) error    { return &Error{Code: ErrPermissionDenied, Msg: msg} }
func invalidInstr(msg string) error  { return &Error{Code: ErrInvalidInstruction, Msg: msg} }
