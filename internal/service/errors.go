package service

import "errors"

// Business-rule violations returned to callers. Anything else escaping the
// engine is an unexpected persistence failure: logged and mapped to 500,
// never partially applied.
var (
	ErrPermissionDenied         = errors.New("permission denied")
	ErrWheelConflict            = errors.New("another wheel is already live")
	ErrInvalidState             = errors.New("operation not valid for current wheel state")
	ErrWheelNotJoinable         = errors.New("wheel is not accepting joins")
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrInsufficientParticipants = errors.New("not enough paid participants")
	ErrDuplicateJoin            = errors.New("user already joined this wheel")
	ErrNotFound                 = errors.New("not found")
)
