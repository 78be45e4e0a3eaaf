package placement

import (
	"errors"
	"fmt"
	"time"
)

// Code identifies a placement rejection surfaced to clients.
type Code string

// Placement error codes.
const (
	CodeQuotaExceeded      Code = "QUOTA_EXCEEDED"
	CodeInvalidCoordinates Code = "INVALID_COORDINATES"
	CodeInvalidColor       Code = "INVALID_COLOR"
	CodeFrameFrozen        Code = "FRAME_FROZEN"
	CodePermissionDenied   Code = "PERMISSION_DENIED"
	CodeUserBlocked        Code = "USER_BLOCKED"
	CodeFrameNotFound      Code = "FRAME_NOT_FOUND"
	CodeNothingToUndo      Code = "NOTHING_TO_UNDO"
)

// Error is a typed placement rejection. RetryAfter is set for quota
// rejections so the UI can show a countdown.
type Error struct {
	Code       Code
	Message    string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: %s (retry in %s)", e.Code, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// reject builds a typed rejection.
func reject(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// AsError extracts a typed rejection from err, or nil when err is an
// infrastructure failure.
func AsError(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return nil
}
