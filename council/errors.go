package council

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested conversation id does not exist.
var ErrNotFound = errors.New("conversation not found")

// Turn-fatal error codes. Per-model failures never carry these; they live
// inside the turn's result maps instead.
const (
	// CodeNoStage1Responses: every configured member failed stage 1, so
	// there is nothing to review or synthesize.
	CodeNoStage1Responses = "NO_STAGE1_RESPONSES"

	// CodeChairmanFailure: the single stage-3 call failed or returned
	// unusable output.
	CodeChairmanFailure = "CHAIRMAN_FAILURE"

	// CodePersistenceFailure: the completed turn could not be committed.
	CodePersistenceFailure = "PERSISTENCE_FAILURE"
)

// TurnError is a turn-fatal failure of Submit. No partial turn is committed
// when a TurnError is returned; the conversation is left exactly as it was.
type TurnError struct {
	// Code is one of the Code* constants.
	Code string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *TurnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying error for errors.Is/As chains.
func (e *TurnError) Unwrap() error { return e.Err }

func turnErrorf(code, format string, args ...any) *TurnError {
	return &TurnError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func turnError(code string, err error, message string) *TurnError {
	return &TurnError{Code: code, Message: message, Err: err}
}

// IsTurnFatal reports whether err is a turn-fatal failure with the given
// code. Convenience for hosts that branch on failure class.
func IsTurnFatal(err error, code string) bool {
	var te *TurnError
	return errors.As(err, &te) && te.Code == code
}
