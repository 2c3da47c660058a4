package core

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// PartialWriteError reports that a multi-step write succeeded for some but
// not all steps, and the storage layer could not roll the earlier steps back.
// It carries the transaction and the step that failed so operators can
// reconcile manually.
type PartialWriteError struct {
	TransactionID uuid.UUID
	Step          string
	Err           error
}

func NewPartialWriteError(txID uuid.UUID, step string, err error) error {
	return &PartialWriteError{TransactionID: txID, Step: step, Err: err}
}

func (err PartialWriteError) Error() string {
	return fmt.Sprintf("partial write on transaction %s at step %q: %v", err.TransactionID, err.Step, err.Err)
}

func (err PartialWriteError) Unwrap() error { return err.Err }

func IsPartialWrite(err error) bool {
	_, ok := errors.Cause(err).(*PartialWriteError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
