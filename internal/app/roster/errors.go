package roster

import (
	"fmt"
	"net/http"

	"github.com/campus-tech-club/roster-api/internal/domain"
)

const (
	CodeLoadFailed           = "LOAD_FAILED"
	CodeWriteFailed          = "WRITE_FAILED"
	CodeOrderSaveFailed      = "ORDER_SAVE_FAILED"
	CodeValidation           = "VALIDATION_ERROR"
	CodeNotFound             = "ENTRY_NOT_FOUND"
	CodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	CodeNotReordering        = "NOT_REORDERING"
	CodeReorderInProgress    = "REORDER_IN_PROGRESS"
	CodeInvalidPosition      = "INVALID_POSITION"
)

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any

	// Err is the underlying cause, when the error came from a collaborator.
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// OrderSaveError reports a settle-all order save in which some row updates failed.
// Rows that succeeded keep their new order; nothing is rolled back.
type OrderSaveError struct {
	Collection  domain.CollectionName
	FailedCount int
	Total       int
	// Sample is the first failure observed, in collection order.
	Sample error
}

func (e *OrderSaveError) Error() string {
	if e == nil {
		return ""
	}
	sample := "unknown error"
	if e.Sample != nil {
		sample = e.Sample.Error()
	}
	return fmt.Sprintf("failed to update order for %d of %d %s: %s", e.FailedCount, e.Total, e.Collection, sample)
}

func (e *OrderSaveError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Sample
}

// AsError converts e to the common application error shape.
func (e *OrderSaveError) AsError() *Error {
	sample := ""
	if e.Sample != nil {
		sample = e.Sample.Error()
	}
	return &Error{
		Status:  http.StatusBadGateway,
		Code:    CodeOrderSaveFailed,
		Message: e.Error(),
		Details: map[string]any{
			"failedCount": e.FailedCount,
			"total":       e.Total,
			"sampleError": sample,
		},
		Err: e.Sample,
	}
}

func loadFailed(c domain.CollectionName, err error) *Error {
	return &Error{
		Status:  http.StatusBadGateway,
		Code:    CodeLoadFailed,
		Message: fmt.Sprintf("failed to load %s", c),
		Err:     err,
	}
}

func writeFailed(op string, err error) *Error {
	return &Error{
		Status:  http.StatusBadGateway,
		Code:    CodeWriteFailed,
		Message: op + " failed",
		Err:     err,
	}
}

func notFound(id domain.EntryID) *Error {
	return &Error{
		Status:  http.StatusNotFound,
		Code:    CodeNotFound,
		Message: "entry not found",
		Details: map[string]any{"entryId": string(id)},
	}
}

// ValidationError builds a 422 error for a single invalid field.
func ValidationError(field, problem string) *Error {
	return &Error{
		Status:  http.StatusUnprocessableEntity,
		Code:    CodeValidation,
		Message: "invalid " + field,
		Details: map[string]any{field: problem},
	}
}
