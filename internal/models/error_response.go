package models

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind - класс ошибки, который видит вызывающая сторона.
type ErrorKind string

const (
	KindValidation        ErrorKind = "ValidationError"
	KindForbidden         ErrorKind = "Forbidden"
	KindInvalidTransition ErrorKind = "InvalidTransition"
	KindNotEditable       ErrorKind = "NotEditable"
	KindNotFound          ErrorKind = "NotFound"
	KindConflict          ErrorKind = "Conflict"
	KindBadRequest        ErrorKind = "BadRequest"
	KindPartialAcceptance ErrorKind = "PartialAcceptanceFailure"
)

// Образцы для errors.Is: сравнение идет по Kind.
var (
	ErrValidation        = &ErrorResponse{Kind: KindValidation}
	ErrForbidden         = &ErrorResponse{Kind: KindForbidden}
	ErrInvalidTransition = &ErrorResponse{Kind: KindInvalidTransition}
	ErrNotEditable       = &ErrorResponse{Kind: KindNotEditable}
	ErrNotFound          = &ErrorResponse{Kind: KindNotFound}
	ErrConflict          = &ErrorResponse{Kind: KindConflict}
	ErrBadRequest        = &ErrorResponse{Kind: KindBadRequest}
)

// Violation описывает нарушенное правило проверки.
type Violation struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Rule
}

// ErrorResponse описывает ошибку с кодом, классом и сообщением.
type ErrorResponse struct {
	StatusCode int         `json:"-"`
	Kind       ErrorKind   `json:"kind"`
	Message    string      `json:"reason"`
	Violations []Violation `json:"violations,omitempty"`
}

// NewErrorResponse создает новую ошибку с кодом и сообщением.
func NewErrorResponse(statusCode int, kind ErrorKind, message string) *ErrorResponse {
	return &ErrorResponse{
		StatusCode: statusCode,
		Kind:       kind,
		Message:    message,
	}
}

// NewValidationError создает ошибку проверки со списком нарушений.
func NewValidationError(violations []Violation) *ErrorResponse {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, v.String())
	}
	return &ErrorResponse{
		StatusCode: http.StatusUnprocessableEntity,
		Kind:       KindValidation,
		Message:    "validation failed: " + strings.Join(parts, "; "),
		Violations: violations,
	}
}

func NewForbidden(message string) *ErrorResponse {
	return NewErrorResponse(http.StatusForbidden, KindForbidden, message)
}

func NewInvalidTransition(from, to ProposalStatus) *ErrorResponse {
	return NewErrorResponse(http.StatusConflict, KindInvalidTransition, fmt.Sprintf("cannot transition proposal from %s to %s", from, to))
}

func NewNotEditable(status ProposalStatus) *ErrorResponse {
	return NewErrorResponse(http.StatusConflict, KindNotEditable, fmt.Sprintf("proposal in status %s cannot be edited", status))
}

func NewNotFound(message string) *ErrorResponse {
	return NewErrorResponse(http.StatusNotFound, KindNotFound, message)
}

func NewConflict(message string) *ErrorResponse {
	return NewErrorResponse(http.StatusConflict, KindConflict, message)
}

func NewBadRequest(message string) *ErrorResponse {
	return NewErrorResponse(http.StatusBadRequest, KindBadRequest, message)
}

// Реализация метода Error() для удовлетворения интерфейса error.
func (e *ErrorResponse) Error() string {
	return e.Message
}

// Is сравнивает ошибки по классу.
func (e *ErrorResponse) Is(target error) bool {
	t, ok := target.(*ErrorResponse)
	return ok && t.Kind == e.Kind
}

// AcceptanceStep - шаг каскада принятия предложения.
type AcceptanceStep string

const (
	StepAcceptTarget   AcceptanceStep = "accept_target"
	StepRejectSiblings AcceptanceStep = "reject_siblings"
	StepAwardProject   AcceptanceStep = "award_project"
)

// PartialAcceptanceError сообщает, что каскад принятия выполнен не полностью.
// Инварианты проекта могут быть временно нарушены до повторного вызова.
type PartialAcceptanceError struct {
	OperationID        string         `json:"operationId"`
	ProjectID          string         `json:"projectId"`
	FailedStep         AcceptanceStep `json:"failedStep"`
	AcceptedProposalID string         `json:"acceptedProposalId,omitempty"`
	RejectedSiblingIDs []string       `json:"rejectedSiblingIds"`
	PendingSiblingIDs  []string       `json:"pendingSiblingIds"`
	ProjectAwarded     bool           `json:"projectAwarded"`
	Err                error          `json:"-"`
}

func (e *PartialAcceptanceError) Error() string {
	return fmt.Sprintf("partial acceptance failure at step %s (operation %s, project %s): %v",
		e.FailedStep, e.OperationID, e.ProjectID, e.Err)
}

func (e *PartialAcceptanceError) Unwrap() error {
	return e.Err
}

// AsErrorResponse приводит произвольную ошибку к ErrorResponse, если это возможно.
func AsErrorResponse(err error) (*ErrorResponse, bool) {
	var resp *ErrorResponse
	if errors.As(err, &resp) {
		return resp, true
	}
	return nil, false
}
