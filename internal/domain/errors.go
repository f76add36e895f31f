package domain

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	CodeValidation       ErrorCode = "VALIDATION_ERROR"
	CodeInvalidLineItem  ErrorCode = "INVALID_LINE_ITEM"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeDuplicate        ErrorCode = "DUPLICATE"
	CodeAuthFailed       ErrorCode = "AUTH_FAILED"
	CodeSyncFailed       ErrorCode = "SYNC_FAILED"
	CodeCorruptState     ErrorCode = "CORRUPT_STATE"
)

// Error is the user-facing failure returned by every core operation.
// Two errors match under errors.Is when their codes are equal.
type Error struct {
	Code    ErrorCode
	Message string
	Field   string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	var other *Error
	if !stderrors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// HTTPStatus maps the code onto the status the API responds with.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeValidation, CodeInvalidLineItem:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeDuplicate:
		return http.StatusConflict
	case CodeAuthFailed:
		return http.StatusUnauthorized
	case CodeSyncFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Localized returns the message for lang; unknown languages get English.
func (e *Error) Localized(lang Language) string {
	if lang == LanguageBN {
		if msg, ok := bengaliMessages[e.Code]; ok {
			return msg
		}
	}
	return e.Error()
}

// Sentinels for errors.Is checks.
var (
	ErrValidation       = &Error{Code: CodeValidation, Message: "invalid input"}
	ErrInvalidLineItem  = &Error{Code: CodeInvalidLineItem, Message: "invalid sale line"}
	ErrNotFound         = &Error{Code: CodeNotFound, Message: "not found"}
	ErrPermissionDenied = &Error{Code: CodePermissionDenied, Message: "permission denied"}
	ErrDuplicate        = &Error{Code: CodeDuplicate, Message: "already exists"}
	ErrAuthFailed       = &Error{Code: CodeAuthFailed, Message: "invalid credentials"}
	ErrSyncFailed       = &Error{Code: CodeSyncFailed, Message: "changes saved locally but could not be synced"}
	ErrCorruptState     = &Error{Code: CodeCorruptState, Message: "stored data is unreadable"}
)

var bengaliMessages = map[ErrorCode]string{
	CodeValidation:       "ভুল তথ্য দেওয়া হয়েছে",
	CodeInvalidLineItem:  "বিক্রয়ের পণ্য সঠিক নয়",
	CodeNotFound:         "খুঁজে পাওয়া যায়নি",
	CodePermissionDenied: "অনুমতি নেই",
	CodeDuplicate:        "ইতিমধ্যে বিদ্যমান",
	CodeAuthFailed:       "ইমেইল বা পাসওয়ার্ড ভুল",
	CodeSyncFailed:       "তথ্য সংরক্ষিত হয়েছে কিন্তু সিঙ্ক হয়নি",
	CodeCorruptState:     "সংরক্ষিত তথ্য পড়া যাচ্ছে না",
}

func Validation(field, message string) *Error {
	return &Error{Code: CodeValidation, Message: message, Field: field}
}

func InvalidLineItem(index int, message string) *Error {
	return &Error{Code: CodeInvalidLineItem, Message: message, Field: fmt.Sprintf("lines[%d]", index)}
}

func NotFound(what string) *Error {
	return &Error{Code: CodeNotFound, Message: what + " not found"}
}

func PermissionDenied(capability string) *Error {
	return &Error{Code: CodePermissionDenied, Message: fmt.Sprintf("role is not allowed to %s", capability)}
}

func Duplicate(message string) *Error {
	return &Error{Code: CodeDuplicate, Message: message}
}

func AuthFailed() *Error {
	return &Error{Code: CodeAuthFailed, Message: ErrAuthFailed.Message}
}

func SyncFailed(cause error) *Error {
	msg := ErrSyncFailed.Message
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &Error{Code: CodeSyncFailed, Message: msg}
}

func CorruptState(cause error) *Error {
	msg := ErrCorruptState.Message
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &Error{Code: CodeCorruptState, Message: msg}
}

// AsError extracts the domain error from err's chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf returns the domain code of err, or "" for infrastructure errors.
func CodeOf(err error) ErrorCode {
	if de, ok := AsError(err); ok {
		return de.Code
	}
	return ""
}
