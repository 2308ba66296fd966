package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies an AppError. Values are stable and appear in logs.
type ErrorType string

const (
	ErrTypeNetwork             ErrorType = "NETWORK"
	ErrTypeHTTPStatus          ErrorType = "HTTP_STATUS"
	ErrTypeParsing             ErrorType = "PARSING"
	ErrTypeMalformedFilename   ErrorType = "MALFORMED_FILENAME"
	ErrTypeInvalidDateToken    ErrorType = "INVALID_DATE_TOKEN"
	ErrTypeUnexpectedItemShape ErrorType = "UNEXPECTED_ITEM_SHAPE"
	ErrTypeUnknownItemKind     ErrorType = "UNKNOWN_ITEM_KIND"
	ErrTypeStorage             ErrorType = "STORAGE"
	ErrTypeValidation          ErrorType = "VALIDATION"
	ErrTypeConfig              ErrorType = "CONFIG"
)

// AppError is a typed error carrying a message, an optional cause and
// key/value context for logs.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *AppError) Error() string {
	msg := "[" + string(e.Type) + "] " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an AppError sentinel of the same type.
// Sentinels carry no context, so only the type is compared.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type && len(t.Context) == 0 && t.Cause == nil
}

// WithContext records key=value on e and returns e for chaining.
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context[key] = value
	return e
}

func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{Type: errType, Message: message, Cause: cause}
}

// Sentinels for errors.Is checks. Compare by type only.
var (
	ErrNetwork             = &AppError{Type: ErrTypeNetwork, Message: "network error"}
	ErrHTTPStatus          = &AppError{Type: ErrTypeHTTPStatus, Message: "unexpected HTTP status"}
	ErrParsing             = &AppError{Type: ErrTypeParsing, Message: "parsing error"}
	ErrMalformedFilename   = &AppError{Type: ErrTypeMalformedFilename, Message: "malformed filename"}
	ErrInvalidDateToken    = &AppError{Type: ErrTypeInvalidDateToken, Message: "invalid date token"}
	ErrUnexpectedItemShape = &AppError{Type: ErrTypeUnexpectedItemShape, Message: "unexpected item shape"}
	ErrUnknownItemKind     = &AppError{Type: ErrTypeUnknownItemKind, Message: "unknown item kind"}
	ErrStorage             = &AppError{Type: ErrTypeStorage, Message: "storage error"}
	ErrValidation          = &AppError{Type: ErrTypeValidation, Message: "validation error"}
	ErrConfig              = &AppError{Type: ErrTypeConfig, Message: "configuration error"}
)

func NewNetworkError(message string, cause error) *AppError {
	return NewAppError(ErrTypeNetwork, message, cause)
}

// NewHTTPStatusError is returned for any response other than 200.
func NewHTTPStatusError(url string, statusCode int) *AppError {
	return NewAppError(ErrTypeHTTPStatus, fmt.Sprintf("unexpected status %d", statusCode), nil).
		WithContext("url", url).
		WithContext("status_code", statusCode)
}

func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewMalformedFilenameError: the name has no fifth "_" segment.
func NewMalformedFilenameError(filename string) *AppError {
	return NewAppError(ErrTypeMalformedFilename, "filename has too few segments", nil).
		WithContext("filename", filename)
}

// NewInvalidDateTokenError: the fifth segment does not start with yyMMdd.
func NewInvalidDateTokenError(filename, token string, cause error) *AppError {
	return NewAppError(ErrTypeInvalidDateToken, fmt.Sprintf("date token %q does not parse", token), cause).
		WithContext("filename", filename)
}

func NewUnexpectedItemShapeError(message string) *AppError {
	return NewAppError(ErrTypeUnexpectedItemShape, message, nil)
}

func NewUnknownItemKindError(kind string) *AppError {
	return NewAppError(ErrTypeUnknownItemKind, fmt.Sprintf("unknown item kind %q", kind), nil)
}

func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

func NewValidationError(message string, cause error) *AppError {
	return NewAppError(ErrTypeValidation, message, cause)
}

func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// IsType reports whether any AppError in err's chain has the given type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Type == errType {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// TypeOf returns the type of the outermost AppError in err's chain, or "" if none
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}
