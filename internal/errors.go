package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation         ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound           ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized       ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden          ErrorType = "FORBIDDEN"
	ErrorTypeConflict           ErrorType = "CONFLICT"
	ErrorTypeInternal           ErrorType = "INTERNAL_ERROR"
	ErrorTypeConfiguration      ErrorType = "CONFIGURATION_ERROR"
	ErrorTypeGatewayUnavailable ErrorType = "GATEWAY_UNAVAILABLE"
	ErrorTypePaymentRejected    ErrorType = "PAYMENT_REJECTED"
	ErrorTypeSignatureInvalid   ErrorType = "SIGNATURE_INVALID"
	ErrorTypeIllegalTransition  ErrorType = "ILLEGAL_TRANSITION"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidQuantity  ErrorCode = "INVALID_QUANTITY"
	ErrCodeEmptyItems       ErrorCode = "EMPTY_ITEMS"
	ErrCodeInvalidContact   ErrorCode = "INVALID_CONTACT"

	ErrCodeProductNotFound    ErrorCode = "PRODUCT_NOT_FOUND"
	ErrCodeProductUnavailable ErrorCode = "PRODUCT_UNAVAILABLE"
	ErrCodeOrderNotFound      ErrorCode = "ORDER_NOT_FOUND"
	ErrCodePaymentNotFound    ErrorCode = "PAYMENT_NOT_FOUND"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"

	ErrCodeMissingCredentials ErrorCode = "MISSING_GATEWAY_CREDENTIALS"
	ErrCodeMissingRedirectURL ErrorCode = "MISSING_REDIRECT_URL"
	ErrCodeGatewayTransport   ErrorCode = "GATEWAY_TRANSPORT"
	ErrCodeGatewayStatus      ErrorCode = "GATEWAY_HTTP_STATUS"
	ErrCodeGatewayMalformed   ErrorCode = "GATEWAY_MALFORMED_RESPONSE"
	ErrCodePaymentRejected    ErrorCode = "PAYMENT_REJECTED"
	ErrCodeSignatureMismatch  ErrorCode = "SIGNATURE_MISMATCH"
	ErrCodeSignatureMissing   ErrorCode = "SIGNATURE_MISSING"
	ErrCodeStatusRegression   ErrorCode = "STATUS_REGRESSION"
	ErrCodeAmountMismatch     ErrorCode = "AMOUNT_MISMATCH"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on Type and Code so the exported sentinels below work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Code == "" {
		return e.Type == t.Type
	}
	return e.Type == t.Type && e.Code == t.Code
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewConfigurationError reports missing or half-filled merchant settings.
func NewConfigurationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConfiguration,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewGatewayUnavailableError covers transport failures, timeouts, non-2xx and non-JSON replies.
func NewGatewayUnavailableError(message string, code ErrorCode, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeGatewayUnavailable,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// NewPaymentRejectedError keeps the gateway message verbatim.
func NewPaymentRejectedError(gatewayMessage string, gatewayCode string) *AppError {
	return &AppError{
		Type:       ErrorTypePaymentRejected,
		Code:       ErrCodePaymentRejected,
		Message:    gatewayMessage,
		StatusCode: http.StatusPaymentRequired,
		Details:    map[string]string{"gateway_error_code": gatewayCode},
	}
}

func NewSignatureInvalidError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeSignatureInvalid,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewIllegalTransitionError(from, to string) *AppError {
	return &AppError{
		Type:       ErrorTypeIllegalTransition,
		Code:       ErrCodeStatusRegression,
		Message:    fmt.Sprintf("illegal payment status transition %s -> %s", from, to),
		StatusCode: http.StatusConflict,
	}
}

var (
	ErrProductNotFound = NewNotFoundError("Product not found", ErrCodeProductNotFound)
	ErrOrderNotFound   = NewNotFoundError("Order not found", ErrCodeOrderNotFound)
	ErrPaymentNotFound = NewNotFoundError("Payment not found", ErrCodePaymentNotFound)

	ErrInvalidCredentials = NewUnauthorizedError("Invalid admin password", ErrCodeInvalidCredentials)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)

	// Type-level sentinels, matched by errors.Is regardless of code.
	ErrConfiguration      = &AppError{Type: ErrorTypeConfiguration}
	ErrValidation         = &AppError{Type: ErrorTypeValidation}
	ErrGatewayUnavailable = &AppError{Type: ErrorTypeGatewayUnavailable}
	ErrPaymentRejected    = &AppError{Type: ErrorTypePaymentRejected}
	ErrSignatureInvalid   = &AppError{Type: ErrorTypeSignatureInvalid}
	ErrIllegalTransition  = &AppError{Type: ErrorTypeIllegalTransition}
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
