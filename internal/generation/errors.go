package generation

import (
	"fmt"
	"net/http"
	"strings"
)

// Code is the machine-readable error code returned to API clients.
type Code string

const (
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeInvalidBody         Code = "INVALID_BODY"
	CodePromptRequired      Code = "PROMPT_REQUIRED"
	CodeModelRequired       Code = "MODEL_REQUIRED"
	CodeUnsupportedModel    Code = "UNSUPPORTED_MODEL"
	CodeInvalidSize         Code = "INVALID_SIZE"
	CodeUnsupportedSize     Code = "UNSUPPORTED_SIZE"
	CodeInsufficientCredits Code = "INSUFFICIENT_CREDITS"
	CodeCreditsCheckFailed  Code = "CREDITS_CHECK_FAILED"
	CodeAPIKeyNotConfigured Code = "API_KEY_NOT_CONFIGURED"
	CodeCreditsSpendFailed  Code = "CREDITS_SPEND_FAILED"
	CodeGenerationFailed    Code = "GENERATION_FAILED"
	CodeGenerationTimeout   Code = "GENERATION_TIMEOUT"
)

// Error is a failed generation request: HTTP status, code and the message
// shown to the user. Err keeps the underlying cause for logs.
type Error struct {
	Code    Code
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, status int, msg string) *Error {
	return &Error{Code: code, Status: status, Message: msg}
}

// ErrUnauthorized is returned when no user session could be resolved.
func ErrUnauthorized() *Error {
	return newError(CodeUnauthorized, http.StatusUnauthorized, "User authentication required")
}

func ErrInvalidBody(err error) *Error {
	e := newError(CodeInvalidBody, http.StatusBadRequest, "Invalid JSON body")
	e.Err = err
	return e
}

func ErrUnsupportedModel(id string, available []string) *Error {
	return newError(CodeUnsupportedModel, http.StatusBadRequest,
		fmt.Sprintf("Unsupported model: %s. Available models: %s", id, strings.Join(available, ", ")))
}

func ErrUnsupportedSize(size, model string, supported []string) *Error {
	return newError(CodeUnsupportedSize, http.StatusBadRequest,
		fmt.Sprintf("Size %s is not supported by model %s. Supported sizes: %s", size, model, strings.Join(supported, ", ")))
}

func ErrInsufficientCredits(required, balance int) *Error {
	return newError(CodeInsufficientCredits, http.StatusPaymentRequired,
		fmt.Sprintf("Not enough credits. Required: %d, current balance: %d", required, balance))
}

func ErrCreditsCheckFailed(err error) *Error {
	e := newError(CodeCreditsCheckFailed, http.StatusInternalServerError, "Failed to check credits balance")
	e.Err = err
	return e
}

func ErrCreditsSpendFailed(err error) *Error {
	e := newError(CodeCreditsSpendFailed, http.StatusInternalServerError, "Failed to spend credits. Please try again later.")
	e.Err = err
	return e
}

func ErrAPIKeyNotConfigured(displayName string) *Error {
	return newError(CodeAPIKeyNotConfigured, http.StatusInternalServerError, displayName+" API key not configured")
}

func ErrGenerationTimeout(err error) *Error {
	e := newError(CodeGenerationTimeout, http.StatusGatewayTimeout, "Image generation timed out")
	e.Err = err
	return e
}

func ErrGenerationFailed(msg string, err error) *Error {
	e := newError(CodeGenerationFailed, http.StatusInternalServerError, msg)
	e.Err = err
	return e
}
