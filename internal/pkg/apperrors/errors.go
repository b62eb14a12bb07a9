package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	// Ledger validation failures
	ErrCapExceeded           ErrorType = "CAP_EXCEEDED"
	ErrNotAnUpgrade          ErrorType = "NOT_AN_UPGRADE"
	ErrNoProfile             ErrorType = "NO_PROFILE"
	ErrProfileRevoked        ErrorType = "PROFILE_REVOKED"
	ErrProfileExpired        ErrorType = "PROFILE_EXPIRED"
	ErrNotWhitelisted        ErrorType = "NOT_WHITELISTED"
	ErrAlreadyInitialized    ErrorType = "ALREADY_INITIALIZED"
	ErrPoolNotFound          ErrorType = "POOL_NOT_FOUND"
	ErrInsufficientBalance   ErrorType = "INSUFFICIENT_BALANCE"
	ErrInsufficientAllowance ErrorType = "INSUFFICIENT_ALLOWANCE"
	ErrInsufficientFaceValue ErrorType = "INSUFFICIENT_FACE_VALUE"
	ErrExceedsTargetLTV      ErrorType = "EXCEEDS_TARGET_LTV"
	ErrHealthFactorOK        ErrorType = "HEALTH_FACTOR_OK"
	ErrOverRepay             ErrorType = "OVER_REPAY"

	// Boundary failures
	ErrExternalProtocol ErrorType = "EXTERNAL_PROTOCOL_ERROR"
	ErrAuthFailed       ErrorType = "AUTH_FAILED"
	ErrInvalidRequest   ErrorType = "INVALID_REQUEST"
	ErrNotFound         ErrorType = "NOT_FOUND"
	ErrInternal         ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func NewAuthFailed(msg string) *AppError {
	return New(ErrAuthFailed, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrCapExceeded, ErrNotAnUpgrade, ErrNotWhitelisted,
		ErrInsufficientBalance, ErrInsufficientAllowance, ErrInsufficientFaceValue,
		ErrExceedsTargetLTV, ErrHealthFactorOK, ErrOverRepay,
		ErrProfileRevoked, ErrProfileExpired, ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrAlreadyInitialized:
		return http.StatusConflict
	case ErrAuthFailed:
		return http.StatusForbidden
	case ErrNoProfile, ErrPoolNotFound, ErrNotFound:
		return http.StatusNotFound
	case ErrExternalProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrCapExceeded:
		return "Retry with an amount within the investor's remaining capacity."
	case ErrExceedsTargetLTV:
		return "Retry with a smaller borrow amount."
	case ErrHealthFactorOK:
		return "Emergency deleverage is only permitted below the health factor floor."
	case ErrNotWhitelisted:
		return "Whitelist the destination address before transferring."
	case ErrExternalProtocol:
		return "Lending protocol call failed; retry with backoff."
	case ErrAuthFailed:
		return "Check the role key for this operation."
	default:
		return ""
	}
}
