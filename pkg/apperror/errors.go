package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Ledger Business Logic (WAL) ----

func ErrInvalidAmount() *AppError {
	return New("WAL_001", "Amount must be greater than 0", http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New("WAL_002", "Insufficient balance in wallet", http.StatusBadRequest)
}

func ErrSelfTransfer() *AppError {
	return New("WAL_003", "Cannot transfer to your own wallet", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("WAL_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrDuplicateReference() *AppError {
	return New("WAL_005", "Transaction reference already exists", http.StatusConflict)
}

// ---- Security & Authentication (SEC) ----

func ErrInvalidSignature() *AppError {
	return New("SEC_001", "Invalid webhook signature", http.StatusUnauthorized)
}

func ErrInvalidCredentials() *AppError {
	return New("SEC_002", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("SEC_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInvalidAPIKey() *AppError {
	return New("SEC_004", "Invalid API key", http.StatusUnauthorized)
}

func ErrPermissionDenied(permission string) *AppError {
	return New("SEC_005", fmt.Sprintf("Missing required permission: %s", permission), http.StatusForbidden)
}

func ErrEmailExists() *AppError {
	return New("SEC_006", "Email already registered", http.StatusConflict)
}

// ---- External Gateway (GTW) ----

func ErrGateway(err error) *AppError {
	return Wrap("GTW_001", "Payment gateway request failed", http.StatusBadGateway, err)
}

// ---- API Keys (KEY) ----

func ErrKeyLimitReached() *AppError {
	return New("KEY_001", "Maximum 5 active API keys allowed per user", http.StatusBadRequest)
}

func ErrKeyNotExpired() *AppError {
	return New("KEY_002", "API key has not expired yet", http.StatusBadRequest)
}

func ErrInvalidExpiry() *AppError {
	return New("KEY_003", "Invalid expiry format. Use: 1H, 1D, 1M, or 1Y", http.StatusBadRequest)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a caller-correctable validation error.
func Validation(message string) *AppError {
	return New("WAL_000", message, http.StatusBadRequest)
}
