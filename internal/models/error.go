package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the storage layer
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrInternalServer = errors.New("internal server error")
)

// ErrorCode tags an authentication failure. Codes are machine-readable;
// messages are localized and deliberately vague where enumeration is a risk.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "validation_error"
	CodeInvalidCredentials ErrorCode = "invalid_credentials"
	CodeAccountLocked      ErrorCode = "account_locked"
	CodeEmailNotVerified   ErrorCode = "email_not_verified"
	CodeInternal           ErrorCode = "internal_error"
)

// AuthError is the tagged result returned by the auth core instead of
// exception-style control flow. It travels as a value through error returns.
type AuthError struct {
	Code    ErrorCode
	Message string

	// RemainingAttempts is set on invalid-credential failures (>= 0 means
	// populated); RetryAfterMinutes on lockout failures.
	RemainingAttempts int
	RetryAfterMinutes int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is lets errors.Is match two AuthErrors by code.
func (e *AuthError) Is(target error) bool {
	var other *AuthError
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// CodeOf extracts the ErrorCode from err, or CodeInternal for anything that
// is not an AuthError.
func CodeOf(err error) ErrorCode {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// User-visible messages (vi). Kept generic enough not to confirm whether an
// account exists.
const (
	msgEmptyCredentials  = "Tên đăng nhập và mật khẩu không được để trống."
	msgInvalidCreds      = "Tên đăng nhập hoặc mật khẩu không đúng."
	msgInvalidCredsLeft  = "Tên đăng nhập hoặc mật khẩu không đúng. Bạn còn %d lần thử."
	msgAccountLockedFor  = "Tài khoản tạm thời bị khóa do đăng nhập sai nhiều lần. Vui lòng thử lại sau %d phút."
	msgAccountDisabled   = "Tài khoản đã bị vô hiệu hóa. Vui lòng liên hệ quản trị viên."
	msgEmailNotVerified  = "Email chưa được xác thực. Vui lòng kiểm tra hộp thư của bạn."
	msgInternal          = "Đã xảy ra lỗi. Vui lòng thử lại sau."
	msgPasswordMismatch  = "Mật khẩu hiện tại không đúng."
	msgPasswordTooWeak   = "Mật khẩu mới không đủ mạnh."
	msgRefreshTokenError = "Phiên đăng nhập không hợp lệ. Vui lòng đăng nhập lại."
)

func NewValidationError() *AuthError {
	return &AuthError{Code: CodeValidation, Message: msgEmptyCredentials, RemainingAttempts: -1}
}

func NewInvalidCredentials(remaining int) *AuthError {
	msg := msgInvalidCreds
	if remaining >= 0 {
		msg = fmt.Sprintf(msgInvalidCredsLeft, remaining)
	}
	return &AuthError{Code: CodeInvalidCredentials, Message: msg, RemainingAttempts: remaining}
}

func NewAccountLocked(retryAfterMinutes int) *AuthError {
	return &AuthError{
		Code:              CodeAccountLocked,
		Message:           fmt.Sprintf(msgAccountLockedFor, retryAfterMinutes),
		RemainingAttempts: -1,
		RetryAfterMinutes: retryAfterMinutes,
	}
}

func NewAccountDisabled() *AuthError {
	return &AuthError{Code: CodeAccountLocked, Message: msgAccountDisabled, RemainingAttempts: -1}
}

func NewEmailNotVerified() *AuthError {
	return &AuthError{Code: CodeEmailNotVerified, Message: msgEmailNotVerified, RemainingAttempts: -1}
}

func NewInternalError() *AuthError {
	return &AuthError{Code: CodeInternal, Message: msgInternal, RemainingAttempts: -1}
}

func NewPasswordMismatch() *AuthError {
	return &AuthError{Code: CodeInvalidCredentials, Message: msgPasswordMismatch, RemainingAttempts: -1}
}

func NewPasswordTooWeak() *AuthError {
	return &AuthError{Code: CodeValidation, Message: msgPasswordTooWeak, RemainingAttempts: -1}
}

func NewInvalidSession() *AuthError {
	return &AuthError{Code: CodeInvalidCredentials, Message: msgRefreshTokenError, RemainingAttempts: -1}
}
