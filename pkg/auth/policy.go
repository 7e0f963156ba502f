package auth

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	MinPasswordLen = 8
	MaxPasswordLen = 128
)

// PasswordPolicy validates candidate passwords. The auth core treats the
// policy as pluggable; this package ships the default.
type PasswordPolicy interface {
	Validate(password string) error
}

// PasswordValidationError holds validation error details (internal use only)
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	// Generic message to users - specific requirements would aid attackers
	return "invalid password"
}

// Common weak passwords to reject
var commonPasswords = map[string]bool{
	"password":    true,
	"12345678":    true,
	"qwerty":      true,
	"abc123":      true,
	"password123": true,
	"123456":      true,
	"admin":       true,
	"letmein":     true,
	"welcome":     true,
	"matkhau":     true,
	"matkhau123":  true,
	"passw0rd":    true,
	"trustno1":    true,
}

// DefaultPolicy enforces length, character-class, and common-password rules.
type DefaultPolicy struct{}

func NewDefaultPolicy() *DefaultPolicy {
	return &DefaultPolicy{}
}

func (p *DefaultPolicy) Validate(password string) error {
	errs := make([]string, 0)

	if len(password) < MinPasswordLen {
		errs = append(errs, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		errs = append(errs, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	hasUpper := false
	hasLower := false
	hasDigit := false

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper {
		errs = append(errs, "must contain at least one uppercase letter")
	}
	if !hasLower {
		errs = append(errs, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		errs = append(errs, "must contain at least one digit")
	}

	if commonPasswords[strings.ToLower(password)] {
		errs = append(errs, "is too common, please choose a more unique password")
	}

	if len(errs) > 0 {
		return &PasswordValidationError{Errors: errs}
	}

	return nil
}
