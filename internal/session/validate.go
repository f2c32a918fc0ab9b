package session

import (
	"unicode"

	"github.com/go-playground/validator/v10"
	"truthguard/internal/errs"
)

// PasswordMinLength is the minimum accepted password length.
const PasswordMinLength = 12

var validate = validator.New()

// ValidateEmail checks the address format locally.
func ValidateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return &errs.ValidationError{Reason: "a valid email address is required"}
	}
	return nil
}

// ValidatePassword enforces the signup password policy: minimum length 12,
// at least one lowercase letter, one uppercase letter, and one digit.
func ValidatePassword(password string) error {
	if len(password) < PasswordMinLength {
		return &errs.ValidationError{Reason: "password must be at least 12 characters long"}
	}
	var hasLower, hasUpper, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLower {
		return &errs.ValidationError{Reason: "password must contain at least one lowercase letter"}
	}
	if !hasUpper {
		return &errs.ValidationError{Reason: "password must contain at least one uppercase letter"}
	}
	if !hasDigit {
		return &errs.ValidationError{Reason: "password must contain at least one number"}
	}
	return nil
}
