package policy

import (
	"errors"
	"unicode/utf8"
)

// MinPasswordLength is the only password rule. There is no maximum.
const MinPasswordLength = 8

// PasswordWarning is shown before a backup password is chosen.
const PasswordWarning = "This password encrypts your backup. There is no password reset: " +
	"if you forget it, your identity cannot be recovered."

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrPasswordRequired = errors.New("password is required")
)

func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

func ConfirmPassword(password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}
