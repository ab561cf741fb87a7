package policy

import (
	"errors"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/domain"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/ports"
)

const genericFailure = "Something went wrong. Please try again."

var messages = []struct {
	err error
	msg string
}{
	{ErrPasswordTooShort, "Password must be at least 8 characters"},
	{ErrPasswordMismatch, "Passwords do not match"},
	{ErrPasswordRequired, "Enter a password"},
	{ErrInvalidBackupFormat, "Invalid backup file format"},
	{domain.ErrBusy, "Please wait for the current operation to finish"},
	{domain.ErrDownloadRequired, "Download your backup before continuing"},
	{domain.ErrNoIdentityInBackup, "No identity found in backup"},
	{domain.ErrNoPrivateKeyFound, "No private key found"},
	{domain.ErrSignInFailed, "Failed to sign in"},
	{domain.ErrEncryptFailed, "Failed to encrypt backup"},
	{domain.ErrStorageFailed, "Could not save the backup on this device"},
	{domain.ErrBackendUnavailable, "Could not reach the server. Check your connection and try again."},
	{domain.ErrTransferPassword, "Incorrect password for the existing account"},
	{domain.ErrRateLimited, "Too many attempts. Please wait before trying again."},
	{domain.ErrNoBackupMaterial, "No backup found on this device"},
	{domain.ErrInvalidConflict, genericFailure},
	{domain.ErrDialogClosed, "This conflict has already been resolved"},
	{domain.ErrTransferRejected, "The account link could not be transferred. Please try again."},
}

// UserMessage converts any flow error into text for the current screen.
// Backend messages are shown verbatim; everything unknown gets a generic line.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	var status ports.StatusError
	if errors.As(err, &status) && status.Error() != "" {
		return status.Error()
	}
	return genericFailure
}
