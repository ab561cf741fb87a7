package domain

import "errors"

var (
	ErrIllegalTransition  = errors.New("illegal signup state transition")
	ErrBusy               = errors.New("another signup operation is in progress")
	ErrDownloadRequired   = errors.New("backup must be downloaded before submitting")
	ErrNoIdentityInBackup = errors.New("no identity found in backup")
	ErrNoPrivateKeyFound  = errors.New("no private key found")
	ErrSignInFailed       = errors.New("failed to sign in")
	ErrEncryptFailed      = errors.New("failed to encrypt backup")
	ErrStorageFailed      = errors.New("failed to save backup on this device")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrInvalidConflict    = errors.New("conflict data is inconsistent")
	ErrTransferPassword   = errors.New("password does not unlock the existing identity")
	ErrTransferRejected   = errors.New("link transfer was rejected")
	ErrRateLimited        = errors.New("too many attempts")
	ErrDialogClosed       = errors.New("conflict already resolved")
	ErrNoBackupMaterial   = errors.New("no backup available on this device")
)
