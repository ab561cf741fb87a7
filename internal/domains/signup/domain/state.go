package domain

import "github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"

type Step string

const (
	StepIntro      Step = "intro"
	StepPassword   Step = "password"
	StepConfirm    Step = "confirm"
	StepSubmitting Step = "submitting"
	StepOAuthLink  Step = "oauth-link"
	StepSuccess    Step = "success"
	StepConflict   Step = "conflict"
	StepSignIn     Step = "signin"
)

// State is the closed set of signup states. Each variant carries only the
// data that is meaningful in it.
type State interface {
	Step() Step
	isState()
}

type Intro struct {
	Err string
}

type Password struct {
	Backup    models.MasterBackup
	Importing bool
	Err       string
}

// ConfirmAwaitingDownload is the confirm step before the backup file has been
// produced. It cannot be submitted.
type ConfirmAwaitingDownload struct {
	Backup    models.MasterBackup
	Importing bool
	Password  string
	Err       string
}

// ConfirmReady is the only state that accepts SubmitStarted.
type ConfirmReady struct {
	Backup    models.MasterBackup
	Importing bool
	Password  string
	Err       string
}

type Submitting struct {
	Backup    models.MasterBackup
	Importing bool
	Password  string
}

type OAuthLink struct {
	IdentityKey string
	// Warning is set when a pending OAuth account could not be linked for a
	// reason other than a conflict.
	Warning string
}

type Success struct {
	IdentityKey string
}

type Conflict struct {
	Conflict models.ConflictState
	Backup   models.MasterBackup
}

type SignInRedirect struct {
	Reason RedirectReason
}

type RedirectReason string

const (
	RedirectEncryptedImport RedirectReason = "encrypted-import"
	RedirectSwitched        RedirectReason = "switched"
)

func (Intro) Step() Step                   { return StepIntro }
func (Password) Step() Step                { return StepPassword }
func (ConfirmAwaitingDownload) Step() Step { return StepConfirm }
func (ConfirmReady) Step() Step            { return StepConfirm }
func (Submitting) Step() Step              { return StepSubmitting }
func (OAuthLink) Step() Step               { return StepOAuthLink }
func (Success) Step() Step                 { return StepSuccess }
func (Conflict) Step() Step                { return StepConflict }
func (SignInRedirect) Step() Step          { return StepSignIn }

func (Intro) isState()                   {}
func (Password) isState()                {}
func (ConfirmAwaitingDownload) isState() {}
func (ConfirmReady) isState()            {}
func (Submitting) isState()              {}
func (OAuthLink) isState()               {}
func (Success) isState()                 {}
func (Conflict) isState()                {}
func (SignInRedirect) isState()          {}

// CanSubmit reports whether the confirm action is enabled.
func CanSubmit(s State) bool {
	_, ok := s.(ConfirmReady)
	return ok
}

// IsBackupDownloaded reports the download flag of a confirm state.
func IsBackupDownloaded(s State) bool {
	switch s.(type) {
	case ConfirmReady, Submitting:
		return true
	default:
		return false
	}
}

// IsImporting is true while the in-memory backup came from a file.
func IsImporting(s State) bool {
	switch v := s.(type) {
	case Password:
		return v.Importing
	case ConfirmAwaitingDownload:
		return v.Importing
	case ConfirmReady:
		return v.Importing
	case Submitting:
		return v.Importing
	default:
		return false
	}
}

// Backup returns the in-memory master backup held by s, if any.
func Backup(s State) (models.MasterBackup, bool) {
	switch v := s.(type) {
	case Password:
		return v.Backup, true
	case ConfirmAwaitingDownload:
		return v.Backup, true
	case ConfirmReady:
		return v.Backup, true
	case Submitting:
		return v.Backup, true
	case Conflict:
		return v.Backup, true
	default:
		return models.MasterBackup{}, false
	}
}

// BapID is the first identity key of the in-memory backup.
func BapID(s State) string {
	switch v := s.(type) {
	case OAuthLink:
		return v.IdentityKey
	case Success:
		return v.IdentityKey
	case Conflict:
		return v.Conflict.CurrentIdentityKey
	}
	b, ok := Backup(s)
	if !ok {
		return ""
	}
	return b.FirstIdentityKey()
}

// ErrorMessage is the inline error attached to s.
func ErrorMessage(s State) string {
	switch v := s.(type) {
	case Intro:
		return v.Err
	case Password:
		return v.Err
	case ConfirmAwaitingDownload:
		return v.Err
	case ConfirmReady:
		return v.Err
	default:
		return ""
	}
}

// WithError attaches an inline error without changing the step. States that
// do not display errors are returned unchanged.
func WithError(s State, msg string) State {
	switch v := s.(type) {
	case Intro:
		v.Err = msg
		return v
	case Password:
		v.Err = msg
		return v
	case ConfirmAwaitingDownload:
		v.Err = msg
		return v
	case ConfirmReady:
		v.Err = msg
		return v
	default:
		return s
	}
}
