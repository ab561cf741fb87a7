package domain

import "github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"

type Event interface {
	isEvent()
}

type Generated struct {
	Backup models.MasterBackup
}

type ImportedClear struct {
	Backup models.MasterBackup
}

// ImportedEncrypted is emitted after an already encrypted file was written to
// the durable tier.
type ImportedEncrypted struct{}

type PasswordAccepted struct {
	Password string
}

type BackupDownloaded struct{}

type SubmitStarted struct{}

type SubmitFailed struct {
	Message string
}

type SubmitCompleted struct {
	Outcome Outcome
}

type ConflictTransferred struct{}

type ConflictSwitched struct{}

type Back struct{}

func (Generated) isEvent()           {}
func (ImportedClear) isEvent()       {}
func (ImportedEncrypted) isEvent()   {}
func (PasswordAccepted) isEvent()    {}
func (BackupDownloaded) isEvent()    {}
func (SubmitStarted) isEvent()       {}
func (SubmitFailed) isEvent()        {}
func (SubmitCompleted) isEvent()     {}
func (ConflictTransferred) isEvent() {}
func (ConflictSwitched) isEvent()    {}
func (Back) isEvent()                {}

type OutcomeKind string

const (
	OutcomeOAuthLink OutcomeKind = "oauth-link"
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeConflict  OutcomeKind = "conflict"
)

// Outcome is the result of a completed submit sequence.
type Outcome struct {
	Kind        OutcomeKind
	IdentityKey string
	Session     models.Session
	Conflict    models.ConflictState
	LinkWarning string
}
