package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/domain"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/policy"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

// Flow is one signup or restore attempt. At most one mutating operation runs
// at a time; a second one fails with domain.ErrBusy instead of waiting.
type Flow struct {
	deps      Deps
	callbacks DialogCallbacks

	mu       sync.Mutex
	state    domain.State
	loading  bool
	conflict *ConflictDialog
	onChange func(domain.State)
}

type FlowOption func(*Flow)

// WithStateListener is called after every state change, outside the flow lock.
func WithStateListener(fn func(domain.State)) FlowOption {
	return func(f *Flow) { f.onChange = fn }
}

// WithConflictCallbacks forwards the conflict dialog outcomes after the flow
// has applied them.
func WithConflictCallbacks(cb DialogCallbacks) FlowOption {
	return func(f *Flow) { f.callbacks = cb }
}

func NewFlow(deps Deps, opts ...FlowOption) (*Flow, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	f := &Flow{deps: deps.withDefaults(), state: domain.Intro{}}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Flow) State() domain.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// Conflict returns the open dialog while the flow is in the conflict state.
func (f *Flow) Conflict() *ConflictDialog {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.state.(domain.Conflict); !ok {
		return nil
	}
	return f.conflict
}

// Generate creates a fresh identity and moves to the password step.
func (f *Flow) Generate() error {
	if err := f.acquire(); err != nil {
		return err
	}
	defer f.release()

	if _, ok := f.State().(domain.Intro); !ok {
		return f.dispatch(domain.Generated{})
	}
	backup, err := f.deps.Identity.Generate(f.deps.Now())
	if err != nil {
		f.deps.Metrics.Error(categoryCrypto)
		f.fail(err)
		return err
	}
	return f.dispatch(domain.Generated{Backup: backup})
}

// Import classifies raw and either stores an encrypted file and redirects to
// sign-in, or moves a cleartext master backup to the password step.
func (f *Flow) Import(ctx context.Context, raw []byte) error {
	if err := f.acquire(); err != nil {
		return err
	}
	defer f.release()

	if _, ok := f.State().(domain.Intro); !ok {
		return f.dispatch(domain.ImportedClear{})
	}

	switch file := policy.ClassifyImportFile(raw).(type) {
	case policy.EncryptedBackupFile:
		if err := f.deps.Store.SaveEncryptedBackup(ctx, file.Stored); err != nil {
			f.deps.Metrics.Error(categoryStorage)
			err = fmt.Errorf("%w: %v", domain.ErrStorageFailed, err)
			f.fail(err)
			return err
		}
		f.deps.Logger.Info("encrypted backup imported", "component", "signup", "operation", "import", "bap_id", file.BapID)
		return f.dispatch(domain.ImportedEncrypted{})
	case policy.ClearMasterBackupFile:
		return f.dispatch(domain.ImportedClear{Backup: file.Backup})
	case policy.InvalidBackupFile:
		f.deps.Metrics.Error(categoryValidation)
		f.fail(file.Err)
		return file.Err
	}
	return policy.ErrInvalidBackupFormat
}

// SubmitPassword validates the candidate locally. No crypto or network call
// happens here.
func (f *Flow) SubmitPassword(password string) error {
	if err := f.acquire(); err != nil {
		return err
	}
	defer f.release()

	if _, ok := f.State().(domain.Password); !ok {
		return f.dispatch(domain.PasswordAccepted{})
	}
	if err := policy.ValidatePassword(password); err != nil {
		f.deps.Metrics.Error(categoryValidation)
		f.fail(err)
		return err
	}
	return f.dispatch(domain.PasswordAccepted{Password: password})
}

// DownloadBackup produces the encrypted backup file and sets the download flag.
func (f *Flow) DownloadBackup() ([]byte, error) {
	if err := f.acquire(); err != nil {
		return nil, err
	}
	defer f.release()

	var backup models.MasterBackup
	var password string
	switch s := f.State().(type) {
	case domain.ConfirmAwaitingDownload:
		backup, password = s.Backup, s.Password
	case domain.ConfirmReady:
		backup, password = s.Backup, s.Password
	default:
		return nil, f.dispatch(domain.BackupDownloaded{})
	}

	file, err := f.backupFile(backup, password)
	if err != nil {
		f.deps.Metrics.Error(categoryCrypto)
		f.fail(err)
		return nil, err
	}
	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		f.fail(err)
		return nil, err
	}
	if err := f.dispatch(domain.BackupDownloaded{}); err != nil {
		return nil, err
	}
	return raw, nil
}

// BackupDownloaded reports whether the confirm step has its backup file.
func (f *Flow) BackupDownloaded() bool {
	return domain.IsBackupDownloaded(f.State())
}

// Submit runs the signup sequence from the confirm step. The confirm password
// is checked before anything leaves the process.
func (f *Flow) Submit(ctx context.Context, confirmPassword string) (domain.Outcome, error) {
	if err := f.acquire(); err != nil {
		return domain.Outcome{}, err
	}
	defer f.release()

	var ready domain.ConfirmReady
	switch s := f.State().(type) {
	case domain.ConfirmReady:
		ready = s
	case domain.ConfirmAwaitingDownload:
		f.fail(domain.ErrDownloadRequired)
		return domain.Outcome{}, domain.ErrDownloadRequired
	default:
		return domain.Outcome{}, f.dispatch(domain.SubmitStarted{})
	}
	if err := policy.ConfirmPassword(ready.Password, confirmPassword); err != nil {
		f.deps.Metrics.Error(categoryValidation)
		f.fail(err)
		return domain.Outcome{}, err
	}
	if err := f.dispatch(domain.SubmitStarted{}); err != nil {
		return domain.Outcome{}, err
	}

	out, err := SubmitSignup(ctx, f.deps, ready.Backup, ready.Password)
	if err != nil {
		_ = f.dispatch(domain.SubmitFailed{Message: policy.UserMessage(err)})
		return domain.Outcome{}, err
	}
	if out.Kind == domain.OutcomeConflict {
		dialog, dErr := NewConflictDialog(f.deps, out.Conflict, ready.Backup, DialogCallbacks{
			OnTransferComplete: f.onTransferred,
			OnSwitchAccount:    f.onSwitched,
		})
		if dErr != nil {
			_ = f.dispatch(domain.SubmitFailed{Message: policy.UserMessage(dErr)})
			return domain.Outcome{}, dErr
		}
		f.mu.Lock()
		f.conflict = dialog
		f.mu.Unlock()
	}
	if err := f.dispatch(domain.SubmitCompleted{Outcome: out}); err != nil {
		return domain.Outcome{}, err
	}
	return out, nil
}

func (f *Flow) Back() error {
	if err := f.acquire(); err != nil {
		return err
	}
	defer f.release()
	return f.dispatch(domain.Back{})
}

func (f *Flow) onTransferred() {
	if err := f.dispatch(domain.ConflictTransferred{}); err == nil && f.callbacks.OnTransferComplete != nil {
		f.callbacks.OnTransferComplete()
	}
}

func (f *Flow) onSwitched() {
	if err := f.dispatch(domain.ConflictSwitched{}); err == nil && f.callbacks.OnSwitchAccount != nil {
		f.callbacks.OnSwitchAccount()
	}
}

func (f *Flow) backupFile(backup models.MasterBackup, password string) (models.BackupFile, error) {
	encrypted, err := f.deps.Crypto.Encrypt(backup, password)
	if err != nil {
		return models.BackupFile{}, fmt.Errorf("%w: %v", domain.ErrEncryptFailed, err)
	}
	encryptedMnemonic, err := f.deps.Crypto.EncryptMnemonic(backup.Mnemonic, password)
	if err != nil {
		return models.BackupFile{}, fmt.Errorf("%w: %v", domain.ErrEncryptFailed, err)
	}
	return models.BackupFile{
		Encrypted:         true,
		EncryptedBackup:   encrypted,
		EncryptedMnemonic: encryptedMnemonic,
		BapID:             backup.FirstIdentityKey(),
		CreatedAt:         f.deps.Now().UTC(),
	}, nil
}

func (f *Flow) acquire() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loading {
		return domain.ErrBusy
	}
	f.loading = true
	return nil
}

func (f *Flow) release() {
	f.mu.Lock()
	f.loading = false
	f.mu.Unlock()
}

// dispatch applies ev through the reducer and notifies the listener.
func (f *Flow) dispatch(ev domain.Event) error {
	f.mu.Lock()
	prev := f.state
	next, err := domain.Reduce(prev, ev)
	if err != nil {
		f.mu.Unlock()
		if errors.Is(err, domain.ErrIllegalTransition) {
			f.deps.Logger.Debug("illegal transition ignored", "component", "signup", "step", string(prev.Step()), "error", err.Error())
		}
		return err
	}
	f.state = next
	if _, stillConflict := next.(domain.Conflict); !stillConflict {
		f.conflict = nil
	}
	listener := f.onChange
	f.mu.Unlock()

	f.deps.Metrics.Transition(string(prev.Step()), string(next.Step()))
	if listener != nil {
		listener(next)
	}
	return nil
}

// fail attaches the user message of err to the current state.
func (f *Flow) fail(err error) {
	f.mu.Lock()
	f.state = domain.WithError(f.state, policy.UserMessage(err))
	listener, state := f.onChange, f.state
	f.mu.Unlock()
	if listener != nil {
		listener(state)
	}
}
