package domain

import "fmt"

// Reduce applies ev to s. It is pure: illegal pairs return the unchanged state
// and ErrIllegalTransition.
func Reduce(s State, ev Event) (State, error) {
	switch cur := s.(type) {
	case Intro:
		switch e := ev.(type) {
		case Generated:
			return Password{Backup: e.Backup.Clone()}, nil
		case ImportedClear:
			return Password{Backup: e.Backup.Clone(), Importing: true}, nil
		case ImportedEncrypted:
			return SignInRedirect{Reason: RedirectEncryptedImport}, nil
		}

	case Password:
		switch e := ev.(type) {
		case PasswordAccepted:
			return ConfirmAwaitingDownload{Backup: cur.Backup, Importing: cur.Importing, Password: e.Password}, nil
		case Back:
			return Intro{}, nil
		}

	case ConfirmAwaitingDownload:
		switch ev.(type) {
		case BackupDownloaded:
			return ConfirmReady{Backup: cur.Backup, Importing: cur.Importing, Password: cur.Password}, nil
		case Back:
			return Password{Backup: cur.Backup, Importing: cur.Importing}, nil
		}

	case ConfirmReady:
		switch ev.(type) {
		case BackupDownloaded:
			cur.Err = ""
			return cur, nil
		case SubmitStarted:
			return Submitting{Backup: cur.Backup, Importing: cur.Importing, Password: cur.Password}, nil
		case Back:
			return Password{Backup: cur.Backup, Importing: cur.Importing}, nil
		}

	case Submitting:
		switch e := ev.(type) {
		case SubmitFailed:
			return ConfirmReady{Backup: cur.Backup, Importing: cur.Importing, Password: cur.Password, Err: e.Message}, nil
		case SubmitCompleted:
			return completed(cur, e.Outcome)
		}

	case Conflict:
		switch ev.(type) {
		case ConflictTransferred:
			return Success{IdentityKey: cur.Conflict.CurrentIdentityKey}, nil
		case ConflictSwitched:
			return SignInRedirect{Reason: RedirectSwitched}, nil
		}
	}
	return s, fmt.Errorf("%w: %T in %s", ErrIllegalTransition, ev, stepOf(s))
}

func completed(cur Submitting, out Outcome) (State, error) {
	switch out.Kind {
	case OutcomeOAuthLink:
		return OAuthLink{IdentityKey: out.IdentityKey, Warning: out.LinkWarning}, nil
	case OutcomeSuccess:
		return Success{IdentityKey: out.IdentityKey}, nil
	case OutcomeConflict:
		c := out.Conflict
		if c.ExistingIdentityKey == "" || c.ExistingIdentityKey == c.CurrentIdentityKey {
			return cur, ErrInvalidConflict
		}
		return Conflict{Conflict: c, Backup: cur.Backup}, nil
	}
	return cur, fmt.Errorf("%w: unknown outcome %q", ErrIllegalTransition, out.Kind)
}

func stepOf(s State) Step {
	if s == nil {
		return ""
	}
	return s.Step()
}
