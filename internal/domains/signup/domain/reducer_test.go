package domain

import (
	"errors"
	"testing"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

func sampleBackup() models.MasterBackup {
	return models.MasterBackup{
		XPrv:     "xprv-test",
		Mnemonic: "one two three",
		IDs:      []models.IdentityRecord{{ID: "abc"}},
	}
}

func TestReduceHappyPathToOAuthLink(t *testing.T) {
	var s State = Intro{}
	steps := []Event{
		Generated{Backup: sampleBackup()},
		PasswordAccepted{Password: "abcdefgh"},
		BackupDownloaded{},
		SubmitStarted{},
		SubmitCompleted{Outcome: Outcome{Kind: OutcomeOAuthLink, IdentityKey: "abc"}},
	}
	for _, ev := range steps {
		next, err := Reduce(s, ev)
		if err != nil {
			t.Fatalf("reduce %T in %s: %v", ev, s.Step(), err)
		}
		s = next
	}
	link, ok := s.(OAuthLink)
	if !ok {
		t.Fatalf("expected OAuthLink, got %T", s)
	}
	if link.IdentityKey != "abc" {
		t.Fatalf("unexpected identity key %q", link.IdentityKey)
	}
}

func TestReduceIllegalPairsKeepState(t *testing.T) {
	cases := []struct {
		name  string
		state State
		event Event
	}{
		{"submit from intro", Intro{}, SubmitStarted{}},
		{"submit before download", ConfirmAwaitingDownload{Password: "abcdefgh"}, SubmitStarted{}},
		{"password from intro", Intro{}, PasswordAccepted{Password: "abcdefgh"}},
		{"generate twice", Password{}, Generated{}},
		{"double submit", Submitting{}, SubmitStarted{}},
		{"back from submitting", Submitting{}, Back{}},
		{"transfer outside conflict", OAuthLink{}, ConflictTransferred{}},
		{"anything after redirect", SignInRedirect{}, Back{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Reduce(tc.state, tc.event)
			if !errors.Is(err, ErrIllegalTransition) {
				t.Fatalf("expected ErrIllegalTransition, got %v", err)
			}
			if next.Step() != tc.state.Step() {
				t.Fatalf("state changed on illegal transition: %s -> %s", tc.state.Step(), next.Step())
			}
		})
	}
}

func TestDownloadGateOnlyConfirmReadyCanSubmit(t *testing.T) {
	states := []State{
		Intro{},
		Password{},
		ConfirmAwaitingDownload{},
		ConfirmReady{},
		Submitting{},
		OAuthLink{},
		Success{},
		Conflict{},
		SignInRedirect{},
	}
	for _, s := range states {
		_, ready := s.(ConfirmReady)
		if CanSubmit(s) != ready {
			t.Fatalf("CanSubmit(%T) = %v", s, CanSubmit(s))
		}
		if CanSubmit(s) && !IsBackupDownloaded(s) {
			t.Fatalf("%T is submittable without a downloaded backup", s)
		}
	}
}

func TestImportedClearMarksImporting(t *testing.T) {
	s, err := Reduce(Intro{}, ImportedClear{Backup: sampleBackup()})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if !IsImporting(s) {
		t.Fatal("expected importing flag")
	}
	if BapID(s) != "abc" {
		t.Fatalf("expected bapId abc, got %q", BapID(s))
	}
}

func TestSubmitFailedAllowsResubmission(t *testing.T) {
	s, err := Reduce(Submitting{Backup: sampleBackup(), Password: "abcdefgh"}, SubmitFailed{Message: "User already exists"})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if !CanSubmit(s) {
		t.Fatal("failed submit must leave the confirm step submittable")
	}
	if ErrorMessage(s) != "User already exists" {
		t.Fatalf("unexpected error message %q", ErrorMessage(s))
	}
}

func TestBackFromConfirmResetsDownloadFlag(t *testing.T) {
	s, err := Reduce(ConfirmReady{Backup: sampleBackup(), Password: "abcdefgh"}, Back{})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	s, err = Reduce(s, PasswordAccepted{Password: "different1"})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if CanSubmit(s) {
		t.Fatal("a new password requires a new download")
	}
}

func TestConflictOutcomeRejectsEqualIdentities(t *testing.T) {
	cur := Submitting{Backup: sampleBackup()}
	_, err := Reduce(cur, SubmitCompleted{Outcome: Outcome{
		Kind:     OutcomeConflict,
		Conflict: models.ConflictState{ExistingIdentityKey: "abc", CurrentIdentityKey: "abc"},
	}})
	if !errors.Is(err, ErrInvalidConflict) {
		t.Fatalf("expected ErrInvalidConflict, got %v", err)
	}
}

func TestConflictResolutions(t *testing.T) {
	c := Conflict{Conflict: models.ConflictState{ExistingIdentityKey: "X", CurrentIdentityKey: "abc"}}

	s, err := Reduce(c, ConflictTransferred{})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if ok := s.(Success).IdentityKey == "abc"; !ok {
		t.Fatalf("unexpected success state %+v", s)
	}

	s, err = Reduce(c, ConflictSwitched{})
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if s.(SignInRedirect).Reason != RedirectSwitched {
		t.Fatalf("unexpected redirect %+v", s)
	}
}
