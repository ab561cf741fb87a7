package signupclient

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/bootstrap/appconfig"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/devbackend"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/domain"
	signupusecase "github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/usecase"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

func startBackend(t *testing.T) (*devbackend.Server, string) {
	t.Helper()
	srv, err := devbackend.New(devbackend.Options{JWTSecret: []byte("wiring-test")})
	if err != nil {
		t.Fatalf("new devbackend: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts.URL
}

func buildApp(t *testing.T, backendURL string) *App {
	t.Helper()
	cfg := appconfig.DefaultConfig()
	cfg.Backend.BaseURL = backendURL
	cfg.Storage.Path = filepath.Join(t.TempDir(), "state.json")
	app, err := Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func signupWithOAuth(t *testing.T, app *App, password string) (*signupusecase.Flow, domain.Outcome) {
	t.Helper()
	ctx := context.Background()
	if err := app.Slots.SavePendingOAuth(ctx, models.PendingOAuthSignupInfo{Provider: "github", ProviderAccountID: "gh-1"}); err != nil {
		t.Fatalf("save pending oauth: %v", err)
	}
	flow, err := signupusecase.NewFlow(app.Signup)
	if err != nil {
		t.Fatalf("new flow: %v", err)
	}
	if err := flow.Generate(); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := flow.SubmitPassword(password); err != nil {
		t.Fatalf("password: %v", err)
	}
	if _, err := flow.DownloadBackup(); err != nil {
		t.Fatalf("download: %v", err)
	}
	out, err := flow.Submit(ctx, password)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return flow, out
}

func TestSignupAgainstDevBackend(t *testing.T) {
	_, url := startBackend(t)
	app := buildApp(t, url)

	_, out := signupWithOAuth(t, app, "alice-password")
	if out.Kind != domain.OutcomeSuccess {
		t.Fatalf("expected success, got %s", out.Kind)
	}

	status, err := app.Account.BackupStatus(context.Background())
	if err != nil {
		t.Fatalf("backup status: %v", err)
	}
	if !status.LocalPresent || !status.Cloud.HasBackup || status.CloudOutdated {
		t.Fatalf("unexpected status: %+v", status)
	}

	accounts, err := app.Account.ConnectedAccounts(context.Background())
	if err != nil {
		t.Fatalf("connected accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].ProviderAccountID != "gh-1" {
		t.Fatalf("unexpected accounts: %+v", accounts)
	}
}

func TestConflictTransferAgainstDevBackend(t *testing.T) {
	srv, url := startBackend(t)
	alice := buildApp(t, url)
	bob := buildApp(t, url)

	_, aliceOut := signupWithOAuth(t, alice, "alice-password")
	if aliceOut.Kind != domain.OutcomeSuccess {
		t.Fatalf("alice: expected success, got %s", aliceOut.Kind)
	}

	flow, out := signupWithOAuth(t, bob, "bob-password")
	if out.Kind != domain.OutcomeConflict {
		t.Fatalf("bob: expected conflict, got %s", out.Kind)
	}
	if out.Conflict.ExistingIdentityKey != aliceOut.IdentityKey {
		t.Fatalf("existing key: got %q want %q", out.Conflict.ExistingIdentityKey, aliceOut.IdentityKey)
	}

	dialog := flow.Conflict()
	if dialog == nil {
		t.Fatal("expected conflict dialog")
	}
	if err := dialog.Transfer(context.Background(), "bob-password"); err == nil {
		t.Fatal("transfer with the wrong password must fail")
	}
	if dialog.LastError() == "" || dialog.Resolved() {
		t.Fatal("dialog must stay open with an error")
	}
	if owner, _ := srv.Store().LinkOwner("github", "gh-1"); owner != aliceOut.IdentityKey {
		t.Fatalf("link moved after failed transfer: %q", owner)
	}

	if err := dialog.Transfer(context.Background(), "alice-password"); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, ok := flow.State().(domain.Success); !ok {
		t.Fatalf("expected success state, got %T", flow.State())
	}
	if owner, _ := srv.Store().LinkOwner("github", "gh-1"); owner != out.Conflict.CurrentIdentityKey {
		t.Fatalf("link owner: got %q want %q", owner, out.Conflict.CurrentIdentityKey)
	}
}
