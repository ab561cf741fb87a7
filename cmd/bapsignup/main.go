package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/bootstrap/appconfig"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/composition/signupclient"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/domain"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/policy"
	signupusecase "github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/usecase"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/securestore"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

const (
	exitOK           = 0
	exitInvalidInput = 10
	exitBackend      = 20
	exitConflict     = 30
	exitAuth         = 40
)

// exitError carries the process exit code up to main so deferred cleanup
// runs before the process ends.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

func failure(code int, msg string) error {
	return &exitError{code: code, msg: msg}
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitInvalidInput)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := dispatch(ctx, os.Args[1], os.Args[2:])
	stop()
	os.Exit(code)
}

func dispatch(ctx context.Context, command string, args []string) int {
	var run func(context.Context, []string) error
	switch command {
	case "generate":
		run = runGenerate
	case "import":
		run = runImport
	case "signin":
		run = runSignIn
	case "status":
		run = runStatus
	case "sync":
		run = runSync
	case "reveal":
		run = runReveal
	case "change-password":
		run = runChangePassword
	case "accounts":
		run = runAccounts
	case "disconnect":
		run = runDisconnect
	case "connect-url":
		run = runConnectURL
	case "link":
		run = runLink
	default:
		printUsage()
		return exitInvalidInput
	}
	return exitCode(run(ctx, args))
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var exit *exitError
	if errors.As(err, &exit) {
		if exit.msg != "" {
			writeErr(exit.msg)
		}
		return exit.code
	}
	writeErr(err.Error())
	return exitInvalidInput
}

func openApp(ctx context.Context, configPath string) (*signupclient.App, error) {
	cfg, err := appconfig.LoadFromPath(configPath)
	if err != nil {
		return nil, failure(exitInvalidInput, err.Error())
	}
	logger := cfg.Logging.NewLogger(os.Stderr)
	app, err := signupclient.Build(ctx, cfg, logger, nil)
	if err != nil {
		return nil, failure(exitInvalidInput, err.Error())
	}
	return app, nil
}

func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "", "path to bapauth.yaml (optional)")
	return fs, configPath
}

func runGenerate(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("generate")
	out := fs.String("out", "", "where to write the encrypted backup file")
	provider := fs.String("oauth-provider", "", "OAuth provider of the session that started signup")
	accountID := fs.String("oauth-id", "", "provider account id of that session")
	_ = fs.Parse(args)

	app, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	if err := seedPendingOAuth(ctx, app, *provider, *accountID); err != nil {
		return err
	}

	flow, err := newFlow(app)
	if err != nil {
		return err
	}
	if err := flow.Generate(); err != nil {
		return failure(exitInvalidInput, policy.UserMessage(err))
	}
	return completeSignup(ctx, flow, *out)
}

func runImport(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("import")
	out := fs.String("out", "", "where to write the re-encrypted backup file")
	provider := fs.String("oauth-provider", "", "OAuth provider of the session that started signup")
	accountID := fs.String("oauth-id", "", "provider account id of that session")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return failure(exitInvalidInput, "usage: bapsignup import [flags] <backup-file>")
	}
	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return failure(exitInvalidInput, err.Error())
	}

	app, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	if err := seedPendingOAuth(ctx, app, *provider, *accountID); err != nil {
		return err
	}

	flow, err := newFlow(app)
	if err != nil {
		return err
	}
	if err := flow.Import(ctx, raw); err != nil {
		return failure(exitInvalidInput, policy.UserMessage(err))
	}
	if _, ok := flow.State().(domain.SignInRedirect); ok {
		writeOut("Encrypted backup stored on this device. Run `bapsignup signin` to unlock it.")
		return nil
	}
	return completeSignup(ctx, flow, *out)
}

func seedPendingOAuth(ctx context.Context, app *signupclient.App, provider, accountID string) error {
	provider = strings.TrimSpace(provider)
	accountID = strings.TrimSpace(accountID)
	if provider == "" && accountID == "" {
		return nil
	}
	if provider == "" || accountID == "" {
		return failure(exitInvalidInput, "--oauth-provider and --oauth-id go together")
	}
	if err := app.Slots.SavePendingOAuth(ctx, models.PendingOAuthSignupInfo{Provider: provider, ProviderAccountID: accountID}); err != nil {
		return failure(exitInvalidInput, err.Error())
	}
	return nil
}

func newFlow(app *signupclient.App) (*signupusecase.Flow, error) {
	flow, err := signupusecase.NewFlow(app.Signup)
	if err != nil {
		return nil, failure(exitInvalidInput, err.Error())
	}
	return flow, nil
}

// completeSignup drives the flow from the password step to an outcome. The
// backup file is written before the confirm prompt is shown.
func completeSignup(ctx context.Context, flow *signupusecase.Flow, outPath string) error {
	p := newPrompter()
	writeErr(policy.PasswordWarning)
	for {
		pw, err := p.password(fmt.Sprintf("Choose a password (min %d characters)", policy.MinPasswordLength))
		if err != nil {
			return failure(exitInvalidInput, err.Error())
		}
		err = flow.SubmitPassword(pw)
		if err == nil {
			break
		}
		writeErr(policy.UserMessage(err))
	}

	raw, err := flow.DownloadBackup()
	if err != nil {
		return failure(exitInvalidInput, policy.UserMessage(err))
	}
	if outPath == "" {
		outPath = fmt.Sprintf("bap-backup-%s.json", time.Now().UTC().Format("20060102-150405"))
	}
	if err := securestore.WriteFileAtomic(filepath.Clean(outPath), raw); err != nil {
		return failure(exitInvalidInput, err.Error())
	}
	writeOut("Encrypted backup written to " + outPath)
	if !flow.BackupDownloaded() {
		return failure(exitInvalidInput, policy.UserMessage(domain.ErrDownloadRequired))
	}

	for {
		confirm, err := p.password("Confirm password")
		if err != nil {
			return failure(exitInvalidInput, err.Error())
		}
		outcome, err := flow.Submit(ctx, confirm)
		if err == nil {
			return reportOutcome(ctx, flow, outcome, p)
		}
		writeErr(policy.UserMessage(err))
		if errors.Is(err, policy.ErrPasswordMismatch) {
			continue
		}
		retry, perr := p.choice("Try again?", []string{"y", "n"}, "y")
		if perr != nil || retry != "y" {
			return failure(exitBackend, "")
		}
	}
}

func reportOutcome(ctx context.Context, flow *signupusecase.Flow, out domain.Outcome, p *prompter) error {
	switch out.Kind {
	case domain.OutcomeSuccess:
		writeOut("Signed up as " + out.IdentityKey + " and linked your account.")
	case domain.OutcomeOAuthLink:
		writeOut("Signed up as " + out.IdentityKey + ".")
		if out.LinkWarning != "" {
			writeErr(out.LinkWarning)
		}
		writeOut("Link a recovery account with `bapsignup connect-url <provider>`.")
	case domain.OutcomeConflict:
		if dialog := flow.Conflict(); dialog != nil {
			return resolveConflict(ctx, dialog, p, "Local data cleared. Import the backup of %s to sign in.")
		}
	}
	return nil
}

// resolveConflict loops until the dialog is resolved or the user cancels.
// switchNote is printed with the existing identity key after a switch.
func resolveConflict(ctx context.Context, dialog *signupusecase.ConflictDialog, p *prompter, switchNote string) error {
	c := dialog.State()
	writeOut(fmt.Sprintf("This %s account is already linked to identity %s.", c.Provider, c.ExistingIdentityKey))
	for !dialog.Resolved() {
		action, err := p.choice("Transfer the link to the new identity or switch to the existing one?", []string{"transfer", "switch", "cancel"}, "")
		if err != nil || action == "cancel" {
			return failure(exitConflict, "")
		}
		switch action {
		case "transfer":
			pw, err := p.password("Password of the existing identity")
			if err != nil {
				return failure(exitInvalidInput, err.Error())
			}
			if err := dialog.Transfer(ctx, pw); err != nil {
				writeErr(dialog.LastError())
				continue
			}
			writeOut("Link transferred to " + c.CurrentIdentityKey + ".")
		case "switch":
			if err := dialog.Switch(ctx); err != nil {
				writeErr(dialog.LastError())
				continue
			}
			writeOut(fmt.Sprintf(switchNote, c.ExistingIdentityKey))
		}
	}
	return nil
}

func unlock(ctx context.Context, app *signupclient.App, p *prompter) error {
	pw, err := p.password("Password")
	if err != nil {
		return failure(exitInvalidInput, err.Error())
	}
	if _, err := app.Account.Unlock(ctx, pw); err != nil {
		return failure(exitAuth, err.Error())
	}
	return nil
}

func runSignIn(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("signin")
	_ = fs.Parse(args)
	app, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := unlock(ctx, app, newPrompter()); err != nil {
		return err
	}
	session, err := app.Account.SignIn(ctx)
	if err != nil {
		return failure(exitBackend, err.Error())
	}
	return printJSON(map[string]any{"bapId": session.IdentityKey, "expiresAt": session.ExpiresAt})
}

func runStatus(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("status")
	local := fs.Bool("local", false, "skip the password prompt and report local state only")
	_ = fs.Parse(args)
	app, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if !*local {
		if _, present, err := app.Slots.LoadEncryptedBackup(ctx); err == nil && present {
			if err := unlock(ctx, app, newPrompter()); err != nil {
				return err
			}
		}
	}
	status, err := app.Account.BackupStatus(ctx)
	if err != nil {
		return failure(exitBackend, err.Error())
	}
	return printJSON(status)
}

func runSync(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("sync")
	_ = fs.Parse(args)
	app, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := unlock(ctx, app, newPrompter()); err != nil {
		return err
	}
	if err := app.Account.SyncCloudBackup(ctx); err != nil {
		return failure(exitBackend, err.Error())
	}
	writeOut("Cloud backup updated.")
	return nil
}

func runReveal(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("reveal")
	_ = fs.Parse(args)
	app, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	pw, err := newPrompter().password("Password")
	if err != nil {
		return failure(exitInvalidInput, err.Error())
	}
	words, err := app.Account.RevealMnemonic(ctx, pw)
	if err != nil {
		return failure(exitAuth, err.Error())
	}
	for _, w := range words {
		writeOut(fmt.Sprintf("%2d. %s", w.Index, w.Word))
	}
	return nil
}

func runChangePassword(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("change-password")
	_ = fs.Parse(args)
	app, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	p := newPrompter()
	oldPw, err := p.password("Current password")
	if err != nil {
		return failure(exitInvalidInput, err.Error())
	}
	writeErr(policy.PasswordWarning)
	newPw, err := p.password("New password")
	if err != nil {
		return failure(exitInvalidInput, err.Error())
	}
	confirm, err := p.password("Confirm new password")
	if err != nil {
		return failure(exitInvalidInput, err.Error())
	}
	if err := app.Account.ChangePassword(ctx, oldPw, newPw, confirm); err != nil {
		return failure(exitAuth, err.Error())
	}
	writeOut("Password changed. Download a fresh backup with the new password.")
	return nil
}

func runAccounts(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("accounts")
	_ = fs.Parse(args)
	app, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := unlock(ctx, app, newPrompter()); err != nil {
		return err
	}
	accounts, err := app.Account.ConnectedAccounts(ctx)
	if err != nil {
		return failure(exitBackend, err.Error())
	}
	return printJSON(accounts)
}

func runDisconnect(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("disconnect")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return failure(exitInvalidInput, "usage: bapsignup disconnect [flags] <provider>")
	}
	app, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := unlock(ctx, app, newPrompter()); err != nil {
		return err
	}
	if err := app.Account.DisconnectAccount(ctx, fs.Arg(0)); err != nil {
		return failure(exitBackend, err.Error())
	}
	writeOut("Disconnected " + fs.Arg(0) + ".")
	return nil
}

func runConnectURL(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("connect-url")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return failure(exitInvalidInput, "usage: bapsignup connect-url [flags] <provider>")
	}
	app, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	state, err := uuid.NewV4()
	if err != nil {
		return failure(exitInvalidInput, err.Error())
	}
	url, verifier, err := app.Account.ConnectURL(fs.Arg(0), state.String())
	if err != nil {
		return failure(exitInvalidInput, err.Error())
	}
	return printJSON(map[string]string{"url": url, "state": state.String(), "verifier": verifier})
}

func runLink(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("link")
	_ = fs.Parse(args)
	if fs.NArg() != 2 {
		return failure(exitInvalidInput, "usage: bapsignup link [flags] <provider> <account-id>")
	}
	app, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	p := newPrompter()
	if err := unlock(ctx, app, p); err != nil {
		return err
	}
	result, err := app.Account.LinkProvider(ctx, fs.Arg(0), fs.Arg(1), signupusecase.DialogCallbacks{})
	if err != nil {
		return failure(exitBackend, err.Error())
	}
	if result.Conflict != nil {
		return resolveConflict(ctx, result.Conflict, p, "Signed out. Your backup stays on this device; import the backup of %s to use that identity.")
	}
	writeOut("Linked " + fs.Arg(0) + ".")
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return failure(exitInvalidInput, err.Error())
	}
	return nil
}

func printUsage() {
	writeOut("bapsignup <command> [flags]")
	writeOut("commands:")
	writeOut("  generate         [--out file] [--oauth-provider p --oauth-id id]")
	writeOut("  import           [--out file] [--oauth-provider p --oauth-id id] <backup-file>")
	writeOut("  signin")
	writeOut("  status           [--local]")
	writeOut("  sync")
	writeOut("  reveal")
	writeOut("  change-password")
	writeOut("  accounts")
	writeOut("  disconnect       <provider>")
	writeOut("  connect-url      <provider>")
	writeOut("  link             <provider> <account-id>")
	writeOut("every command accepts --config <path>")
}

func writeOut(line string) {
	_, _ = fmt.Fprintln(os.Stdout, line)
}

func writeErr(line string) {
	_, _ = fmt.Fprintln(os.Stderr, line)
}
