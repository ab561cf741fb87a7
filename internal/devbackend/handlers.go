package devbackend

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/adapters/backendapi"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.POST(backendapi.PathSignIn, s.handleSignIn)

	signed := s.auth.RequireSignature
	e.POST(backendapi.PathCreateUser, s.handleCreateUser, signed)
	e.POST(backendapi.PathBackup, s.handleStoreBackup, signed)
	e.GET(backendapi.PathBackupStatus, s.handleBackupStatus, signed)
	e.GET(backendapi.PathOAuthBackup, s.handleOAuthBackup, signed)
	e.POST(backendapi.PathTransfer, s.handleTransfer, signed)
	e.GET(backendapi.PathConnectedAccounts, s.handleConnectedAccounts, signed)
	e.POST(backendapi.PathDisconnectAccount, s.handleDisconnect, signed)
}

func (s *Server) handleSignIn(c echo.Context) error {
	var req backendapi.SignInRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return badRequest(c, "Missing token")
	}
	verified, err := s.auth.verify(req.Token, backendapi.PathSignIn, nil)
	if err != nil {
		return s.auth.reject(c, err)
	}
	bapID, userID, found := s.store.IdentityForAddress(verified.Address)
	if !found {
		return unauthorized(c, "Unknown identity")
	}
	session, err := s.sessions.Issue(userID, bapID)
	if err != nil {
		s.logger.Error("issue session failed", "error", err.Error())
		return fail(c, http.StatusInternalServerError, "Sign in failed")
	}
	return ok(c, session)
}

func (s *Server) handleCreateUser(c echo.Context) error {
	var req models.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.BapID) == "" {
		return badRequest(c, "Missing bapId")
	}
	if req.Address != signerAddress(c) {
		return unauthorized(c, "Address does not match signer")
	}
	userID, err := s.store.CreateUser(req.BapID, req.Address, req.EncryptedBackup)
	if err != nil {
		return s.storeError(c, err)
	}
	s.logger.Info("user created", "bap_id", req.BapID)
	return ok(c, echo.Map{"success": true, "userId": userID})
}

func (s *Server) handleStoreBackup(c echo.Context) error {
	var req models.StoreBackupRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := s.store.StoreBackup(signerAddress(c), req); err != nil {
		return s.storeError(c, err)
	}
	return ok(c, nil)
}

func (s *Server) handleBackupStatus(c echo.Context) error {
	bapID, _, found := s.store.IdentityForAddress(signerAddress(c))
	if !found {
		return unauthorized(c, "Unknown identity")
	}
	return ok(c, s.store.Status(bapID))
}

// handleOAuthBackup serves the backup of whichever identity holds the link.
// Decrypting it still requires that identity's password.
func (s *Server) handleOAuthBackup(c echo.Context) error {
	if _, _, found := s.store.IdentityForAddress(signerAddress(c)); !found {
		return unauthorized(c, "Unknown identity")
	}
	provider := c.QueryParam("provider")
	accountID := c.QueryParam("oauthId")
	if strings.TrimSpace(provider) == "" || strings.TrimSpace(accountID) == "" {
		return badRequest(c, "Missing provider or oauthId")
	}
	backup, err := s.store.OAuthBackup(provider, accountID)
	if err != nil {
		return s.storeError(c, err)
	}
	return ok(c, backup)
}

func (s *Server) handleTransfer(c echo.Context) error {
	var req models.TransferRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.FromBapID == "" || req.ToBapID == "" || req.FromBapID == req.ToBapID {
		return badRequest(c, "Invalid transfer")
	}
	if err := s.store.Transfer(signerAddress(c), req); err != nil {
		return s.storeError(c, err)
	}
	s.logger.Info("oauth link transferred", "from_bap_id", req.FromBapID, "to_bap_id", req.ToBapID, "provider", req.Provider)
	return ok(c, nil)
}

func (s *Server) handleConnectedAccounts(c echo.Context) error {
	bapID, _, found := s.store.IdentityForAddress(signerAddress(c))
	if !found {
		return unauthorized(c, "Unknown identity")
	}
	return ok(c, backendapi.ConnectedAccountsResponse{Accounts: s.store.Accounts(bapID)})
}

func (s *Server) handleDisconnect(c echo.Context) error {
	var req backendapi.DisconnectRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Provider) == "" {
		return badRequest(c, "Missing provider")
	}
	bapID, _, found := s.store.IdentityForAddress(signerAddress(c))
	if !found {
		return unauthorized(c, "Unknown identity")
	}
	if s.store.Disconnect(bapID, req.Provider) == 0 {
		return fail(c, http.StatusNotFound, "Account not connected")
	}
	return ok(c, nil)
}

func (s *Server) storeError(c echo.Context, err error) error {
	var linkConflict *LinkConflictError
	switch {
	case errors.As(err, &linkConflict):
		return conflict(c, linkConflict.ExistingBapID)
	case errors.Is(err, ErrNotOwner), errors.Is(err, ErrIdentityTaken):
		return fail(c, http.StatusForbidden, "Signer does not own this identity")
	case errors.Is(err, ErrUnknownIdentity):
		return fail(c, http.StatusNotFound, "Identity not found")
	case errors.Is(err, ErrLinkNotFound), errors.Is(err, ErrBackupNotFound):
		return fail(c, http.StatusNotFound, "No backup for this account")
	case errors.Is(err, ErrEmptyBackup), errors.Is(err, ErrIncompleteAccount):
		return badRequest(c, err.Error())
	default:
		s.logger.Error("store failed", "error", err.Error())
		return fail(c, http.StatusInternalServerError, "Internal error")
	}
}
