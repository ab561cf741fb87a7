package devbackend

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/adapters/backendapi"
)

func ok(c echo.Context, payload any) error {
	if payload == nil {
		return c.JSON(http.StatusOK, echo.Map{"success": true})
	}
	return c.JSON(http.StatusOK, payload)
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, backendapi.ErrorResponse{Error: msg})
}

func badRequest(c echo.Context, msg string) error {
	return fail(c, http.StatusBadRequest, msg)
}

func unauthorized(c echo.Context, msg string) error {
	return fail(c, http.StatusUnauthorized, msg)
}

func conflict(c echo.Context, existingBapID string) error {
	return c.JSON(http.StatusConflict, backendapi.ErrorResponse{
		Error:         "This account is already linked to another identity",
		ExistingBapID: existingBapID,
	})
}
