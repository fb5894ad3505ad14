package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/cory-johannsen/skirmish/internal/game/authz"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/confirm"
	"github.com/cory-johannsen/skirmish/internal/game/dice"
	"github.com/cory-johannsen/skirmish/internal/game/encounter"
	"github.com/cory-johannsen/skirmish/internal/gameserver"
)

var statusByError = []struct {
	err    error
	status int
}{
	{combat.ErrNoTargets, http.StatusBadRequest},
	{combat.ErrTooManyTargets, http.StatusBadRequest},
	{combat.ErrInvalidAction, http.StatusBadRequest},
	{combat.ErrInvalidAmount, http.StatusBadRequest},
	{combat.ErrHealingAction, http.StatusBadRequest},
	{combat.ErrNotHealingAction, http.StatusBadRequest},
	{dice.ErrInvalidDice, http.StatusBadRequest},
	{encounter.ErrInvalidInitiative, http.StatusBadRequest},
	{encounter.ErrInvalidParticipant, http.StatusBadRequest},
	{confirm.ErrHealing, http.StatusBadRequest},

	{authz.ErrNotMaster, http.StatusForbidden},
	{authz.ErrOutOfTurn, http.StatusForbidden},
	{authz.ErrNotOwner, http.StatusForbidden},

	{encounter.ErrNotFound, http.StatusNotFound},
	{combat.ErrNotFound, http.StatusNotFound},
	{combat.ErrActionNotFound, http.StatusNotFound},
	{authz.ErrGameNotFound, http.StatusNotFound},
	{confirm.ErrUnknownRequest, http.StatusNotFound},

	{encounter.ErrStaleWrite, http.StatusConflict},
	{encounter.ErrEncounterExists, http.StatusConflict},
	{encounter.ErrInvalidTransition, http.StatusConflict},
	{encounter.ErrFinished, http.StatusConflict},
	{encounter.ErrNotInSetup, http.StatusConflict},
	{encounter.ErrNotActive, http.StatusConflict},
	{encounter.ErrNotReady, http.StatusConflict},
	{encounter.ErrNoTurnOrder, http.StatusConflict},
	{encounter.ErrDuplicateParticipant, http.StatusConflict},
	{gameserver.ErrActorMismatch, http.StatusConflict},
	{confirm.ErrAwaitingMaster, http.StatusConflict},

	{confirm.ErrNoResponse, http.StatusGatewayTimeout},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
}

// statusOf maps a domain error onto an HTTP status.
func statusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest
	}
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// toHTTPError converts a domain error. Internal errors keep their detail out
// of the response body.
func toHTTPError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	return echo.NewHTTPError(status, msg).SetInternal(err)
}
