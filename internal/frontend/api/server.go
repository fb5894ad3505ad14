// Package api exposes the combat engine over HTTP and relays each game's
// channel to browsers over WebSocket.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/config"
	"github.com/cory-johannsen/skirmish/internal/gameserver"
	"github.com/cory-johannsen/skirmish/internal/observability"
	"github.com/cory-johannsen/skirmish/internal/pubsub"
)

// Server is the HTTP front end.
type Server struct {
	echo   *echo.Echo
	cfg    config.HTTPConfig
	combat *gameserver.CombatHandler
	bus    pubsub.Bus
	logger *zap.Logger
}

// NewServer builds the echo instance and registers every route.
//
// Precondition: combat, bus and logger must be non-nil; auth.JWTSecret must
// be non-empty.
func NewServer(cfg config.HTTPConfig, auth config.AuthConfig, combat *gameserver.CombatHandler, bus pubsub.Bus, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	s := &Server{echo: e, cfg: cfg, combat: combat, bus: bus, logger: logger.Named("api")}
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(observability.RequestLogger(logger))

	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	g := e.Group("/api", requireUser(auth.JWTSecret, auth.Issuer))
	g.POST("/games/:game/encounters", s.createEncounter)
	g.GET("/games/:game/encounters", s.encounterHistory)
	g.GET("/games/:game/encounters/active", s.activeEncounter)
	g.GET("/games/:game/roster", s.listRoster)
	g.GET("/games/:game/actions", s.listActions)
	g.POST("/games/:game/actions", s.createAction)
	g.GET("/games/:game/requests", s.pendingRequests)
	g.POST("/games/:game/requests/:request/confirm", s.confirmHit)
	g.GET("/games/:game/activity", s.recentActivity)
	g.GET("/games/:game/ws", s.relay)

	g.GET("/encounters/:id", s.getEncounter)
	g.POST("/encounters/:id/participants", s.addParticipant)
	g.DELETE("/encounters/:id/participants/:entry", s.removeParticipant)
	g.PUT("/encounters/:id/participants/:entry/initiative", s.rollInitiative)
	g.POST("/encounters/:id/npc-initiative", s.rollForNPCs)
	g.POST("/encounters/:id/turn-order", s.calculateTurnOrder)
	g.POST("/encounters/:id/activate", s.activate)
	g.POST("/encounters/:id/finish", s.finish)
	g.POST("/encounters/:id/advance", s.advance)
	g.POST("/encounters/:id/actions", s.act)
	g.POST("/encounters/:id/heal", s.heal)
	g.GET("/encounters/:id/log", s.combatLog)

	g.POST("/requests/:request/resolve", s.resolve)
	g.POST("/roster/:kind/:id/resurrect", s.resurrect)
	return s
}

// awaitWindow is how long an awaited action may block before the response
// falls back to 202. It leaves a quarter of the write timeout for resolving
// and writing. Zero means no bound.
func (s *Server) awaitWindow() time.Duration {
	return s.cfg.WriteTimeout - s.cfg.WriteTimeout/4
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on the configured address and blocks until Stop.
func (s *Server) Start() error {
	s.logger.Info("http listening", zap.String("addr", s.cfg.Addr()))
	if err := s.echo.Start(s.cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he := toHTTPError(err)
	if he.Code >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	body := map[string]any{"error": he.Message}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(he.Code)
	} else {
		err = c.JSON(he.Code, body)
	}
	if err != nil {
		s.logger.Warn("writing error response", zap.Error(err))
	}
}
