package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/confirm"
	"github.com/cory-johannsen/skirmish/internal/gameserver"
	"github.com/cory-johannsen/skirmish/internal/pubsub"
)

const (
	// EventError is sent back to a socket whose inbound message failed.
	EventError = "error"
	// EventRequestAccepted acknowledges an inbound action request.
	EventRequestAccepted = "combat_action_accepted"

	wsWriteTimeout = 5 * time.Second
	wsSendBuffer   = 64
)

// inboundAction is the client form of combat_action_requested.
type inboundAction struct {
	EncounterID string       `json:"encounter_id"`
	ActionID    string       `json:"action_id"`
	Targets     []combat.Ref `json:"targets"`
}

// relay streams the game channel to the socket and turns inbound
// combat_action_requested and combat_hit_confirmed messages into handler
// calls, so every client message passes the same checks as HTTP.
func (s *Server) relay(c echo.Context) error {
	gameID := c.Param("game")
	userID := userOf(c)
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		OriginPatterns: s.cfg.OriginPatterns(),
	})
	if err != nil {
		s.logger.Warn("websocket accept", zap.String("game_id", gameID), zap.Error(err))
		return nil
	}
	defer conn.Close(websocket.StatusInternalError, "relay closed")

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	out := make(chan pubsub.Envelope, wsSendBuffer)
	err = s.bus.Subscribe(ctx, gameID, func(_ context.Context, env pubsub.Envelope) {
		select {
		case out <- env:
		default:
			s.logger.Warn("dropping event for slow websocket client",
				zap.String("game_id", gameID),
				zap.String("user_id", userID),
				zap.String("event", env.Event),
			)
		}
	})
	if err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return nil
	}
	s.logger.Info("websocket connected", zap.String("game_id", gameID), zap.String("user_id", userID))

	go s.writeLoop(ctx, cancel, conn, out)
	s.readLoop(ctx, conn, gameID, userID, out)

	s.logger.Info("websocket disconnected", zap.String("game_id", gameID), zap.String("user_id", userID))
	conn.Close(websocket.StatusNormalClosure, "")
	return nil
}

func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan pubsub.Envelope) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-out:
			wctx, wcancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(wctx, conn, env)
			wcancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, gameID, userID string, out chan<- pubsub.Envelope) {
	for {
		var env pubsub.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				s.logger.Debug("websocket read", zap.String("game_id", gameID), zap.Error(err))
			}
			return
		}
		reply, err := s.dispatch(ctx, gameID, userID, env)
		if err != nil {
			reply, _ = pubsub.NewEnvelope(gameID, EventError, "", map[string]any{
				"event":  env.Event,
				"status": statusOf(err),
				"error":  err.Error(),
			})
		}
		if reply.Event == "" {
			continue
		}
		select {
		case out <- reply:
		case <-ctx.Done():
			return
		}
	}
}

// dispatch handles one inbound message. Unknown events are ignored.
func (s *Server) dispatch(ctx context.Context, gameID, userID string, env pubsub.Envelope) (pubsub.Envelope, error) {
	switch env.Event {
	case confirm.EventActionRequested:
		in, err := pubsub.Decode[inboundAction](env)
		if err != nil {
			return pubsub.Envelope{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		id, err := s.combat.RequestAction(ctx, userID, in.EncounterID, gameserver.ActionInput{ActionID: in.ActionID, Targets: in.Targets})
		if err != nil {
			return pubsub.Envelope{}, err
		}
		return pubsub.NewEnvelope(gameID, EventRequestAccepted, "", map[string]string{"request_id": id})
	case confirm.EventHitConfirmed:
		in, err := pubsub.Decode[confirm.Confirmation](env)
		if err != nil {
			return pubsub.Envelope{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return pubsub.Envelope{}, s.combat.ConfirmHit(ctx, userID, gameID, in.RequestID, in.Hit)
	}
	return pubsub.Envelope{}, nil
}
