package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/confirm"
	"github.com/cory-johannsen/skirmish/internal/game/encounter"
	"github.com/cory-johannsen/skirmish/internal/gameserver"
)

const (
	defaultLogLimit      = 50
	defaultActivityLimit = 50
)

type createEncounterRequest struct {
	Name string `json:"name" validate:"max=120"`
}

type participantRequest struct {
	Kind string `json:"kind" validate:"required,oneof=player npc"`
	ID   string `json:"id" validate:"required"`
}

type initiativeRequest struct {
	// Value nil rolls on the server.
	Value *int `json:"value" validate:"omitempty,min=1,max=20"`
}

type targetRequest struct {
	Kind string `json:"kind" validate:"required,oneof=player npc"`
	ID   string `json:"id" validate:"required"`
}

type actionRequest struct {
	ActionID string          `json:"action_id" validate:"required"`
	Targets  []targetRequest `json:"targets" validate:"required,min=1,dive"`
	// Await blocks until the master answers and resolves the action. When the
	// master is slower than the server's write timeout allows, the response
	// falls back to 202 with the request id.
	Await  bool `json:"await"`
	Damage *int `json:"damage" validate:"omitempty,min=0"`
}

type healRequest struct {
	ActionID string          `json:"action_id" validate:"required"`
	Targets  []targetRequest `json:"targets" validate:"required,min=1,dive"`
	Amount   *int            `json:"amount" validate:"omitempty,min=0"`
}

type resolveRequest struct {
	Damage *int `json:"damage" validate:"omitempty,min=0"`
}

type confirmRequest struct {
	Hit *bool `json:"hit" validate:"required"`
}

type createActionRequest struct {
	ID         string `json:"id" validate:"required"`
	Name       string `json:"name" validate:"required"`
	DieSides   int    `json:"die_sides" validate:"oneof=4 6 8 12 20"`
	DieCount   int    `json:"die_count" validate:"min=1"`
	Modifier   int    `json:"modifier"`
	DamageType string `json:"damage_type"`
	TargetType string `json:"target_type" validate:"omitempty,oneof=single multiple"`
	Healing    bool   `json:"healing"`
}

type advanceResponse struct {
	Encounter     gameserver.EncounterView `json:"encounter"`
	ActedEntryID  string                   `json:"acted_entry_id,omitempty"`
	NextEntryID   string                   `json:"next_entry_id,omitempty"`
	RoundComplete bool                     `json:"round_complete"`
	Round         int                      `json:"round"`
}

type resolutionResponse struct {
	RequestID string                  `json:"request_id"`
	Hit       bool                    `json:"hit"`
	Finished  bool                    `json:"finished"`
	Outcome   *gameserver.OutcomeView `json:"outcome,omitempty"`
}

type logEntryResponse struct {
	ID          string                `json:"id"`
	Actor       combat.Ref            `json:"actor"`
	ActorName   string                `json:"actor_name"`
	ActionID    string                `json:"action_id"`
	ActionName  string                `json:"action_name"`
	Expression  string                `json:"expression"`
	Rolls       []int                 `json:"rolls"`
	RollTotal   int                   `json:"roll_total"`
	FinalAmount int                   `json:"final_amount"`
	Critical    bool                  `json:"critical"`
	Fumble      bool                  `json:"fumble"`
	Healing     bool                  `json:"healing"`
	Targets     []combat.TargetDamage `json:"targets"`
	CreatedAt   string                `json:"created_at"`
}

type combatantResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	CurrentHP int    `json:"current_hp"`
	MaxHP     int    `json:"max_hp"`
	Status    string `json:"status"`
}

func refs(in []targetRequest) []combat.Ref {
	out := make([]combat.Ref, 0, len(in))
	for _, t := range in {
		out = append(out, combat.Ref{Kind: combat.Kind(t.Kind), ID: t.ID})
	}
	return out
}

func limitParam(c echo.Context, def int) int {
	n, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Server) createEncounter(c echo.Context) error {
	var req createEncounterRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	snap, err := s.combat.CreateEncounter(c.Request().Context(), userOf(c), c.Param("game"), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, gameserver.NewEncounterView(snap))
}

func (s *Server) encounterHistory(c echo.Context) error {
	encs, err := s.combat.History(c.Request().Context(), c.Param("game"))
	if err != nil {
		return err
	}
	out := make([]gameserver.EncounterView, 0, len(encs))
	for _, e := range encs {
		out = append(out, gameserver.NewEncounterSummary(e))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) activeEncounter(c echo.Context) error {
	snap, err := s.combat.ActiveEncounter(c.Request().Context(), c.Param("game"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, gameserver.NewEncounterView(snap))
}

func (s *Server) getEncounter(c echo.Context) error {
	snap, err := s.combat.Encounter(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, gameserver.NewEncounterView(snap))
}

func (s *Server) addParticipant(c echo.Context) error {
	var req participantRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := s.combat.AddParticipant(ctx, userOf(c), c.Param("id"), combat.Ref{Kind: combat.Kind(req.Kind), ID: req.ID}); err != nil {
		return err
	}
	snap, err := s.combat.Encounter(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, gameserver.NewEncounterView(snap))
}

func (s *Server) removeParticipant(c echo.Context) error {
	snap, err := s.combat.RemoveParticipant(c.Request().Context(), userOf(c), c.Param("entry"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, gameserver.NewEncounterView(snap))
}

func (s *Server) rollInitiative(c echo.Context) error {
	var req initiativeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	entryID := c.Param("entry")
	// the entry must belong to the encounter in the path
	snap, err := s.combat.Encounter(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if _, ok := snap.Entry(entryID); !ok {
		return encounter.ErrNotFound
	}
	if _, err := s.combat.RollInitiative(ctx, userOf(c), entryID, req.Value); err != nil {
		return err
	}
	snap, err = s.combat.Encounter(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, gameserver.NewEncounterView(snap))
}

func (s *Server) rollForNPCs(c echo.Context) error {
	snap, err := s.combat.RollForNPCs(c.Request().Context(), userOf(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, gameserver.NewEncounterView(snap))
}

func (s *Server) calculateTurnOrder(c echo.Context) error {
	snap, err := s.combat.CalculateTurnOrder(c.Request().Context(), userOf(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, gameserver.NewEncounterView(snap))
}

func (s *Server) activate(c echo.Context) error {
	snap, err := s.combat.Activate(c.Request().Context(), userOf(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, gameserver.NewEncounterView(snap))
}

func (s *Server) finish(c echo.Context) error {
	snap, err := s.combat.Finish(c.Request().Context(), userOf(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, gameserver.NewEncounterView(snap))
}

func (s *Server) advance(c echo.Context) error {
	snap, adv, err := s.combat.AdvanceTurn(c.Request().Context(), userOf(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, advanceResponse{
		Encounter:     gameserver.NewEncounterView(snap),
		ActedEntryID:  adv.Acted.ID,
		NextEntryID:   adv.Next.ID,
		RoundComplete: adv.RoundComplete,
		Round:         adv.Round,
	})
}

func (s *Server) act(c echo.Context) error {
	var req actionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	in := gameserver.ActionInput{ActionID: req.ActionID, Targets: refs(req.Targets)}
	if req.Await {
		res, err := s.combat.Attack(ctx, userOf(c), c.Param("id"), in, req.Damage, s.awaitWindow())
		if errors.Is(err, confirm.ErrAwaitingMaster) && res.RequestID != "" {
			return c.JSON(http.StatusAccepted, map[string]string{"request_id": res.RequestID})
		}
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, newResolutionResponse(res))
	}
	id, err := s.combat.RequestAction(ctx, userOf(c), c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]string{"request_id": id})
}

func (s *Server) resolve(c echo.Context) error {
	var req resolveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.combat.ResolveAction(c.Request().Context(), userOf(c), c.Param("request"), req.Damage)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newResolutionResponse(res))
}

func newResolutionResponse(res gameserver.Resolution) resolutionResponse {
	out := resolutionResponse{RequestID: res.RequestID, Hit: res.Hit, Finished: res.Finished}
	if res.Hit {
		v := gameserver.NewOutcomeView(res.EncounterID, res.Outcome)
		out.Outcome = &v
	}
	return out
}

func (s *Server) heal(c echo.Context) error {
	var req healRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	out, err := s.combat.Heal(c.Request().Context(), userOf(c), c.Param("id"),
		gameserver.ActionInput{ActionID: req.ActionID, Targets: refs(req.Targets)}, req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, gameserver.NewOutcomeView(c.Param("id"), out))
}

func (s *Server) combatLog(c echo.Context) error {
	entries, err := s.combat.CombatLog(c.Request().Context(), c.Param("id"), limitParam(c, defaultLogLimit))
	if err != nil {
		return err
	}
	out := make([]logEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, logEntryResponse{
			ID:          e.ID,
			Actor:       e.Actor,
			ActorName:   e.ActorName,
			ActionID:    e.ActionID,
			ActionName:  e.ActionName,
			Expression:  combat.Action{DieSides: e.DieSides, DieCount: e.DieCount, Modifier: e.Modifier}.Expression().String(),
			Rolls:       e.Rolls,
			RollTotal:   e.RollTotal,
			FinalAmount: e.FinalAmount,
			Critical:    e.Critical,
			Fumble:      e.Fumble,
			Healing:     e.Healing,
			Targets:     e.Breakdown,
			CreatedAt:   e.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) resurrect(c echo.Context) error {
	kind := combat.Kind(c.Param("kind"))
	if !kind.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be player or npc")
	}
	cb, err := s.combat.Resurrect(c.Request().Context(), userOf(c), combat.Ref{Kind: kind, ID: c.Param("id")})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, combatantResponse{
		ID:        cb.ID,
		Kind:      string(cb.Kind),
		Name:      cb.Name,
		CurrentHP: cb.CurrentHP,
		MaxHP:     cb.MaxHP,
		Status:    string(cb.Status),
	})
}

func (s *Server) recentActivity(c echo.Context) error {
	items, err := s.combat.RecentActivity(c.Request().Context(), c.Param("game"), limitParam(c, defaultActivityLimit))
	if err != nil {
		return err
	}
	if items == nil {
		return c.JSON(http.StatusOK, []any{})
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) listRoster(c echo.Context) error {
	roster, err := s.combat.Roster(c.Request().Context(), userOf(c), c.Param("game"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, roster)
}

func (s *Server) listActions(c echo.Context) error {
	actions, err := s.combat.Actions(c.Request().Context(), c.Param("game"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, actions)
}

func (s *Server) createAction(c echo.Context) error {
	var req createActionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	a, err := s.combat.CreateAction(c.Request().Context(), userOf(c), combat.Action{
		ID:         req.ID,
		GameID:     c.Param("game"),
		Name:       req.Name,
		DieSides:   req.DieSides,
		DieCount:   req.DieCount,
		Modifier:   req.Modifier,
		DamageType: req.DamageType,
		TargetType: combat.TargetType(req.TargetType),
		Healing:    req.Healing,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (s *Server) pendingRequests(c echo.Context) error {
	reqs, err := s.combat.PendingRequests(c.Request().Context(), userOf(c), c.Param("game"))
	if err != nil {
		return err
	}
	if reqs == nil {
		reqs = []confirm.Request{}
	}
	return c.JSON(http.StatusOK, reqs)
}

func (s *Server) confirmHit(c echo.Context) error {
	var req confirmRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := s.combat.ConfirmHit(c.Request().Context(), userOf(c), c.Param("game"), c.Param("request"), *req.Hit); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
