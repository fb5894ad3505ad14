// Package gameserver drives encounters on behalf of authenticated users. It
// checks who may act, runs the encounter service and combat resolver, and
// publishes the resulting state on the game channel.
package gameserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/activity"
	"github.com/cory-johannsen/skirmish/internal/game/authz"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/confirm"
	"github.com/cory-johannsen/skirmish/internal/game/dice"
	"github.com/cory-johannsen/skirmish/internal/game/encounter"
	"github.com/cory-johannsen/skirmish/internal/pubsub"
)

// Events published on the game channel in addition to the confirmation
// handshake.
const (
	EventEncounterUpdated = "encounter_updated"
	EventCombatResolved   = "combat_resolved"
)

// ErrActorMismatch is returned when a confirmed request is settled after the
// turn has moved on to someone else.
var ErrActorMismatch = errors.New("gameserver: the requesting participant no longer holds the turn")

// RosterStore is the roster as the handler sees it: combat.Roster plus
// listing.
type RosterStore interface {
	combat.Roster
	ListCombatants(ctx context.Context, gameID string) ([]combat.Combatant, error)
}

// Deps collects the collaborators of a CombatHandler.
type Deps struct {
	Encounters *encounter.Service
	Resolver   *combat.Resolver
	Requester  *confirm.Requester
	Desk       *confirm.Desk
	Auth       *authz.Checker
	Roster     RosterStore
	Actions    combat.ActionStore
	Logs       combat.LogStore
	Activity   *activity.Sink
	Bus        pubsub.Bus
	Dice       *dice.Roller
	Logger     *zap.Logger
}

// CombatHandler handles encounter setup, turn advancement, attacks with master
// confirmation, healing and resurrection.
//
// Precondition: every Deps field must be non-nil.
type CombatHandler struct {
	encounters *encounter.Service
	resolver   *combat.Resolver
	requester  *confirm.Requester
	desk       *confirm.Desk
	auth       *authz.Checker
	roster     RosterStore
	actions    combat.ActionStore
	logs       combat.LogStore
	activity   *activity.Sink
	bus        pubsub.Bus
	dice       *dice.Roller
	logger     *zap.Logger
}

// NewCombatHandler creates a CombatHandler.
//
// Postcondition: Returns a non-nil CombatHandler.
func NewCombatHandler(d Deps) *CombatHandler {
	return &CombatHandler{
		encounters: d.Encounters,
		resolver:   d.Resolver,
		requester:  d.Requester,
		desk:       d.Desk,
		auth:       d.Auth,
		roster:     d.Roster,
		actions:    d.Actions,
		logs:       d.Logs,
		activity:   d.Activity,
		bus:        d.Bus,
		dice:       d.Dice,
		logger:     d.Logger,
	}
}

// CreateEncounter opens a setup encounter. Master only.
func (h *CombatHandler) CreateEncounter(ctx context.Context, userID, gameID, name string) (encounter.Snapshot, error) {
	if err := h.auth.RequireMaster(ctx, gameID, userID); err != nil {
		return encounter.Snapshot{}, err
	}
	enc, err := h.encounters.CreateEncounter(ctx, gameID, name, userID)
	if err != nil {
		return encounter.Snapshot{}, err
	}
	snap := encounter.Snapshot{Encounter: enc}
	h.broadcast(ctx, userID, snap)
	h.activity.Emit(ctx, gameID, fmt.Sprintf("Encounter %q created", displayName(enc)))
	return snap, nil
}

// ActiveEncounter returns the game's open encounter with its entries.
func (h *CombatHandler) ActiveEncounter(ctx context.Context, gameID string) (encounter.Snapshot, error) {
	enc, err := h.encounters.GetActiveEncounter(ctx, gameID)
	if err != nil {
		return encounter.Snapshot{}, err
	}
	return h.encounters.Snapshot(ctx, enc.ID)
}

// Encounter returns an encounter with its entries.
func (h *CombatHandler) Encounter(ctx context.Context, encounterID string) (encounter.Snapshot, error) {
	return h.encounters.Snapshot(ctx, encounterID)
}

// History lists a game's encounters, newest first.
func (h *CombatHandler) History(ctx context.Context, gameID string) ([]encounter.Encounter, error) {
	return h.encounters.History(ctx, gameID)
}

// AddParticipant puts a roster combatant of the encounter's game into the
// encounter. Master only.
//
// Postcondition: Returns combat.ErrNotFound when the combatant is not on the
// game's roster.
func (h *CombatHandler) AddParticipant(ctx context.Context, userID, encounterID string, ref combat.Ref) (encounter.Entry, error) {
	snap, err := h.masterSnapshot(ctx, userID, encounterID)
	if err != nil {
		return encounter.Entry{}, err
	}
	c, err := h.roster.Get(ctx, ref)
	if err != nil {
		return encounter.Entry{}, err
	}
	if c.GameID != snap.Encounter.GameID {
		return encounter.Entry{}, fmt.Errorf("%s %q is not in game %q: %w", ref.Kind, ref.ID, snap.Encounter.GameID, combat.ErrNotFound)
	}
	entry, err := h.encounters.AddParticipant(ctx, encounterID, participantType(ref.Kind), ref.ID)
	if err != nil {
		return encounter.Entry{}, err
	}
	_, _ = h.refresh(ctx, userID, encounterID)
	return entry, nil
}

// RemoveParticipant drops an entry during setup. Master only.
func (h *CombatHandler) RemoveParticipant(ctx context.Context, userID, entryID string) (encounter.Snapshot, error) {
	encounterID, err := h.encounters.EncounterOfEntry(ctx, entryID)
	if err != nil {
		return encounter.Snapshot{}, err
	}
	if _, err := h.masterSnapshot(ctx, userID, encounterID); err != nil {
		return encounter.Snapshot{}, err
	}
	snap, err := h.encounters.RemoveParticipant(ctx, entryID)
	if err != nil {
		return encounter.Snapshot{}, err
	}
	h.broadcast(ctx, userID, snap)
	return snap, nil
}

// RollInitiative records an initiative for one entry. A nil value rolls a
// d20 on the server. The participant's controller or the master may roll.
func (h *CombatHandler) RollInitiative(ctx context.Context, userID, entryID string, value *int) (encounter.Entry, error) {
	encounterID, err := h.encounters.EncounterOfEntry(ctx, entryID)
	if err != nil {
		return encounter.Entry{}, err
	}
	snap, err := h.encounters.Snapshot(ctx, encounterID)
	if err != nil {
		return encounter.Entry{}, err
	}
	entry, ok := snap.Entry(entryID)
	if !ok {
		return encounter.Entry{}, encounter.ErrNotFound
	}
	if err := h.auth.RequireController(ctx, snap.Encounter.GameID, userID, authz.RefOf(entry)); err != nil {
		return encounter.Entry{}, err
	}
	var v int
	if value != nil {
		v = *value
	} else {
		v = h.dice.RollInitiative()
	}
	entry, err = h.encounters.RollInitiative(ctx, entryID, v)
	if err != nil {
		return encounter.Entry{}, err
	}
	_, _ = h.refresh(ctx, userID, encounterID)
	return entry, nil
}

// RollForNPCs rolls initiative for every NPC entry that has none. Master only.
func (h *CombatHandler) RollForNPCs(ctx context.Context, userID, encounterID string) (encounter.Snapshot, error) {
	snap, err := h.masterSnapshot(ctx, userID, encounterID)
	if err != nil {
		return encounter.Snapshot{}, err
	}
	for _, e := range snap.Entries {
		if e.ParticipantType != encounter.ParticipantNPC || e.Rolled() {
			continue
		}
		if _, err := h.encounters.RollInitiative(ctx, e.ID, h.dice.RollInitiative()); err != nil {
			return encounter.Snapshot{}, fmt.Errorf("rolling for npc %q: %w", e.ParticipantID, err)
		}
	}
	return h.refresh(ctx, userID, encounterID)
}

// CalculateTurnOrder ranks the rolled entries. Master only.
func (h *CombatHandler) CalculateTurnOrder(ctx context.Context, userID, encounterID string) (encounter.Snapshot, error) {
	if _, err := h.masterSnapshot(ctx, userID, encounterID); err != nil {
		return encounter.Snapshot{}, err
	}
	snap, err := h.encounters.CalculateTurnOrder(ctx, encounterID)
	if err != nil {
		return encounter.Snapshot{}, err
	}
	h.broadcast(ctx, userID, snap)
	return snap, nil
}

// Activate starts play. Master only.
func (h *CombatHandler) Activate(ctx context.Context, userID, encounterID string) (encounter.Snapshot, error) {
	if _, err := h.masterSnapshot(ctx, userID, encounterID); err != nil {
		return encounter.Snapshot{}, err
	}
	snap, err := h.encounters.ActivateEncounter(ctx, encounterID)
	if err != nil {
		return encounter.Snapshot{}, err
	}
	h.broadcast(ctx, userID, snap)
	h.activity.Emit(ctx, snap.Encounter.GameID, fmt.Sprintf("Encounter %q began", displayName(snap.Encounter)))
	return snap, nil
}

// Finish ends the encounter. Master only.
func (h *CombatHandler) Finish(ctx context.Context, userID, encounterID string) (encounter.Snapshot, error) {
	if _, err := h.masterSnapshot(ctx, userID, encounterID); err != nil {
		return encounter.Snapshot{}, err
	}
	return h.finish(ctx, userID, encounterID)
}

// AdvanceTurn ends the current participant's turn. The current participant's
// controller or the master may advance. When one side has been wiped out the
// encounter is finished instead.
func (h *CombatHandler) AdvanceTurn(ctx context.Context, userID, encounterID string) (encounter.Snapshot, encounter.Advance, error) {
	snap, err := h.encounters.Snapshot(ctx, encounterID)
	if err != nil {
		return encounter.Snapshot{}, encounter.Advance{}, err
	}
	if snap.Encounter.Status != encounter.StatusActive {
		return encounter.Snapshot{}, encounter.Advance{}, encounter.ErrNotActive
	}
	if err := h.auth.RequireTurn(ctx, snap.Encounter.GameID, userID, snap); err != nil {
		return encounter.Snapshot{}, encounter.Advance{}, err
	}
	wiped, err := h.sideWiped(ctx, snap)
	if err != nil {
		return encounter.Snapshot{}, encounter.Advance{}, err
	}
	if wiped {
		done, err := h.finish(ctx, userID, encounterID)
		return done, encounter.Advance{Round: done.Encounter.CurrentRound}, err
	}

	next, adv, err := h.encounters.AdvanceTurn(ctx, encounterID)
	if err != nil {
		return encounter.Snapshot{}, encounter.Advance{}, err
	}
	h.broadcast(ctx, userID, next)
	if adv.RoundComplete {
		h.activity.Emit(ctx, next.Encounter.GameID, fmt.Sprintf("Round %d begins", adv.Round))
	}
	return next, adv, nil
}

// ActionInput names an action and its targets.
type ActionInput struct {
	ActionID string
	Targets  []combat.Ref
}

// RequestAction starts the hit-confirmation handshake for the current
// participant's attack and returns the request id.
func (h *CombatHandler) RequestAction(ctx context.Context, userID, encounterID string, in ActionInput) (string, error) {
	snap, actor, action, err := h.prepare(ctx, userID, encounterID, in)
	if err != nil {
		return "", err
	}
	if action.Healing {
		return "", confirm.ErrHealing
	}
	if err := action.CheckTargets(len(in.Targets)); err != nil {
		return "", err
	}
	// the desk must be listening before the request goes out
	if err := h.desk.Watch(snap.Encounter.GameID); err != nil {
		return "", fmt.Errorf("watching game %q: %w", snap.Encounter.GameID, err)
	}
	return h.requester.Request(ctx, confirm.Request{
		ActorID:     actor.ID,
		ActorType:   actor.Kind,
		ActorName:   actor.Name,
		Action:      action,
		Targets:     in.Targets,
		GameID:      snap.Encounter.GameID,
		EncounterID: encounterID,
		RequestedBy: userID,
	})
}

// PendingRequests lists the game's unanswered hit requests. Master only.
func (h *CombatHandler) PendingRequests(ctx context.Context, userID, gameID string) ([]confirm.Request, error) {
	if err := h.auth.RequireMaster(ctx, gameID, userID); err != nil {
		return nil, err
	}
	if err := h.desk.Watch(gameID); err != nil {
		return nil, err
	}
	return h.desk.Pending(gameID), nil
}

// ConfirmHit publishes the master's verdict on a pending request.
func (h *CombatHandler) ConfirmHit(ctx context.Context, userID, gameID, requestID string, hit bool) error {
	if err := h.auth.RequireMaster(ctx, gameID, userID); err != nil {
		return err
	}
	return h.desk.Respond(ctx, gameID, requestID, hit, userID)
}

// Resolution is the result of settling a confirmed request.
type Resolution struct {
	RequestID   string
	EncounterID string
	Hit         bool
	Outcome     combat.Outcome
	Finished    bool
}

// ResolveAction settles an answered request. A miss abandons the action
// without a log entry. A hit applies damage, rolled unless damage is given.
//
// Postcondition: Returns confirm.ErrAwaitingMaster while the master has not
// answered.
func (h *CombatHandler) ResolveAction(ctx context.Context, userID, requestID string, damage *int) (Resolution, error) {
	req, ok := h.requester.Lookup(requestID)
	if !ok {
		return Resolution{}, confirm.ErrUnknownRequest
	}
	if req.RequestedBy != userID {
		master, err := h.auth.IsMaster(ctx, req.GameID, userID)
		if err != nil {
			return Resolution{}, err
		}
		if !master {
			return Resolution{}, authz.ErrNotOwner
		}
	}
	req, answer, err := h.requester.Answer(requestID)
	if err != nil {
		return Resolution{}, err
	}
	res := Resolution{RequestID: requestID, EncounterID: req.EncounterID, Hit: answer.Hit}
	if !answer.Hit {
		if _, _, err := h.requester.Take(requestID); err != nil {
			return Resolution{}, err
		}
		h.activity.Emit(ctx, req.GameID, fmt.Sprintf("%s used %s and missed", req.ActorName, req.Action.Name))
		return res, nil
	}

	// Store errors leave the request answered so the caller can retry.
	snap, err := h.encounters.Snapshot(ctx, req.EncounterID)
	if err != nil {
		return Resolution{}, err
	}
	if snap.Encounter.Status != encounter.StatusActive {
		_ = h.requester.Cancel(requestID)
		return Resolution{}, encounter.ErrNotActive
	}
	current, ok := snap.Current()
	if !ok || authz.RefOf(current) != (combat.Ref{Kind: req.ActorType, ID: req.ActorID}) {
		_ = h.requester.Cancel(requestID)
		return Resolution{}, ErrActorMismatch
	}

	// Take claims the request so a concurrent resolve cannot apply it twice.
	if _, _, err := h.requester.Take(requestID); err != nil {
		return Resolution{}, err
	}
	out, err := h.resolver.Execute(ctx, combat.ActionRequest{
		EncounterID: req.EncounterID,
		GameID:      req.GameID,
		Actor:       combat.Actor{Ref: combat.Ref{Kind: req.ActorType, ID: req.ActorID}, Name: req.ActorName},
		Action:      req.Action,
		Targets:     req.Targets,
		Damage:      damage,
	})
	if err != nil {
		if len(out.Breakdown) == 0 {
			h.requester.Restore(req, answer)
		}
		return Resolution{}, err
	}
	res.Outcome = out
	res.Finished, err = h.afterResolution(ctx, userID, req.EncounterID, out)
	return res, err
}

// Attack runs the whole handshake: request, wait for the master, then
// resolve. wait bounds the wait; when it elapses first Attack returns
// confirm.ErrAwaitingMaster with RequestID set, and the request stays pending
// for ResolveAction. wait <= 0 blocks until the master answers, ctx ends or
// the confirmation timeout elapses.
func (h *CombatHandler) Attack(ctx context.Context, userID, encounterID string, in ActionInput, damage *int, wait time.Duration) (Resolution, error) {
	id, err := h.RequestAction(ctx, userID, encounterID, in)
	if err != nil {
		return Resolution{}, err
	}
	waitCtx := ctx
	if wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}
	if _, err := h.requester.Await(waitCtx, id); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return Resolution{RequestID: id}, confirm.ErrAwaitingMaster
		}
		_ = h.requester.Cancel(id)
		return Resolution{}, err
	}
	return h.ResolveAction(ctx, userID, id, damage)
}

// Heal applies a healing action for the current participant. Healing needs
// no hit confirmation.
func (h *CombatHandler) Heal(ctx context.Context, userID, encounterID string, in ActionInput, amount *int) (combat.Outcome, error) {
	snap, actor, action, err := h.prepare(ctx, userID, encounterID, in)
	if err != nil {
		return combat.Outcome{}, err
	}
	out, err := h.resolver.Heal(ctx, combat.HealRequest{
		EncounterID: encounterID,
		GameID:      snap.Encounter.GameID,
		Actor:       combat.Actor{Ref: combat.Ref{Kind: actor.Kind, ID: actor.ID}, Name: actor.Name},
		Action:      action,
		Targets:     in.Targets,
		Amount:      amount,
	})
	if err != nil {
		return combat.Outcome{}, err
	}
	h.publish(ctx, snap.Encounter.GameID, EventCombatResolved, userID, NewOutcomeView(encounterID, out))
	return out, nil
}

// Resurrect restores a combatant to full health. Master only.
func (h *CombatHandler) Resurrect(ctx context.Context, userID string, ref combat.Ref) (combat.Combatant, error) {
	c, err := h.roster.Get(ctx, ref)
	if err != nil {
		return combat.Combatant{}, err
	}
	if err := h.auth.RequireMaster(ctx, c.GameID, userID); err != nil {
		return combat.Combatant{}, err
	}
	return h.resolver.Resurrect(ctx, c.GameID, ref)
}

// CombatLog returns the encounter's most recent limit log entries.
func (h *CombatHandler) CombatLog(ctx context.Context, encounterID string, limit int) ([]combat.LogEntry, error) {
	if _, err := h.encounters.Snapshot(ctx, encounterID); err != nil {
		return nil, err
	}
	return h.logs.ListLogs(ctx, encounterID, limit)
}

// Actions lists the game's move definitions.
func (h *CombatHandler) Actions(ctx context.Context, gameID string) ([]combat.Action, error) {
	return h.actions.ListActions(ctx, gameID)
}

// Roster lists the game's combatants with their current health.
//
// Postcondition: Returns authz.ErrGameNotFound for an unknown game.
func (h *CombatHandler) Roster(ctx context.Context, userID, gameID string) ([]CombatantView, error) {
	if _, err := h.auth.IsMaster(ctx, gameID, userID); err != nil {
		return nil, err
	}
	all, err := h.roster.ListCombatants(ctx, gameID)
	if err != nil {
		return nil, err
	}
	out := make([]CombatantView, 0, len(all))
	for _, c := range all {
		out = append(out, NewCombatantView(c))
	}
	return out, nil
}

// CreateAction stores a move definition. Master only.
func (h *CombatHandler) CreateAction(ctx context.Context, userID string, a combat.Action) (combat.Action, error) {
	if err := h.auth.RequireMaster(ctx, a.GameID, userID); err != nil {
		return combat.Action{}, err
	}
	if a.TargetType == "" {
		a.TargetType = combat.TargetSingle
	}
	if err := a.Validate(); err != nil {
		return combat.Action{}, err
	}
	if err := h.actions.CreateAction(ctx, a); err != nil {
		return combat.Action{}, err
	}
	return a, nil
}

// RecentActivity returns the game's newest n activity lines, oldest first.
func (h *CombatHandler) RecentActivity(ctx context.Context, gameID string, n int) ([]activity.Item, error) {
	return h.activity.Recent(ctx, gameID, n)
}

// prepare loads the encounter, checks userID may act for the current
// participant and resolves the action definition.
func (h *CombatHandler) prepare(ctx context.Context, userID, encounterID string, in ActionInput) (encounter.Snapshot, combat.Combatant, combat.Action, error) {
	snap, err := h.encounters.Snapshot(ctx, encounterID)
	if err != nil {
		return encounter.Snapshot{}, combat.Combatant{}, combat.Action{}, err
	}
	if snap.Encounter.Status != encounter.StatusActive {
		return encounter.Snapshot{}, combat.Combatant{}, combat.Action{}, encounter.ErrNotActive
	}
	if err := h.auth.RequireTurn(ctx, snap.Encounter.GameID, userID, snap); err != nil {
		return encounter.Snapshot{}, combat.Combatant{}, combat.Action{}, err
	}
	current, _ := snap.Current()
	actor, err := h.roster.Get(ctx, authz.RefOf(current))
	if err != nil {
		return encounter.Snapshot{}, combat.Combatant{}, combat.Action{}, fmt.Errorf("loading acting participant: %w", err)
	}
	action, err := h.actions.GetAction(ctx, in.ActionID)
	if err != nil {
		return encounter.Snapshot{}, combat.Combatant{}, combat.Action{}, err
	}
	if action.GameID != "" && action.GameID != snap.Encounter.GameID {
		return encounter.Snapshot{}, combat.Combatant{}, combat.Action{}, combat.ErrActionNotFound
	}
	return snap, actor, action, nil
}

func (h *CombatHandler) afterResolution(ctx context.Context, userID, encounterID string, out combat.Outcome) (bool, error) {
	snap, err := h.encounters.Snapshot(ctx, encounterID)
	if err != nil {
		return false, err
	}
	h.publish(ctx, snap.Encounter.GameID, EventCombatResolved, userID, NewOutcomeView(encounterID, out))
	wiped, err := h.sideWiped(ctx, snap)
	if err != nil || !wiped {
		return false, err
	}
	if _, err := h.finish(ctx, userID, encounterID); err != nil {
		return false, err
	}
	return true, nil
}

// sideWiped loads every participant and reports whether one side is out.
// NPCs missing from the roster have been removed on death.
func (h *CombatHandler) sideWiped(ctx context.Context, snap encounter.Snapshot) (bool, error) {
	var (
		combatants       []combat.Combatant
		players, hasNPCs bool
	)
	for _, e := range snap.Entries {
		if e.ParticipantType == encounter.ParticipantPlayer {
			players = true
		} else {
			hasNPCs = true
		}
		c, err := h.roster.Get(ctx, authz.RefOf(e))
		if errors.Is(err, combat.ErrNotFound) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("loading participant %q: %w", e.ParticipantID, err)
		}
		combatants = append(combatants, c)
	}
	return combat.SideWiped(combatants, players, hasNPCs), nil
}

func (h *CombatHandler) finish(ctx context.Context, userID, encounterID string) (encounter.Snapshot, error) {
	snap, err := h.encounters.FinishEncounter(ctx, encounterID)
	if err != nil {
		return encounter.Snapshot{}, err
	}
	h.broadcast(ctx, userID, snap)
	h.activity.Emit(ctx, snap.Encounter.GameID, fmt.Sprintf("Encounter %q ended after %d rounds", displayName(snap.Encounter), snap.Encounter.CurrentRound))
	return snap, nil
}

func (h *CombatHandler) masterSnapshot(ctx context.Context, userID, encounterID string) (encounter.Snapshot, error) {
	snap, err := h.encounters.Snapshot(ctx, encounterID)
	if err != nil {
		return encounter.Snapshot{}, err
	}
	if err := h.auth.RequireMaster(ctx, snap.Encounter.GameID, userID); err != nil {
		return encounter.Snapshot{}, err
	}
	return snap, nil
}

// refresh reloads and broadcasts the encounter. A reload failure is logged
// only; the mutation has already been committed.
func (h *CombatHandler) refresh(ctx context.Context, userID, encounterID string) (encounter.Snapshot, error) {
	snap, err := h.encounters.Snapshot(ctx, encounterID)
	if err != nil {
		h.logger.Warn("reloading encounter", zap.String("encounter_id", encounterID), zap.Error(err))
		return encounter.Snapshot{}, err
	}
	h.broadcast(ctx, userID, snap)
	return snap, nil
}

func (h *CombatHandler) broadcast(ctx context.Context, userID string, snap encounter.Snapshot) {
	h.publish(ctx, snap.Encounter.GameID, EventEncounterUpdated, userID, NewEncounterView(snap))
}

// publish is fire-and-forget; failures are logged.
func (h *CombatHandler) publish(ctx context.Context, gameID, event, sender string, payload any) {
	if err := pubsub.Publish(ctx, h.bus, gameID, event, sender, payload); err != nil {
		h.logger.Warn("publishing game event",
			zap.String("game_id", gameID),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

func participantType(k combat.Kind) encounter.ParticipantType {
	if k == combat.KindPlayer {
		return encounter.ParticipantPlayer
	}
	return encounter.ParticipantNPC
}

func displayName(enc encounter.Encounter) string {
	if enc.Name != "" {
		return enc.Name
	}
	return enc.ID
}
