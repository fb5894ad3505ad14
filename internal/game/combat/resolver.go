package combat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/dice"
)

// CriticalRule turns a critical total into the damage dealt to each target.
type CriticalRule func(total int) int

// Notifier receives human-readable descriptions of resolved actions.
// Using a local interface keeps combat free of the activity package.
type Notifier interface {
	Emit(ctx context.Context, gameID, message string)
}

// Actor identifies who performed an action.
type Actor struct {
	Ref
	Name string
}

// ActionRequest is a resolved attack to apply.
type ActionRequest struct {
	EncounterID string
	GameID      string
	Actor       Actor
	Action      Action
	Targets     []Ref
	// Damage, when non-nil, is the amount entered by the actor after the
	// master confirmed the hit. No dice are rolled and no critical applies.
	Damage *int
}

// HealRequest is a heal to apply. Amount nil rolls the action's dice.
type HealRequest struct {
	EncounterID string
	GameID      string
	Actor       Actor
	Action      Action
	Targets     []Ref
	Amount      *int
}

// Outcome reports the effect of a resolved action.
type Outcome struct {
	Roll            dice.RollResult
	Amount          int
	Critical        bool
	Fumble          bool
	CriticalTargets []Ref
	Targets         []Combatant
	Breakdown       []TargetDamage
}

// Resolver applies resolved actions to the roster and writes the combat log.
type Resolver struct {
	roster   Roster
	logs     LogStore
	roller   *dice.Roller
	critical CriticalRule
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithCriticalRule replaces the default doubling rule.
func WithCriticalRule(rule CriticalRule) ResolverOption {
	return func(r *Resolver) {
		if rule != nil {
			r.critical = rule
		}
	}
}

// WithNotifier sets the activity notifier.
func WithNotifier(n Notifier) ResolverOption {
	return func(r *Resolver) { r.notifier = n }
}

// WithClock overrides time.Now for log timestamps.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates a Resolver.
//
// Precondition: roster, logs, roller and logger must be non-nil.
func NewResolver(roster Roster, logs LogStore, roller *dice.Roller, logger *zap.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		roster:   roster,
		logs:     logs,
		roller:   roller,
		critical: dice.ApplyCriticalDamage,
		logger:   logger,
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Execute resolves a damaging action against its targets.
//
// Precondition: the hit has been confirmed by the master.
// Postcondition: on success every target has lost the same amount (doubled
// through the critical rule when the roll was critical), NPCs at 0 HP are
// deleted, players at 0 HP are inactive, and one log entry is written. A log
// write failure is logged and does not undo the damage.
//
// Targets are written one at a time, not atomically. When a roster write
// fails after earlier targets were hit, the returned Outcome lists only the
// applied targets, that partial result is logged, and the error wraps
// ErrPartiallyApplied.
func (r *Resolver) Execute(ctx context.Context, req ActionRequest) (Outcome, error) {
	if req.Action.Healing {
		return Outcome{}, ErrHealingAction
	}
	if err := req.Action.CheckTargets(len(req.Targets)); err != nil {
		return Outcome{}, err
	}
	if req.Damage != nil && *req.Damage < 0 {
		return Outcome{}, ErrInvalidAmount
	}
	targets, err := r.loadTargets(ctx, req.Targets)
	if err != nil {
		return Outcome{}, err
	}

	roll, err := r.rollOrEnter(req.Action, req.Damage)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Roll: roll, Critical: roll.Critical, Fumble: roll.Fumble}
	amount := max(0, roll.Total())
	if roll.Critical {
		amount = max(0, r.critical(amount))
	}
	out.Amount = amount

	for _, t := range targets {
		td := TargetDamage{Ref: Ref{Kind: t.Kind, ID: t.ID}, Name: t.Name, Amount: amount, HPBefore: t.CurrentHP, Critical: roll.Critical}
		t.ApplyDamage(amount)
		td.HPAfter = t.CurrentHP
		if t.CurrentHP == 0 && t.Kind == KindNPC {
			if err := r.roster.Delete(ctx, td.Ref); err != nil {
				return out, r.abort(ctx, req.EncounterID, req.Actor, req.Action, out, false,
					fmt.Errorf("removing defeated npc %q: %w", t.ID, err))
			}
			td.Removed = true
			td.Status = StatusDead
			t.Status = StatusDead
		} else {
			if t.CurrentHP == 0 && t.Kind == KindPlayer && t.Status == StatusActive {
				t.Status = StatusInactive
			}
			if err := r.roster.UpdateHealth(ctx, t); err != nil {
				return out, r.abort(ctx, req.EncounterID, req.Actor, req.Action, out, false,
					fmt.Errorf("updating health of %q: %w", t.ID, err))
			}
			td.Status = t.Status
		}
		if roll.Critical {
			out.CriticalTargets = append(out.CriticalTargets, td.Ref)
		}
		out.Targets = append(out.Targets, t)
		out.Breakdown = append(out.Breakdown, td)
	}

	r.record(ctx, req.EncounterID, req.Actor, req.Action, req.Targets, out, false)
	r.notify(ctx, req.GameID, describe(req.Actor.Name, req.Action.Name, out, false))
	return out, nil
}

// Heal resolves a healing action. HP is capped at max and status is never
// changed; reviving goes through Resurrect. A roster failure part way through
// behaves as in Execute.
func (r *Resolver) Heal(ctx context.Context, req HealRequest) (Outcome, error) {
	if !req.Action.Healing {
		return Outcome{}, ErrNotHealingAction
	}
	if err := req.Action.CheckTargets(len(req.Targets)); err != nil {
		return Outcome{}, err
	}
	if req.Amount != nil && *req.Amount < 0 {
		return Outcome{}, ErrInvalidAmount
	}
	targets, err := r.loadTargets(ctx, req.Targets)
	if err != nil {
		return Outcome{}, err
	}
	roll, err := r.rollOrEnter(req.Action, req.Amount)
	if err != nil {
		return Outcome{}, err
	}
	amount := max(0, roll.Total())
	out := Outcome{Roll: roll, Amount: amount, Fumble: roll.Fumble}

	for _, t := range targets {
		td := TargetDamage{Ref: Ref{Kind: t.Kind, ID: t.ID}, Name: t.Name, Amount: amount, HPBefore: t.CurrentHP}
		if t.Status != StatusDead {
			t.ApplyHealing(amount)
		}
		td.HPAfter = t.CurrentHP
		td.Status = t.Status
		if err := r.roster.UpdateHealth(ctx, t); err != nil {
			return out, r.abort(ctx, req.EncounterID, req.Actor, req.Action, out, true,
				fmt.Errorf("updating health of %q: %w", t.ID, err))
		}
		out.Targets = append(out.Targets, t)
		out.Breakdown = append(out.Breakdown, td)
	}

	r.record(ctx, req.EncounterID, req.Actor, req.Action, req.Targets, out, true)
	r.notify(ctx, req.GameID, describe(req.Actor.Name, req.Action.Name, out, true))
	return out, nil
}

// Resurrect restores a player or surviving NPC to full health and active status.
func (r *Resolver) Resurrect(ctx context.Context, gameID string, ref Ref) (Combatant, error) {
	c, err := r.roster.Get(ctx, ref)
	if err != nil {
		return Combatant{}, err
	}
	c.CurrentHP = c.MaxHP
	c.Status = StatusActive
	if err := r.roster.UpdateHealth(ctx, c); err != nil {
		return Combatant{}, fmt.Errorf("resurrecting %q: %w", ref.ID, err)
	}
	r.notify(ctx, gameID, fmt.Sprintf("%s was restored to full health", c.Name))
	return c, nil
}

func (r *Resolver) loadTargets(ctx context.Context, refs []Ref) ([]Combatant, error) {
	out := make([]Combatant, 0, len(refs))
	seen := make(map[Ref]bool, len(refs))
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		c, err := r.roster.Get(ctx, ref)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("target %s %q: %w", ref.Kind, ref.ID, err)
			}
			return nil, fmt.Errorf("loading target %q: %w", ref.ID, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *Resolver) rollOrEnter(a Action, entered *int) (dice.RollResult, error) {
	if entered != nil {
		return dice.RollResult{Expression: "manual", Dice: []int{*entered}}, nil
	}
	if err := a.Validate(); err != nil {
		return dice.RollResult{}, err
	}
	return r.roller.Roll(a.Expression())
}

// abort finishes a resolution that failed on a roster write. Targets already
// written stay written: they are logged and reported through
// ErrPartiallyApplied.
func (r *Resolver) abort(ctx context.Context, encounterID string, actor Actor, a Action, out Outcome, healing bool, err error) error {
	if len(out.Breakdown) == 0 {
		return err
	}
	applied := make([]Ref, 0, len(out.Breakdown))
	for _, td := range out.Breakdown {
		applied = append(applied, td.Ref)
	}
	r.logger.Error("action applied to some targets only",
		zap.String("encounter_id", encounterID),
		zap.String("action", a.Name),
		zap.Int("applied", len(applied)),
		zap.Error(err),
	)
	r.record(ctx, encounterID, actor, a, applied, out, healing)
	return fmt.Errorf("%w: %w", ErrPartiallyApplied, err)
}

func (r *Resolver) record(ctx context.Context, encounterID string, actor Actor, a Action, targets []Ref, out Outcome, healing bool) {
	entry := LogEntry{
		ID:          uuid.NewString(),
		EncounterID: encounterID,
		Actor:       actor.Ref,
		ActorName:   actor.Name,
		ActionID:    a.ID,
		ActionName:  a.Name,
		DieSides:    a.DieSides,
		DieCount:    a.DieCount,
		Modifier:    a.Modifier,
		Rolls:       out.Roll.Dice,
		RollTotal:   out.Roll.Total(),
		FinalAmount: out.Amount,
		Critical:    out.Critical,
		Fumble:      out.Fumble,
		Healing:     healing,
		Targets:     targets,
		Breakdown:   out.Breakdown,
		CreatedAt:   r.now(),
	}
	if err := r.logs.AppendLog(ctx, entry); err != nil {
		r.logger.Error("writing combat log",
			zap.String("encounter_id", encounterID),
			zap.String("action", a.Name),
			zap.Error(err),
		)
	}
}

func (r *Resolver) notify(ctx context.Context, gameID, msg string) {
	if r.notifier == nil || gameID == "" {
		return
	}
	r.notifier.Emit(ctx, gameID, msg)
}

// describe renders an outcome as e.g. "Kara used Fireball on Goblin, Orc for 12 damage (critical)".
func describe(actor, action string, out Outcome, healing bool) string {
	names := make([]string, 0, len(out.Breakdown))
	for _, td := range out.Breakdown {
		names = append(names, td.Name)
	}
	verb := "damage"
	if healing {
		verb = "healing"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s used %s on %s for %d %s", actor, action, strings.Join(names, ", "), out.Amount, verb)
	if out.Critical {
		b.WriteString(" (critical)")
	}
	if out.Fumble {
		b.WriteString(" (fumble)")
	}
	for _, td := range out.Breakdown {
		switch {
		case td.Removed:
			fmt.Fprintf(&b, "; %s was defeated", td.Name)
		case !healing && td.HPAfter == 0:
			fmt.Fprintf(&b, "; %s fell unconscious", td.Name)
		}
	}
	return b.String()
}
