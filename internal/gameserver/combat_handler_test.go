package gameserver_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/activity"
	"github.com/cory-johannsen/skirmish/internal/game/authz"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/confirm"
	"github.com/cory-johannsen/skirmish/internal/game/dice"
	"github.com/cory-johannsen/skirmish/internal/game/encounter"
	"github.com/cory-johannsen/skirmish/internal/gameserver"
	"github.com/cory-johannsen/skirmish/internal/pubsub"
	"github.com/cory-johannsen/skirmish/internal/storage/memory"
)

const (
	gameID   = "g1"
	masterID = "gm"
	playerID = "u-kara"
)

var (
	kara   = combat.Ref{Kind: combat.KindPlayer, ID: "p-kara"}
	goblin = combat.Ref{Kind: combat.KindNPC, ID: "n-goblin"}
)

type fixture struct {
	h      *gameserver.CombatHandler
	store  *memory.Store
	flaky  *flakyRoster
	feed   *activity.MemoryFeed
	cancel context.CancelFunc
}

// flakyRoster fails the next failures health writes.
type flakyRoster struct {
	*memory.Store
	failures atomic.Int32
}

func (r *flakyRoster) UpdateHealth(ctx context.Context, c combat.Combatant) error {
	if r.failures.Add(-1) >= 0 {
		return errors.New("connection reset")
	}
	return r.Store.UpdateHealth(ctx, c)
}

// newFixture builds a handler over the memory store. Dice come from faces in
// order.
func newFixture(t *testing.T, faces ...int) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	logger := zap.NewNop()
	store := memory.New()
	store.PutGame(memory.Game{ID: gameID, Name: "Test", MasterID: masterID})
	require.NoError(t, store.PutCombatant(combat.Combatant{ID: kara.ID, GameID: gameID, Kind: combat.KindPlayer, OwnerID: playerID, Name: "Kara", MaxHP: 20, CurrentHP: 20}))
	require.NoError(t, store.PutCombatant(combat.Combatant{ID: goblin.ID, GameID: gameID, Kind: combat.KindNPC, Name: "Goblin", MaxHP: 7, CurrentHP: 7}))
	require.NoError(t, store.CreateAction(ctx, combat.Action{ID: "a-sword", GameID: gameID, Name: "Sword", DieSides: 8, DieCount: 1, Modifier: 2, TargetType: combat.TargetSingle}))
	require.NoError(t, store.CreateAction(ctx, combat.Action{ID: "a-cure", GameID: gameID, Name: "Cure", DieSides: 4, DieCount: 1, TargetType: combat.TargetSingle, Healing: true}))

	bus := pubsub.NewMemoryBus(logger)
	roller := dice.NewLoggedRoller(dice.NewSeqSource(faces...), logger)
	feed := activity.NewMemoryFeed(50)
	sink := activity.NewSink(logger, nil, feed)
	flaky := &flakyRoster{Store: store}
	h := gameserver.NewCombatHandler(gameserver.Deps{
		Encounters: encounter.NewService(store, logger, encounter.Options{}),
		Resolver:   combat.NewResolver(flaky, store, roller, logger, combat.WithNotifier(sink)),
		Requester:  confirm.NewRequester(ctx, bus, logger, 0),
		Desk:       confirm.NewDesk(ctx, bus, logger),
		Auth:       authz.NewChecker(store, store),
		Roster:     store,
		Actions:    store,
		Logs:       store,
		Activity:   sink,
		Bus:        bus,
		Dice:       roller,
		Logger:     logger,
	})
	t.Cleanup(func() {
		cancel()
		_ = bus.Close()
	})
	return &fixture{h: h, store: store, flaky: flaky, feed: feed, cancel: cancel}
}

// activeEncounter sets up an active encounter where Kara (18) acts before
// the goblin (5).
func (f *fixture) activeEncounter(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	snap, err := f.h.CreateEncounter(ctx, masterID, gameID, "Ambush")
	require.NoError(t, err)
	id := snap.Encounter.ID

	k, err := f.h.AddParticipant(ctx, masterID, id, kara)
	require.NoError(t, err)
	_, err = f.h.AddParticipant(ctx, masterID, id, goblin)
	require.NoError(t, err)

	_, err = f.h.RollInitiative(ctx, playerID, k.ID, intp(18))
	require.NoError(t, err)
	_, err = f.h.RollForNPCs(ctx, masterID, id)
	require.NoError(t, err)
	_, err = f.h.CalculateTurnOrder(ctx, masterID, id)
	require.NoError(t, err)
	_, err = f.h.Activate(ctx, masterID, id)
	require.NoError(t, err)
	return id
}

func intp(v int) *int { return &v }

// confirmAndResolve answers the request as master and settles it as the
// requesting user once the answer has arrived.
func (f *fixture) confirmAndResolve(t *testing.T, userID, requestID string, hit bool, damage *int) gameserver.Resolution {
	t.Helper()
	ctx := context.Background()
	require.Eventually(t, func() bool {
		pending, err := f.h.PendingRequests(ctx, masterID, gameID)
		return err == nil && len(pending) == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, f.h.ConfirmHit(ctx, masterID, gameID, requestID, hit))

	var (
		res gameserver.Resolution
		err error
	)
	require.Eventually(t, func() bool {
		res, err = f.h.ResolveAction(ctx, userID, requestID, damage)
		return !errors.Is(err, confirm.ErrAwaitingMaster)
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, err)
	return res
}

func TestCombatHandler_SetupIsMasterOnly(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	_, err := f.h.CreateEncounter(ctx, playerID, gameID, "nope")
	assert.ErrorIs(t, err, authz.ErrNotMaster)
	_, err = f.h.CreateEncounter(ctx, masterID, "unknown", "nope")
	assert.ErrorIs(t, err, authz.ErrGameNotFound)

	snap, err := f.h.CreateEncounter(ctx, masterID, gameID, "Ambush")
	require.NoError(t, err)
	_, err = f.h.AddParticipant(ctx, playerID, snap.Encounter.ID, kara)
	assert.ErrorIs(t, err, authz.ErrNotMaster)
	_, err = f.h.AddParticipant(ctx, masterID, snap.Encounter.ID, combat.Ref{Kind: combat.KindNPC, ID: "ghost"})
	assert.ErrorIs(t, err, combat.ErrNotFound)
}

func TestCombatHandler_RollInitiative_OwnershipAndServerRoll(t *testing.T) {
	f := newFixture(t, 14)
	ctx := context.Background()
	snap, err := f.h.CreateEncounter(ctx, masterID, gameID, "Ambush")
	require.NoError(t, err)
	k, err := f.h.AddParticipant(ctx, masterID, snap.Encounter.ID, kara)
	require.NoError(t, err)
	g, err := f.h.AddParticipant(ctx, masterID, snap.Encounter.ID, goblin)
	require.NoError(t, err)

	_, err = f.h.RollInitiative(ctx, "someone-else", k.ID, intp(10))
	assert.ErrorIs(t, err, authz.ErrNotOwner)
	_, err = f.h.RollInitiative(ctx, playerID, g.ID, intp(10))
	assert.ErrorIs(t, err, authz.ErrNotMaster)

	rolled, err := f.h.RollInitiative(ctx, playerID, k.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, rolled.Initiative)
	assert.Equal(t, 14, *rolled.Initiative)
}

func TestCombatHandler_AdvanceTurn_RequiresTurnOwner(t *testing.T) {
	f := newFixture(t, 5)
	id := f.activeEncounter(t)
	ctx := context.Background()

	snap, err := f.h.Encounter(ctx, id)
	require.NoError(t, err)
	view := gameserver.NewEncounterView(snap)
	require.Len(t, view.Entries, 2)
	assert.Equal(t, kara.ID, view.Entries[0].ParticipantID)
	assert.Equal(t, view.Entries[0].ID, view.CurrentEntry)

	_, _, err = f.h.AdvanceTurn(ctx, "stranger", id)
	assert.ErrorIs(t, err, authz.ErrOutOfTurn)

	_, adv, err := f.h.AdvanceTurn(ctx, playerID, id)
	require.NoError(t, err)
	assert.Equal(t, goblin.ID, adv.Next.ParticipantID)

	// the goblin's turn belongs to the master
	_, _, err = f.h.AdvanceTurn(ctx, playerID, id)
	assert.ErrorIs(t, err, authz.ErrOutOfTurn)
	_, adv, err = f.h.AdvanceTurn(ctx, masterID, id)
	require.NoError(t, err)
	assert.True(t, adv.RoundComplete)
	assert.Equal(t, 2, adv.Round)
}

func TestCombatHandler_Attack_MissAbandonsAction(t *testing.T) {
	f := newFixture(t, 5)
	id := f.activeEncounter(t)
	ctx := context.Background()

	reqID, err := f.h.RequestAction(ctx, playerID, id, gameserver.ActionInput{ActionID: "a-sword", Targets: []combat.Ref{goblin}})
	require.NoError(t, err)
	res := f.confirmAndResolve(t, playerID, reqID, false, nil)
	assert.False(t, res.Hit)

	logs, err := f.h.CombatLog(ctx, id, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
	g, err := f.store.Get(ctx, goblin)
	require.NoError(t, err)
	assert.Equal(t, 7, g.CurrentHP)

	snap, err := f.h.Encounter(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Encounter.CurrentTurn, "a miss does not consume the turn")
}

func TestCombatHandler_Attack_HitKillsLastNPCAndFinishes(t *testing.T) {
	// faces: goblin initiative 5, then the sword's d8 roll of 6 (+2 = 8)
	f := newFixture(t, 5, 6)
	id := f.activeEncounter(t)
	ctx := context.Background()

	reqID, err := f.h.RequestAction(ctx, playerID, id, gameserver.ActionInput{ActionID: "a-sword", Targets: []combat.Ref{goblin}})
	require.NoError(t, err)
	res := f.confirmAndResolve(t, playerID, reqID, true, nil)
	require.True(t, res.Hit)
	assert.Equal(t, 8, res.Outcome.Amount)
	require.Len(t, res.Outcome.Breakdown, 1)
	assert.True(t, res.Outcome.Breakdown[0].Removed)
	assert.True(t, res.Finished)

	_, err = f.store.Get(ctx, goblin)
	assert.ErrorIs(t, err, combat.ErrNotFound)

	snap, err := f.h.Encounter(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, encounter.StatusFinished, snap.Encounter.Status)

	logs, err := f.h.CombatLog(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Sword", logs[0].ActionName)

	items, err := f.h.RecentActivity(ctx, gameID, 10)
	require.NoError(t, err)
	var messages []string
	for _, it := range items {
		messages = append(messages, it.Message)
	}
	assert.Contains(t, messages, "Kara used Sword on Goblin for 8 damage; Goblin was defeated")
}

func TestCombatHandler_Attack_ManualDamage(t *testing.T) {
	f := newFixture(t, 5)
	id := f.activeEncounter(t)
	ctx := context.Background()

	reqID, err := f.h.RequestAction(ctx, playerID, id, gameserver.ActionInput{ActionID: "a-sword", Targets: []combat.Ref{goblin}})
	require.NoError(t, err)
	res := f.confirmAndResolve(t, playerID, reqID, true, intp(3))
	assert.Equal(t, 3, res.Outcome.Amount)
	assert.False(t, res.Finished)

	g, err := f.store.Get(ctx, goblin)
	require.NoError(t, err)
	assert.Equal(t, 4, g.CurrentHP)
}

func TestCombatHandler_ResolveAction_StoreFailureKeepsConfirmation(t *testing.T) {
	f := newFixture(t, 5)
	id := f.activeEncounter(t)
	ctx := context.Background()

	reqID, err := f.h.RequestAction(ctx, playerID, id, gameserver.ActionInput{ActionID: "a-sword", Targets: []combat.Ref{goblin}})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		pending, err := f.h.PendingRequests(ctx, masterID, gameID)
		return err == nil && len(pending) == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, f.h.ConfirmHit(ctx, masterID, gameID, reqID, true))

	f.flaky.failures.Store(1)
	require.Eventually(t, func() bool {
		_, err = f.h.ResolveAction(ctx, playerID, reqID, intp(3))
		return !errors.Is(err, confirm.ErrAwaitingMaster)
	}, 2*time.Second, 5*time.Millisecond)
	require.Error(t, err)
	assert.NotErrorIs(t, err, confirm.ErrUnknownRequest)

	g, err := f.store.Get(ctx, goblin)
	require.NoError(t, err)
	assert.Equal(t, 7, g.CurrentHP)

	res, err := f.h.ResolveAction(ctx, playerID, reqID, intp(3))
	require.NoError(t, err)
	assert.True(t, res.Hit)
	g, err = f.store.Get(ctx, goblin)
	require.NoError(t, err)
	assert.Equal(t, 4, g.CurrentHP)

	_, err = f.h.ResolveAction(ctx, playerID, reqID, intp(3))
	assert.ErrorIs(t, err, confirm.ErrUnknownRequest)
}

func TestCombatHandler_ResolveAction_StaleTurnDropsRequest(t *testing.T) {
	f := newFixture(t, 5)
	id := f.activeEncounter(t)
	ctx := context.Background()

	reqID, err := f.h.RequestAction(ctx, playerID, id, gameserver.ActionInput{ActionID: "a-sword", Targets: []combat.Ref{goblin}})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		pending, err := f.h.PendingRequests(ctx, masterID, gameID)
		return err == nil && len(pending) == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, f.h.ConfirmHit(ctx, masterID, gameID, reqID, true))
	_, _, err = f.h.AdvanceTurn(ctx, masterID, id)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err = f.h.ResolveAction(ctx, playerID, reqID, intp(3))
		return !errors.Is(err, confirm.ErrAwaitingMaster)
	}, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, err, gameserver.ErrActorMismatch)
	_, err = f.h.ResolveAction(ctx, playerID, reqID, intp(3))
	assert.ErrorIs(t, err, confirm.ErrUnknownRequest)
}

func TestCombatHandler_Attack_Blocking(t *testing.T) {
	f := newFixture(t, 5, 1)
	id := f.activeEncounter(t)
	ctx := context.Background()

	go func() {
		assert.Eventually(t, func() bool {
			pending, err := f.h.PendingRequests(ctx, masterID, gameID)
			if err != nil || len(pending) != 1 {
				return false
			}
			return f.h.ConfirmHit(ctx, masterID, gameID, pending[0].RequestID, true) == nil
		}, 2*time.Second, 5*time.Millisecond)
	}()

	res, err := f.h.Attack(ctx, playerID, id, gameserver.ActionInput{ActionID: "a-sword", Targets: []combat.Ref{goblin}}, nil, 0)
	require.NoError(t, err)
	assert.True(t, res.Hit)
	assert.Equal(t, 3, res.Outcome.Amount)
}

func TestCombatHandler_Attack_WaitElapsesLeavesRequestPending(t *testing.T) {
	f := newFixture(t, 5, 1)
	id := f.activeEncounter(t)
	ctx := context.Background()

	res, err := f.h.Attack(ctx, playerID, id, gameserver.ActionInput{ActionID: "a-sword", Targets: []combat.Ref{goblin}}, nil, 50*time.Millisecond)
	require.ErrorIs(t, err, confirm.ErrAwaitingMaster)
	require.NotEmpty(t, res.RequestID)

	late := f.confirmAndResolve(t, playerID, res.RequestID, true, nil)
	assert.True(t, late.Hit)
	assert.Equal(t, 3, late.Outcome.Amount)
	g, err := f.store.Get(ctx, goblin)
	require.NoError(t, err)
	assert.Equal(t, 4, g.CurrentHP)
}

func TestCombatHandler_RequestAction_Rejections(t *testing.T) {
	f := newFixture(t, 5)
	id := f.activeEncounter(t)
	ctx := context.Background()

	_, err := f.h.RequestAction(ctx, "stranger", id, gameserver.ActionInput{ActionID: "a-sword", Targets: []combat.Ref{goblin}})
	assert.ErrorIs(t, err, authz.ErrOutOfTurn)
	_, err = f.h.RequestAction(ctx, playerID, id, gameserver.ActionInput{ActionID: "a-cure", Targets: []combat.Ref{kara}})
	assert.ErrorIs(t, err, confirm.ErrHealing)
	_, err = f.h.RequestAction(ctx, playerID, id, gameserver.ActionInput{ActionID: "a-sword"})
	assert.ErrorIs(t, err, combat.ErrNoTargets)
	_, err = f.h.RequestAction(ctx, playerID, id, gameserver.ActionInput{ActionID: "missing", Targets: []combat.Ref{goblin}})
	assert.ErrorIs(t, err, combat.ErrActionNotFound)
}

func TestCombatHandler_ResolveAction_OnlyRequesterOrMaster(t *testing.T) {
	f := newFixture(t, 5, 6)
	id := f.activeEncounter(t)
	ctx := context.Background()

	reqID, err := f.h.RequestAction(ctx, playerID, id, gameserver.ActionInput{ActionID: "a-sword", Targets: []combat.Ref{goblin}})
	require.NoError(t, err)
	_, err = f.h.ResolveAction(ctx, "stranger", reqID, nil)
	assert.ErrorIs(t, err, authz.ErrNotOwner)

	res := f.confirmAndResolve(t, masterID, reqID, true, nil)
	assert.True(t, res.Hit)
}

func TestCombatHandler_HealAndResurrect(t *testing.T) {
	f := newFixture(t, 5, 3)
	id := f.activeEncounter(t)
	ctx := context.Background()

	require.NoError(t, f.store.UpdateHealth(ctx, combat.Combatant{ID: kara.ID, Kind: combat.KindPlayer, CurrentHP: 10, Status: combat.StatusActive}))
	out, err := f.h.Heal(ctx, playerID, id, gameserver.ActionInput{ActionID: "a-cure", Targets: []combat.Ref{kara}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Amount)
	k, err := f.store.Get(ctx, kara)
	require.NoError(t, err)
	assert.Equal(t, 13, k.CurrentHP)

	_, err = f.h.Heal(ctx, playerID, id, gameserver.ActionInput{ActionID: "a-sword", Targets: []combat.Ref{kara}}, nil)
	assert.ErrorIs(t, err, combat.ErrNotHealingAction)

	_, err = f.h.Resurrect(ctx, playerID, kara)
	assert.ErrorIs(t, err, authz.ErrNotMaster)
	k, err = f.h.Resurrect(ctx, masterID, kara)
	require.NoError(t, err)
	assert.Equal(t, 20, k.CurrentHP)
	assert.Equal(t, combat.StatusActive, k.Status)
}

func TestCombatHandler_AdvanceTurn_FinishesWhenPlayersDown(t *testing.T) {
	f := newFixture(t, 5)
	id := f.activeEncounter(t)
	ctx := context.Background()

	require.NoError(t, f.store.UpdateHealth(ctx, combat.Combatant{ID: kara.ID, Kind: combat.KindPlayer, CurrentHP: 0, Status: combat.StatusInactive}))
	snap, _, err := f.h.AdvanceTurn(ctx, masterID, id)
	require.NoError(t, err)
	assert.Equal(t, encounter.StatusFinished, snap.Encounter.Status)

	_, err = f.h.ActiveEncounter(ctx, gameID)
	assert.ErrorIs(t, err, encounter.ErrNotFound)
	history, err := f.h.History(ctx, gameID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCombatHandler_CreateAction(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	_, err := f.h.CreateAction(ctx, playerID, combat.Action{ID: "a-x", GameID: gameID, Name: "X", DieSides: 6, DieCount: 1})
	assert.ErrorIs(t, err, authz.ErrNotMaster)
	_, err = f.h.CreateAction(ctx, masterID, combat.Action{ID: "a-x", GameID: gameID, Name: "X", DieSides: 7, DieCount: 1})
	assert.ErrorIs(t, err, combat.ErrInvalidAction)

	a, err := f.h.CreateAction(ctx, masterID, combat.Action{ID: "a-x", GameID: gameID, Name: "X", DieSides: 6, DieCount: 1})
	require.NoError(t, err)
	assert.Equal(t, combat.TargetSingle, a.TargetType)
	list, err := f.h.Actions(ctx, gameID)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}
