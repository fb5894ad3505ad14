package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/authz"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/encounter"
	"github.com/cory-johannsen/skirmish/internal/storage/postgres"
	"github.com/cory-johannsen/skirmish/internal/testutil"
)

func seedGame(t *testing.T, games *postgres.GameRepository, id string) {
	t.Helper()
	require.NoError(t, games.CreateGame(context.Background(), id, "Test Game", "gm-1"))
}

func TestRepositories(t *testing.T) {
	db := testutil.NewMigratedPool(t)
	ctx := context.Background()
	games := postgres.NewGameRepository(db)
	roster := postgres.NewRosterRepository(db)
	encounters := postgres.NewEncounterRepository(db)

	t.Run("games", func(t *testing.T) {
		seedGame(t, games, "g-games")
		master, err := games.MasterOf(ctx, "g-games")
		require.NoError(t, err)
		assert.Equal(t, "gm-1", master)

		require.NoError(t, games.SetMaster(ctx, "g-games", "gm-2"))
		master, err = games.MasterOf(ctx, "g-games")
		require.NoError(t, err)
		assert.Equal(t, "gm-2", master)

		_, err = games.MasterOf(ctx, "missing")
		assert.ErrorIs(t, err, authz.ErrGameNotFound)
		assert.ErrorIs(t, games.SetMaster(ctx, "missing", "x"), authz.ErrGameNotFound)
	})

	t.Run("roster", func(t *testing.T) {
		seedGame(t, games, "g-roster")
		kara := combat.Combatant{ID: "p-kara", GameID: "g-roster", Kind: combat.KindPlayer, OwnerID: "u-1", Name: "Kara", MaxHP: 20, CurrentHP: 20}
		orc := combat.Combatant{ID: "n-orc", GameID: "g-roster", Kind: combat.KindNPC, Name: "Orc", MaxHP: 15, CurrentHP: 15}
		require.NoError(t, roster.AddCombatant(ctx, kara))
		require.NoError(t, roster.AddCombatant(ctx, orc))
		assert.ErrorIs(t, roster.AddCombatant(ctx, combat.Combatant{ID: "x", GameID: "none", Kind: combat.KindNPC, Name: "x"}), authz.ErrGameNotFound)

		got, err := roster.Get(ctx, combat.Ref{Kind: combat.KindPlayer, ID: "p-kara"})
		require.NoError(t, err)
		assert.Equal(t, "u-1", got.OwnerID)
		assert.Equal(t, combat.StatusActive, got.Status)

		got.CurrentHP, got.Status = 0, combat.StatusInactive
		require.NoError(t, roster.UpdateHealth(ctx, got))
		got, err = roster.Get(ctx, combat.Ref{Kind: combat.KindPlayer, ID: "p-kara"})
		require.NoError(t, err)
		assert.Equal(t, 0, got.CurrentHP)
		assert.Equal(t, combat.StatusInactive, got.Status)

		all, err := roster.ListCombatants(ctx, "g-roster")
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, combat.KindPlayer, all[0].Kind)
		assert.Equal(t, combat.KindNPC, all[1].Kind)

		orcRef := combat.Ref{Kind: combat.KindNPC, ID: "n-orc"}
		require.NoError(t, roster.Delete(ctx, orcRef))
		_, err = roster.Get(ctx, orcRef)
		assert.ErrorIs(t, err, combat.ErrNotFound)
		assert.ErrorIs(t, roster.Delete(ctx, orcRef), combat.ErrNotFound)
	})

	t.Run("actions and logs", func(t *testing.T) {
		seedGame(t, games, "g-combat")
		actions := postgres.NewActionRepository(db)
		fireball := combat.Action{ID: "a-fire", GameID: "g-combat", Name: "Fireball", DieSides: 6, DieCount: 3, TargetType: combat.TargetMultiple}
		require.NoError(t, actions.CreateAction(ctx, fireball))
		got, err := actions.GetAction(ctx, "a-fire")
		require.NoError(t, err)
		assert.Equal(t, fireball, got)
		_, err = actions.GetAction(ctx, "nope")
		assert.ErrorIs(t, err, combat.ErrActionNotFound)
		list, err := actions.ListActions(ctx, "g-combat")
		require.NoError(t, err)
		assert.Len(t, list, 1)

		enc := encounter.NewEncounter("e-combat", "g-combat", "Ambush", "gm-1")
		enc.CreatedAt, enc.UpdatedAt = time.Now(), time.Now()
		require.NoError(t, encounters.CreateEncounter(ctx, enc))

		logs := postgres.NewCombatLogRepository(db)
		base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		for i, amount := range []int{5, 9, 12} {
			require.NoError(t, logs.AppendLog(ctx, combat.LogEntry{
				ID:          "log-" + string(rune('a'+i)),
				EncounterID: "e-combat",
				Actor:       combat.Ref{Kind: combat.KindPlayer, ID: "p-1"},
				ActionName:  "Fireball",
				Rolls:       []int{amount},
				RollTotal:   amount,
				FinalAmount: amount,
				Targets:     []combat.Ref{{Kind: combat.KindNPC, ID: "n-1"}},
				Breakdown:   []combat.TargetDamage{{Ref: combat.Ref{Kind: combat.KindNPC, ID: "n-1"}, Amount: amount}},
				CreatedAt:   base.Add(time.Duration(i) * time.Second),
			}))
		}
		recent, err := logs.ListLogs(ctx, "e-combat", 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, 9, recent[0].FinalAmount)
		assert.Equal(t, 12, recent[1].FinalAmount)
		assert.Equal(t, []int{12}, recent[1].Rolls)
		assert.Equal(t, "n-1", recent[1].Targets[0].ID)
		assert.Equal(t, 12, recent[1].Breakdown[0].Amount)

		all, err := logs.ListLogs(ctx, "e-combat", 0)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("encounter service", func(t *testing.T) {
		seedGame(t, games, "g-enc")
		svc := encounter.NewService(encounters, zap.NewNop(), encounter.Options{})

		enc, err := svc.CreateEncounter(ctx, "g-enc", "Bridge", "gm-1")
		require.NoError(t, err)
		_, err = svc.CreateEncounter(ctx, "g-enc", "Again", "gm-1")
		assert.ErrorIs(t, err, encounter.ErrEncounterExists)

		a, err := svc.AddParticipant(ctx, enc.ID, encounter.ParticipantPlayer, "p-1")
		require.NoError(t, err)
		b, err := svc.AddParticipant(ctx, enc.ID, encounter.ParticipantNPC, "n-1")
		require.NoError(t, err)
		_, err = svc.AddParticipant(ctx, enc.ID, encounter.ParticipantNPC, "n-1")
		assert.ErrorIs(t, err, encounter.ErrDuplicateParticipant)

		_, err = svc.RollInitiative(ctx, a.ID, 12)
		require.NoError(t, err)
		_, err = svc.RollInitiative(ctx, b.ID, 18)
		require.NoError(t, err)
		_, err = svc.CalculateTurnOrder(ctx, enc.ID)
		require.NoError(t, err)
		snap, err := svc.ActivateEncounter(ctx, enc.ID)
		require.NoError(t, err)
		cur, ok := snap.Current()
		require.True(t, ok)
		assert.Equal(t, b.ID, cur.ID)

		_, adv, err := svc.AdvanceTurn(ctx, enc.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, adv.Next.ID)
		_, adv, err = svc.AdvanceTurn(ctx, enc.ID)
		require.NoError(t, err)
		assert.True(t, adv.RoundComplete)
		assert.Equal(t, 2, adv.Round)

		stored, err := encounters.GetEncounter(ctx, enc.ID)
		require.NoError(t, err)
		stale := stored
		stale.CurrentTurn = 2
		err = encounters.Save(ctx, stale, stored.Version-1, nil)
		assert.ErrorIs(t, err, encounter.ErrStaleWrite)

		_, err = svc.FinishEncounter(ctx, enc.ID)
		require.NoError(t, err)
		_, err = svc.GetActiveEncounter(ctx, "g-enc")
		assert.ErrorIs(t, err, encounter.ErrNotFound)
		_, err = svc.CreateEncounter(ctx, "g-enc", "Next", "gm-1")
		assert.NoError(t, err)
	})
}
