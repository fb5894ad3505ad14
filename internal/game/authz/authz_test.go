package authz_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/skirmish/internal/game/authz"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/encounter"
	"github.com/cory-johannsen/skirmish/internal/storage/memory"
)

var (
	kara   = combat.Ref{Kind: combat.KindPlayer, ID: "p-kara"}
	goblin = combat.Ref{Kind: combat.KindNPC, ID: "n-goblin"}
)

func newChecker(t *testing.T) *authz.Checker {
	t.Helper()
	store := memory.New()
	store.PutGame(memory.Game{ID: "g1", Name: "Game", MasterID: "gm"})
	store.PutGame(memory.Game{ID: "g2", Name: "Masterless"})
	require.NoError(t, store.PutCombatant(combat.Combatant{
		ID: kara.ID, GameID: "g1", Kind: combat.KindPlayer, Name: "Kara", OwnerID: "u-kara", MaxHP: 10, CurrentHP: 10,
	}))
	require.NoError(t, store.PutCombatant(combat.Combatant{
		ID: goblin.ID, GameID: "g1", Kind: combat.KindNPC, Name: "Goblin", MaxHP: 5, CurrentHP: 5,
	}))
	return authz.NewChecker(store, store)
}

func TestRequireMaster(t *testing.T) {
	ctx := context.Background()
	c := newChecker(t)

	require.NoError(t, c.RequireMaster(ctx, "g1", "gm"))
	assert.ErrorIs(t, c.RequireMaster(ctx, "g1", "u-kara"), authz.ErrNotMaster)
	assert.ErrorIs(t, c.RequireMaster(ctx, "missing", "gm"), authz.ErrGameNotFound)
	// An unset master matches nobody, including the empty user.
	assert.ErrorIs(t, c.RequireMaster(ctx, "g2", ""), authz.ErrNotMaster)
}

func TestRequireController(t *testing.T) {
	ctx := context.Background()
	c := newChecker(t)

	tests := []struct {
		name string
		user string
		ref  combat.Ref
		want error
	}{
		{"owner controls own character", "u-kara", kara, nil},
		{"master stands in for a player", "gm", kara, nil},
		{"master controls npcs", "gm", goblin, nil},
		{"player cannot run npcs", "u-kara", goblin, authz.ErrNotMaster},
		{"stranger cannot run a player", "u-bram", kara, authz.ErrNotOwner},
		{"unknown character", "u-kara", combat.Ref{Kind: combat.KindPlayer, ID: "ghost"}, combat.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.RequireController(ctx, "g1", tt.user, tt.ref)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func ordered(id string, typ encounter.ParticipantType, participant string, pos int) encounter.Entry {
	return encounter.Entry{ID: id, ParticipantType: typ, ParticipantID: participant, TurnOrder: &pos}
}

func TestRequireTurn(t *testing.T) {
	ctx := context.Background()
	c := newChecker(t)
	snap := encounter.Snapshot{
		Encounter: encounter.Encounter{ID: "e1", GameID: "g1", Status: encounter.StatusActive, CurrentTurn: 1, CurrentRound: 1},
		Entries: []encounter.Entry{
			ordered("e-kara", encounter.ParticipantPlayer, kara.ID, 1),
			ordered("e-goblin", encounter.ParticipantNPC, goblin.ID, 2),
		},
	}

	require.NoError(t, c.RequireTurn(ctx, "g1", "u-kara", snap))
	require.NoError(t, c.RequireTurn(ctx, "g1", "gm", snap))
	assert.ErrorIs(t, c.RequireTurn(ctx, "g1", "u-bram", snap), authz.ErrOutOfTurn)

	snap.Encounter.CurrentTurn = 2
	assert.ErrorIs(t, c.RequireTurn(ctx, "g1", "u-kara", snap), authz.ErrOutOfTurn)
	require.NoError(t, c.RequireTurn(ctx, "g1", "gm", snap))

	empty := encounter.Snapshot{Encounter: snap.Encounter}
	assert.ErrorIs(t, c.RequireTurn(ctx, "g1", "gm", empty), encounter.ErrNoTurnOrder)
}

func TestRefOf(t *testing.T) {
	assert.Equal(t, kara, authz.RefOf(encounter.Entry{ParticipantType: encounter.ParticipantPlayer, ParticipantID: kara.ID}))
	assert.Equal(t, goblin, authz.RefOf(encounter.Entry{ParticipantType: encounter.ParticipantNPC, ParticipantID: goblin.ID}))
}
