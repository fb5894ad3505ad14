package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/skirmish/internal/game/authz"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/encounter"
	"github.com/cory-johannsen/skirmish/internal/storage/memory"
)

func TestStore_OneOpenEncounterPerGame(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	a := encounter.NewEncounter("a", "g1", "Ambush", "gm")
	require.NoError(t, s.CreateEncounter(ctx, a))
	assert.ErrorIs(t, s.CreateEncounter(ctx, encounter.NewEncounter("b", "g1", "Again", "gm")), encounter.ErrEncounterExists)
	require.NoError(t, s.CreateEncounter(ctx, encounter.NewEncounter("c", "g2", "Elsewhere", "gm")))
}

func TestStore_SaveRejectsStaleVersion(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	enc := encounter.NewEncounter("a", "g1", "Ambush", "gm")
	require.NoError(t, s.CreateEncounter(ctx, enc))

	next := enc
	next.Version = 2
	require.NoError(t, s.InsertEntry(ctx, next, 1, encounter.Entry{ID: "e1", EncounterID: "a", ParticipantType: encounter.ParticipantPlayer, ParticipantID: "p1"}))

	stale := enc
	stale.Version = 2
	assert.ErrorIs(t, s.Save(ctx, stale, 1, nil), encounter.ErrStaleWrite)
}

func TestStore_EntriesAreCopied(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	enc := encounter.NewEncounter("a", "g1", "Ambush", "gm")
	require.NoError(t, s.CreateEncounter(ctx, enc))
	v := 12
	enc.Version = 2
	require.NoError(t, s.InsertEntry(ctx, enc, 1, encounter.Entry{ID: "e1", EncounterID: "a", Initiative: &v, CreatedAt: time.Now()}))
	v = 3

	got, err := s.GetEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 12, *got.Initiative)
}

func TestStore_RosterAndGames(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	_, err := s.MasterOf(ctx, "g1")
	assert.ErrorIs(t, err, authz.ErrGameNotFound)

	s.PutGame(memory.Game{ID: "g1", Name: "Night"})
	require.NoError(t, s.SetMaster(ctx, "g1", "gm"))
	m, err := s.MasterOf(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "gm", m)

	require.NoError(t, s.PutCombatant(combat.Combatant{ID: "o", GameID: "g1", Kind: combat.KindNPC, Name: "Orc", MaxHP: 8, CurrentHP: 8}))
	ref := combat.Ref{Kind: combat.KindNPC, ID: "o"}
	c, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, combat.StatusActive, c.Status)

	c.CurrentHP, c.Name = 3, "renamed"
	require.NoError(t, s.UpdateHealth(ctx, c))
	c, _ = s.Get(ctx, ref)
	assert.Equal(t, 3, c.CurrentHP)
	assert.Equal(t, "Orc", c.Name, "UpdateHealth touches health and status only")

	require.NoError(t, s.Delete(ctx, ref))
	assert.ErrorIs(t, s.Delete(ctx, ref), combat.ErrNotFound)
}

func TestStore_ListLogsLimitKeepsNewest(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, s.AppendLog(ctx, combat.LogEntry{ID: id, EncounterID: "e"}))
	}
	got, err := s.ListLogs(ctx, "e", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}
