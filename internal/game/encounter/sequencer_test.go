package encounter_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/skirmish/internal/game/encounter"
)

func activeWith(t require.TestingT, n int) (encounter.Encounter, []encounter.Entry) {
	entries := make([]encounter.Entry, n)
	for i := range entries {
		entries[i] = entry(string(rune('a'+i)), iv(20-i), time.Duration(i)*time.Second)
	}
	enc := encounter.NewEncounter("enc", "g", "x", "gm")
	out, err := encounter.Activate(&enc, encounter.CalculateTurnOrder(entries))
	require.NoError(t, err)
	return enc, out
}

func TestWhoseTurn_Mapping(t *testing.T) {
	enc, entries := activeWith(t, 3)
	for k, want := range map[int]string{0: "a", 1: "a", 2: "b", 3: "c", 9: "c"} {
		enc.CurrentTurn = k
		got, ok := encounter.WhoseTurn(enc, entries)
		require.True(t, ok)
		assert.Equal(t, want, got.ID, "turn %d", k)
	}

	_, ok := encounter.WhoseTurn(enc, []encounter.Entry{entry("z", nil, 0)})
	assert.False(t, ok)
}

func TestAdvanceTurn_RejectsInactive(t *testing.T) {
	enc := encounter.NewEncounter("e", "g", "x", "gm")
	_, _, err := encounter.AdvanceTurn(&enc, nil)
	assert.ErrorIs(t, err, encounter.ErrNotActive)

	enc.Status = encounter.StatusFinished
	_, _, err = encounter.AdvanceTurn(&enc, nil)
	assert.ErrorIs(t, err, encounter.ErrFinished)
}

func TestAdvanceTurn_WalksRound(t *testing.T) {
	enc, entries := activeWith(t, 3)

	entries, adv, err := encounter.AdvanceTurn(&enc, entries)
	require.NoError(t, err)
	assert.Equal(t, "a", adv.Acted.ID)
	assert.Equal(t, "b", adv.Next.ID)
	assert.False(t, adv.RoundComplete)
	assert.Equal(t, 2, enc.CurrentTurn)

	entries, _, err = encounter.AdvanceTurn(&enc, entries)
	require.NoError(t, err)
	entries, adv, err = encounter.AdvanceTurn(&enc, entries)
	require.NoError(t, err)
	assert.True(t, adv.RoundComplete)
	assert.Equal(t, 2, adv.Round)
	assert.Equal(t, 1, enc.CurrentTurn)
	assert.Equal(t, "a", adv.Next.ID)
	for _, e := range entries {
		assert.False(t, e.HasActed)
	}
}

func TestAdvanceTurn_Property_RoundIffAllActed(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(rt, "n")
		enc, entries := activeWith(rt, n)
		steps := rapid.IntRange(1, 20).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			round := enc.CurrentRound
			turn := enc.CurrentTurn
			current, _ := encounter.WhoseTurn(enc, entries)
			actedBefore := 0
			for _, e := range entries {
				if e.HasActed || e.ID == current.ID {
					actedBefore++
				}
			}
			var err error
			var adv encounter.Advance
			entries, adv, err = encounter.AdvanceTurn(&enc, entries)
			require.NoError(rt, err)
			if actedBefore == n {
				assert.True(rt, adv.RoundComplete)
				assert.Equal(rt, round+1, enc.CurrentRound)
				assert.Equal(rt, 1, enc.CurrentTurn)
			} else {
				assert.False(rt, adv.RoundComplete)
				assert.Equal(rt, round, enc.CurrentRound)
				assert.Equal(rt, turn%n+1, enc.CurrentTurn)
			}
		}
	})
}

func TestAdvanceTurn_MidRoundReinforcement(t *testing.T) {
	tests := []struct {
		name       string
		initiative int
		round2     string
	}{
		{name: "ranked ahead of everyone", initiative: 20, round2: "c"},
		{name: "ranked between", initiative: 12, round2: "a"},
		{name: "ranked last", initiative: 5, round2: "a"},
		{name: "tied with the current entry", initiative: 10, round2: "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := []encounter.Entry{entry("a", iv(15), 0), entry("b", iv(10), time.Second)}
			enc := encounter.NewEncounter("enc", "g", "x", "gm")
			entries, err := encounter.Activate(&enc, encounter.CalculateTurnOrder(entries))
			require.NoError(t, err)

			entries, adv, err := encounter.AdvanceTurn(&enc, entries)
			require.NoError(t, err)
			require.Equal(t, "a", adv.Acted.ID)
			seq := []string{adv.Acted.ID}

			entries = append(entries, entry("c", iv(tt.initiative), time.Minute))
			entries = encounter.Reorder(&enc, entries)
			current, ok := encounter.WhoseTurn(enc, entries)
			require.True(t, ok)
			assert.Equal(t, "b", current.ID, "reordering keeps the turn where it was")

			for i := 0; i < 3; i++ {
				entries, adv, err = encounter.AdvanceTurn(&enc, entries)
				require.NoError(t, err)
				seq = append(seq, adv.Acted.ID)
				if adv.RoundComplete {
					break
				}
				pending := 0
				for _, e := range entries {
					if !e.HasActed {
						pending++
					}
				}
				assert.Positive(t, pending, "round stays open while someone has not acted")
			}
			assert.Equal(t, []string{"a", "b", "c"}, seq)
			assert.True(t, adv.RoundComplete)
			assert.Equal(t, 2, enc.CurrentRound)
			assert.Equal(t, tt.round2, adv.Next.ID)
		})
	}
}

func TestReorder_SetupLeavesTurnAlone(t *testing.T) {
	enc := encounter.NewEncounter("enc", "g", "x", "gm")
	entries := encounter.Reorder(&enc, []encounter.Entry{entry("a", iv(3), 0), entry("b", iv(9), time.Second)})
	assert.Equal(t, []string{"b", "a"}, orderOf(entries))
	assert.Equal(t, 0, enc.CurrentTurn)
}
