package importer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/skirmish/internal/game/combat"
)

// Manifest is the on-disk description of games and their rosters.
type Manifest struct {
	Games []GameSpec `yaml:"games"`
}

// GameSpec describes one game, its master and the combatants it starts with.
type GameSpec struct {
	ID      string       `yaml:"id"`
	Name    string       `yaml:"name"`
	Master  string       `yaml:"master"`
	Players []PlayerSpec `yaml:"players"`
	NPCs    []NPCSpec    `yaml:"npcs"`
	// Moves lists preset action names to install; empty installs every preset.
	Moves []string `yaml:"moves,omitempty"`
}

// PlayerSpec describes a player character.
type PlayerSpec struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Owner string `yaml:"owner"`
	MaxHP int    `yaml:"max_hp"`
}

// NPCSpec describes a master-controlled combatant.
type NPCSpec struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	MaxHP int    `yaml:"max_hp"`
}

// ErrInvalidManifest wraps every manifest validation failure.
var ErrInvalidManifest = errors.New("importer: invalid manifest")

// LoadManifest reads and validates a manifest file.
//
// Precondition: fs must be non-nil.
// Postcondition: Returns a manifest that passes Validate, or a non-nil error.
func LoadManifest(fs afero.Fs, path string) (Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Manifest{}, fmt.Errorf("reading manifest %q: %w", path, err)
	}
	return LoadManifestFromBytes(data)
}

// LoadManifestFromBytes parses and validates a manifest document.
func LoadManifestFromBytes(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Validate checks ids are present and unique and hit points are positive.
func (m Manifest) Validate() error {
	var errs []string
	games := make(map[string]bool)
	combatants := make(map[combat.Ref]bool)
	for i, g := range m.Games {
		if g.ID == "" {
			errs = append(errs, fmt.Sprintf("games[%d]: id must not be empty", i))
			continue
		}
		if games[g.ID] {
			errs = append(errs, fmt.Sprintf("game %q: duplicate id", g.ID))
		}
		games[g.ID] = true
		if g.Master == "" {
			errs = append(errs, fmt.Sprintf("game %q: master must not be empty", g.ID))
		}
		for _, p := range g.Players {
			errs = append(errs, checkCombatant(combatants, g.ID, combat.Ref{Kind: combat.KindPlayer, ID: p.ID}, p.Name, p.MaxHP)...)
			if p.Owner == "" {
				errs = append(errs, fmt.Sprintf("game %q: player %q: owner must not be empty", g.ID, p.ID))
			}
		}
		for _, n := range g.NPCs {
			errs = append(errs, checkCombatant(combatants, g.ID, combat.Ref{Kind: combat.KindNPC, ID: n.ID}, n.Name, n.MaxHP)...)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidManifest, strings.Join(errs, "; "))
	}
	return nil
}

func checkCombatant(seen map[combat.Ref]bool, gameID string, ref combat.Ref, name string, maxHP int) []string {
	var errs []string
	if ref.ID == "" {
		return []string{fmt.Sprintf("game %q: %s %q: id must not be empty", gameID, ref.Kind, name)}
	}
	if seen[ref] {
		errs = append(errs, fmt.Sprintf("game %q: duplicate %s id %q", gameID, ref.Kind, ref.ID))
	}
	seen[ref] = true
	if strings.TrimSpace(name) == "" {
		errs = append(errs, fmt.Sprintf("game %q: %s %q: name must not be empty", gameID, ref.Kind, ref.ID))
	}
	if maxHP < 1 {
		errs = append(errs, fmt.Sprintf("game %q: %s %q: max_hp must be >= 1, got %d", gameID, ref.Kind, ref.ID, maxHP))
	}
	return errs
}
