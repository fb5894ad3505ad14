package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/skirmish/internal/game/authz"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
)

// RosterRepository implements combat.Roster over the players and npcs tables.
type RosterRepository struct {
	db *pgxpool.Pool
}

// NewRosterRepository creates a RosterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewRosterRepository(db *pgxpool.Pool) *RosterRepository {
	return &RosterRepository{db: db}
}

func rosterTable(k combat.Kind) (string, error) {
	switch k {
	case combat.KindPlayer:
		return "players", nil
	case combat.KindNPC:
		return "npcs", nil
	}
	return "", fmt.Errorf("unknown combatant kind %q", k)
}

// AddCombatant inserts a player or NPC.
//
// Postcondition: Returns authz.ErrGameNotFound when the game does not exist.
func (r *RosterRepository) AddCombatant(ctx context.Context, c combat.Combatant) error {
	if c.Status == "" {
		c.Status = combat.StatusActive
	}
	var err error
	switch c.Kind {
	case combat.KindPlayer:
		_, err = r.db.Exec(ctx, `
			INSERT INTO players (id, game_id, owner_id, name, max_hp, current_hp, status)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			c.ID, c.GameID, c.OwnerID, c.Name, c.MaxHP, c.CurrentHP, string(c.Status))
	case combat.KindNPC:
		_, err = r.db.Exec(ctx, `
			INSERT INTO npcs (id, game_id, name, max_hp, current_hp, status)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			c.ID, c.GameID, c.Name, c.MaxHP, c.CurrentHP, string(c.Status))
	default:
		return fmt.Errorf("unknown combatant kind %q", c.Kind)
	}
	if sqlState(err) == codeForeignKeyViolation {
		return authz.ErrGameNotFound
	}
	if err != nil {
		return fmt.Errorf("inserting %s %q: %w", c.Kind, c.ID, err)
	}
	return nil
}

// Get implements combat.Roster.
func (r *RosterRepository) Get(ctx context.Context, ref combat.Ref) (combat.Combatant, error) {
	c := combat.Combatant{ID: ref.ID, Kind: ref.Kind}
	var (
		status string
		err    error
	)
	switch ref.Kind {
	case combat.KindPlayer:
		err = r.db.QueryRow(ctx, `
			SELECT game_id, owner_id, name, max_hp, current_hp, status
			FROM players WHERE id = $1`, ref.ID,
		).Scan(&c.GameID, &c.OwnerID, &c.Name, &c.MaxHP, &c.CurrentHP, &status)
	case combat.KindNPC:
		err = r.db.QueryRow(ctx, `
			SELECT game_id, name, max_hp, current_hp, status
			FROM npcs WHERE id = $1`, ref.ID,
		).Scan(&c.GameID, &c.Name, &c.MaxHP, &c.CurrentHP, &status)
	default:
		return combat.Combatant{}, combat.ErrNotFound
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return combat.Combatant{}, combat.ErrNotFound
	}
	if err != nil {
		return combat.Combatant{}, fmt.Errorf("querying %s %q: %w", ref.Kind, ref.ID, err)
	}
	c.Status = combat.Status(status)
	return c, nil
}

// UpdateHealth implements combat.Roster.
func (r *RosterRepository) UpdateHealth(ctx context.Context, c combat.Combatant) error {
	table, err := rosterTable(c.Kind)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE `+table+` SET current_hp = $2, status = $3, updated_at = NOW()
		WHERE id = $1`, c.ID, c.CurrentHP, string(c.Status))
	if err != nil {
		return fmt.Errorf("updating health of %q: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return combat.ErrNotFound
	}
	return nil
}

// Delete implements combat.Roster.
func (r *RosterRepository) Delete(ctx context.Context, ref combat.Ref) error {
	table, err := rosterTable(ref.Kind)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, ref.ID)
	if err != nil {
		return fmt.Errorf("deleting %s %q: %w", ref.Kind, ref.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return combat.ErrNotFound
	}
	return nil
}

// ListCombatants returns a game's players then NPCs, each ordered by name.
func (r *RosterRepository) ListCombatants(ctx context.Context, gameID string) ([]combat.Combatant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT 'player', id, owner_id, name, max_hp, current_hp, status FROM players WHERE game_id = $1
		UNION ALL
		SELECT 'npc', id, '', name, max_hp, current_hp, status FROM npcs WHERE game_id = $1
		ORDER BY 1 DESC, 4 ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("listing roster: %w", err)
	}
	defer rows.Close()

	out := make([]combat.Combatant, 0)
	for rows.Next() {
		c := combat.Combatant{GameID: gameID}
		var kind, status string
		if err := rows.Scan(&kind, &c.ID, &c.OwnerID, &c.Name, &c.MaxHP, &c.CurrentHP, &status); err != nil {
			return nil, fmt.Errorf("scanning roster row: %w", err)
		}
		c.Kind, c.Status = combat.Kind(kind), combat.Status(status)
		out = append(out, c)
	}
	return out, rows.Err()
}
