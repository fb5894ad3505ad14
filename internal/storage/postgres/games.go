package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/skirmish/internal/game/authz"
)

// GameRepository implements authz.Games and the few game-record writes the
// admin commands need.
type GameRepository struct {
	db *pgxpool.Pool
}

// NewGameRepository creates a GameRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewGameRepository(db *pgxpool.Pool) *GameRepository {
	return &GameRepository{db: db}
}

// CreateGame inserts a game, or renames it if it already exists.
func (r *GameRepository) CreateGame(ctx context.Context, id, name, masterID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO games (id, name, master_id) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		id, name, masterID)
	if err != nil {
		return fmt.Errorf("upserting game %q: %w", id, err)
	}
	return nil
}

// MasterOf implements authz.Games.
func (r *GameRepository) MasterOf(ctx context.Context, gameID string) (string, error) {
	var master string
	err := r.db.QueryRow(ctx, `SELECT master_id FROM games WHERE id = $1`, gameID).Scan(&master)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", authz.ErrGameNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying master of %q: %w", gameID, err)
	}
	return master, nil
}

// SetMaster assigns the game's master.
//
// Postcondition: Returns authz.ErrGameNotFound when the game does not exist.
func (r *GameRepository) SetMaster(ctx context.Context, gameID, userID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE games SET master_id = $2 WHERE id = $1`, gameID, userID)
	if err != nil {
		return fmt.Errorf("setting master of %q: %w", gameID, err)
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrGameNotFound
	}
	return nil
}
