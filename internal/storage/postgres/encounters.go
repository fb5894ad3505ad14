package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/skirmish/internal/game/authz"
	"github.com/cory-johannsen/skirmish/internal/game/encounter"
)

// EncounterRepository implements encounter.Store. Every write that changes
// an existing encounter is a single transaction guarded by the version column.
type EncounterRepository struct {
	db *pgxpool.Pool
}

// NewEncounterRepository creates an EncounterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewEncounterRepository(db *pgxpool.Pool) *EncounterRepository {
	return &EncounterRepository{db: db}
}

const encounterColumns = `id, game_id, name, status, current_turn, current_round, created_by, version, created_at, updated_at`

const entryColumns = `id, encounter_id, participant_type, participant_id, initiative, turn_order, has_acted, created_at`

func scanEncounter(row pgx.Row) (encounter.Encounter, error) {
	var (
		e      encounter.Encounter
		status string
	)
	err := row.Scan(&e.ID, &e.GameID, &e.Name, &status, &e.CurrentTurn, &e.CurrentRound,
		&e.CreatedBy, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	e.Status = encounter.Status(status)
	return e, err
}

func scanEntry(row pgx.Row) (encounter.Entry, error) {
	var (
		e   encounter.Entry
		typ string
	)
	err := row.Scan(&e.ID, &e.EncounterID, &typ, &e.ParticipantID, &e.Initiative, &e.TurnOrder, &e.HasActed, &e.CreatedAt)
	e.ParticipantType = encounter.ParticipantType(typ)
	return e, err
}

// CreateEncounter implements encounter.Store.
//
// Postcondition: Returns encounter.ErrEncounterExists when the partial unique
// index on open encounters rejects the row, authz.ErrGameNotFound when the
// game does not exist.
func (r *EncounterRepository) CreateEncounter(ctx context.Context, enc encounter.Encounter) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO encounters (`+encounterColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		enc.ID, enc.GameID, enc.Name, string(enc.Status), enc.CurrentTurn, enc.CurrentRound,
		enc.CreatedBy, enc.Version, enc.CreatedAt, enc.UpdatedAt,
	)
	switch sqlState(err) {
	case "":
	case codeUniqueViolation:
		return encounter.ErrEncounterExists
	case codeForeignKeyViolation:
		return authz.ErrGameNotFound
	}
	if err != nil {
		return fmt.Errorf("inserting encounter: %w", err)
	}
	return nil
}

// GetEncounter implements encounter.Store.
func (r *EncounterRepository) GetEncounter(ctx context.Context, id string) (encounter.Encounter, error) {
	enc, err := scanEncounter(r.db.QueryRow(ctx, `SELECT `+encounterColumns+` FROM encounters WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return encounter.Encounter{}, encounter.ErrNotFound
	}
	if err != nil {
		return encounter.Encounter{}, fmt.Errorf("querying encounter %q: %w", id, err)
	}
	return enc, nil
}

// OpenEncounter implements encounter.Store.
func (r *EncounterRepository) OpenEncounter(ctx context.Context, gameID string) (encounter.Encounter, error) {
	enc, err := scanEncounter(r.db.QueryRow(ctx, `
		SELECT `+encounterColumns+` FROM encounters
		WHERE game_id = $1 AND status IN ('setup', 'active')`, gameID))
	if errors.Is(err, pgx.ErrNoRows) {
		return encounter.Encounter{}, encounter.ErrNotFound
	}
	if err != nil {
		return encounter.Encounter{}, fmt.Errorf("querying open encounter for %q: %w", gameID, err)
	}
	return enc, nil
}

// ListEncounters implements encounter.Store.
func (r *EncounterRepository) ListEncounters(ctx context.Context, gameID string) ([]encounter.Encounter, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+encounterColumns+` FROM encounters
		WHERE game_id = $1 ORDER BY created_at DESC, id DESC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("listing encounters: %w", err)
	}
	defer rows.Close()

	out := make([]encounter.Encounter, 0)
	for rows.Next() {
		enc, err := scanEncounter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning encounter row: %w", err)
		}
		out = append(out, enc)
	}
	return out, rows.Err()
}

// GetEntry implements encounter.Store.
func (r *EncounterRepository) GetEntry(ctx context.Context, id string) (encounter.Entry, error) {
	e, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM initiative_entries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return encounter.Entry{}, encounter.ErrNotFound
	}
	if err != nil {
		return encounter.Entry{}, fmt.Errorf("querying entry %q: %w", id, err)
	}
	return e, nil
}

// ListEntries implements encounter.Store.
func (r *EncounterRepository) ListEntries(ctx context.Context, encounterID string) ([]encounter.Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+entryColumns+` FROM initiative_entries
		WHERE encounter_id = $1 ORDER BY created_at ASC, id ASC`, encounterID)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	out := make([]encounter.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertEntry implements encounter.Store.
func (r *EncounterRepository) InsertEntry(ctx context.Context, enc encounter.Encounter, expectedVersion int64, entry encounter.Entry) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := updateEncounter(ctx, tx, enc, expectedVersion); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO initiative_entries (`+entryColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			entry.ID, entry.EncounterID, string(entry.ParticipantType), entry.ParticipantID,
			entry.Initiative, entry.TurnOrder, entry.HasActed, entry.CreatedAt,
		)
		if sqlState(err) == codeUniqueViolation {
			return encounter.ErrDuplicateParticipant
		}
		if err != nil {
			return fmt.Errorf("inserting entry: %w", err)
		}
		return nil
	})
}

// DeleteEntry implements encounter.Store.
func (r *EncounterRepository) DeleteEntry(ctx context.Context, enc encounter.Encounter, expectedVersion int64, entryID string) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := updateEncounter(ctx, tx, enc, expectedVersion); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM initiative_entries WHERE id = $1 AND encounter_id = $2`, entryID, enc.ID)
		if err != nil {
			return fmt.Errorf("deleting entry: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return encounter.ErrNotFound
		}
		return nil
	})
}

// Save implements encounter.Store. Entry rows are updated in one batch.
func (r *EncounterRepository) Save(ctx context.Context, enc encounter.Encounter, expectedVersion int64, entries []encounter.Entry) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := updateEncounter(ctx, tx, enc, expectedVersion); err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, e := range entries {
			batch.Queue(`
				UPDATE initiative_entries
				SET initiative = $3, turn_order = $4, has_acted = $5
				WHERE id = $1 AND encounter_id = $2`,
				e.ID, enc.ID, e.Initiative, e.TurnOrder, e.HasActed,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for _, e := range entries {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return fmt.Errorf("updating entry %q: %w", e.ID, err)
			}
			if tag.RowsAffected() == 0 {
				_ = br.Close()
				return fmt.Errorf("entry %q: %w", e.ID, encounter.ErrNotFound)
			}
		}
		return br.Close()
	})
}

// updateEncounter writes enc if the stored version still equals expected.
func updateEncounter(ctx context.Context, tx pgx.Tx, enc encounter.Encounter, expected int64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE encounters
		SET name = $3, status = $4, current_turn = $5, current_round = $6, version = $7, updated_at = $8
		WHERE id = $1 AND version = $2`,
		enc.ID, expected, enc.Name, string(enc.Status), enc.CurrentTurn, enc.CurrentRound, enc.Version, enc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating encounter %q: %w", enc.ID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM encounters WHERE id = $1)`, enc.ID).Scan(&exists); err != nil {
		return fmt.Errorf("checking encounter %q: %w", enc.ID, err)
	}
	if !exists {
		return encounter.ErrNotFound
	}
	return encounter.ErrStaleWrite
}
