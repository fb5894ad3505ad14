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

// CombatLogRepository implements combat.LogStore. Rows are insert-only.
type CombatLogRepository struct {
	db *pgxpool.Pool
}

// NewCombatLogRepository creates a CombatLogRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCombatLogRepository(db *pgxpool.Pool) *CombatLogRepository {
	return &CombatLogRepository{db: db}
}

// AppendLog implements combat.LogStore.
func (r *CombatLogRepository) AppendLog(ctx context.Context, e combat.LogEntry) error {
	targets := e.Targets
	if targets == nil {
		targets = []combat.Ref{}
	}
	breakdown := e.Breakdown
	if breakdown == nil {
		breakdown = []combat.TargetDamage{}
	}
	rolls := e.Rolls
	if rolls == nil {
		rolls = []int{}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO combat_logs
			(id, encounter_id, actor_type, actor_id, actor_name, action_id, action_name,
			 die_sides, die_count, modifier, rolls, roll_total, final_amount,
			 critical, fumble, healing, targets, breakdown, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		e.ID, e.EncounterID, string(e.Actor.Kind), e.Actor.ID, e.ActorName, e.ActionID, e.ActionName,
		e.DieSides, e.DieCount, e.Modifier, rolls, e.RollTotal, e.FinalAmount,
		e.Critical, e.Fumble, e.Healing, targets, breakdown, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting combat log: %w", err)
	}
	return nil
}

// ListLogs implements combat.LogStore.
func (r *CombatLogRepository) ListLogs(ctx context.Context, encounterID string, limit int) ([]combat.LogEntry, error) {
	// NULL disables LIMIT in PostgreSQL.
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := r.db.Query(ctx, `
		SELECT * FROM (
			SELECT id, encounter_id, actor_type, actor_id, actor_name, action_id, action_name,
			       die_sides, die_count, modifier, rolls, roll_total, final_amount,
			       critical, fumble, healing, targets, breakdown, created_at
			FROM combat_logs WHERE encounter_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent ORDER BY created_at ASC, id ASC`, encounterID, lim)
	if err != nil {
		return nil, fmt.Errorf("listing combat logs: %w", err)
	}
	defer rows.Close()

	out := make([]combat.LogEntry, 0)
	for rows.Next() {
		var (
			e         combat.LogEntry
			actorKind string
		)
		if err := rows.Scan(
			&e.ID, &e.EncounterID, &actorKind, &e.Actor.ID, &e.ActorName, &e.ActionID, &e.ActionName,
			&e.DieSides, &e.DieCount, &e.Modifier, &e.Rolls, &e.RollTotal, &e.FinalAmount,
			&e.Critical, &e.Fumble, &e.Healing, &e.Targets, &e.Breakdown, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning combat log row: %w", err)
		}
		e.Actor.Kind = combat.Kind(actorKind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ActionRepository implements combat.ActionStore.
type ActionRepository struct {
	db *pgxpool.Pool
}

// NewActionRepository creates an ActionRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewActionRepository(db *pgxpool.Pool) *ActionRepository {
	return &ActionRepository{db: db}
}

const actionColumns = `id, game_id, name, die_sides, die_count, modifier, damage_type, target_type, healing`

func scanAction(row pgx.Row) (combat.Action, error) {
	var (
		a  combat.Action
		tt string
	)
	err := row.Scan(&a.ID, &a.GameID, &a.Name, &a.DieSides, &a.DieCount, &a.Modifier, &a.DamageType, &tt, &a.Healing)
	a.TargetType = combat.TargetType(tt)
	return a, err
}

// CreateAction implements combat.ActionStore.
//
// Precondition: a.Validate() == nil.
func (r *ActionRepository) CreateAction(ctx context.Context, a combat.Action) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO combat_actions (`+actionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.GameID, a.Name, a.DieSides, a.DieCount, a.Modifier, a.DamageType, string(a.TargetType), a.Healing,
	)
	if sqlState(err) == codeForeignKeyViolation {
		return authz.ErrGameNotFound
	}
	if err != nil {
		return fmt.Errorf("inserting action %q: %w", a.Name, err)
	}
	return nil
}

// GetAction implements combat.ActionStore.
func (r *ActionRepository) GetAction(ctx context.Context, id string) (combat.Action, error) {
	a, err := scanAction(r.db.QueryRow(ctx, `SELECT `+actionColumns+` FROM combat_actions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return combat.Action{}, combat.ErrActionNotFound
	}
	if err != nil {
		return combat.Action{}, fmt.Errorf("querying action %q: %w", id, err)
	}
	return a, nil
}

// ListActions implements combat.ActionStore.
func (r *ActionRepository) ListActions(ctx context.Context, gameID string) ([]combat.Action, error) {
	rows, err := r.db.Query(ctx, `SELECT `+actionColumns+` FROM combat_actions WHERE game_id = $1 ORDER BY name`, gameID)
	if err != nil {
		return nil, fmt.Errorf("listing actions: %w", err)
	}
	defer rows.Close()

	out := make([]combat.Action, 0)
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning action row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
