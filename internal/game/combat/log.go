package combat

import (
	"context"
	"time"
)

// TargetDamage is the effect of one resolved action on one target.
type TargetDamage struct {
	Ref      Ref    `json:"ref"`
	Name     string `json:"name"`
	Amount   int    `json:"amount"`
	HPBefore int    `json:"hp_before"`
	HPAfter  int    `json:"hp_after"`
	Critical bool   `json:"critical"`
	// Removed is set when an NPC was taken off the roster.
	Removed bool `json:"removed"`
	// Status is the target's status after the action.
	Status Status `json:"status"`
}

// LogEntry is an append-only audit record of one resolved action.
type LogEntry struct {
	ID          string
	EncounterID string
	Actor       Ref
	ActorName   string
	ActionID    string
	ActionName  string
	DieSides    int
	DieCount    int
	Modifier    int
	Rolls       []int
	RollTotal   int
	FinalAmount int
	Critical    bool
	Fumble      bool
	Healing     bool
	Targets     []Ref
	Breakdown   []TargetDamage
	CreatedAt   time.Time
}

// LogStore appends and reads combat log entries. Entries are never updated.
type LogStore interface {
	AppendLog(ctx context.Context, e LogEntry) error
	// ListLogs returns the encounter's most recent limit entries, oldest first.
	// limit <= 0 returns all.
	ListLogs(ctx context.Context, encounterID string, limit int) ([]LogEntry, error)
}
