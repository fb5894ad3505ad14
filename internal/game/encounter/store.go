package encounter

import "context"

// Store persists encounters and their entries.
//
// Every write that changes an existing encounter carries the version the
// caller read; implementations MUST reject the write with ErrStaleWrite when
// the stored version differs, and MUST apply the encounter row and its entry
// rows atomically.
type Store interface {
	// CreateEncounter inserts enc. Returns ErrEncounterExists when the game
	// already has an open encounter.
	CreateEncounter(ctx context.Context, enc Encounter) error
	// GetEncounter returns the encounter or ErrNotFound.
	GetEncounter(ctx context.Context, id string) (Encounter, error)
	// OpenEncounter returns the game's setup or active encounter, or ErrNotFound.
	OpenEncounter(ctx context.Context, gameID string) (Encounter, error)
	// ListEncounters returns every encounter of a game, newest first.
	ListEncounters(ctx context.Context, gameID string) ([]Encounter, error)
	// GetEntry returns the entry or ErrNotFound.
	GetEntry(ctx context.Context, id string) (Entry, error)
	// ListEntries returns the encounter's entries ordered by creation time.
	ListEntries(ctx context.Context, encounterID string) ([]Entry, error)
	// InsertEntry saves enc (whose stored version must equal expectedVersion)
	// and inserts entry.
	InsertEntry(ctx context.Context, enc Encounter, expectedVersion int64, entry Entry) error
	// DeleteEntry saves enc and removes the entry.
	DeleteEntry(ctx context.Context, enc Encounter, expectedVersion int64, entryID string) error
	// Save writes enc and the given entries.
	Save(ctx context.Context, enc Encounter, expectedVersion int64, entries []Entry) error
}
