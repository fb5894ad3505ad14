package encounter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options tunes Service policy.
type Options struct {
	// AllowReinforcements permits AddParticipant while the encounter is active.
	// New arrivals stay out of the turn order until they roll and the order is
	// recalculated.
	AllowReinforcements bool
	// Now overrides the clock; nil uses time.Now.
	Now func() time.Time
}

// Service is the single authority for encounter mutations. Mutations on the
// same encounter are serialised in-process and guarded by the stored version.
type Service struct {
	store  Store
	logger *zap.Logger
	opts   Options
	locks  *keyedMutex
}

// NewService creates a Service over store.
//
// Precondition: store and logger must be non-nil.
func NewService(store Store, logger *zap.Logger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{store: store, logger: logger, opts: opts, locks: newKeyedMutex()}
}

func newID() string {
	// v7 IDs sort by creation time, which keeps the initiative tiebreak stable
	// even when two entries share a timestamp.
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// CreateEncounter opens a new setup-status encounter for gameID.
//
// Postcondition: Returns ErrEncounterExists when the game already has an
// open encounter.
func (s *Service) CreateEncounter(ctx context.Context, gameID, name, createdBy string) (Encounter, error) {
	if gameID == "" {
		return Encounter{}, fmt.Errorf("encounter: game id must not be empty")
	}
	unlock := s.locks.Lock("game:" + gameID)
	defer unlock()

	if _, err := s.store.OpenEncounter(ctx, gameID); err == nil {
		return Encounter{}, ErrEncounterExists
	} else if !errors.Is(err, ErrNotFound) {
		return Encounter{}, fmt.Errorf("checking open encounter: %w", err)
	}

	enc := NewEncounter(newID(), gameID, name, createdBy)
	now := s.opts.Now()
	enc.CreatedAt, enc.UpdatedAt = now, now
	if err := s.store.CreateEncounter(ctx, enc); err != nil {
		return Encounter{}, err
	}
	s.logger.Info("encounter created",
		zap.String("encounter_id", enc.ID),
		zap.String("game_id", gameID),
		zap.String("created_by", createdBy),
	)
	return enc, nil
}

// GetActiveEncounter returns the game's setup or active encounter.
func (s *Service) GetActiveEncounter(ctx context.Context, gameID string) (Encounter, error) {
	return s.store.OpenEncounter(ctx, gameID)
}

// History returns every encounter a game has had, newest first.
func (s *Service) History(ctx context.Context, gameID string) ([]Encounter, error) {
	return s.store.ListEncounters(ctx, gameID)
}

// Snapshot loads an encounter and its entries.
func (s *Service) Snapshot(ctx context.Context, encounterID string) (Snapshot, error) {
	enc, err := s.store.GetEncounter(ctx, encounterID)
	if err != nil {
		return Snapshot{}, err
	}
	entries, err := s.store.ListEntries(ctx, encounterID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("listing entries: %w", err)
	}
	return Snapshot{Encounter: enc, Entries: entries}, nil
}

// EncounterOfEntry returns the ID of the encounter that owns entryID.
func (s *Service) EncounterOfEntry(ctx context.Context, entryID string) (string, error) {
	e, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return "", err
	}
	return e.EncounterID, nil
}

// AddParticipant inserts an entry with no initiative and no turn order.
//
// Precondition: the encounter is in setup, or active with AllowReinforcements.
// Postcondition: Returns the new entry, ErrNotInSetup, ErrFinished or
// ErrDuplicateParticipant.
func (s *Service) AddParticipant(ctx context.Context, encounterID string, typ ParticipantType, participantID string) (Entry, error) {
	if !typ.Valid() || participantID == "" {
		return Entry{}, fmt.Errorf("%w: type %q id %q", ErrInvalidParticipant, typ, participantID)
	}
	unlock := s.locks.Lock(encounterID)
	defer unlock()

	snap, err := s.Snapshot(ctx, encounterID)
	if err != nil {
		return Entry{}, err
	}
	enc := snap.Encounter
	switch {
	case enc.Status == StatusFinished:
		return Entry{}, ErrFinished
	case enc.Status == StatusActive && !s.opts.AllowReinforcements:
		return Entry{}, ErrNotInSetup
	}
	for _, e := range snap.Entries {
		if e.ParticipantType == typ && e.ParticipantID == participantID {
			return Entry{}, ErrDuplicateParticipant
		}
	}

	now := s.opts.Now()
	entry := Entry{
		ID:              newID(),
		EncounterID:     encounterID,
		ParticipantType: typ,
		ParticipantID:   participantID,
		CreatedAt:       now,
	}
	prev := enc.Version
	enc.Version++
	enc.UpdatedAt = now
	if err := s.store.InsertEntry(ctx, enc, prev, entry); err != nil {
		return Entry{}, err
	}
	s.logger.Debug("participant added",
		zap.String("encounter_id", encounterID),
		zap.String("entry_id", entry.ID),
		zap.String("participant_type", string(typ)),
		zap.String("participant_id", participantID),
	)
	return entry, nil
}

// RemoveParticipant deletes an entry while the encounter is in setup.
func (s *Service) RemoveParticipant(ctx context.Context, entryID string) (Snapshot, error) {
	entry, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return Snapshot{}, err
	}
	unlock := s.locks.Lock(entry.EncounterID)
	defer unlock()

	enc, err := s.store.GetEncounter(ctx, entry.EncounterID)
	if err != nil {
		return Snapshot{}, err
	}
	switch enc.Status {
	case StatusFinished:
		return Snapshot{}, ErrFinished
	case StatusActive:
		return Snapshot{}, ErrNotInSetup
	}
	prev := enc.Version
	enc.Version++
	enc.UpdatedAt = s.opts.Now()
	if err := s.store.DeleteEntry(ctx, enc, prev, entryID); err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(ctx, enc.ID)
}

// RollInitiative assigns a d20 result to one entry. The die is rolled by the
// caller so the value can be shown before it is committed.
func (s *Service) RollInitiative(ctx context.Context, entryID string, value int) (Entry, error) {
	if value < 1 || value > 20 {
		return Entry{}, ErrInvalidInitiative
	}
	entry, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return Entry{}, err
	}
	var out Entry
	_, err = s.mutate(ctx, entry.EncounterID, func(enc *Encounter, entries []Entry) ([]Entry, error) {
		for i := range entries {
			if entries[i].ID == entryID {
				entries[i].Initiative = intPtr(value)
				out = entries[i]
				return entries, nil
			}
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return Entry{}, err
	}
	return out, nil
}

// CalculateTurnOrder ranks every rolled entry; see Reorder.
func (s *Service) CalculateTurnOrder(ctx context.Context, encounterID string) (Snapshot, error) {
	return s.mutate(ctx, encounterID, func(enc *Encounter, entries []Entry) ([]Entry, error) {
		return Reorder(enc, entries), nil
	})
}

// ActivateEncounter starts play at turn 1 of round 1.
func (s *Service) ActivateEncounter(ctx context.Context, encounterID string) (Snapshot, error) {
	snap, err := s.mutate(ctx, encounterID, Activate)
	if err == nil {
		s.logger.Info("encounter activated",
			zap.String("encounter_id", encounterID),
			zap.Int("participants", len(snap.Entries)),
		)
	}
	return snap, err
}

// FinishEncounter ends the encounter. Setup encounters are abandoned.
func (s *Service) FinishEncounter(ctx context.Context, encounterID string) (Snapshot, error) {
	snap, err := s.mutate(ctx, encounterID, func(enc *Encounter, entries []Entry) ([]Entry, error) {
		return entries, Finish(enc)
	})
	if err == nil {
		s.logger.Info("encounter finished",
			zap.String("encounter_id", encounterID),
			zap.Int("round", snap.Encounter.CurrentRound),
		)
	}
	return snap, err
}

// AdvanceTurn completes the current participant's turn.
func (s *Service) AdvanceTurn(ctx context.Context, encounterID string) (Snapshot, Advance, error) {
	var adv Advance
	snap, err := s.mutate(ctx, encounterID, func(enc *Encounter, entries []Entry) ([]Entry, error) {
		out, a, err := AdvanceTurn(enc, entries)
		adv = a
		return out, err
	})
	if err != nil {
		return Snapshot{}, Advance{}, err
	}
	s.logger.Debug("turn advanced",
		zap.String("encounter_id", encounterID),
		zap.String("acted", adv.Acted.ID),
		zap.String("next", adv.Next.ID),
		zap.Int("round", adv.Round),
		zap.Bool("round_complete", adv.RoundComplete),
	)
	return snap, adv, nil
}

// mutate runs fn against a fresh read of the encounter under the encounter's
// lock and persists the result with a version check. Finished encounters are
// immutable.
func (s *Service) mutate(ctx context.Context, encounterID string, fn func(enc *Encounter, entries []Entry) ([]Entry, error)) (Snapshot, error) {
	unlock := s.locks.Lock(encounterID)
	defer unlock()

	snap, err := s.Snapshot(ctx, encounterID)
	if err != nil {
		return Snapshot{}, err
	}
	enc := snap.Encounter
	if enc.Status == StatusFinished {
		return Snapshot{}, ErrFinished
	}
	entries, err := fn(&enc, snap.Entries)
	if err != nil {
		return Snapshot{}, err
	}
	prev := enc.Version
	enc.Version++
	enc.UpdatedAt = s.opts.Now()
	if err := s.store.Save(ctx, enc, prev, entries); err != nil {
		if errors.Is(err, ErrStaleWrite) {
			s.logger.Warn("stale encounter write rejected",
				zap.String("encounter_id", encounterID),
				zap.Int64("expected_version", prev),
			)
		}
		return Snapshot{}, err
	}
	return Snapshot{Encounter: enc, Entries: entries}, nil
}
