// Package confirm implements the two-message handshake in which an acting
// client asks the master whether an attack hit before damage is applied.
//
// The handshake rides on the game's pub/sub channel and inherits its
// delivery: a request or answer may be lost. A Requester waits forever
// unless it was built with a timeout.
package confirm

import (
	"errors"
	"fmt"
	"time"

	"github.com/cory-johannsen/skirmish/internal/game/combat"
)

// Event names on the game channel.
const (
	EventActionRequested = "combat_action_requested"
	EventHitConfirmed    = "combat_hit_confirmed"
)

var (
	ErrUnknownRequest = errors.New("confirm: unknown or already settled request")
	ErrAwaitingMaster = errors.New("confirm: the master has not answered yet")
	ErrNoResponse     = errors.New("confirm: no response from the master")
	ErrHealing        = errors.New("confirm: healing actions need no hit confirmation")
)

// Request is the combat_action_requested payload.
type Request struct {
	RequestID   string        `json:"request_id"`
	ActorID     string        `json:"actor_id"`
	ActorType   combat.Kind   `json:"actor_type"`
	ActorName   string        `json:"actor_name"`
	Action      combat.Action `json:"action"`
	Targets     []combat.Ref  `json:"targets"`
	GameID      string        `json:"game_id"`
	EncounterID string        `json:"encounter_id"`
	RequestedBy string        `json:"requested_by,omitempty"`
}

// Confirmation is the combat_hit_confirmed payload.
type Confirmation struct {
	RequestID   string `json:"request_id"`
	Hit         bool   `json:"hit"`
	ConfirmedBy string `json:"confirmed_by,omitempty"`
}

// NewRequestID builds the actor+action+time composite used as request id.
func NewRequestID(actorID, actionID string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%d", actorID, actionID, at.UnixNano())
}
