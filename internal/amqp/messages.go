package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"choreboard/internal/core"
)

// Event types, also used as routing keys on the direct exchange.
const (
	EventRewardEarned = "reward.earned"
	EventWeekArchived = "week.archived"
)

var ErrInvalidEvent = errors.New("invalid board event")

// BoardEvent is the envelope published for every board event. Exactly one of
// Reward or Week is set, depending on Type.
type BoardEvent struct {
	ID        string             `json:"id"`
	Type      string             `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Reward    *core.RewardEarned `json:"reward,omitempty"`
	Week      *core.WeekSummary  `json:"week,omitempty"`
}

func NewRewardEarnedEvent(r core.RewardEarned) *BoardEvent {
	return &BoardEvent{
		ID:        uuid.NewString(),
		Type:      EventRewardEarned,
		Timestamp: time.Now().UTC(),
		Reward:    &r,
	}
}

func NewWeekArchivedEvent(s core.WeekSummary) *BoardEvent {
	return &BoardEvent{
		ID:        uuid.NewString(),
		Type:      EventWeekArchived,
		Timestamp: time.Now().UTC(),
		Week:      &s,
	}
}

// ToJSON converts the event to JSON bytes
func (e *BoardEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Validate checks that the payload matches the type.
func (e *BoardEvent) Validate() error {
	switch e.Type {
	case EventRewardEarned:
		if e.Reward == nil {
			return fmt.Errorf("%w: %s without reward", ErrInvalidEvent, e.Type)
		}
	case EventWeekArchived:
		if e.Week == nil {
			return fmt.Errorf("%w: %s without week", ErrInvalidEvent, e.Type)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	return nil
}

// BoardEventFromJSON decodes and validates an event.
func BoardEventFromJSON(data []byte) (*BoardEvent, error) {
	var e BoardEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
