package credit

import (
	"encoding/hex"
	"strconv"

	"privscore/core/types"
)

const (
	EventTypeRecordRegistered  = "credit.record.registered"
	EventTypeRecordUpdated     = "credit.record.updated"
	EventTypeRecordDeactivated = "credit.record.deactivated"
)

// NewRegisteredEvent returns the canonical payload for a freshly registered
// credit record.
func NewRegisteredEvent(r *Record) *types.Event {
	return newRecordEvent(EventTypeRecordRegistered, r)
}

// NewUpdatedEvent returns the canonical payload for a commitment refresh.
func NewUpdatedEvent(r *Record) *types.Event {
	return newRecordEvent(EventTypeRecordUpdated, r)
}

// NewDeactivatedEvent returns the canonical payload emitted when a record is
// switched off.
func NewDeactivatedEvent(r *Record) *types.Event {
	return newRecordEvent(EventTypeRecordDeactivated, r)
}

func newRecordEvent(eventType string, r *Record) *types.Event {
	if r == nil {
		return &types.Event{Type: eventType, Attributes: map[string]string{}}
	}
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"owner":     hex.EncodeToString(r.Owner[:]),
			"tier":      r.Tier.String(),
			"nonce":     strconv.FormatUint(r.Nonce, 10),
			"expiresAt": strconv.FormatInt(r.ExpiresAt, 10),
			"active":    strconv.FormatBool(r.Active),
		},
	}
}
