package disclosure

import (
	"encoding/hex"
	"strconv"

	"privscore/core/types"
)

const (
	EventTypeGrantIssued   = "disclosure.grant.issued"
	EventTypeGrantRevoked  = "disclosure.grant.revoked"
	EventTypeGrantAccessed = "disclosure.grant.accessed"
)

// NewGrantIssuedEvent returns the canonical payload for a newly issued grant.
func NewGrantIssuedEvent(g *Grant) *types.Event {
	return newGrantEvent(EventTypeGrantIssued, g)
}

// NewGrantRevokedEvent returns the canonical payload emitted when the owner
// revokes a grant.
func NewGrantRevokedEvent(g *Grant) *types.Event {
	return newGrantEvent(EventTypeGrantRevoked, g)
}

// NewGrantAccessedEvent returns the canonical payload for a recorded read.
// Emitted for every successful access so owners with NotifyOnAccess set can
// be alerted downstream.
func NewGrantAccessedEvent(g *Grant, effective AccessLevel) *types.Event {
	evt := newGrantEvent(EventTypeGrantAccessed, g)
	evt.Attributes["effectiveLevel"] = effective.String()
	return evt
}

func newGrantEvent(eventType string, g *Grant) *types.Event {
	if g == nil {
		return &types.Event{Type: eventType, Attributes: map[string]string{}}
	}
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"owner":       hex.EncodeToString(g.Owner[:]),
			"viewer":      hex.EncodeToString(g.Viewer[:]),
			"level":       g.Level.String(),
			"status":      g.Status.String(),
			"accessCount": strconv.FormatUint(uint64(g.AccessCount), 10),
			"expiresAt":   strconv.FormatInt(g.ExpiresAt, 10),
			"notify":      strconv.FormatBool(g.NotifyOnAccess),
		},
	}
}
