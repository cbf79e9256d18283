package types

// Event represents a typed event emitted during state transitions. Attribute
// values are pre-rendered strings so events can be logged or exported without
// further serialisation.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Attribute returns the named attribute or the empty string when absent.
func (e *Event) Attribute(key string) string {
	if e == nil || e.Attributes == nil {
		return ""
	}
	return e.Attributes[key]
}
