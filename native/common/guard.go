package common

import "errors"

// ErrModulePaused is returned when an operation targets a paused module.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the pause switches consulted before every mutating
// operation.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation when the named module is paused. A nil view or
// empty module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// Pauses is a static PauseView backed by a set of module names. The zero value
// pauses nothing.
type Pauses struct {
	modules map[string]bool
}

// NewPauses builds a PauseView that reports the listed modules as paused.
func NewPauses(modules ...string) *Pauses {
	p := &Pauses{modules: make(map[string]bool, len(modules))}
	for _, m := range modules {
		if m != "" {
			p.modules[m] = true
		}
	}
	return p
}

// IsPaused reports whether the module was registered as paused.
func (p *Pauses) IsPaused(module string) bool {
	if p == nil || p.modules == nil {
		return false
	}
	return p.modules[module]
}
