// Package oracle defines the collateral valuation boundary. The core treats
// prices as trusted numeric inputs; staleness is deliberately not enforced
// here (observation timestamps are recorded so a bound can be added later).
package oracle

import (
	"errors"
	"sync"
	"time"
)

// ErrNoObservation marks valuations for accounts the feed has never priced.
var ErrNoObservation = errors.New("oracle: no observation for account")

// Source yields the current value of the collateral held by an account.
type Source interface {
	Value(account [20]byte) (uint64, error)
}

type observation struct {
	value      uint64
	observedAt int64
}

// Manual is a feed updated out-of-band by an operator or attester process.
type Manual struct {
	mu           sync.RWMutex
	observations map[[20]byte]observation
	nowFn        func() int64
}

// NewManual constructs an empty manual feed.
func NewManual() *Manual {
	return &Manual{
		observations: make(map[[20]byte]observation),
		nowFn:        func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the clock stamped onto observations.
func (m *Manual) SetNowFunc(now func() int64) {
	if m == nil || now == nil {
		return
	}
	m.mu.Lock()
	m.nowFn = now
	m.mu.Unlock()
}

// Set records the latest valuation for an account.
func (m *Manual) Set(account [20]byte, value uint64) {
	m.mu.Lock()
	m.observations[account] = observation{value: value, observedAt: m.nowFn()}
	m.mu.Unlock()
}

// Value implements Source.
func (m *Manual) Value(account [20]byte) (uint64, error) {
	m.mu.RLock()
	obs, ok := m.observations[account]
	m.mu.RUnlock()
	if !ok {
		return 0, ErrNoObservation
	}
	return obs.value, nil
}

// BalanceFunc resolves the token balance held by an account.
type BalanceFunc func(account [20]byte) (uint64, error)

// CustodyBacked values collateral at its face token amount by reading the
// custody balance of the vault, matching deployments where the collateral
// token is the unit of account.
type CustodyBacked struct {
	balance BalanceFunc
}

// NewCustodyBacked wires the valuation to a custody balance reader.
func NewCustodyBacked(balance BalanceFunc) *CustodyBacked {
	return &CustodyBacked{balance: balance}
}

// Value implements Source.
func (c *CustodyBacked) Value(account [20]byte) (uint64, error) {
	if c == nil || c.balance == nil {
		return 0, errors.New("oracle: balance reader not configured")
	}
	return c.balance(account)
}
