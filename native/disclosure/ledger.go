package disclosure

import (
	"errors"
	"fmt"
	"time"

	"privscore/core/types"
	"privscore/native/credit"
)

// storage abstracts the subset of state manager functionality required by the
// disclosure ledger. Credit records are addressed through the same manager so
// a grant and the owner's disclosure flag land in one logical unit.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var grantPrefix = []byte("disclosure/grant/")

func grantKey(owner, viewer [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x/%x", grantPrefix, owner, viewer))
}

var (
	// ErrInvalidAccessLevel rejects grants at LevelNone or out of range.
	ErrInvalidAccessLevel = errors.New("disclosure: invalid access level")
	// ErrInvalidExpiry rejects expiries at or before the current time.
	ErrInvalidExpiry = errors.New("disclosure: invalid expiry time")
	// ErrExpiryTooLong rejects expiries beyond the maximum window.
	ErrExpiryTooLong = errors.New("disclosure: expiry time too long")
	// ErrRecordNotFound marks grants against identities with no credit record.
	ErrRecordNotFound = errors.New("disclosure: credit record not found")
	// ErrInvalidViewingKey marks reads through a grant that does not exist.
	ErrInvalidViewingKey = errors.New("disclosure: invalid viewing key")
	// ErrViewingKeyNotActive marks operations against revoked, expired or
	// suspended grants.
	ErrViewingKeyNotActive = errors.New("disclosure: viewing key not active")
	// ErrViewingKeyExpired marks reads after the grant's expiry.
	ErrViewingKeyExpired = errors.New("disclosure: viewing key expired")
	// ErrMaxAccessesReached marks reads through an exhausted bounded grant.
	ErrMaxAccessesReached = errors.New("disclosure: maximum accesses reached")
)

// GrantParams carries the owner-selected options for a new grant.
type GrantParams struct {
	Level          AccessLevel
	ExpiresAt      int64
	MaxAccesses    uint32
	Purpose        string
	OneTimeUse     bool
	NotifyOnAccess bool
}

// Ledger persists viewing grants and enforces the atomic check-and-record
// discipline on reads: fields are never released without advancing the access
// counter, and the counter never advances on an invalid access.
type Ledger struct {
	store storage
	nowFn func() int64
	emit  func(*types.Event)
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store storage) *Ledger {
	return &Ledger{
		store: store,
		nowFn: func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter attaches the event sink. A nil emitter drops events.
func (l *Ledger) SetEmitter(emit func(*types.Event)) {
	if l == nil {
		return
	}
	l.emit = emit
}

func (l *Ledger) emitEvent(evt *types.Event) {
	if l == nil || l.emit == nil || evt == nil {
		return
	}
	l.emit(evt)
}

// SetNowFunc overrides the wall clock used for validity checks.
func (l *Ledger) SetNowFunc(now func() int64) {
	if l == nil {
		return
	}
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

func (l *Ledger) now() int64 {
	if l == nil || l.nowFn == nil {
		return time.Now().Unix()
	}
	return l.nowFn()
}

// Grant issues (or re-issues) the viewing capability for (owner, viewer) and
// enables disclosure on the owner's credit record. Re-granting to the same
// viewer overwrites the prior grant and resets its counters and expiry.
func (l *Ledger) Grant(owner, viewer [20]byte, params GrantParams) (*Grant, error) {
	if l == nil || l.store == nil {
		return nil, errors.New("disclosure: ledger not initialised")
	}
	now := l.now()
	if params.Level == LevelNone || !params.Level.Valid() {
		return nil, ErrInvalidAccessLevel
	}
	expiry := params.ExpiresAt
	if expiry == 0 {
		expiry = now + DefaultExpiry
	}
	if expiry <= now {
		return nil, ErrInvalidExpiry
	}
	if expiry > now+MaxExpiry {
		return nil, ErrExpiryTooLong
	}

	var record credit.Record
	found, err := l.store.KVGet(credit.RecordKey(owner), &record)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrRecordNotFound
	}

	grant := &Grant{
		Owner:          owner,
		Viewer:         viewer,
		Level:          params.Level,
		Status:         StatusActive,
		GrantedAt:      now,
		ExpiresAt:      expiry,
		MaxAccesses:    params.MaxAccesses,
		Purpose:        params.Purpose,
		OneTimeUse:     params.OneTimeUse,
		NotifyOnAccess: params.NotifyOnAccess,
	}
	if err := l.store.KVPut(grantKey(owner, viewer), grant); err != nil {
		return nil, err
	}
	if !record.DisclosureEnabled {
		record.DisclosureEnabled = true
		if err := l.store.KVPut(credit.RecordKey(owner), &record); err != nil {
			return nil, err
		}
	}
	l.emitEvent(NewGrantIssuedEvent(grant))
	return grant.Clone(), nil
}

// Revoke terminally disables the grant for (owner, viewer). Only an Active
// grant can be revoked and there is no un-revoke path.
func (l *Ledger) Revoke(owner, viewer [20]byte) (*Grant, error) {
	if l == nil || l.store == nil {
		return nil, errors.New("disclosure: ledger not initialised")
	}
	key := grantKey(owner, viewer)
	var grant Grant
	found, err := l.store.KVGet(key, &grant)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrInvalidViewingKey
	}
	if grant.Status != StatusActive {
		return nil, ErrViewingKeyNotActive
	}
	grant.Status = StatusRevoked
	if err := l.store.KVPut(key, &grant); err != nil {
		return nil, err
	}
	l.emitEvent(NewGrantRevokedEvent(&grant))
	return grant.Clone(), nil
}

// Get retrieves the grant for (owner, viewer). The boolean reports presence.
func (l *Ledger) Get(owner, viewer [20]byte) (*Grant, bool, error) {
	if l == nil || l.store == nil {
		return nil, false, errors.New("disclosure: ledger not initialised")
	}
	var grant Grant
	found, err := l.store.KVGet(grantKey(owner, viewer), &grant)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return grant.Clone(), true, nil
}

// Access performs the atomic check-and-record read through the grant for
// (owner, viewer). On success it returns the credit-record fields visible at
// min(grant level, requested level), increments the access counter and, when
// the grant is one-time-use or becomes exhausted by this read, transitions it
// to Expired as part of the same unit.
func (l *Ledger) Access(owner, viewer [20]byte, requested AccessLevel) (*Disclosure, *Grant, error) {
	if l == nil || l.store == nil {
		return nil, nil, errors.New("disclosure: ledger not initialised")
	}
	if requested == LevelNone || !requested.Valid() {
		return nil, nil, ErrInvalidAccessLevel
	}
	key := grantKey(owner, viewer)
	var grant Grant
	found, err := l.store.KVGet(key, &grant)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, ErrInvalidViewingKey
	}
	now := l.now()
	if grant.AccessExhausted() {
		return nil, nil, ErrMaxAccessesReached
	}
	if grant.Status != StatusActive {
		return nil, nil, ErrViewingKeyNotActive
	}
	if grant.IsExpired(now) {
		return nil, nil, ErrViewingKeyExpired
	}

	var record credit.Record
	found, err = l.store.KVGet(credit.RecordKey(owner), &record)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, ErrRecordNotFound
	}

	grant.AccessCount++
	grant.LastAccessedAt = now
	if grant.OneTimeUse || grant.AccessExhausted() {
		grant.Status = StatusExpired
	}
	if err := l.store.KVPut(key, &grant); err != nil {
		return nil, nil, err
	}
	effective := minLevel(grant.Level, requested)
	l.emitEvent(NewGrantAccessedEvent(&grant, effective))
	return buildDisclosure(&record, effective, now), grant.Clone(), nil
}
