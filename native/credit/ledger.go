package credit

import (
	"errors"
	"fmt"
	"time"

	"privscore/core/types"
)

// storage abstracts the subset of state manager functionality required by the
// credit ledger.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var recordPrefix = []byte("credit/record/")

func recordKey(owner [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", recordPrefix, owner))
}

var (
	// ErrAlreadyExists marks a second registration for the same identity.
	ErrAlreadyExists = errors.New("credit: record already exists")
	// ErrNotFound marks lookups for identities with no registered record.
	ErrNotFound = errors.New("credit: record not found")
	// ErrInvalidCommitment rejects the all-zero commitment sentinel.
	ErrInvalidCommitment = errors.New("credit: invalid commitment")
	// ErrRecordInactive marks operations against a deactivated record.
	ErrRecordInactive = errors.New("credit: record inactive")
)

// Ledger persists per-identity credit records. Registration requires absence,
// updates require presence, and records are deactivated rather than deleted.
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

// SetNowFunc overrides the wall clock used for expiry stamps. Primarily
// leveraged in tests to provide deterministic timestamps.
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

// Register creates the credit record for owner. It fails when a record already
// exists or when the commitment is the zero sentinel. The nonce starts at 1 so
// the first verified borrow already has a replay anchor.
func (l *Ledger) Register(owner [20]byte, commitment [32]byte, tier Tier) (*Record, error) {
	if l == nil || l.store == nil {
		return nil, errors.New("credit: ledger not initialised")
	}
	if commitment == ([32]byte{}) {
		return nil, ErrInvalidCommitment
	}
	key := recordKey(owner)
	var existing Record
	found, err := l.store.KVGet(key, &existing)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, ErrAlreadyExists
	}
	now := l.now()
	record := &Record{
		Owner:        owner,
		Commitment:   commitment,
		Tier:         tier,
		Nonce:        1,
		RegisteredAt: now,
		UpdatedAt:    now,
		ExpiresAt:    now + DefaultExpiry,
		Active:       true,
	}
	if err := l.store.KVPut(key, record); err != nil {
		return nil, err
	}
	l.emitEvent(NewRegisteredEvent(record))
	return record.Clone(), nil
}

// Update replaces the commitment and tier on an existing record, refreshing
// the expiry window and advancing the nonce. Validation happens before any
// write so a rejected update never consumes a nonce.
func (l *Ledger) Update(owner [20]byte, commitment [32]byte, tier Tier) (*Record, error) {
	if l == nil || l.store == nil {
		return nil, errors.New("credit: ledger not initialised")
	}
	if commitment == ([32]byte{}) {
		return nil, ErrInvalidCommitment
	}
	key := recordKey(owner)
	var record Record
	found, err := l.store.KVGet(key, &record)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	record.UpdateCommitment(commitment, tier, l.now())
	if err := l.store.KVPut(key, &record); err != nil {
		return nil, err
	}
	l.emitEvent(NewUpdatedEvent(&record))
	return record.Clone(), nil
}

// Get retrieves the record for owner. The boolean reports presence.
func (l *Ledger) Get(owner [20]byte) (*Record, bool, error) {
	if l == nil || l.store == nil {
		return nil, false, errors.New("credit: ledger not initialised")
	}
	var record Record
	found, err := l.store.KVGet(recordKey(owner), &record)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

// Deactivate flips the record inactive. Records are never physically deleted;
// an inactive record keeps its audit counters but can no longer gate borrows.
func (l *Ledger) Deactivate(owner [20]byte) (*Record, error) {
	if l == nil || l.store == nil {
		return nil, errors.New("credit: ledger not initialised")
	}
	key := recordKey(owner)
	var record Record
	found, err := l.store.KVGet(key, &record)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	if !record.Active {
		return nil, ErrRecordInactive
	}
	record.Active = false
	record.UpdatedAt = l.now()
	if err := l.store.KVPut(key, &record); err != nil {
		return nil, err
	}
	l.emitEvent(NewDeactivatedEvent(&record))
	return record.Clone(), nil
}

// RecordKey exposes the canonical storage key for an owner so sibling ledgers
// operating through the same state manager address the identical document.
func RecordKey(owner [20]byte) []byte { return recordKey(owner) }
