package lending

import (
	"encoding/hex"
	"errors"

	"privscore/native/credit"
)

// kvStore abstracts the subset of state manager functionality required by the
// lending ledger.
type kvStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	poolPrefix = []byte("lending/pool/")
	loanPrefix = []byte("lending/loan/")
)

func poolKey(id string) []byte {
	return append(append([]byte{}, poolPrefix...), []byte(id)...)
}

func loanKey(id [32]byte) []byte {
	return append(append([]byte{}, loanPrefix...), []byte(hex.EncodeToString(id[:]))...)
}

// State persists pools, loans and credit records through the shared KV
// manager. Credit records share their key layout with the credit ledger so
// both modules address the same documents.
type State struct {
	store kvStore
}

// NewState constructs a state adapter bound to the provided storage backend.
func NewState(store kvStore) *State {
	return &State{store: store}
}

func (s *State) check() error {
	if s == nil || s.store == nil {
		return errors.New("lending: state not initialised")
	}
	return nil
}

// GetPool implements engineState.
func (s *State) GetPool(id string) (*Pool, bool, error) {
	if err := s.check(); err != nil {
		return nil, false, err
	}
	var pool Pool
	ok, err := s.store.KVGet(poolKey(id), &pool)
	if err != nil || !ok {
		return nil, false, err
	}
	return &pool, true, nil
}

// PutPool implements engineState.
func (s *State) PutPool(pool *Pool) error {
	if err := s.check(); err != nil {
		return err
	}
	if pool == nil {
		return errors.New("lending: nil pool")
	}
	return s.store.KVPut(poolKey(pool.ID), pool)
}

// GetLoan implements engineState.
func (s *State) GetLoan(id [32]byte) (*Loan, bool, error) {
	if err := s.check(); err != nil {
		return nil, false, err
	}
	var loan Loan
	ok, err := s.store.KVGet(loanKey(id), &loan)
	if err != nil || !ok {
		return nil, false, err
	}
	return &loan, true, nil
}

// PutLoan implements engineState.
func (s *State) PutLoan(loan *Loan) error {
	if err := s.check(); err != nil {
		return err
	}
	if loan == nil {
		return errors.New("lending: nil loan")
	}
	return s.store.KVPut(loanKey(loan.ID), loan)
}

// GetCreditRecord implements engineState.
func (s *State) GetCreditRecord(owner [20]byte) (*credit.Record, bool, error) {
	if err := s.check(); err != nil {
		return nil, false, err
	}
	var record credit.Record
	ok, err := s.store.KVGet(credit.RecordKey(owner), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	return &record, true, nil
}

// PutCreditRecord implements engineState.
func (s *State) PutCreditRecord(record *credit.Record) error {
	if err := s.check(); err != nil {
		return err
	}
	if record == nil {
		return errors.New("lending: nil credit record")
	}
	return s.store.KVPut(credit.RecordKey(record.Owner), record)
}
