package custody

import (
	"encoding/json"
	"errors"
	"testing"
)

type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) KVGet(key []byte, out interface{}) (bool, error) {
	raw, ok := m.data[string(key)]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (m *memStore) KVPut(key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[string(key)] = raw
	return nil
}

var (
	alice = [20]byte{0x01}
	bob   = [20]byte{0x02}
)

func TestMintAndBalance(t *testing.T) {
	ledger := NewLedger(newMemStore())
	if bal, err := ledger.BalanceOf(alice); err != nil || bal != 0 {
		t.Fatalf("fresh account: bal=%d err=%v", bal, err)
	}
	if err := ledger.Mint(alice, 1000); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if bal, _ := ledger.BalanceOf(alice); bal != 1000 {
		t.Fatalf("balance %d", bal)
	}
	if err := ledger.Mint(alice, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero mint: got %v", err)
	}
}

func TestTransfer(t *testing.T) {
	ledger := NewLedger(newMemStore())
	if err := ledger.Mint(alice, 1000); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(alice, bob, alice, 400); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if bal, _ := ledger.BalanceOf(alice); bal != 600 {
		t.Fatalf("alice balance %d", bal)
	}
	if bal, _ := ledger.BalanceOf(bob); bal != 400 {
		t.Fatalf("bob balance %d", bal)
	}
}

func TestSelfTransferMovesNothing(t *testing.T) {
	ledger := NewLedger(newMemStore())
	if err := ledger.Mint(alice, 100); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(alice, alice, alice, 100); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	if bal, _ := ledger.BalanceOf(alice); bal != 100 {
		t.Fatalf("self transfer changed balance: got %d want 100", bal)
	}
	// Validation still applies even though nothing moves.
	if err := ledger.Transfer(alice, alice, alice, 101); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("self overdraw: got %v", err)
	}
	if err := ledger.Transfer(alice, alice, bob, 50); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("self transfer wrong authority: got %v", err)
	}
}

func TestTransferRejections(t *testing.T) {
	ledger := NewLedger(newMemStore())
	if err := ledger.Mint(alice, 100); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(alice, bob, bob, 50); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("wrong authority: got %v", err)
	}
	if err := ledger.Transfer(alice, bob, alice, 101); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraw: got %v", err)
	}
	if err := ledger.Transfer(alice, bob, alice, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero transfer: got %v", err)
	}
	if bal, _ := ledger.BalanceOf(alice); bal != 100 {
		t.Fatalf("failed transfers moved funds: %d", bal)
	}
}
