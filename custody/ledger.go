// Package custody implements the token custody boundary as a state-backed
// balance ledger. Transfers are atomic: they either move the full amount or
// fail the enclosing operation.
package custody

import (
	"errors"
	"fmt"
)

// storage abstracts the subset of state manager functionality required by the
// custody ledger.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var balancePrefix = []byte("custody/balance/")

func balanceKey(account [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", balancePrefix, account))
}

var (
	// ErrInsufficientFunds marks transfers exceeding the source balance.
	ErrInsufficientFunds = errors.New("custody: insufficient funds")
	// ErrUnauthorized marks transfers whose authority does not control the
	// source account.
	ErrUnauthorized = errors.New("custody: unauthorized transfer")
	// ErrInvalidAmount rejects zero-amount movements.
	ErrInvalidAmount = errors.New("custody: amount must be positive")
)

type storedBalance struct {
	Amount uint64 `json:"amount"`
}

// Ledger tracks token balances per account.
type Ledger struct {
	store storage
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store storage) *Ledger {
	return &Ledger{store: store}
}

// BalanceOf returns the balance held by account, zero when never funded.
func (l *Ledger) BalanceOf(account [20]byte) (uint64, error) {
	if l == nil || l.store == nil {
		return 0, errors.New("custody: ledger not initialised")
	}
	var bal storedBalance
	if _, err := l.store.KVGet(balanceKey(account), &bal); err != nil {
		return 0, err
	}
	return bal.Amount, nil
}

// Mint credits freshly issued tokens to account. Used by deployment seeding
// and tests; the production token ledger lives outside this module.
func (l *Ledger) Mint(account [20]byte, amount uint64) error {
	if l == nil || l.store == nil {
		return errors.New("custody: ledger not initialised")
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	var bal storedBalance
	if _, err := l.store.KVGet(balanceKey(account), &bal); err != nil {
		return err
	}
	sum := bal.Amount + amount
	if sum < bal.Amount {
		sum = ^uint64(0)
	}
	bal.Amount = sum
	return l.store.KVPut(balanceKey(account), &bal)
}

// Transfer moves amount from one account to another. The authority must
// control the source account; vault outflows therefore pass the vault itself
// as authority, the way pool-signed transfers work upstream.
func (l *Ledger) Transfer(from, to, authority [20]byte, amount uint64) error {
	if l == nil || l.store == nil {
		return errors.New("custody: ledger not initialised")
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if authority != from {
		return ErrUnauthorized
	}
	var src storedBalance
	if _, err := l.store.KVGet(balanceKey(from), &src); err != nil {
		return err
	}
	if src.Amount < amount {
		return ErrInsufficientFunds
	}
	if from == to {
		// Nothing moves; crediting the destination against the pre-debit
		// balance would mint.
		return nil
	}
	var dst storedBalance
	if _, err := l.store.KVGet(balanceKey(to), &dst); err != nil {
		return err
	}
	src.Amount -= amount
	sum := dst.Amount + amount
	if sum < dst.Amount {
		sum = ^uint64(0)
	}
	dst.Amount = sum
	if err := l.store.KVPut(balanceKey(from), &src); err != nil {
		return err
	}
	return l.store.KVPut(balanceKey(to), &dst)
}
