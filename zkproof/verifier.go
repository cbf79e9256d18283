// Package zkproof defines the boundary to the external score-proof
// verification service. The circuit and commitment scheme live outside this
// module; implementations here only validate the untrusted buffers and return
// a black-box boolean.
package zkproof

import (
	"bytes"
	"errors"
)

const (
	// MinProofLen is the smallest byte length accepted for a proof blob.
	MinProofLen = 64
	// MinPublicInputLen is the smallest byte length accepted for the public
	// input buffer; it must at least carry the 32-byte commitment.
	MinPublicInputLen = 32
)

var (
	// ErrInvalidProof rejects empty or truncated proof buffers.
	ErrInvalidProof = errors.New("zkproof: invalid proof")
	// ErrInvalidPublicInputs rejects empty or truncated public inputs.
	ErrInvalidPublicInputs = errors.New("zkproof: invalid public inputs")
)

// Verifier checks that a proof demonstrates the private score behind
// commitment meets the pool threshold, without revealing the score.
type Verifier interface {
	Verify(proof, publicInputs []byte, commitment [32]byte) (bool, error)
}

// ValidateInputs applies the length floor shared by every implementation.
func ValidateInputs(proof, publicInputs []byte) error {
	if len(proof) < MinProofLen {
		return ErrInvalidProof
	}
	if len(publicInputs) < MinPublicInputLen {
		return ErrInvalidPublicInputs
	}
	return nil
}

// Static is a deterministic verifier for tests and development environments.
// It applies the shared input validation, requires the commitment to appear
// in the public inputs and then returns the configured result.
type Static struct {
	Result bool
}

// Verify implements Verifier.
func (s Static) Verify(proof, publicInputs []byte, commitment [32]byte) (bool, error) {
	if err := ValidateInputs(proof, publicInputs); err != nil {
		return false, err
	}
	if !bytes.Contains(publicInputs, commitment[:]) {
		return false, ErrInvalidPublicInputs
	}
	return s.Result, nil
}
