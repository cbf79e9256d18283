package zkproof

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
)

// Groth16Verifier verifies serialized Groth16 proofs over BN254 against a
// fixed verifying key. The proof buffer carries the gnark binary proof
// encoding; the public input buffer carries the binary public witness, whose
// first assignment is the credit commitment.
type Groth16Verifier struct {
	vk groth16.VerifyingKey
}

// NewGroth16Verifier parses a serialized verifying key.
func NewGroth16Verifier(vkBytes []byte) (*Groth16Verifier, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(vkBytes)); err != nil {
		return nil, fmt.Errorf("zkproof: parse verifying key: %w", err)
	}
	return &Groth16Verifier{vk: vk}, nil
}

// LoadGroth16Verifier reads the verifying key from disk.
func LoadGroth16Verifier(path string) (*Groth16Verifier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("zkproof: read verifying key: %w", err)
	}
	return NewGroth16Verifier(raw)
}

// Verify implements Verifier. Deserialization failures surface as the input
// validation errors of the boundary; only a well-formed proof that fails the
// pairing check yields (false, nil).
func (v *Groth16Verifier) Verify(proof, publicInputs []byte, commitment [32]byte) (bool, error) {
	if v == nil || v.vk == nil {
		return false, fmt.Errorf("zkproof: verifier not configured")
	}
	if err := ValidateInputs(proof, publicInputs); err != nil {
		return false, err
	}
	if !bytes.Contains(publicInputs, commitment[:]) {
		return false, ErrInvalidPublicInputs
	}

	parsed := groth16.NewProof(ecc.BN254)
	if _, err := parsed.ReadFrom(bytes.NewReader(proof)); err != nil {
		return false, ErrInvalidProof
	}
	public, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return false, fmt.Errorf("zkproof: new witness: %w", err)
	}
	if _, err := public.ReadFrom(bytes.NewReader(publicInputs)); err != nil && err != io.EOF {
		return false, ErrInvalidPublicInputs
	}
	if err := groth16.Verify(parsed, v.vk, public); err != nil {
		return false, nil
	}
	return true, nil
}
