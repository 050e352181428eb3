package prover

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/ethereum/go-ethereum/common"
	"github.com/odyzzey/zk-accumulator-demo/circuits/fold"
	"github.com/odyzzey/zk-accumulator-demo/crypto/ethereum"
	"github.com/odyzzey/zk-accumulator-demo/types"
)

var (
	// ErrInvalidProof is returned when the fold proof of a receipt does not
	// verify against its journal.
	ErrInvalidProof = errors.New("invalid fold proof")
	// ErrInvalidSignature is returned when the receipt signature does not
	// belong to the receipt prover.
	ErrInvalidSignature = errors.New("invalid receipt signature")
	// ErrUnknownProver is returned when the receipt was signed by a prover
	// that is not authorized to settle.
	ErrUnknownProver = errors.New("receipt signed by an unknown prover")
)

// Verifier checks the provenance of receipts before they are settled: the
// fold proof must verify against the journal and the receipt must be signed
// by an authorized prover.
type Verifier struct {
	vk groth16.VerifyingKey

	mu         sync.RWMutex
	authorized map[common.Address]struct{}
}

// NewVerifier creates a verifier for the fold verifying key, accepting the
// receipts of the provers provided.
func NewVerifier(vk groth16.VerifyingKey, authorized ...common.Address) *Verifier {
	v := &Verifier{
		vk:         vk,
		authorized: make(map[common.Address]struct{}, len(authorized)),
	}
	for _, addr := range authorized {
		v.authorized[addr] = struct{}{}
	}
	return v
}

// Authorize accepts the receipts of a new prover.
func (v *Verifier) Authorize(addr common.Address) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.authorized[addr] = struct{}{}
}

// IsAuthorized returns true if the prover receipts are accepted.
func (v *Verifier) IsAuthorized(addr common.Address) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.authorized[addr]
	return ok
}

// Verify returns nil if the receipt can be settled.
func (v *Verifier) Verify(r *types.Receipt) error {
	if r == nil {
		return fmt.Errorf("receipt cannot be nil")
	}
	if r.VoteCount < 0 || r.VoteCount > types.VotesPerBatch {
		return fmt.Errorf("%w: vote count out of range: %d", ErrInvalidProof, r.VoteCount)
	}
	if err := fold.CheckJournal(r.Journal); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProof, err)
	}

	// provenance
	payload, err := r.SignedPayload()
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}
	signer, err := ethereum.AddrFromSignature(payload, r.Signature)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if signer != r.Prover {
		return fmt.Errorf("%w: signed by %s, expected %s", ErrInvalidSignature, signer, r.Prover)
	}
	if !v.IsAuthorized(signer) {
		return fmt.Errorf("%w: %s", ErrUnknownProver, signer)
	}

	// fold proof
	proof := groth16.NewProof(fold.Curve)
	if _, err := proof.ReadFrom(bytes.NewReader(r.Proof)); err != nil {
		return fmt.Errorf("%w: cannot decode proof: %w", ErrInvalidProof, err)
	}
	publicWitness, err := frontend.NewWitness(fold.PublicAssignment(r.Journal, r.VoteCount),
		fold.Curve.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("failed to create public witness: %w", err)
	}
	if err := groth16.Verify(proof, v.vk, publicWitness); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProof, err)
	}
	return nil
}
