// Package prover is the execution environment of the accumulator: a prover
// session collects the votes of a batch, folds them into one aggregate vote
// and proves the fold with the fold circuit. The result is a signed receipt
// whose journal is the only value that reaches the settlement layer.
package prover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/odyzzey/zk-accumulator-demo/circuits"
	"github.com/odyzzey/zk-accumulator-demo/circuits/fold"
	"github.com/odyzzey/zk-accumulator-demo/crypto/ethereum"
	"github.com/odyzzey/zk-accumulator-demo/log"
	"github.com/odyzzey/zk-accumulator-demo/types"
)

var (
	// ErrBatchFull is returned when a session already holds
	// types.VotesPerBatch votes.
	ErrBatchFull = errors.New("prover batch is full")
	// ErrSessionClosed is returned when a closed session is used again.
	ErrSessionClosed = errors.New("prover session already closed")
)

// Prover proves vote folds and signs the resulting receipts with its key.
// A Prover is safe for concurrent use, every batch gets its own Session.
type Prover struct {
	artifacts *circuits.CircuitArtifacts
	signer    *ethereum.SignKeys
}

// New creates a prover for the artifacts and signing key provided.
func New(artifacts *circuits.CircuitArtifacts, signer *ethereum.SignKeys) (*Prover, error) {
	if artifacts == nil {
		return nil, fmt.Errorf("circuit artifacts cannot be nil")
	}
	if signer == nil || signer.Private.D == nil {
		return nil, fmt.Errorf("prover signing key cannot be empty")
	}
	return &Prover{artifacts: artifacts, signer: signer}, nil
}

// Address returns the address that identifies the prover receipts.
func (p *Prover) Address() common.Address {
	return p.signer.Address()
}

// NewSession opens a new batch for the contract provided.
func (p *Prover) NewSession(contractID types.ContractID) *Session {
	return &Session{prover: p, contractID: contractID}
}

// Prove folds and proves the votes in a single session.
func (p *Prover) Prove(ctx context.Context, contractID types.ContractID, votes []types.PointVote) (*types.Receipt, error) {
	s := p.NewSession(contractID)
	for _, v := range votes {
		if err := s.AddVote(v); err != nil {
			return nil, err
		}
	}
	return s.Close(ctx)
}

// Session collects the votes of one batch. Votes are only read when the
// session is closed, the caller never sees intermediate aggregates.
type Session struct {
	prover     *Prover
	contractID types.ContractID

	mu     sync.Mutex
	votes  []types.PointVote
	closed bool
}

// AddVote appends a vote to the batch. It fails with ErrBatchFull once the
// batch holds types.VotesPerBatch votes, and with fold.ErrVoteOutOfRange if
// the vote can not be proved.
func (s *Session) AddVote(v types.PointVote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if len(s.votes) >= types.VotesPerBatch {
		return ErrBatchFull
	}
	if err := fold.CheckVote(v); err != nil {
		return err
	}
	s.votes = append(s.votes, v)
	return nil
}

// Len returns the number of votes in the batch.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.votes)
}

// Close folds the batch, proves the fold and returns the signed receipt. An
// empty batch is proved as the identity vote. The session can not be used
// after Close, even if it fails.
func (s *Session) Close(ctx context.Context) (*types.Receipt, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.closed = true
	votes := s.votes
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	assignment, journal, err := fold.Assignment(votes)
	if err != nil {
		return nil, fmt.Errorf("failed to build fold assignment: %w", err)
	}
	witness, err := frontend.NewWitness(assignment, fold.Curve.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("failed to create witness: %w", err)
	}

	startTime := time.Now()
	proof, err := groth16.Prove(s.prover.artifacts.CircuitDefinition(), s.prover.artifacts.ProvingKey(), witness)
	if err != nil {
		return nil, fmt.Errorf("failed to generate fold proof: %w", err)
	}
	var proofBuf bytes.Buffer
	if _, err := proof.WriteTo(&proofBuf); err != nil {
		return nil, fmt.Errorf("failed to encode fold proof: %w", err)
	}
	// proving is not interruptible, but a cancelled caller gets no receipt
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	receipt := &types.Receipt{
		ID:         uuid.New(),
		ContractID: s.contractID,
		Journal:    journal,
		VoteCount:  len(votes),
		Proof:      proofBuf.Bytes(),
		Prover:     s.prover.Address(),
	}
	payload, err := receipt.SignedPayload()
	if err != nil {
		return nil, fmt.Errorf("failed to encode receipt: %w", err)
	}
	if receipt.Signature, err = s.prover.signer.SignEthereum(payload); err != nil {
		return nil, fmt.Errorf("failed to sign receipt: %w", err)
	}

	log.Debugw("fold proved",
		"contractID", s.contractID.String(),
		"receiptID", receipt.ID.String(),
		"votes", len(votes),
		"journal", journal.String(),
		"duration", time.Since(startTime).String(),
	)
	return receipt, nil
}
