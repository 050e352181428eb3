package service

import (
	"context"
	"fmt"

	"github.com/odyzzey/zk-accumulator-demo/circuits"
	"github.com/odyzzey/zk-accumulator-demo/log"
	"github.com/odyzzey/zk-accumulator-demo/sequencer"
	"github.com/odyzzey/zk-accumulator-demo/storage"
)

var _ ContractRegistry = (*sequencer.Sequencer)(nil)

// SequencerService represents a service that handles background vote
// processing and receipt settlement.
type SequencerService struct {
	Sequencer *sequencer.Sequencer
}

// NewSequencer creates a new sequencer instance. It folds the pending votes
// into batches proved by its provers, and settles the resulting receipts
// into the contract states. A batch is proved once it is full or once the
// time window of its contract expires.
func NewSequencer(stg *storage.Storage, artifacts *circuits.CircuitArtifacts, cfg sequencer.Config) (*SequencerService, error) {
	s, err := sequencer.New(stg, artifacts, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create sequencer: %w", err)
	}
	return &SequencerService{
		Sequencer: s,
	}, nil
}

// Start begins the vote processing service.
func (ss *SequencerService) Start(ctx context.Context) error {
	return ss.Sequencer.Start(ctx)
}

// Stop halts the vote processing service.
func (ss *SequencerService) Stop() {
	if err := ss.Sequencer.Stop(); err != nil {
		log.Warnw("sequencer service stopped", "error", err)
	}
}
