// Package sequencer drives the accumulator: it turns the pending votes of
// every registered contract into proved receipts and settles the receipts
// into the contract states.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/odyzzey/zk-accumulator-demo/circuits"
	"github.com/odyzzey/zk-accumulator-demo/crypto/ethereum"
	"github.com/odyzzey/zk-accumulator-demo/log"
	"github.com/odyzzey/zk-accumulator-demo/prover"
	"github.com/odyzzey/zk-accumulator-demo/state"
	"github.com/odyzzey/zk-accumulator-demo/storage"
	"github.com/odyzzey/zk-accumulator-demo/types"
)

// ErrUnknownContract is returned when the contract is not registered in the
// sequencer.
var ErrUnknownContract = errors.New("unknown contract")

// Config holds the sequencer settings.
type Config struct {
	// BatchSize is the number of pending votes that makes a batch ready.
	// It can not exceed types.VotesPerBatch.
	BatchSize int
	// BatchTimeWindow is the maximum time to wait before proving a batch
	// even if it is not full.
	BatchTimeWindow time.Duration
	// TickInterval is how often the processors look for work.
	TickInterval time.Duration
	// Workers bounds the number of batches proved concurrently.
	Workers int
	// ProverKeys are the signing keys of the local provers, one prover per
	// key. At least one is required.
	ProverKeys []*ethereum.SignKeys
	// AuthorizedProvers are remote provers whose receipts are also settled.
	AuthorizedProvers []common.Address
}

// contract is a registered contract and the time its last batch was proved.
type contract struct {
	state      *state.State
	lastUpdate time.Time
}

// Sequencer is a worker that takes pending votes, proves them in batches and
// settles the resulting receipts.
type Sequencer struct {
	stg    *storage.Storage
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	contracts     map[string]*contract // Maps contract IDs to their state
	contractsLock sync.RWMutex         // Protects access to the contracts map

	provers    []*prover.Prover
	nextProver atomic.Uint64
	verifier   *prover.Verifier

	batchSize    int
	tickInterval time.Duration
	workers      int
	// maxTimeWindow is the maximum time window to wait for a batch to be processed.
	// If this time elapses, the batch will be processed even if not full.
	maxTimeWindow time.Duration
}

// New creates a new Sequencer instance. Every local prover shares the fold
// circuit artifacts and is authorized in the verifier, together with the
// remote provers of the configuration.
func New(stg *storage.Storage, artifacts *circuits.CircuitArtifacts, cfg Config) (*Sequencer, error) {
	if stg == nil {
		return nil, fmt.Errorf("storage cannot be nil")
	}
	if artifacts == nil {
		return nil, fmt.Errorf("circuit artifacts cannot be nil")
	}
	if cfg.BatchSize < 1 || cfg.BatchSize > types.VotesPerBatch {
		return nil, fmt.Errorf("batch size must be between 1 and %d", types.VotesPerBatch)
	}
	if cfg.BatchTimeWindow <= 0 {
		return nil, fmt.Errorf("batch time window must be positive")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if len(cfg.ProverKeys) == 0 {
		return nil, fmt.Errorf("at least one prover key is required")
	}

	s := &Sequencer{
		stg:           stg,
		contracts:     make(map[string]*contract),
		verifier:      prover.NewVerifier(artifacts.VerifyingKey(), cfg.AuthorizedProvers...),
		batchSize:     cfg.BatchSize,
		tickInterval:  cfg.TickInterval,
		workers:       cfg.Workers,
		maxTimeWindow: cfg.BatchTimeWindow,
	}
	for _, key := range cfg.ProverKeys {
		p, err := prover.New(artifacts, key)
		if err != nil {
			return nil, fmt.Errorf("failed to create prover: %w", err)
		}
		s.provers = append(s.provers, p)
		s.verifier.Authorize(p.Address())
	}

	log.Debugw("sequencer initialized",
		"batchSize", s.batchSize,
		"batchTimeWindow", s.maxTimeWindow.String(),
		"workers", s.workers,
		"provers", len(s.provers),
	)
	return s, nil
}

// Start begins the batch and settlement routines. It creates a new context
// derived from the provided one, cancelled by Stop.
func (s *Sequencer) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.startBatchProcessor()
	s.startSettlementProcessor()

	log.Infow("sequencer started successfully")
	return nil
}

// Stop shuts down the sequencer and waits for the running batches to end.
// It's safe to call Stop multiple times.
func (s *Sequencer) Stop() error {
	if s.cancel != nil {
		s.cancel()
		s.wg.Wait()
		log.Infow("sequencer stopped")
	}
	return nil
}

// AddContract registers a contract with the sequencer. Its state is opened
// from the storage, and initialized to the identity point if it is new.
// Registering a contract twice has no effect.
func (s *Sequencer) AddContract(id types.ContractID) error {
	if len(id) == 0 {
		return fmt.Errorf("contract ID cannot be empty")
	}
	s.contractsLock.Lock()
	defer s.contractsLock.Unlock()

	if _, exists := s.contracts[string(id)]; exists {
		log.Debugw("contract already registered", "contractID", id.String())
		return nil
	}
	st, err := state.New(s.stg.StateDB(), id)
	if err != nil {
		return fmt.Errorf("failed to open contract state: %w", err)
	}
	if err := st.Initialize(); err != nil && !errors.Is(err, state.ErrAlreadyInitialized) {
		return fmt.Errorf("failed to initialize contract state: %w", err)
	}
	s.contracts[string(id)] = &contract{state: st, lastUpdate: time.Now()}
	log.Infow("contract registered for sequencing", "contractID", id.String())
	s.releaseParkedReceipts()
	return nil
}

// DelContract unregisters a contract. Its pending votes and receipts stay
// in the storage, parked, until it is registered again.
func (s *Sequencer) DelContract(id types.ContractID) {
	s.contractsLock.Lock()
	defer s.contractsLock.Unlock()
	if _, exists := s.contracts[string(id)]; exists {
		delete(s.contracts, string(id))
		log.Infow("contract unregistered from sequencing", "contractID", id.String())
	}
}

// State returns the state of a registered contract.
func (s *Sequencer) State(id types.ContractID) (*state.State, error) {
	s.contractsLock.RLock()
	defer s.contractsLock.RUnlock()
	c, ok := s.contracts[string(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContract, id)
	}
	return c.state, nil
}

// Contracts returns the IDs of the registered contracts.
func (s *Sequencer) Contracts() []types.ContractID {
	s.contractsLock.RLock()
	defer s.contractsLock.RUnlock()
	ids := make([]types.ContractID, 0, len(s.contracts))
	for id := range s.contracts {
		ids = append(ids, types.ContractID(id))
	}
	return ids
}

// AuthorizeProver accepts the receipts signed by addr from now on, parked
// receipts included.
func (s *Sequencer) AuthorizeProver(addr common.Address) {
	s.verifier.Authorize(addr)
	log.Infow("prover authorized", "address", addr.Hex())
	s.releaseParkedReceipts()
}

// Verifier returns the verifier used to accept receipts.
func (s *Sequencer) Verifier() *prover.Verifier {
	return s.verifier
}

// Provers returns the addresses of the local provers.
func (s *Sequencer) Provers() []common.Address {
	addrs := make([]common.Address, 0, len(s.provers))
	for _, p := range s.provers {
		addrs = append(addrs, p.Address())
	}
	return addrs
}

// pickProver returns the local provers in round robin.
func (s *Sequencer) pickProver() *prover.Prover {
	n := s.nextProver.Add(1) - 1
	return s.provers[n%uint64(len(s.provers))]
}
