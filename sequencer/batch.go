package sequencer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odyzzey/zk-accumulator-demo/log"
	"github.com/odyzzey/zk-accumulator-demo/metrics"
	"github.com/odyzzey/zk-accumulator-demo/storage"
	"github.com/odyzzey/zk-accumulator-demo/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// startBatchProcessor starts a background goroutine that periodically checks
// for contracts with votes ready to be proved. A contract is ready when
// either:
//  1. It has at least batchSize pending votes, or
//  2. The time since its last batch exceeds maxTimeWindow and it has any
//     pending vote.
//
// The processor runs until the sequencer's context is canceled.
func (s *Sequencer) startBatchProcessor() {
	ticker := time.NewTicker(s.tickInterval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		log.Infow("batch processor started", "tickInterval", s.tickInterval.String())

		for {
			select {
			case <-s.ctx.Done():
				log.Infow("batch processor stopped")
				return
			case <-ticker.C:
				s.processPendingBatches(s.ctx)
			}
		}
	}()
}

// batchJob is a batch of one contract waiting for a prover.
type batchJob struct {
	contractID types.ContractID
	size       int
}

// processPendingBatches proves every batch that is ready. Batches are proved
// concurrently, at most s.workers at a time.
func (s *Sequencer) processPendingBatches(ctx context.Context) {
	// Copy the contracts to avoid locking the map for too long
	s.contractsLock.RLock()
	lastUpdates := make(map[string]time.Time, len(s.contracts))
	for id, c := range s.contracts {
		lastUpdates[id] = c.lastUpdate
	}
	s.contractsLock.RUnlock()

	var jobs []batchJob
	totalPending := 0
	for id, lastUpdate := range lastUpdates {
		pending := s.stg.CountPendingVotes(types.ContractID(id))
		totalPending += pending
		jobs = append(jobs, s.readyBatches(types.ContractID(id), pending, time.Since(lastUpdate))...)
	}
	metrics.PendingVotes.Set(float64(totalPending))
	if len(jobs) == 0 {
		return
	}

	sem := semaphore.NewWeighted(int64(s.workers))
	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if err := s.proveBatch(gctx, job.contractID, job.size); err != nil {
				log.Warnw("failed to prove batch",
					"error", err.Error(),
					"contractID", job.contractID.String(),
				)
				return nil
			}
			s.touchContract(job.contractID)
			return nil
		})
	}
	_ = g.Wait()
}

// readyBatches splits the pending votes of a contract into the batches that
// are ready to be proved.
func (s *Sequencer) readyBatches(id types.ContractID, pending int, sinceUpdate time.Duration) []batchJob {
	if pending == 0 {
		return nil
	}
	var jobs []batchJob
	for n := pending; n >= s.batchSize; n -= s.batchSize {
		jobs = append(jobs, batchJob{contractID: id, size: s.batchSize})
	}
	if rest := pending % s.batchSize; rest > 0 && sinceUpdate > s.maxTimeWindow {
		jobs = append(jobs, batchJob{contractID: id, size: rest})
	}
	if len(jobs) > 0 {
		log.Debugw("batches ready for proving",
			"contractID", id.String(),
			"pendingVotes", pending,
			"batches", len(jobs),
			"timeSinceUpdate", sinceUpdate.String(),
		)
	}
	return jobs
}

// proveBatch pulls up to size votes of a contract, proves them with the next
// prover and queues the receipt for settlement. The votes are released if
// anything fails, so they are pulled again in a later batch.
func (s *Sequencer) proveBatch(ctx context.Context, id types.ContractID, size int) error {
	votes, keys, err := s.stg.PullVotes(id, size)
	if err != nil {
		if errors.Is(err, storage.ErrNoMoreElements) {
			return nil
		}
		return fmt.Errorf("failed to pull votes: %w", err)
	}
	release := func() {
		if err := s.stg.ReleaseVotes(keys); err != nil {
			log.Warnw("failed to release votes", "error", err.Error(), "contractID", id.String())
		}
	}

	p := s.pickProver()
	startTime := time.Now()
	receipt, err := p.Prove(ctx, id, votes)
	if err != nil {
		release()
		return fmt.Errorf("failed to prove batch: %w", err)
	}
	metrics.ProvingDuration.Observe(time.Since(startTime).Seconds())

	// the receipt replaces the votes it carries in a single write
	if err := s.stg.PushBatchReceipt(receipt, keys); err != nil {
		release()
		return fmt.Errorf("failed to push receipt: %w", err)
	}
	metrics.ReceiptsProved.Inc()

	log.Infow("batch proved successfully",
		"contractID", id.String(),
		"receiptID", receipt.ID.String(),
		"prover", p.Address().Hex(),
		"votes", len(votes),
		"duration", time.Since(startTime).String(),
	)
	return nil
}

func (s *Sequencer) touchContract(id types.ContractID) {
	s.contractsLock.Lock()
	defer s.contractsLock.Unlock()
	if c, ok := s.contracts[string(id)]; ok {
		c.lastUpdate = time.Now()
	}
}
