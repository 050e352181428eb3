package sequencer

import (
	"errors"
	"fmt"
	"time"

	"github.com/odyzzey/zk-accumulator-demo/log"
	"github.com/odyzzey/zk-accumulator-demo/metrics"
	"github.com/odyzzey/zk-accumulator-demo/prover"
	"github.com/odyzzey/zk-accumulator-demo/state"
	"github.com/odyzzey/zk-accumulator-demo/storage"
	"github.com/odyzzey/zk-accumulator-demo/types"
)

// startSettlementProcessor starts a background goroutine that settles the
// queued receipts one by one. When the queue is empty it waits for the next
// tick. The processor runs until the sequencer's context is canceled.
func (s *Sequencer) startSettlementProcessor() {
	ticker := time.NewTicker(s.tickInterval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		log.Infow("settlement processor started")

		for {
			select {
			case <-s.ctx.Done():
				log.Infow("settlement processor stopped")
				return
			default:
			}

			receipt, key, err := s.stg.NextReceipt()
			if err != nil {
				if !errors.Is(err, storage.ErrNoMoreElements) {
					log.Errorw(err, "failed to get next receipt")
				}
				select {
				case <-ticker.C:
				case <-s.ctx.Done():
					log.Infow("settlement processor stopped")
					return
				}
				continue
			}
			s.processReceipt(receipt, key)
		}
	}()
}

// processReceipt settles a queued receipt and removes it from the queue.
// Receipts of an unregistered contract or an unknown prover are parked: they
// stay reserved until the contract or the prover is registered. Receipts
// that can never be settled are dropped, any other failure releases the
// receipt so it is retried.
func (s *Sequencer) processReceipt(r *types.Receipt, key []byte) {
	settled, err := s.Settle(r)
	if err != nil {
		reason := metrics.ReasonInternal
		switch {
		case errors.Is(err, ErrUnknownContract):
			reason = metrics.ReasonUnknown
		case errors.Is(err, prover.ErrUnknownProver):
			reason = metrics.ReasonUnknownProver
		case errors.Is(err, state.ErrReceiptAlreadySettled):
			reason = metrics.ReasonDuplicate
		case isInvalidReceipt(err):
			reason = metrics.ReasonInvalid
		}
		metrics.SettlementFailures.WithLabelValues(reason).Inc()

		switch reason {
		case metrics.ReasonInternal:
			log.Warnw("failed to settle receipt, releasing it",
				"error", err.Error(),
				"receiptID", r.ID.String(),
			)
			if err := s.stg.ReleaseReceipt(key); err != nil {
				log.Warnw("failed to release receipt", "error", err.Error())
			}
		case metrics.ReasonUnknown, metrics.ReasonUnknownProver:
			log.Infow("receipt parked",
				"reason", reason,
				"receiptID", r.ID.String(),
				"contractID", r.ContractID.String(),
				"prover", r.Prover.Hex(),
			)
		default:
			log.Warnw("receipt dropped",
				"reason", reason,
				"error", err.Error(),
				"receiptID", r.ID.String(),
				"contractID", r.ContractID.String(),
			)
			if err := s.stg.MarkReceiptDone(key, nil); err != nil {
				log.Warnw("failed to drop receipt", "error", err.Error())
			}
		}
		return
	}

	if err := s.stg.MarkReceiptDone(key, settled); err != nil {
		log.Warnw("failed to mark receipt as settled",
			"error", err.Error(),
			"receiptID", r.ID.String(),
		)
	}
}

// releaseParkedReceipts puts the parked receipts back in the settlement
// queue. Only the settlement processor reserves receipts, so a receipt it is
// processing right now is settled or parked again.
func (s *Sequencer) releaseParkedReceipts() {
	n, err := s.stg.ReleaseReceipts()
	if err != nil {
		log.Warnw("failed to release parked receipts", "error", err.Error())
		return
	}
	if n > 0 {
		log.Debugw("parked receipts released", "count", n)
	}
}

// Settle verifies a receipt and applies its journal to the contract state.
// It returns the settlement record without storing it.
func (s *Sequencer) Settle(r *types.Receipt) (*storage.SettledReceipt, error) {
	if r == nil {
		return nil, fmt.Errorf("receipt cannot be nil")
	}
	st, err := s.State(r.ContractID)
	if err != nil {
		return nil, err
	}
	if err := s.verifier.Verify(r); err != nil {
		return nil, err
	}
	point, err := st.Settle(r)
	if err != nil {
		return nil, err
	}
	metrics.ReceiptsSettled.Inc()

	root, err := st.Root()
	if err != nil {
		return nil, fmt.Errorf("failed to get state root: %w", err)
	}
	count, err := st.SettledCount()
	if err != nil {
		return nil, fmt.Errorf("failed to get settled count: %w", err)
	}
	log.Infow("receipt settled",
		"contractID", r.ContractID.String(),
		"receiptID", r.ID.String(),
		"journal", r.Journal.String(),
		"point", point.String(),
	)
	return &storage.SettledReceipt{
		Receipt:   r,
		Point:     point,
		Root:      root,
		SettledAt: time.Now(),
		Index:     count,
	}, nil
}

// SubmitReceipt queues a receipt proved outside the sequencer. It is checked
// before queuing, so the caller learns about invalid receipts right away.
func (s *Sequencer) SubmitReceipt(r *types.Receipt) error {
	if r == nil {
		return fmt.Errorf("receipt cannot be nil")
	}
	st, err := s.State(r.ContractID)
	if err != nil {
		return err
	}
	if err := s.verifier.Verify(r); err != nil {
		return err
	}
	settled, err := st.IsSettled(r.ID)
	if err != nil {
		return err
	}
	if settled {
		return fmt.Errorf("%w: %s", state.ErrReceiptAlreadySettled, r.ID)
	}
	return s.stg.PushReceipt(r)
}

// isInvalidReceipt returns true if the error means the receipt can never be
// settled.
func isInvalidReceipt(err error) bool {
	return errors.Is(err, prover.ErrInvalidProof) ||
		errors.Is(err, prover.ErrInvalidSignature) ||
		errors.Is(err, state.ErrContractMismatch)
}
