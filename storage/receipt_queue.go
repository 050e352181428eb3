package storage

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/odyzzey/zk-accumulator-demo/log"
	"github.com/odyzzey/zk-accumulator-demo/types"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// PushReceipt stores a proved receipt into the settlement queue.
func (s *Storage) PushReceipt(r *types.Receipt) error {
	if r == nil {
		return fmt.Errorf("nil receipt")
	}
	return s.setArtifact(receiptPrefix, queueKey(nil), r)
}

// NextReceipt returns the next non-reserved receipt, creates a reservation,
// and returns it with its key. If no receipts are available, returns
// ErrNoMoreElements.
func (s *Storage) NextReceipt() (*types.Receipt, []byte, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	reserved, err := s.reservations(receiptReservPrefix)
	if err != nil {
		return nil, nil, err
	}
	pr := prefixeddb.NewPrefixedReader(s.db, receiptPrefix)
	var chosenKey, chosenVal []byte
	if err := pr.Iterate(nil, func(k, v []byte) bool {
		if _, ok := reserved[string(k)]; ok {
			return true
		}
		chosenKey = copyBytes(k)
		chosenVal = copyBytes(v)
		return false
	}); err != nil {
		return nil, nil, fmt.Errorf("iterate receipts: %w", err)
	}
	if chosenVal == nil {
		return nil, nil, ErrNoMoreElements
	}

	var r types.Receipt
	if err := decodeArtifact(chosenVal, &r); err != nil {
		return nil, nil, fmt.Errorf("decode receipt: %w", err)
	}

	if err := s.setReservations(receiptReservPrefix, chosenKey); err != nil {
		return nil, nil, ErrNoMoreElements
	}
	return &r, chosenKey, nil
}

// MarkReceiptDone removes the receipt from the settlement queue. If the
// receipt was settled, the settlement record is archived; a nil record
// drops the receipt.
func (s *Storage) MarkReceiptDone(k []byte, settled *SettledReceipt) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if err := s.deleteArtifact(receiptReservPrefix, k); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete receipt reservation: %w", err)
	}
	if err := s.deleteArtifact(receiptPrefix, k); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete pending receipt: %w", err)
	}
	if settled == nil {
		return nil
	}
	if settled.Receipt == nil {
		return fmt.Errorf("settled record without receipt")
	}
	return s.setArtifact(settledPrefix, settledKey(settled.Receipt.ContractID, settled.Receipt.ID), settled)
}

// ReleaseReceipt removes the reservation so the receipt is processed again.
func (s *Storage) ReleaseReceipt(k []byte) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	return s.deleteArtifact(receiptReservPrefix, k)
}

// ReleaseReceipts removes every receipt reservation, so parked receipts are
// processed again. It returns the number of receipts released.
func (s *Storage) ReleaseReceipts() (int, error) {
	return s.clearPrefix(receiptReservPrefix)
}

// CountPendingReceipts returns the number of receipts waiting for
// settlement, reserved ones included.
func (s *Storage) CountPendingReceipts() int {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	rd := prefixeddb.NewPrefixedReader(s.db, receiptPrefix)
	count := 0
	if err := rd.Iterate(nil, func(_, _ []byte) bool {
		count++
		return true
	}); err != nil {
		log.Warnw("failed to count pending receipts", "error", err.Error())
	}
	return count
}

// Receipt returns the settlement record of a receipt. It returns
// ErrNotFound if the receipt was never settled.
func (s *Storage) Receipt(contractID types.ContractID, receiptID uuid.UUID) (*SettledReceipt, error) {
	sr := &SettledReceipt{}
	if err := s.getArtifact(settledPrefix, settledKey(contractID, receiptID), sr); err != nil {
		return nil, err
	}
	return sr, nil
}

// ListReceipts returns the settlement records of a contract, in settlement
// order.
func (s *Storage) ListReceipts(contractID types.ContractID) ([]*SettledReceipt, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, settledPrefix)
	var res []*SettledReceipt
	if err := rd.Iterate(contractID, func(k, v []byte) bool {
		sr := &SettledReceipt{}
		if err := decodeArtifact(v, sr); err != nil {
			log.Warnw("failed to decode settled receipt", "key", fmt.Sprintf("%x", k), "error", err.Error())
			return true
		}
		res = append(res, sr)
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate settled receipts: %w", err)
	}
	slices.SortFunc(res, func(a, b *SettledReceipt) int {
		return a.Index - b.Index
	})
	return res, nil
}

func settledKey(contractID types.ContractID, receiptID uuid.UUID) []byte {
	return concatKey(contractID, receiptID[:])
}
