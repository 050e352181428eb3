package storage

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/odyzzey/zk-accumulator-demo/log"
	"github.com/odyzzey/zk-accumulator-demo/types"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// PushVote stores a new vote into the pending votes queue of a contract.
func (s *Storage) PushVote(contractID types.ContractID, v types.PointVote) error {
	if len(contractID) == 0 {
		return fmt.Errorf("contract ID cannot be empty")
	}
	val, err := encodeArtifact(v)
	if err != nil {
		return fmt.Errorf("encode vote: %w", err)
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), votePrefix)
	if err := wTx.Set(queueKey(contractID), val); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// PullVotes returns up to maxCount non-reserved pending votes of a contract,
// in arrival order, and creates reservations for them. The keys returned
// are used to commit the votes into a receipt or to release them. If no
// votes are available, returns ErrNoMoreElements.
func (s *Storage) PullVotes(contractID types.ContractID, maxCount int) ([]types.PointVote, [][]byte, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if maxCount <= 0 {
		return []types.PointVote{}, nil, nil
	}
	reserved, err := s.reservations(voteReservPrefix)
	if err != nil {
		return nil, nil, err
	}

	rd := prefixeddb.NewPrefixedReader(s.db, votePrefix)
	var res []types.PointVote
	var keys [][]byte
	if err := rd.Iterate(contractID, func(k, v []byte) bool {
		if len(res) >= maxCount {
			return false
		}
		key := concatKey(contractID, k)
		if _, ok := reserved[string(key)]; ok {
			return true
		}
		var vote types.PointVote
		if err := decodeArtifact(v, &vote); err != nil {
			log.Warnw("failed to decode vote", "key", hex.EncodeToString(key), "error", err.Error())
			return true
		}
		res = append(res, vote)
		keys = append(keys, key)
		return true
	}); err != nil {
		return nil, nil, fmt.Errorf("iterate votes: %w", err)
	}

	if len(res) == 0 {
		return nil, nil, ErrNoMoreElements
	}
	// reservations are written once the iteration released the database
	if err := s.setReservations(voteReservPrefix, keys...); err != nil {
		return nil, nil, fmt.Errorf("reserve votes: %w", err)
	}
	return res, keys, nil
}

// PushBatchReceipt queues the receipt that proves a batch of votes and
// removes those votes from the pending queue, in a single transaction. The
// votes can not be proved again once the receipt exists, even after a
// restart.
func (s *Storage) PushBatchReceipt(r *types.Receipt, voteKeys [][]byte) error {
	if r == nil {
		return fmt.Errorf("nil receipt")
	}
	val, err := encodeArtifact(r)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}

	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := wTx.Set(concatKey(receiptPrefix, queueKey(nil)), val); err != nil {
		return fmt.Errorf("set receipt: %w", err)
	}
	// the vote goes before its reservation
	for _, k := range voteKeys {
		if err := wTx.Delete(concatKey(votePrefix, k)); err != nil {
			return fmt.Errorf("delete pending vote: %w", err)
		}
		if err := wTx.Delete(concatKey(voteReservPrefix, k)); err != nil {
			return fmt.Errorf("delete vote reservation: %w", err)
		}
	}
	return wTx.Commit()
}

// ReleaseVotes removes the reservations so the votes are pulled again.
func (s *Storage) ReleaseVotes(keys [][]byte) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	for _, k := range keys {
		if err := s.deleteArtifact(voteReservPrefix, k); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete vote reservation: %w", err)
		}
	}
	return nil
}

// CountPendingVotes returns the number of non-reserved votes of a contract.
func (s *Storage) CountPendingVotes(contractID types.ContractID) int {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	reserved, err := s.reservations(voteReservPrefix)
	if err != nil {
		log.Warnw("failed to count pending votes", "error", err.Error())
		return 0
	}
	rd := prefixeddb.NewPrefixedReader(s.db, votePrefix)
	count := 0
	if err := rd.Iterate(contractID, func(k, _ []byte) bool {
		if _, ok := reserved[string(concatKey(contractID, k))]; !ok {
			count++
		}
		return true
	}); err != nil {
		log.Warnw("failed to count pending votes", "error", err.Error())
	}
	return count
}
