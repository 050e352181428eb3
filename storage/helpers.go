package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/odyzzey/zk-accumulator-demo/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// Artifact encoding/decoding
func encodeArtifact(a any) ([]byte, error) {
	return types.EncodeCBOR(a)
}

func decodeArtifact(data []byte, out any) error {
	return cbor.Unmarshal(data, out)
}

// queueSeq breaks ties between keys created in the same nanosecond.
var queueSeq atomic.Uint32

// queueKey returns a key that sorts after every key created before it, so
// the queues are read in arrival order.
func queueKey(prefix []byte) []byte {
	key := make([]byte, 0, len(prefix)+8+4)
	key = append(key, prefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(time.Now().UnixNano()))
	return binary.BigEndian.AppendUint32(key, queueSeq.Add(1))
}

func concatKey(parts ...[]byte) []byte {
	var key []byte
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

func copyBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}

// getArtifact decodes the artifact stored under prefix+key into out. It
// returns ErrNotFound if the key does not exist.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	data, err := rd.Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := decodeArtifact(data, out); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	return nil
}

func (s *Storage) setArtifact(prefix, key []byte, a any) error {
	val, err := encodeArtifact(a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Set(key, val); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

func (s *Storage) deleteArtifact(prefix, key []byte) error {
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Delete(key); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// listArtifacts returns the keys stored under prefix.
func (s *Storage) listArtifacts(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	if err := rd.Iterate(nil, func(k, _ []byte) bool {
		keys = append(keys, copyBytes(k))
		return true
	}); err != nil {
		return nil, err
	}
	return keys, nil
}

// reservations returns the keys reserved under prefix. It must be called
// with the globalLock held, and never from an Iterate callback: some
// databases hold a read lock while iterating.
func (s *Storage) reservations(prefix []byte) (map[string]struct{}, error) {
	reserved := make(map[string]struct{})
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	if err := rd.Iterate(nil, func(k, _ []byte) bool {
		reserved[string(k)] = struct{}{}
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}
	return reserved, nil
}

// setReservations reserves the keys in a single transaction. It must be
// called with the globalLock held.
func (s *Storage) setReservations(prefix []byte, keys ...[]byte) error {
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	ts := binary.BigEndian.AppendUint64(nil, uint64(time.Now().Unix()))
	for _, k := range keys {
		if err := wTx.Set(k, ts); err != nil {
			wTx.Discard()
			return err
		}
	}
	return wTx.Commit()
}
