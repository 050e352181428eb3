// storage package contains all the artifacts that are stored in the database,
// but also is an abstraction of a queue for the processing of them by different
// services. The storage package includes a prefixed key-value store that allows
// to store the different types of artifacts in the database. The following
// prefixes are used:
//   - 'c/' for contracts
//   - 'v/' for pending votes (queued)
//   - 'r/' for proved receipts waiting for settlement (queued)
//   - 's/' for settled receipts
//   - 'st/' for the contract state trees
//   - 'k/' for the prover keys generated by the sequencer
//
// Queued prefixes have a companion reservation prefix. A reserved element is
// being processed and is skipped by the queue readers until it is marked as
// done or released.
package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/odyzzey/zk-accumulator-demo/log"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	// ErrNotFound is returned when the artifact requested does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoMoreElements is returned when a queue has no elements left to
	// process.
	ErrNoMoreElements = errors.New("no more elements")
)

var (
	contractPrefix  = []byte("c/")
	votePrefix      = []byte("v/")
	receiptPrefix   = []byte("r/")
	settledPrefix   = []byte("s/")
	statePrefix     = []byte("st/")
	proverKeyPrefix = []byte("k/")

	voteReservPrefix    = []byte("vr/")
	receiptReservPrefix = []byte("rr/")
)

// Storage wraps the database and serializes the access to the queues.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
}

// New creates a new Storage instance. Reservations left by a previous run
// are released, so the elements they held are processed again.
func New(database db.Database) *Storage {
	s := &Storage{db: database}
	for _, prefix := range [][]byte{voteReservPrefix, receiptReservPrefix} {
		n, err := s.clearPrefix(prefix)
		if err != nil {
			log.Warnw("failed to release stale reservations", "prefix", string(prefix), "error", err.Error())
			continue
		}
		if n > 0 {
			log.Infow("released stale reservations", "prefix", string(prefix), "count", n)
		}
	}
	return s
}

// StateDB returns the database where the contract state trees are stored.
func (s *Storage) StateDB() db.Database {
	return prefixeddb.NewPrefixedDatabase(s.db, statePrefix)
}

// Close closes the storage.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Warnw("failed to close storage", "error", err.Error())
	}
}

// clearPrefix deletes every key under the prefix and returns how many.
func (s *Storage) clearPrefix(prefix []byte) (int, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	var keys [][]byte
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	if err := rd.Iterate(nil, func(k, _ []byte) bool {
		keys = append(keys, copyBytes(k))
		return true
	}); err != nil {
		return 0, fmt.Errorf("iterate %s: %w", prefix, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	for _, k := range keys {
		if err := wTx.Delete(k); err != nil {
			wTx.Discard()
			return 0, err
		}
	}
	return len(keys), wTx.Commit()
}
