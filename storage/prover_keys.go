package storage

import (
	"fmt"

	"github.com/odyzzey/zk-accumulator-demo/types"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// AddProverKey stores the private key of a generated prover. Keys are kept
// in creation order.
func (s *Storage) AddProverKey(privKey types.HexBytes) error {
	if len(privKey) == 0 {
		return fmt.Errorf("empty prover key")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), proverKeyPrefix)
	if err := wTx.Set(queueKey(nil), privKey); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// ProverKeys returns the stored prover private keys, oldest first.
func (s *Storage) ProverKeys() ([]types.HexBytes, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, proverKeyPrefix)
	var keys []types.HexBytes
	if err := rd.Iterate(nil, func(_, v []byte) bool {
		keys = append(keys, copyBytes(v))
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate prover keys: %w", err)
	}
	return keys, nil
}
