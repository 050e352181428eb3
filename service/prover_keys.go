package service

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/odyzzey/zk-accumulator-demo/crypto/ethereum"
	"github.com/odyzzey/zk-accumulator-demo/log"
	"github.com/odyzzey/zk-accumulator-demo/storage"
)

// LoadProverKeys returns the signing keys of the local provers: the
// configured ones first, then the keys generated in previous runs, and new
// keys until there are at least workers provers. New keys are stored before
// they are used, so the receipts they sign are still accepted after a
// restart. Stored keys that are not needed as provers are returned as
// addresses to authorize.
func LoadProverKeys(stg *storage.Storage, configured []string, workers int) ([]*ethereum.SignKeys, []common.Address, error) {
	var keys []*ethereum.SignKeys
	for _, h := range configured {
		k := ethereum.NewSignKeys()
		if err := k.AddHexKey(h); err != nil {
			return nil, nil, fmt.Errorf("invalid prover key: %w", err)
		}
		keys = append(keys, k)
	}

	stored, err := stg.ProverKeys()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load prover keys: %w", err)
	}
	var retired []common.Address
	for _, priv := range stored {
		k := ethereum.NewSignKeys()
		if err := k.AddHexKey(hex.EncodeToString(priv)); err != nil {
			return nil, nil, fmt.Errorf("invalid stored prover key: %w", err)
		}
		if len(keys) >= workers {
			retired = append(retired, k.Address())
			continue
		}
		keys = append(keys, k)
	}

	for len(keys) < workers {
		k := ethereum.NewSignKeys()
		if err := k.Generate(); err != nil {
			return nil, nil, fmt.Errorf("failed to generate prover key: %w", err)
		}
		_, privHex := k.HexString()
		priv, err := hex.DecodeString(privHex)
		if err != nil {
			return nil, nil, err
		}
		if err := stg.AddProverKey(priv); err != nil {
			return nil, nil, fmt.Errorf("failed to store prover key: %w", err)
		}
		log.Infow("prover key generated", "address", k.Address().Hex())
		keys = append(keys, k)
	}
	return keys, retired, nil
}
