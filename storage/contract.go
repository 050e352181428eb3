package storage

import (
	"fmt"

	"github.com/odyzzey/zk-accumulator-demo/types"
)

// SetContract stores a contract record.
func (s *Storage) SetContract(c *Contract) error {
	if c == nil || len(c.ID) == 0 {
		return fmt.Errorf("nil contract data")
	}
	return s.setArtifact(contractPrefix, c.ID, c)
}

// Contract retrieves a contract record. It returns ErrNotFound if the
// contract is not registered.
func (s *Storage) Contract(id types.ContractID) (*Contract, error) {
	c := &Contract{}
	if err := s.getArtifact(contractPrefix, id, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListContracts returns the IDs of the contracts stored.
func (s *Storage) ListContracts() ([]types.ContractID, error) {
	keys, err := s.listArtifacts(contractPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]types.ContractID, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, types.ContractID(k))
	}
	return ids, nil
}
