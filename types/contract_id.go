package types

import (
	"fmt"

	"github.com/google/uuid"
)

// ContractID identifies a contract point. It is the binary form of a UUID.
type ContractID = HexBytes

// NewContractID returns a new random contract identifier.
func NewContractID() ContractID {
	id := uuid.New()
	return ContractID(id[:])
}

// ParseContractID decodes and validates a hex encoded contract identifier.
func ParseContractID(s string) (ContractID, error) {
	b, err := HexStringToHexBytes(s)
	if err != nil {
		return nil, err
	}
	if len(b) != len(uuid.UUID{}) {
		return nil, fmt.Errorf("invalid contract ID length: %d", len(b))
	}
	return ContractID(b), nil
}
