package storage

import (
	"time"

	"github.com/odyzzey/zk-accumulator-demo/types"
)

// Contract is the record of a registered contract.
type Contract struct {
	ID        types.ContractID `json:"id" cbor:"0,keyasint"`
	CreatedAt time.Time        `json:"createdAt" cbor:"1,keyasint"`
}

// SettledReceipt is a receipt accepted by the settlement authority, together
// with the contract point and state root it produced. Index is the position
// of the receipt in the settlement order of the contract, starting at 1.
type SettledReceipt struct {
	Receipt   *types.Receipt      `json:"receipt" cbor:"0,keyasint"`
	Point     types.ContractPoint `json:"point" cbor:"1,keyasint"`
	Root      types.HexBytes      `json:"root" cbor:"2,keyasint"`
	SettledAt time.Time           `json:"settledAt" cbor:"3,keyasint"`
	Index     int                 `json:"index" cbor:"4,keyasint"`
}
