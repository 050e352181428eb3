package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/odyzzey/zk-accumulator-demo/state"
	"github.com/odyzzey/zk-accumulator-demo/storage"
	"github.com/odyzzey/zk-accumulator-demo/types"
)

// Contract is the public view of a contract point.
type Contract struct {
	ID           types.ContractID `json:"id"`
	X            *types.BigInt    `json:"x"`
	Y            *types.BigInt    `json:"y"`
	Total        *types.BigInt    `json:"total"`
	Average      *Average         `json:"average,omitempty"`
	Root         types.HexBytes   `json:"root"`
	Settled      int              `json:"settled"`
	PendingVotes int              `json:"pendingVotes"`
}

// Average is the (x/total, y/total) view of a contract point, truncated
// toward zero.
type Average struct {
	X *types.BigInt `json:"x"`
	Y *types.BigInt `json:"y"`
}

// ContractList is the list of registered contracts.
type ContractList struct {
	Contracts []types.ContractID `json:"contracts"`
}

// VoteResponse is returned when a vote is queued.
type VoteResponse struct {
	ContractID   types.ContractID `json:"contractId"`
	PendingVotes int              `json:"pendingVotes"`
}

// ReceiptList is the list of settled receipts of a contract.
type ReceiptList struct {
	Receipts []*storage.SettledReceipt `json:"receipts"`
}

// Receipt is a settled receipt with the proof of its settlement in the
// current contract root.
type Receipt struct {
	*storage.SettledReceipt
	Proof *state.ReceiptProof `json:"settlementProof"`
}

// Provers lists the addresses of the local provers.
type Provers struct {
	Provers []common.Address `json:"provers"`
}
