package service

import "github.com/odyzzey/zk-accumulator-demo/types"

// ContractSource lists the contracts known to the storage.
type ContractSource interface {
	ListContracts() ([]types.ContractID, error)
}

// ContractRegistry is the set of contracts a sequencer settles receipts for.
type ContractRegistry interface {
	Contracts() []types.ContractID
	AddContract(id types.ContractID) error
}
