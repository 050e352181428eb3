package client

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/odyzzey/zk-accumulator-demo/api"
	"github.com/odyzzey/zk-accumulator-demo/types"
)

// Provers returns the addresses of the provers of the sequencer.
func (c *HTTPclient) Provers() (*api.Provers, error) {
	resp := &api.Provers{}
	if err := c.call(http.MethodGet, nil, resp, api.ProversEndpoint); err != nil {
		return nil, err
	}
	return resp, nil
}

// NewContract creates a new contract at the identity point.
func (c *HTTPclient) NewContract() (*api.Contract, error) {
	resp := &api.Contract{}
	if err := c.call(http.MethodPost, nil, resp, api.ContractsEndpoint); err != nil {
		return nil, err
	}
	return resp, nil
}

// Contracts lists the registered contracts.
func (c *HTTPclient) Contracts() ([]types.ContractID, error) {
	resp := &api.ContractList{}
	if err := c.call(http.MethodGet, nil, resp, api.ContractsEndpoint); err != nil {
		return nil, err
	}
	return resp.Contracts, nil
}

// Contract returns the current point of a contract.
func (c *HTTPclient) Contract(id types.ContractID) (*api.Contract, error) {
	resp := &api.Contract{}
	if err := c.call(http.MethodGet, nil, resp, api.ContractsEndpoint, id.String()); err != nil {
		return nil, err
	}
	return resp, nil
}

// Vote queues a vote for the contract.
func (c *HTTPclient) Vote(id types.ContractID, v types.PointVote) (*api.VoteResponse, error) {
	resp := &api.VoteResponse{}
	if err := c.call(http.MethodPost, v, resp, api.ContractsEndpoint, id.String(), "votes"); err != nil {
		return nil, err
	}
	return resp, nil
}

// SubmitReceipt queues a receipt proved by a remote prover for settlement.
func (c *HTTPclient) SubmitReceipt(r *types.Receipt) error {
	return c.call(http.MethodPost, r, nil, api.ContractsEndpoint, r.ContractID.String(), "receipts")
}

// Receipts lists the settled receipts of a contract.
func (c *HTTPclient) Receipts(id types.ContractID) (*api.ReceiptList, error) {
	resp := &api.ReceiptList{}
	if err := c.call(http.MethodGet, nil, resp, api.ContractsEndpoint, id.String(), "receipts"); err != nil {
		return nil, err
	}
	return resp, nil
}

// Receipt returns a settled receipt and its proof of settlement.
func (c *HTTPclient) Receipt(id types.ContractID, receiptID uuid.UUID) (*api.Receipt, error) {
	resp := &api.Receipt{}
	if err := c.call(http.MethodGet, nil, resp, api.ContractsEndpoint, id.String(), "receipts", receiptID.String()); err != nil {
		return nil, err
	}
	return resp, nil
}
