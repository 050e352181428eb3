package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/odyzzey/zk-accumulator-demo/log"
	"github.com/odyzzey/zk-accumulator-demo/sequencer"
	"github.com/odyzzey/zk-accumulator-demo/state"
	"github.com/odyzzey/zk-accumulator-demo/storage"
	"github.com/odyzzey/zk-accumulator-demo/types"
)

// newContract creates a new contract initialized to the identity point
// POST /contracts
func (a *API) newContract(w http.ResponseWriter, r *http.Request) {
	id := types.NewContractID()
	if err := a.storage.SetContract(&storage.Contract{ID: id, CreatedAt: time.Now()}); err != nil {
		ErrGenericInternalServerError.Withf("could not store contract: %v", err).Write(w)
		return
	}
	if err := a.sequencer.AddContract(id); err != nil {
		ErrGenericInternalServerError.Withf("could not register contract: %v", err).Write(w)
		return
	}
	st, err := a.sequencer.State(id)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	resp, err := a.contractView(st)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	log.Infow("new contract", "contractId", id.String())
	httpWriteJSON(w, resp)
}

// contracts lists the registered contracts
// GET /contracts
func (a *API) contracts(w http.ResponseWriter, r *http.Request) {
	ids, err := a.storage.ListContracts()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &ContractList{Contracts: ids})
}

// contract returns the current point of a contract
// GET /contracts/{contractId}
func (a *API) contract(w http.ResponseWriter, r *http.Request) {
	id, ok := contractIDParam(w, r)
	if !ok {
		return
	}
	st, err := a.sequencer.State(id)
	if err != nil {
		if errors.Is(err, sequencer.ErrUnknownContract) {
			ErrContractNotFound.With(id.String()).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	resp, err := a.contractView(st)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, resp)
}

// provers lists the local provers
// GET /provers
func (a *API) provers(w http.ResponseWriter, r *http.Request) {
	httpWriteJSON(w, &Provers{Provers: a.sequencer.Provers()})
}

// contractView builds the public view of a contract state. The average is
// omitted while the contract total is zero.
func (a *API) contractView(st *state.State) (*Contract, error) {
	point := st.Point()
	root, err := st.Root()
	if err != nil {
		return nil, err
	}
	settled, err := st.SettledCount()
	if err != nil {
		return nil, err
	}
	c := &Contract{
		ID:           st.ContractID(),
		X:            new(types.BigInt).SetBigInt(point.X()),
		Y:            new(types.BigInt).SetBigInt(point.Y()),
		Total:        new(types.BigInt).SetBigInt(point.Total()),
		Root:         root,
		Settled:      settled,
		PendingVotes: a.storage.CountPendingVotes(st.ContractID()),
	}
	x, y, err := point.Average()
	switch {
	case err == nil:
		c.Average = &Average{X: new(types.BigInt).SetBigInt(x), Y: new(types.BigInt).SetBigInt(y)}
	case !errors.Is(err, types.ErrZeroTotal):
		return nil, err
	}
	return c, nil
}
