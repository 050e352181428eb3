package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/odyzzey/zk-accumulator-demo/log"
	"github.com/odyzzey/zk-accumulator-demo/prover"
	"github.com/odyzzey/zk-accumulator-demo/sequencer"
	"github.com/odyzzey/zk-accumulator-demo/state"
	"github.com/odyzzey/zk-accumulator-demo/storage"
	"github.com/odyzzey/zk-accumulator-demo/types"
)

// receipts lists the settled receipts of a contract
// GET /contracts/{contractId}/receipts
func (a *API) receipts(w http.ResponseWriter, r *http.Request) {
	id, ok := contractIDParam(w, r)
	if !ok {
		return
	}
	if _, err := a.storage.Contract(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ErrContractNotFound.With(id.String()).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	list, err := a.storage.ListReceipts(id)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if list == nil {
		list = []*storage.SettledReceipt{}
	}
	httpWriteJSON(w, &ReceiptList{Receipts: list})
}

// receipt returns a settled receipt and the proof of its settlement
// GET /contracts/{contractId}/receipts/{receiptId}
func (a *API) receipt(w http.ResponseWriter, r *http.Request) {
	id, ok := contractIDParam(w, r)
	if !ok {
		return
	}
	receiptID, ok := receiptIDParam(w, r)
	if !ok {
		return
	}
	settled, err := a.storage.Receipt(id, receiptID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ErrReceiptNotFound.With(receiptID.String()).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	resp := &Receipt{SettledReceipt: settled}
	if st, err := a.sequencer.State(id); err == nil {
		if resp.Proof, err = st.GenReceiptProof(receiptID); err != nil {
			ErrGenericInternalServerError.WithErr(err).Write(w)
			return
		}
	}
	httpWriteJSON(w, resp)
}

// submitReceipt queues a receipt proved by a remote prover for settlement
// POST /contracts/{contractId}/receipts
func (a *API) submitReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := contractIDParam(w, r)
	if !ok {
		return
	}
	receipt := &types.Receipt{}
	if err := json.NewDecoder(r.Body).Decode(receipt); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if !bytes.Equal(receipt.ContractID, id) {
		ErrContractMismatch.Withf("%s", receipt.ContractID).Write(w)
		return
	}
	if err := a.sequencer.SubmitReceipt(receipt); err != nil {
		switch {
		case errors.Is(err, sequencer.ErrUnknownContract):
			ErrContractNotFound.With(id.String()).Write(w)
		case errors.Is(err, state.ErrReceiptAlreadySettled):
			ErrReceiptAlreadySettled.With(receipt.ID.String()).Write(w)
		case errors.Is(err, prover.ErrUnknownProver):
			ErrUnknownProver.WithErr(err).Write(w)
		case errors.Is(err, prover.ErrInvalidSignature):
			ErrInvalidSignature.WithErr(err).Write(w)
		case errors.Is(err, prover.ErrInvalidProof):
			ErrInvalidReceipt.WithErr(err).Write(w)
		default:
			ErrGenericInternalServerError.WithErr(err).Write(w)
		}
		return
	}
	log.Infow("receipt submitted",
		"contractId", id.String(),
		"receiptId", receipt.ID.String(),
		"prover", receipt.Prover.Hex(),
	)
	httpWriteOK(w)
}
