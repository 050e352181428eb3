package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/odyzzey/zk-accumulator-demo/log"
	"github.com/odyzzey/zk-accumulator-demo/types"
)

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
	log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// contractIDParam parses the contract ID of the URL. It writes the error
// response and returns false if it is malformed.
func contractIDParam(w http.ResponseWriter, r *http.Request) (types.ContractID, bool) {
	id, err := types.ParseContractID(chi.URLParam(r, ContractURLParam))
	if err != nil {
		ErrMalformedContractID.WithErr(err).Write(w)
		return nil, false
	}
	return id, true
}

// receiptIDParam parses the receipt ID of the URL. It writes the error
// response and returns false if it is malformed.
func receiptIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, ReceiptURLParam))
	if err != nil {
		ErrMalformedReceiptID.WithErr(err).Write(w)
		return uuid.Nil, false
	}
	return id, true
}
