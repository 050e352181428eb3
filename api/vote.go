package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/odyzzey/zk-accumulator-demo/circuits/fold"
	"github.com/odyzzey/zk-accumulator-demo/log"
	"github.com/odyzzey/zk-accumulator-demo/metrics"
	"github.com/odyzzey/zk-accumulator-demo/sequencer"
	"github.com/odyzzey/zk-accumulator-demo/types"
)

// newVote queues a point vote for the next batch of a contract
// POST /contracts/{contractId}/votes
func (a *API) newVote(w http.ResponseWriter, r *http.Request) {
	id, ok := contractIDParam(w, r)
	if !ok {
		return
	}
	var vote types.PointVote
	if err := json.NewDecoder(r.Body).Decode(&vote); err != nil {
		if errors.Is(err, types.ErrNegativeWeight) {
			ErrInvalidVote.WithErr(err).Write(w)
			return
		}
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if err := fold.CheckVote(vote); err != nil {
		ErrInvalidVote.WithErr(err).Write(w)
		return
	}
	if _, err := a.sequencer.State(id); err != nil {
		if errors.Is(err, sequencer.ErrUnknownContract) {
			ErrContractNotFound.With(id.String()).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if err := a.storage.PushVote(id, vote); err != nil {
		ErrGenericInternalServerError.Withf("could not push vote: %v", err).Write(w)
		return
	}
	metrics.VotesReceived.Inc()
	log.Debugw("new vote", "contractId", id.String(), "vote", vote.String())
	httpWriteJSON(w, &VoteResponse{
		ContractID:   id,
		PendingVotes: a.storage.CountPendingVotes(id),
	})
}
