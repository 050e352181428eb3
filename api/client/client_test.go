package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/odyzzey/zk-accumulator-demo/api"
	"github.com/odyzzey/zk-accumulator-demo/types"
)

func newTestServer(c *qt.C, votes *atomic.Int32) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc(api.PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(api.ContractsEndpoint+"/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			api.ErrContractNotFound.Write(w)
			return
		}
		var v types.PointVote
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			api.ErrMalformedBody.WithErr(err).Write(w)
			return
		}
		n := votes.Add(1)
		c.Check(json.NewEncoder(w).Encode(&api.VoteResponse{PendingVotes: int(n)}), qt.IsNil)
	})
	srv := httptest.NewServer(mux)
	c.Cleanup(srv.Close)
	return srv
}

func TestClient(t *testing.T) {
	c := qt.New(t)
	votes := &atomic.Int32{}
	srv := newTestServer(c, votes)

	cli, err := New(srv.URL)
	c.Assert(err, qt.IsNil)

	id := types.NewContractID()
	resp, err := cli.Vote(id, types.NewPointVote(1, 2, 3))
	c.Assert(err, qt.IsNil)
	c.Assert(resp.PendingVotes, qt.Equals, 1)

	_, err = cli.Contract(id)
	apiErr, ok := err.(*Error)
	c.Assert(ok, qt.IsTrue, qt.Commentf("%v", err))
	c.Assert(apiErr.Status, qt.Equals, http.StatusNotFound)
	c.Assert(apiErr.Code, qt.Equals, api.ErrContractNotFound.Code)
	c.Assert(apiErr.Message, qt.Equals, "contract not found")
}

func TestClientRetries(t *testing.T) {
	c := qt.New(t)
	srv := newTestServer(c, &atomic.Int32{})
	cli, err := New(srv.URL)
	c.Assert(err, qt.IsNil)
	srv.Close()

	cli.SetRetries(2)
	cli.SetTimeout(time.Second)
	start := time.Now()
	_, _, err = cli.Request(http.MethodGet, nil, api.PingEndpoint)
	c.Assert(err, qt.ErrorMatches, "(?s)giving up after 2 attempts: .*")
	c.Assert(time.Since(start) >= retryDelay, qt.IsTrue)
	c.Assert(cli.Ping(), qt.IsNotNil)
}

func TestNewUnreachable(t *testing.T) {
	c := qt.New(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	_, err := New(srv.URL)
	c.Assert(err, qt.ErrorMatches, "(?s)api error: status 404, code 0: 404 page not found")
	srv.Close()
}
