package service

import (
	"context"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/odyzzey/zk-accumulator-demo/api/client"
	"github.com/odyzzey/zk-accumulator-demo/circuits"
	"github.com/odyzzey/zk-accumulator-demo/crypto/ethereum"
	"github.com/odyzzey/zk-accumulator-demo/sequencer"
	"github.com/odyzzey/zk-accumulator-demo/state"
	"github.com/odyzzey/zk-accumulator-demo/storage"
	"github.com/odyzzey/zk-accumulator-demo/types"
	"github.com/vocdoni/arbo/memdb"
)

var (
	testArtifactsOnce sync.Once
	testArtifacts     *circuits.CircuitArtifacts
	testArtifactsErr  error
)

func artifacts(c *qt.C) *circuits.CircuitArtifacts {
	testArtifactsOnce.Do(func() {
		testArtifacts, testArtifactsErr = PrepareArtifacts("", 10*time.Minute)
	})
	c.Assert(testArtifactsErr, qt.IsNil)
	return testArtifacts
}

func newSequencerService(c *qt.C, stg *storage.Storage) *SequencerService {
	key := ethereum.NewSignKeys()
	c.Assert(key.Generate(), qt.IsNil)
	ss, err := NewSequencer(stg, artifacts(c), sequencer.Config{
		BatchSize:       3,
		BatchTimeWindow: 500 * time.Millisecond,
		TickInterval:    50 * time.Millisecond,
		Workers:         2,
		ProverKeys:      []*ethereum.SignKeys{key},
	})
	c.Assert(err, qt.IsNil)
	return ss
}

func TestAPIService(t *testing.T) {
	c := qt.New(t)

	store := storage.New(memdb.New())
	defer store.Close()
	ss := newSequencerService(c, store)

	// Port 0 lets the OS choose an available port
	apiService := NewAPI(store, ss.Sequencer, "127.0.0.1", 0)
	ctx := context.Background()

	c.Assert(apiService.Start(ctx), qt.IsNil)
	defer apiService.Stop()
	c.Assert(apiService.Addr(), qt.Not(qt.Equals), "")

	cli, err := client.New("http://" + apiService.Addr())
	c.Assert(err, qt.IsNil)
	_, err = cli.Provers()
	c.Assert(err, qt.IsNil)

	// Test stopping and restarting
	apiService.Stop()
	c.Assert(apiService.Addr(), qt.Equals, "")
	c.Assert(apiService.Start(ctx), qt.IsNil)

	// Test starting an already running service
	err = apiService.Start(ctx)
	c.Assert(err, qt.ErrorMatches, "service already running")
}

func TestSequencerEndToEnd(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store := storage.New(memdb.New())
	defer store.Close()
	ss := newSequencerService(c, store)
	c.Assert(ss.Start(ctx), qt.IsNil)
	defer ss.Stop()

	apiService := NewAPI(store, ss.Sequencer, "127.0.0.1", 0)
	c.Assert(apiService.Start(ctx), qt.IsNil)
	defer apiService.Stop()

	cli, err := client.New("http://" + apiService.Addr())
	c.Assert(err, qt.IsNil)

	contract, err := cli.NewContract()
	c.Assert(err, qt.IsNil)
	c.Assert(contract.Average, qt.IsNil)

	// 7 votes need at least three batches of up to 3 votes, the last one is
	// proved when the time window expires
	expected := types.NewContractPoint()
	for i := int64(1); i <= 7; i++ {
		v := types.NewPointVote(i, -i, uint64(i))
		expected = types.Apply(expected, v)
		_, err := cli.Vote(contract.ID, v)
		c.Assert(err, qt.IsNil)
	}

	view := contract
	for view.Total.MathBigInt().Cmp(expected.Total()) != 0 {
		select {
		case <-ctx.Done():
			c.Fatalf("votes not settled in time, total %s", view.Total)
		case <-time.After(200 * time.Millisecond):
		}
		view, err = cli.Contract(contract.ID)
		c.Assert(err, qt.IsNil)
	}

	c.Assert(view.X.MathBigInt().Cmp(expected.X()), qt.Equals, 0)
	c.Assert(view.Y.MathBigInt().Cmp(expected.Y()), qt.Equals, 0)
	c.Assert(view.Total.MathBigInt().Cmp(expected.Total()), qt.Equals, 0)
	c.Assert(view.PendingVotes, qt.Equals, 0)
	// {28,-28,28} averages to (1,-1)
	c.Assert(view.Average, qt.IsNotNil)
	c.Assert(view.Average.X.MathBigInt().Int64(), qt.Equals, int64(1))
	c.Assert(view.Average.Y.MathBigInt().Int64(), qt.Equals, int64(-1))

	list, err := cli.Receipts(contract.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(list.Receipts, qt.HasLen, view.Settled)
	c.Assert(view.Settled >= 3, qt.IsTrue)
	journals := types.ZeroVote()
	for i, r := range list.Receipts {
		c.Assert(r.Index, qt.Equals, i+1)
		c.Assert(r.Receipt.VoteCount <= 3, qt.IsTrue)
		journals = types.Combine(journals, r.Receipt.Journal)
	}
	c.Assert(journals.Weight().Cmp(expected.Total()), qt.Equals, 0)

	receipt, err := cli.Receipt(contract.ID, list.Receipts[len(list.Receipts)-1].Receipt.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(receipt.Proof.Root.String(), qt.Equals, view.Root.String())
	ok, err := state.CheckReceiptProof(receipt.Proof)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	// a settled receipt is never accepted again
	err = cli.SubmitReceipt(receipt.Receipt)
	apiErr, isAPIErr := err.(*client.Error)
	c.Assert(isAPIErr, qt.IsTrue, qt.Commentf("%v", err))
	c.Assert(apiErr.Status, qt.Equals, 409)
}
