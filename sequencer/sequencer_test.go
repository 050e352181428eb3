package sequencer

import (
	"context"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/odyzzey/zk-accumulator-demo/circuits"
	"github.com/odyzzey/zk-accumulator-demo/crypto/ethereum"
	"github.com/odyzzey/zk-accumulator-demo/prover"
	"github.com/odyzzey/zk-accumulator-demo/state"
	"github.com/odyzzey/zk-accumulator-demo/storage"
	"github.com/odyzzey/zk-accumulator-demo/types"
	"go.vocdoni.io/dvote/db/metadb"
)

var (
	testArtifactsOnce sync.Once
	testArtifacts     *circuits.CircuitArtifacts
	testArtifactsErr  error
)

func artifacts(c *qt.C) *circuits.CircuitArtifacts {
	testArtifactsOnce.Do(func() {
		testArtifacts, testArtifactsErr = circuits.LoadOrSetup("")
	})
	c.Assert(testArtifactsErr, qt.IsNil)
	return testArtifacts
}

func newKey(c *qt.C) *ethereum.SignKeys {
	k := ethereum.NewSignKeys()
	c.Assert(k.Generate(), qt.IsNil)
	return k
}

func newTestSequencer(c *qt.C, cfg Config) (*Sequencer, *storage.Storage) {
	stg := storage.New(metadb.NewTest(c.TB))
	if len(cfg.ProverKeys) == 0 {
		cfg.ProverKeys = []*ethereum.SignKeys{newKey(c), newKey(c)}
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = types.VotesPerBatch
	}
	if cfg.BatchTimeWindow == 0 {
		cfg.BatchTimeWindow = time.Hour
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = 50 * time.Millisecond
	}
	s, err := New(stg, artifacts(c), cfg)
	c.Assert(err, qt.IsNil)
	return s, stg
}

// settleAll drains the receipt queue as the settlement processor does.
func settleAll(c *qt.C, s *Sequencer, stg *storage.Storage) {
	for {
		r, key, err := stg.NextReceipt()
		if err != nil {
			c.Assert(err, qt.ErrorIs, storage.ErrNoMoreElements)
			return
		}
		s.processReceipt(r, key)
	}
}

func TestNewValidation(t *testing.T) {
	c := qt.New(t)
	stg := storage.New(metadb.NewTest(t))
	keys := []*ethereum.SignKeys{newKey(c)}

	_, err := New(nil, artifacts(c), Config{BatchSize: 1, BatchTimeWindow: time.Second, ProverKeys: keys})
	c.Assert(err, qt.IsNotNil)
	_, err = New(stg, nil, Config{BatchSize: 1, BatchTimeWindow: time.Second, ProverKeys: keys})
	c.Assert(err, qt.IsNotNil)
	_, err = New(stg, artifacts(c), Config{BatchSize: types.VotesPerBatch + 1, BatchTimeWindow: time.Second, ProverKeys: keys})
	c.Assert(err, qt.IsNotNil)
	_, err = New(stg, artifacts(c), Config{BatchSize: 1, ProverKeys: keys})
	c.Assert(err, qt.IsNotNil)
	_, err = New(stg, artifacts(c), Config{BatchSize: 1, BatchTimeWindow: time.Second})
	c.Assert(err, qt.IsNotNil)

	s, err := New(stg, artifacts(c), Config{BatchSize: 1, BatchTimeWindow: time.Second, ProverKeys: keys})
	c.Assert(err, qt.IsNil)
	c.Assert(s.Provers(), qt.HasLen, 1)
	c.Assert(s.Verifier().IsAuthorized(keys[0].Address()), qt.IsTrue)
}

func TestContracts(t *testing.T) {
	c := qt.New(t)
	s, _ := newTestSequencer(c, Config{})

	id := types.NewContractID()
	_, err := s.State(id)
	c.Assert(err, qt.ErrorIs, ErrUnknownContract)

	c.Assert(s.AddContract(id), qt.IsNil)
	c.Assert(s.AddContract(id), qt.IsNil)
	c.Assert(s.Contracts(), qt.HasLen, 1)
	st, err := s.State(id)
	c.Assert(err, qt.IsNil)
	c.Assert(st.Point().Equal(types.NewContractPoint()), qt.IsTrue)

	s.DelContract(id)
	_, err = s.State(id)
	c.Assert(err, qt.ErrorIs, ErrUnknownContract)
	// registering again reopens the same state
	c.Assert(s.AddContract(id), qt.IsNil)
	c.Assert(s.AddContract(nil), qt.IsNotNil)
}

func TestReadyBatches(t *testing.T) {
	c := qt.New(t)
	s := &Sequencer{batchSize: 4, maxTimeWindow: time.Minute}
	id := types.NewContractID()

	c.Assert(s.readyBatches(id, 0, time.Hour), qt.HasLen, 0)
	c.Assert(s.readyBatches(id, 3, time.Second), qt.HasLen, 0)
	c.Assert(s.readyBatches(id, 4, time.Second), qt.HasLen, 1)

	jobs := s.readyBatches(id, 10, time.Second)
	c.Assert(jobs, qt.HasLen, 2)
	jobs = s.readyBatches(id, 10, time.Hour)
	c.Assert(jobs, qt.HasLen, 3)
	c.Assert(jobs[2].size, qt.Equals, 2)
}

func TestProveAndSettle(t *testing.T) {
	c := qt.New(t)
	s, stg := newTestSequencer(c, Config{BatchSize: 4, Workers: 2})
	id := types.NewContractID()
	c.Assert(s.AddContract(id), qt.IsNil)

	// the two votes of each demo transaction, i in 0..5
	want := types.NewContractPoint()
	for i := int64(0); i < 5; i++ {
		for _, v := range []types.PointVote{types.NewPointVote(i, i, 1), types.NewPointVote(2*i, 2*i, 1)} {
			c.Assert(stg.PushVote(id, v), qt.IsNil)
			want = types.Apply(want, v)
		}
	}

	// two full batches, the remaining 2 votes wait for the window
	s.processPendingBatches(context.Background())
	c.Assert(stg.CountPendingVotes(id), qt.Equals, 2)
	c.Assert(stg.CountPendingReceipts(), qt.Equals, 2)

	s.maxTimeWindow = time.Nanosecond
	s.processPendingBatches(context.Background())
	c.Assert(stg.CountPendingVotes(id), qt.Equals, 0)
	c.Assert(stg.CountPendingReceipts(), qt.Equals, 3)

	settleAll(c, s, stg)
	st, err := s.State(id)
	c.Assert(err, qt.IsNil)
	c.Assert(st.Point().Equal(want), qt.IsTrue, qt.Commentf("got %s want %s", st.Point(), want))
	// 0+1+2+3+4 and twice that over 10 votes
	c.Assert(st.Point().Equal(types.Apply(types.NewContractPoint(), types.NewPointVote(30, 30, 10))), qt.IsTrue)
	x, y, err := st.Point().Average()
	c.Assert(err, qt.IsNil)
	c.Assert(x.Int64(), qt.Equals, int64(3))
	c.Assert(y.Int64(), qt.Equals, int64(3))

	list, err := stg.ListReceipts(id)
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 3)
	for i, sr := range list {
		c.Assert(sr.Index, qt.Equals, i+1)
	}
	c.Assert(list[2].Point.Equal(want), qt.IsTrue)
	root, err := st.Root()
	c.Assert(err, qt.IsNil)
	c.Assert([]byte(list[2].Root), qt.DeepEquals, root)
}

func TestSettlementDropsInvalidReceipts(t *testing.T) {
	c := qt.New(t)
	s, stg := newTestSequencer(c, Config{})
	id := types.NewContractID()
	c.Assert(s.AddContract(id), qt.IsNil)

	p, err := prover.New(artifacts(c), newKey(c))
	c.Assert(err, qt.IsNil)
	valid, err := s.pickProver().Prove(context.Background(), id, []types.PointVote{types.NewPointVote(3, 3, 3)})
	c.Assert(err, qt.IsNil)
	foreign, err := p.Prove(context.Background(), id, []types.PointVote{types.NewPointVote(7, 7, 7)})
	c.Assert(err, qt.IsNil)
	laterID := types.NewContractID()
	unknownContract, err := s.pickProver().Prove(context.Background(), laterID, []types.PointVote{types.NewPointVote(1, 1, 1)})
	c.Assert(err, qt.IsNil)
	tampered, err := s.pickProver().Prove(context.Background(), id, []types.PointVote{types.NewPointVote(5, 5, 5)})
	c.Assert(err, qt.IsNil)
	tampered.Journal = types.NewPointVote(50, 50, 5)

	// an unauthorized prover can not even submit
	c.Assert(s.SubmitReceipt(foreign), qt.ErrorIs, prover.ErrUnknownProver)
	c.Assert(s.SubmitReceipt(unknownContract), qt.ErrorIs, ErrUnknownContract)
	c.Assert(s.SubmitReceipt(valid), qt.IsNil)

	// queued directly, they reach the settlement processor
	c.Assert(stg.PushReceipt(valid), qt.IsNil)
	c.Assert(stg.PushReceipt(foreign), qt.IsNil)
	c.Assert(stg.PushReceipt(unknownContract), qt.IsNil)
	c.Assert(stg.PushReceipt(tampered), qt.IsNil)
	settleAll(c, s, stg)

	// the duplicate and the tampered receipts are dropped, the others wait
	c.Assert(stg.CountPendingReceipts(), qt.Equals, 2)
	st, err := s.State(id)
	c.Assert(err, qt.IsNil)
	c.Assert(st.Point().Equal(types.Apply(types.NewContractPoint(), types.NewPointVote(3, 3, 3))), qt.IsTrue)
	count, err := st.SettledCount()
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, 1)
	c.Assert(s.SubmitReceipt(valid), qt.ErrorIs, state.ErrReceiptAlreadySettled)

	// once authorized, the parked receipt of the remote prover is settled
	s.AuthorizeProver(p.Address())
	settleAll(c, s, stg)
	c.Assert(st.Point().Equal(types.Apply(types.NewContractPoint(), types.NewPointVote(10, 10, 10))), qt.IsTrue)
	c.Assert(stg.CountPendingReceipts(), qt.Equals, 1)

	// and so is the one of the contract registered late
	c.Assert(s.AddContract(laterID), qt.IsNil)
	settleAll(c, s, stg)
	c.Assert(stg.CountPendingReceipts(), qt.Equals, 0)
	later, err := s.State(laterID)
	c.Assert(err, qt.IsNil)
	c.Assert(later.Point().Equal(types.Apply(types.NewContractPoint(), types.NewPointVote(1, 1, 1))), qt.IsTrue)
}

func TestSettlementKeepsReceiptsOfRemovedContract(t *testing.T) {
	c := qt.New(t)
	s, stg := newTestSequencer(c, Config{})
	id := types.NewContractID()
	c.Assert(s.AddContract(id), qt.IsNil)

	r, err := s.pickProver().Prove(context.Background(), id, []types.PointVote{types.NewPointVote(2, -2, 1)})
	c.Assert(err, qt.IsNil)
	c.Assert(s.SubmitReceipt(r), qt.IsNil)

	s.DelContract(id)
	settleAll(c, s, stg)
	c.Assert(stg.CountPendingReceipts(), qt.Equals, 1)
	_, err = stg.Receipt(id, r.ID)
	c.Assert(err, qt.ErrorIs, storage.ErrNotFound)

	c.Assert(s.AddContract(id), qt.IsNil)
	settleAll(c, s, stg)
	c.Assert(stg.CountPendingReceipts(), qt.Equals, 0)
	settled, err := stg.Receipt(id, r.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(settled.Point.Equal(types.Apply(types.NewContractPoint(), types.NewPointVote(2, -2, 1))), qt.IsTrue)
}

func TestStartStop(t *testing.T) {
	c := qt.New(t)
	s, stg := newTestSequencer(c, Config{BatchSize: 2, BatchTimeWindow: 100 * time.Millisecond})
	id := types.NewContractID()
	c.Assert(s.AddContract(id), qt.IsNil)
	c.Assert(s.Start(context.Background()), qt.IsNil)
	defer func() { c.Assert(s.Stop(), qt.IsNil) }()

	for _, v := range []types.PointVote{
		types.NewPointVote(1, 1, 1), types.NewPointVote(2, 2, 2), types.NewPointVote(3, 3, 3),
	} {
		c.Assert(stg.PushVote(id, v), qt.IsNil)
	}

	st, err := s.State(id)
	c.Assert(err, qt.IsNil)
	want := types.Apply(types.NewContractPoint(), types.NewPointVote(6, 6, 6))
	deadline := time.Now().Add(2 * time.Minute)
	for !st.Point().Equal(want) {
		if time.Now().After(deadline) {
			c.Fatalf("contract not settled in time: %s", st.Point())
		}
		time.Sleep(100 * time.Millisecond)
	}
	x, y, err := st.Point().Average()
	c.Assert(err, qt.IsNil)
	c.Assert(x.Int64(), qt.Equals, int64(1))
	c.Assert(y.Int64(), qt.Equals, int64(1))
}
