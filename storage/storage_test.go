package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"github.com/odyzzey/zk-accumulator-demo/types"
	"github.com/vocdoni/arbo/memdb"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

func TestContracts(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	id := types.NewContractID()
	_, err := stg.Contract(id)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	c.Assert(stg.SetContract(nil), qt.IsNotNil)

	c.Assert(stg.SetContract(&Contract{ID: id, CreatedAt: time.Unix(1700000000, 0)}), qt.IsNil)
	other := types.NewContractID()
	c.Assert(stg.SetContract(&Contract{ID: other, CreatedAt: time.Unix(1700000001, 0)}), qt.IsNil)

	got, err := stg.Contract(id)
	c.Assert(err, qt.IsNil)
	c.Assert([]byte(got.ID), qt.DeepEquals, []byte(id))
	c.Assert(got.CreatedAt.Unix(), qt.Equals, int64(1700000000))

	ids, err := stg.ListContracts()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 2)
}

func TestVoteQueue(t *testing.T) {
	t.Run("pebble", func(t *testing.T) {
		testVoteQueue(t, New(metadb.NewTest(t)))
	})
	t.Run("memdb", func(t *testing.T) {
		testVoteQueue(t, New(memdb.New()))
	})
}

func testVoteQueue(t *testing.T, stg *Storage) {
	c := qt.New(t)
	contractID := types.NewContractID()
	otherID := types.NewContractID()

	_, _, err := stg.PullVotes(contractID, 10)
	c.Assert(err, qt.ErrorIs, ErrNoMoreElements)

	for i := int64(1); i <= 5; i++ {
		c.Assert(stg.PushVote(contractID, types.NewPointVote(i, i, 1)), qt.IsNil)
	}
	// identical votes are different queue elements
	c.Assert(stg.PushVote(contractID, types.NewPointVote(5, 5, 1)), qt.IsNil)
	c.Assert(stg.PushVote(otherID, types.NewPointVote(100, 100, 1)), qt.IsNil)
	c.Assert(stg.CountPendingVotes(contractID), qt.Equals, 6)
	c.Assert(stg.CountPendingVotes(otherID), qt.Equals, 1)

	votes, keys, err := stg.PullVotes(contractID, 4)
	c.Assert(err, qt.IsNil)
	c.Assert(votes, qt.HasLen, 4)
	c.Assert(keys, qt.HasLen, 4)
	// arrival order
	for i, v := range votes {
		c.Assert(v.Equal(types.NewPointVote(int64(i+1), int64(i+1), 1)), qt.IsTrue)
	}
	c.Assert(stg.CountPendingVotes(contractID), qt.Equals, 2)

	// reserved votes are skipped
	rest, restKeys, err := stg.PullVotes(contractID, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(rest, qt.HasLen, 2)
	_, _, err = stg.PullVotes(contractID, 10)
	c.Assert(err, qt.ErrorIs, ErrNoMoreElements)

	// released votes come back, done votes do not
	c.Assert(stg.ReleaseVotes(restKeys), qt.IsNil)
	c.Assert(stg.PushBatchReceipt(testReceipt(contractID, types.Fold(votes...)), keys), qt.IsNil)
	c.Assert(stg.CountPendingVotes(contractID), qt.Equals, 2)
	c.Assert(stg.CountPendingReceipts(), qt.Equals, 1)
	again, _, err := stg.PullVotes(contractID, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(again, qt.HasLen, 2)
	c.Assert(types.Fold(again...).Equal(types.NewPointVote(10, 10, 2)), qt.IsTrue)

	empty, _, err := stg.PullVotes(otherID, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(empty, qt.HasLen, 0)
}

func TestReceiptQueueMemDB(t *testing.T) {
	c := qt.New(t)
	stg := New(memdb.New())
	contractID := types.NewContractID()

	c.Assert(stg.PushReceipt(testReceipt(contractID, types.NewPointVote(1, 1, 1))), qt.IsNil)
	c.Assert(stg.PushReceipt(testReceipt(contractID, types.NewPointVote(2, 2, 1))), qt.IsNil)
	r1, _, err := stg.NextReceipt()
	c.Assert(err, qt.IsNil)
	r2, _, err := stg.NextReceipt()
	c.Assert(err, qt.IsNil)
	c.Assert(r1.ID, qt.Not(qt.Equals), r2.ID)
	_, _, err = stg.NextReceipt()
	c.Assert(err, qt.ErrorIs, ErrNoMoreElements)

	// parked receipts come back once released
	n, err := stg.ReleaseReceipts()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 2)
	again, _, err := stg.NextReceipt()
	c.Assert(err, qt.IsNil)
	c.Assert(again.ID, qt.Equals, r1.ID)
}

func testReceipt(contractID types.ContractID, journal types.PointVote) *types.Receipt {
	return &types.Receipt{
		ID:         uuid.New(),
		ContractID: contractID,
		Journal:    journal,
		VoteCount:  2,
		Proof:      []byte{1, 2, 3},
		Prover:     common.HexToAddress("0x71C7656EC7ab88b098defB751B7401B5f6d8976F"),
		Signature:  []byte{4, 5, 6},
	}
}

func TestReceiptQueue(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))
	contractID := types.NewContractID()

	_, _, err := stg.NextReceipt()
	c.Assert(err, qt.ErrorIs, ErrNoMoreElements)

	first := testReceipt(contractID, types.NewPointVote(1, 2, 3))
	second := testReceipt(contractID, types.NewPointVote(-4, 5, 6))
	c.Assert(stg.PushReceipt(first), qt.IsNil)
	c.Assert(stg.PushReceipt(second), qt.IsNil)
	c.Assert(stg.CountPendingReceipts(), qt.Equals, 2)

	r1, k1, err := stg.NextReceipt()
	c.Assert(err, qt.IsNil)
	c.Assert(r1.ID, qt.Equals, first.ID)
	c.Assert(r1.Journal.Equal(first.Journal), qt.IsTrue)
	c.Assert(r1.Prover, qt.Equals, first.Prover)
	c.Assert([]byte(r1.Signature), qt.DeepEquals, []byte(first.Signature))

	r2, k2, err := stg.NextReceipt()
	c.Assert(err, qt.IsNil)
	c.Assert(r2.ID, qt.Equals, second.ID)
	_, _, err = stg.NextReceipt()
	c.Assert(err, qt.ErrorIs, ErrNoMoreElements)

	// settle the first one, drop the second one after a retry
	c.Assert(stg.MarkReceiptDone(k1, &SettledReceipt{
		Receipt:   r1,
		Point:     types.Apply(types.NewContractPoint(), r1.Journal),
		Root:      []byte{0xaa},
		SettledAt: time.Now(),
		Index:     1,
	}), qt.IsNil)
	c.Assert(stg.ReleaseReceipt(k2), qt.IsNil)
	r2, k2, err = stg.NextReceipt()
	c.Assert(err, qt.IsNil)
	c.Assert(r2.ID, qt.Equals, second.ID)
	c.Assert(stg.MarkReceiptDone(k2, nil), qt.IsNil)
	c.Assert(stg.CountPendingReceipts(), qt.Equals, 0)

	settled, err := stg.Receipt(contractID, first.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(settled.Index, qt.Equals, 1)
	c.Assert(settled.Point.Equal(types.Apply(types.NewContractPoint(), first.Journal)), qt.IsTrue)
	_, err = stg.Receipt(contractID, second.ID)
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	list, err := stg.ListReceipts(contractID)
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 1)
	c.Assert(list[0].Receipt.ID, qt.Equals, first.ID)
}

func TestListReceiptsOrder(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))
	contractID := types.NewContractID()

	point := types.NewContractPoint()
	for i := 1; i <= 5; i++ {
		r := testReceipt(contractID, types.NewPointVote(int64(i), 0, 1))
		c.Assert(stg.PushReceipt(r), qt.IsNil)
		_, k, err := stg.NextReceipt()
		c.Assert(err, qt.IsNil)
		point = types.Apply(point, r.Journal)
		c.Assert(stg.MarkReceiptDone(k, &SettledReceipt{Receipt: r, Point: point, Index: i}), qt.IsNil)
	}
	list, err := stg.ListReceipts(contractID)
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 5)
	for i, sr := range list {
		c.Assert(sr.Index, qt.Equals, i+1)
	}
	c.Assert(list[4].Point.Equal(point), qt.IsTrue)

	others, err := stg.ListReceipts(types.NewContractID())
	c.Assert(err, qt.IsNil)
	c.Assert(others, qt.HasLen, 0)
}

func TestStaleReservationsReleased(t *testing.T) {
	c := qt.New(t)
	dbPath := filepath.Join(t.TempDir(), "db")
	database, err := metadb.New(db.TypePebble, dbPath)
	c.Assert(err, qt.IsNil)

	stg := New(database)
	contractID := types.NewContractID()
	c.Assert(stg.PushVote(contractID, types.NewPointVote(1, 1, 1)), qt.IsNil)
	c.Assert(stg.PushReceipt(testReceipt(contractID, types.NewPointVote(1, 1, 1))), qt.IsNil)
	_, _, err = stg.PullVotes(contractID, 1)
	c.Assert(err, qt.IsNil)
	_, _, err = stg.NextReceipt()
	c.Assert(err, qt.IsNil)
	c.Assert(stg.CountPendingVotes(contractID), qt.Equals, 0)
	stg.Close()

	database, err = metadb.New(db.TypePebble, dbPath)
	c.Assert(err, qt.IsNil)
	stg = New(database)
	defer stg.Close()
	c.Assert(stg.CountPendingVotes(contractID), qt.Equals, 1)
	_, _, err = stg.NextReceipt()
	c.Assert(err, qt.IsNil)
}

func TestBatchReceiptSurvivesRestart(t *testing.T) {
	c := qt.New(t)
	dbPath := filepath.Join(t.TempDir(), "db")
	open := func() *Storage {
		database, err := metadb.New(db.TypePebble, dbPath)
		c.Assert(err, qt.IsNil)
		return New(database)
	}

	stg := open()
	contractID := types.NewContractID()
	for i := int64(1); i <= 3; i++ {
		c.Assert(stg.PushVote(contractID, types.NewPointVote(i, i, 1)), qt.IsNil)
	}

	// stopped between pulling and committing: the votes are pulled again
	_, _, err := stg.PullVotes(contractID, 3)
	c.Assert(err, qt.IsNil)
	stg.Close()
	stg = open()
	c.Assert(stg.CountPendingVotes(contractID), qt.Equals, 3)
	c.Assert(stg.CountPendingReceipts(), qt.Equals, 0)

	votes, keys, err := stg.PullVotes(contractID, 3)
	c.Assert(err, qt.IsNil)
	c.Assert(votes, qt.HasLen, 3)
	c.Assert(stg.PushBatchReceipt(testReceipt(contractID, types.Fold(votes...)), keys), qt.IsNil)

	// stopped after committing: the votes are gone, the receipt stays
	stg.Close()
	stg = open()
	defer stg.Close()
	c.Assert(stg.CountPendingVotes(contractID), qt.Equals, 0)
	_, _, err = stg.PullVotes(contractID, 3)
	c.Assert(err, qt.ErrorIs, ErrNoMoreElements)
	c.Assert(stg.CountPendingReceipts(), qt.Equals, 1)
	r, _, err := stg.NextReceipt()
	c.Assert(err, qt.IsNil)
	c.Assert(r.Journal.Equal(types.NewPointVote(6, 6, 3)), qt.IsTrue)

	// no reservation outlives its vote
	reserved, err := stg.reservations(voteReservPrefix)
	c.Assert(err, qt.IsNil)
	c.Assert(reserved, qt.HasLen, 0)
}
