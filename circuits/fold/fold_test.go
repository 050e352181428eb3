package fold

import (
	"math"
	"math/big"
	"testing"

	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/test"
	qt "github.com/frankban/quicktest"
	"github.com/odyzzey/zk-accumulator-demo/types"
)

func testVotes(n int) []types.PointVote {
	votes := make([]types.PointVote, n)
	for i := range votes {
		votes[i] = types.NewPointVote(int64(i), int64(-2*i), uint64(i+1))
	}
	return votes
}

func TestFoldCircuitProver(t *testing.T) {
	c := qt.New(t)
	assignment, journal, err := Assignment(testVotes(types.VotesPerBatch))
	c.Assert(err, qt.IsNil)
	c.Assert(journal.Equal(types.Fold(testVotes(types.VotesPerBatch)...)), qt.IsTrue)

	assert := test.NewAssert(t)
	assert.ProverSucceeded(&Circuit{}, assignment,
		test.WithCurves(Curve), test.WithBackends(backend.GROTH16))
}

func TestFoldCircuitPartialBatch(t *testing.T) {
	c := qt.New(t)
	for _, n := range []int{0, 1, 4} {
		assignment, journal, err := Assignment(testVotes(n))
		c.Assert(err, qt.IsNil)
		if n == 0 {
			c.Assert(journal.IsZero(), qt.IsTrue)
		}
		c.Assert(test.IsSolved(&Circuit{}, assignment, Curve.ScalarField()), qt.IsNil,
			qt.Commentf("%d votes", n))
	}
}

func TestFoldCircuitExtremeVotes(t *testing.T) {
	c := qt.New(t)
	votes := []types.PointVote{
		types.NewPointVote(math.MaxInt64, math.MinInt64, math.MaxUint64),
		types.NewPointVote(math.MaxInt64, math.MinInt64, math.MaxUint64),
		types.NewPointVote(-1, 1, 0),
	}
	assignment, _, err := Assignment(votes)
	c.Assert(err, qt.IsNil)
	c.Assert(test.IsSolved(&Circuit{}, assignment, Curve.ScalarField()), qt.IsNil)
}

func TestFoldCircuitWrongAggregate(t *testing.T) {
	c := qt.New(t)
	votes := testVotes(3)
	assignment, journal, err := Assignment(votes)
	c.Assert(err, qt.IsNil)

	bad := *assignment
	bad.Weight = ToField(types.Combine(journal, types.NewPointVote(0, 0, 1)).Weight())
	c.Assert(test.IsSolved(&Circuit{}, &bad, Curve.ScalarField()), qt.IsNotNil)

	// a vote hidden after Count is rejected
	bad = *assignment
	bad.Votes[5] = Vote{X: 1, Y: 0, Weight: 0}
	bad.X = ToField(types.Combine(journal, types.NewPointVote(1, 0, 0)).X())
	c.Assert(test.IsSolved(&Circuit{}, &bad, Curve.ScalarField()), qt.IsNotNil)

	// a negative weight does not pass the range check
	bad = *assignment
	bad.Votes[0] = Vote{X: 0, Y: 0, Weight: ToField(big.NewInt(-1))}
	c.Assert(test.IsSolved(&Circuit{}, &bad, Curve.ScalarField()), qt.IsNotNil)

	assert := test.NewAssert(t)
	bad = *assignment
	bad.Count = 2
	assert.ProverFailed(&Circuit{}, &bad,
		test.WithCurves(Curve), test.WithBackends(backend.GROTH16))
}

func TestAssignmentErrors(t *testing.T) {
	c := qt.New(t)
	_, _, err := Assignment(testVotes(types.VotesPerBatch + 1))
	c.Assert(err, qt.ErrorMatches, "too many votes for a batch.*")

	vote, err := types.NewPointVoteFromBig(nil, nil, new(big.Int).Lsh(big.NewInt(1), types.VoteWeightBits))
	c.Assert(err, qt.IsNil)
	_, _, err = Assignment([]types.PointVote{vote})
	c.Assert(err, qt.ErrorIs, ErrVoteOutOfRange)

	vote, err = types.NewPointVoteFromBig(new(big.Int).Lsh(big.NewInt(1), 63), nil, nil)
	c.Assert(err, qt.IsNil)
	_, _, err = Assignment([]types.PointVote{vote})
	c.Assert(err, qt.ErrorIs, ErrVoteOutOfRange)
}

func TestCheckJournal(t *testing.T) {
	c := qt.New(t)
	full := make([]types.PointVote, types.VotesPerBatch)
	for i := range full {
		full[i] = types.NewPointVote(math.MinInt64, math.MinInt64, math.MaxUint64)
	}
	c.Assert(CheckJournal(types.Fold(full...)), qt.IsNil)

	// a journal shifted by the field modulus maps to the same public inputs
	shifted, err := types.NewPointVoteFromBig(
		new(big.Int).Add(big.NewInt(6), Curve.ScalarField()), big.NewInt(6), big.NewInt(6))
	c.Assert(err, qt.IsNil)
	c.Assert(ToField(shifted.X()).Int64(), qt.Equals, int64(6))
	c.Assert(CheckJournal(shifted), qt.ErrorIs, ErrVoteOutOfRange)
}
