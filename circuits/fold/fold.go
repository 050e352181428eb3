// Package fold contains the gnark circuit that proves the fold of a batch of
// point votes. The prover knows up to types.VotesPerBatch votes and commits
// only their aggregate (X, Y, Weight) and the number of votes folded. The
// circuit checks that:
//   - every vote weight fits in types.VoteWeightBits bits (it is unsigned),
//   - the slots after Count hold the identity vote {0,0,0},
//   - the public aggregate is the field-wise sum of every slot.
//
// Signed coordinates are represented in the BN254 scalar field as x mod p.
package fold

import (
	"errors"
	"fmt"
	"math/big"
	"math/bits"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
	"github.com/odyzzey/zk-accumulator-demo/types"
	"github.com/odyzzey/zk-accumulator-demo/util"
)

// Curve is the curve the fold circuit is compiled and proved on.
const Curve = ecc.BN254

// ErrVoteOutOfRange is returned when a vote does not fit in a circuit slot.
var ErrVoteOutOfRange = errors.New("vote out of circuit range")

// Vote is a vote slot of the circuit.
type Vote struct {
	X      frontend.Variable
	Y      frontend.Variable
	Weight frontend.Variable
}

// Circuit is the fold circuit definition.
type Circuit struct {
	X      frontend.Variable `gnark:",public"`
	Y      frontend.Variable `gnark:",public"`
	Weight frontend.Variable `gnark:",public"`
	Count  frontend.Variable `gnark:",public"`

	Votes [types.VotesPerBatch]Vote
}

// Define declares the circuit constraints.
func (c *Circuit) Define(api frontend.API) error {
	api.AssertIsLessOrEqual(c.Count, types.VotesPerBatch)

	var x, y, weight frontend.Variable = 0, 0, 0
	var active frontend.Variable = 1
	for i := range c.Votes {
		// active stays 1 while i < Count and drops to 0 for good at i == Count
		active = api.Mul(active, api.Sub(1, api.IsZero(api.Sub(c.Count, i))))
		inactive := api.Sub(1, active)
		api.AssertIsEqual(api.Mul(inactive, c.Votes[i].X), 0)
		api.AssertIsEqual(api.Mul(inactive, c.Votes[i].Y), 0)
		api.AssertIsEqual(api.Mul(inactive, c.Votes[i].Weight), 0)

		api.ToBinary(c.Votes[i].Weight, types.VoteWeightBits)

		x = api.Add(x, c.Votes[i].X)
		y = api.Add(y, c.Votes[i].Y)
		weight = api.Add(weight, c.Votes[i].Weight)
	}
	api.AssertIsEqual(c.X, x)
	api.AssertIsEqual(c.Y, y)
	api.AssertIsEqual(c.Weight, weight)
	return nil
}

// Assignment returns the full witness assignment for the votes provided,
// together with the aggregate vote committed as public input. Empty slots
// are filled with the identity vote.
func Assignment(votes []types.PointVote) (*Circuit, types.PointVote, error) {
	if len(votes) > types.VotesPerBatch {
		return nil, types.PointVote{}, fmt.Errorf("too many votes for a batch: %d > %d",
			len(votes), types.VotesPerBatch)
	}
	for i, v := range votes {
		if err := CheckVote(v); err != nil {
			return nil, types.PointVote{}, fmt.Errorf("vote %d: %w", i, err)
		}
	}
	journal := types.Fold(votes...)
	assignment := PublicAssignment(journal, len(votes))
	for i := range assignment.Votes {
		assignment.Votes[i] = Vote{X: 0, Y: 0, Weight: 0}
		if i < len(votes) {
			assignment.Votes[i] = Vote{
				X:      ToField(votes[i].X()),
				Y:      ToField(votes[i].Y()),
				Weight: votes[i].Weight(),
			}
		}
	}
	return assignment, journal, nil
}

// PublicAssignment returns the assignment of the public inputs only, which
// is what a verifier needs to check a proof of the fold of count votes into
// journal.
func PublicAssignment(journal types.PointVote, count int) *Circuit {
	return &Circuit{
		X:      ToField(journal.X()),
		Y:      ToField(journal.Y()),
		Weight: ToField(journal.Weight()),
		Count:  count,
	}
}

// CheckVote returns ErrVoteOutOfRange if the vote coordinates do not fit in
// a signed 64 bits integer or the weight does not fit in VoteWeightBits.
func CheckVote(v types.PointVote) error {
	if !v.X().IsInt64() || !v.Y().IsInt64() {
		return fmt.Errorf("%w: coordinates must fit in 64 bits: %s", ErrVoteOutOfRange, v)
	}
	if v.Weight().BitLen() > types.VoteWeightBits {
		return fmt.Errorf("%w: weight must fit in %d bits: %s", ErrVoteOutOfRange, types.VoteWeightBits, v)
	}
	return nil
}

// batchBits is the number of extra bits the sum of a full batch can take.
var batchBits = bits.Len(uint(types.VotesPerBatch))

// CheckJournal returns ErrVoteOutOfRange if the aggregate vote can not be the
// fold of a batch of votes accepted by CheckVote. Inside that range two
// different journals never map to the same field elements.
func CheckJournal(journal types.PointVote) error {
	if journal.X().BitLen() > 63+batchBits || journal.Y().BitLen() > 63+batchBits {
		return fmt.Errorf("%w: journal coordinates too large: %s", ErrVoteOutOfRange, journal)
	}
	if journal.Weight().BitLen() > types.VoteWeightBits+batchBits {
		return fmt.Errorf("%w: journal weight too large: %s", ErrVoteOutOfRange, journal)
	}
	return nil
}

// ToField maps a signed integer into the scalar field of Curve.
func ToField(i *big.Int) *big.Int {
	return util.BigToFF(i)
}
