package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
)

// ErrNegativeWeight is returned when a vote is built with a negative weight.
var ErrNegativeWeight = errors.New("vote weight must be unsigned")

// zero is shared as a read-only operand for nil fields, it must never be
// used as the receiver of a big.Int operation.
var zero = new(big.Int)

func val(i *big.Int) *big.Int {
	if i == nil {
		return zero
	}
	return i
}

// PointVote is a proposed increment to a contract point: a weighted 2-D
// point. It is an immutable value, every operation returns a new vote and no
// accessor exposes the internal numbers. The zero value is the identity vote
// {0,0,0}.
//
// Coordinates are arbitrary precision integers, so combining votes can not
// overflow and the combination is exactly associative and commutative.
type PointVote struct {
	x      *big.Int
	y      *big.Int
	weight *big.Int
}

// NewPointVote returns the vote {x, y, weight}.
func NewPointVote(x, y int64, weight uint64) PointVote {
	return PointVote{
		x:      big.NewInt(x),
		y:      big.NewInt(y),
		weight: new(big.Int).SetUint64(weight),
	}
}

// NewPointVoteFromBig returns the vote {x, y, weight} copying the provided
// numbers. Nil coordinates are taken as zero, a negative weight returns
// ErrNegativeWeight.
func NewPointVoteFromBig(x, y, weight *big.Int) (PointVote, error) {
	if val(weight).Sign() < 0 {
		return PointVote{}, ErrNegativeWeight
	}
	return PointVote{
		x:      new(big.Int).Set(val(x)),
		y:      new(big.Int).Set(val(y)),
		weight: new(big.Int).Set(val(weight)),
	}, nil
}

// ZeroVote returns the identity vote {0,0,0}.
func ZeroVote() PointVote {
	return NewPointVote(0, 0, 0)
}

// X returns a copy of the x coordinate.
func (v PointVote) X() *big.Int { return new(big.Int).Set(val(v.x)) }

// Y returns a copy of the y coordinate.
func (v PointVote) Y() *big.Int { return new(big.Int).Set(val(v.y)) }

// Weight returns a copy of the vote weight.
func (v PointVote) Weight() *big.Int { return new(big.Int).Set(val(v.weight)) }

// IsZero returns true if v is the identity vote.
func (v PointVote) IsZero() bool {
	return val(v.x).Sign() == 0 && val(v.y).Sign() == 0 && val(v.weight).Sign() == 0
}

// Equal returns true if both votes have the same coordinates and weight.
func (v PointVote) Equal(o PointVote) bool {
	return val(v.x).Cmp(val(o.x)) == 0 &&
		val(v.y).Cmp(val(o.y)) == 0 &&
		val(v.weight).Cmp(val(o.weight)) == 0
}

// String returns a human readable representation of the vote.
func (v PointVote) String() string {
	return fmt.Sprintf("PointVote{x: %s, y: %s, weight: %s}", val(v.x), val(v.y), val(v.weight))
}

// Combine returns the vote whose coordinates and weight are the field-wise
// sum of a and b. It is associative and commutative, and ZeroVote is its
// identity element.
func Combine(a, b PointVote) PointVote {
	return PointVote{
		x:      new(big.Int).Add(val(a.x), val(b.x)),
		y:      new(big.Int).Add(val(a.y), val(b.y)),
		weight: new(big.Int).Add(val(a.weight), val(b.weight)),
	}
}

// Fold reduces the votes to a single aggregate vote. Folding no votes returns
// the identity vote, folding a single vote returns an equal vote.
func Fold(votes ...PointVote) PointVote {
	acc := ZeroVote()
	for _, v := range votes {
		acc = Combine(acc, v)
	}
	return acc
}

// pointVoteWire is the serialized form of a PointVote.
type pointVoteWire struct {
	X      *BigInt `json:"x"      cbor:"0,keyasint"`
	Y      *BigInt `json:"y"      cbor:"1,keyasint"`
	Weight *BigInt `json:"weight" cbor:"2,keyasint"`
}

func (v PointVote) wire() *pointVoteWire {
	return &pointVoteWire{
		X:      (*BigInt)(v.X()),
		Y:      (*BigInt)(v.Y()),
		Weight: (*BigInt)(v.Weight()),
	}
}

func (w *pointVoteWire) vote() (PointVote, error) {
	return NewPointVoteFromBig(w.X.MathBigInt(), w.Y.MathBigInt(), w.Weight.MathBigInt())
}

// MarshalJSON implements json.Marshaler.
func (v PointVote) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.wire())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *PointVote) UnmarshalJSON(data []byte) error {
	w := &pointVoteWire{}
	if err := json.Unmarshal(data, w); err != nil {
		return err
	}
	decoded, err := w.vote()
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// MarshalCBOR implements cbor.Marshaler.
func (v PointVote) MarshalCBOR() ([]byte, error) {
	return cborEncMode.Marshal(v.wire())
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (v *PointVote) UnmarshalCBOR(data []byte) error {
	w := &pointVoteWire{}
	if err := cborDecode(data, w); err != nil {
		return err
	}
	decoded, err := w.vote()
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}
