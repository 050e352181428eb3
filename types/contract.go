package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
)

// ErrZeroTotal is returned by ContractPoint.Average when no weight has been
// accumulated yet.
var ErrZeroTotal = errors.New("contract point total is zero")

// ContractPoint is the authoritative contract state: the accumulated
// coordinates and the total weight of every vote applied to it. It is never
// mutated in place, Apply returns the next state. The zero value is the
// initial state {0,0,0}.
type ContractPoint struct {
	x     *big.Int
	y     *big.Int
	total *big.Int
}

// NewContractPoint returns the initial contract state {0,0,0}.
func NewContractPoint() ContractPoint {
	return ContractPoint{
		x:     new(big.Int),
		y:     new(big.Int),
		total: new(big.Int),
	}
}

// NewContractPointFromBig returns the contract state {x, y, total}. A
// negative total returns ErrNegativeWeight.
func NewContractPointFromBig(x, y, total *big.Int) (ContractPoint, error) {
	if val(total).Sign() < 0 {
		return ContractPoint{}, ErrNegativeWeight
	}
	return ContractPoint{
		x:     new(big.Int).Set(val(x)),
		y:     new(big.Int).Set(val(y)),
		total: new(big.Int).Set(val(total)),
	}, nil
}

// X returns a copy of the accumulated x coordinate.
func (p ContractPoint) X() *big.Int { return new(big.Int).Set(val(p.x)) }

// Y returns a copy of the accumulated y coordinate.
func (p ContractPoint) Y() *big.Int { return new(big.Int).Set(val(p.y)) }

// Total returns a copy of the accumulated weight.
func (p ContractPoint) Total() *big.Int { return new(big.Int).Set(val(p.total)) }

// Average returns (x/total, y/total) truncated toward zero. It returns
// ErrZeroTotal if the total weight is zero.
func (p ContractPoint) Average() (*big.Int, *big.Int, error) {
	if val(p.total).Sign() == 0 {
		return nil, nil, ErrZeroTotal
	}
	return new(big.Int).Quo(val(p.x), p.total), new(big.Int).Quo(val(p.y), p.total), nil
}

// Equal returns true if both states hold the same values.
func (p ContractPoint) Equal(o ContractPoint) bool {
	return val(p.x).Cmp(val(o.x)) == 0 &&
		val(p.y).Cmp(val(o.y)) == 0 &&
		val(p.total).Cmp(val(o.total)) == 0
}

// String returns a human readable representation of the state.
func (p ContractPoint) String() string {
	return fmt.Sprintf("ContractPoint{x: %s, y: %s, total: %s}", val(p.x), val(p.y), val(p.total))
}

// Apply returns the state that results from adding the vote to s. It is the
// only transition of a ContractPoint. For any list of votes, applying them
// one by one in any order equals applying Fold(votes...) once.
func Apply(s ContractPoint, v PointVote) ContractPoint {
	return ContractPoint{
		x:     new(big.Int).Add(val(s.x), val(v.x)),
		y:     new(big.Int).Add(val(s.y), val(v.y)),
		total: new(big.Int).Add(val(s.total), val(v.weight)),
	}
}

// ApplyAll applies the votes to s sequentially.
func ApplyAll(s ContractPoint, votes ...PointVote) ContractPoint {
	for _, v := range votes {
		s = Apply(s, v)
	}
	return s
}

type contractPointWire struct {
	X     *BigInt `json:"x"     cbor:"0,keyasint"`
	Y     *BigInt `json:"y"     cbor:"1,keyasint"`
	Total *BigInt `json:"total" cbor:"2,keyasint"`
}

func (p ContractPoint) wire() *contractPointWire {
	return &contractPointWire{
		X:     (*BigInt)(p.X()),
		Y:     (*BigInt)(p.Y()),
		Total: (*BigInt)(p.Total()),
	}
}

func (w *contractPointWire) point() (ContractPoint, error) {
	return NewContractPointFromBig(w.X.MathBigInt(), w.Y.MathBigInt(), w.Total.MathBigInt())
}

// MarshalJSON implements json.Marshaler.
func (p ContractPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.wire())
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ContractPoint) UnmarshalJSON(data []byte) error {
	w := &contractPointWire{}
	if err := json.Unmarshal(data, w); err != nil {
		return err
	}
	decoded, err := w.point()
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}

// MarshalCBOR implements cbor.Marshaler.
func (p ContractPoint) MarshalCBOR() ([]byte, error) {
	return cborEncMode.Marshal(p.wire())
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (p *ContractPoint) UnmarshalCBOR(data []byte) error {
	w := &contractPointWire{}
	if err := cborDecode(data, w); err != nil {
		return err
	}
	decoded, err := w.point()
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}
