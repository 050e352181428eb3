package types

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// BigInt is a big.Int wrapper which marshals JSON to a string representation
// of the big number and CBOR to a native integer or bignum. A nil pointer
// marshals as zero.
type BigInt big.Int

// MarshalText returns the decimal string representation of the big number.
// If the receiver is nil, we return "0".
func (i *BigInt) MarshalText() ([]byte, error) {
	if i == nil {
		return []byte("0"), nil
	}
	return (*big.Int)(i).MarshalText()
}

// UnmarshalText parses the text representation into the big number.
func (i *BigInt) UnmarshalText(data []byte) error {
	if i == nil {
		return fmt.Errorf("cannot unmarshal into nil BigInt")
	}
	return (*big.Int)(i).UnmarshalText(data)
}

// MarshalCBOR encodes the number as a CBOR integer or bignum.
func (i *BigInt) MarshalCBOR() ([]byte, error) {
	if i == nil {
		return cbor.Marshal(new(big.Int))
	}
	return cbor.Marshal((*big.Int)(i))
}

// UnmarshalCBOR decodes a CBOR integer or bignum into the number.
func (i *BigInt) UnmarshalCBOR(data []byte) error {
	v := new(big.Int)
	if err := cbor.Unmarshal(data, v); err != nil {
		return err
	}
	i.SetBigInt(v)
	return nil
}

// NewInt creates a BigInt from an int64.
func NewInt(x int64) *BigInt {
	return (*BigInt)(big.NewInt(x))
}

// SetUint64 sets the value of x to the big number.
func (i *BigInt) SetUint64(x uint64) *BigInt {
	return (*BigInt)((*big.Int)(i).SetUint64(x))
}

// SetBigInt sets the value of x to the big number and returns it.
func (i *BigInt) SetBigInt(x *big.Int) *BigInt {
	return (*BigInt)((*big.Int)(i).Set(x))
}

// Set sets the value of x to the big number and returns it.
func (i *BigInt) Set(x *BigInt) *BigInt {
	return (*BigInt)((*big.Int)(i).Set((*big.Int)(x)))
}

// MathBigInt converts b to a math/big *Int. A nil receiver returns zero.
func (i *BigInt) MathBigInt() *big.Int {
	if i == nil {
		return new(big.Int)
	}
	return new(big.Int).Set((*big.Int)(i))
}

// String returns the decimal representation of the number.
func (i *BigInt) String() string {
	if i == nil {
		return "0"
	}
	return (*big.Int)(i).String()
}

// Equal returns true if both numbers hold the same value.
func (i *BigInt) Equal(j *BigInt) bool {
	return i.MathBigInt().Cmp(j.MathBigInt()) == 0
}
