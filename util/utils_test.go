package util

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestBigToFF(t *testing.T) {
	c := qt.New(t)
	c.Assert(BigToFF(big.NewInt(5)).Int64(), qt.Equals, int64(5))
	c.Assert(BigToFF(new(big.Int).Set(bn254ScalarField)).Sign(), qt.Equals, 0)

	minusOne := BigToFF(big.NewInt(-1))
	c.Assert(minusOne.Cmp(new(big.Int).Sub(bn254ScalarField, big.NewInt(1))), qt.Equals, 0)

	// x and -x add up to zero in the field
	x := big.NewInt(123456789)
	sum := new(big.Int).Add(BigToFF(x), BigToFF(new(big.Int).Neg(x)))
	c.Assert(BigToFF(sum).Sign(), qt.Equals, 0)
}

func TestTrimHex(t *testing.T) {
	c := qt.New(t)
	c.Assert(TrimHex("0xabcd"), qt.Equals, "abcd")
	c.Assert(TrimHex("0XABCD"), qt.Equals, "ABCD")
	c.Assert(TrimHex("abcd"), qt.Equals, "abcd")
	c.Assert(TrimHex("0"), qt.Equals, "0")
}
