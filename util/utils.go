package util

import "math/big"

// TrimHex trims the '0x' prefix from a hex string.
func TrimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// bn254ScalarField is the scalar field of the curve BN254, where the fold
// circuit runs.
var bn254ScalarField, _ = new(big.Int).SetString("21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)

// BigToFF function returns the finite field representation of the big.Int
// provided. It uses Euclidean Modulus and the BN254 curve scalar field to
// represent the provided number, so negative numbers are mapped to p - |n|.
func BigToFF(iv *big.Int) *big.Int {
	z := big.NewInt(0)
	if c := iv.Cmp(bn254ScalarField); c == 0 {
		return z
	} else if c != 1 && iv.Cmp(z) != -1 {
		return new(big.Int).Set(iv)
	}
	return z.Mod(iv, bn254ScalarField)
}
