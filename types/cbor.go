package types

import "github.com/fxamacker/cbor/v2"

// cborEncMode is the deterministic CBOR encoding shared by every artifact
// that is hashed or signed.
var cborEncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// EncodeCBOR encodes v using the core deterministic CBOR encoding.
func EncodeCBOR(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

func cborDecode(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
