package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HexBytes is a []byte which encodes as hexadecimal in json, as opposed to the
// base64 default.
type HexBytes []byte

// String returns the hexadecimal representation of the bytes.
func (b HexBytes) String() string {
	return hex.EncodeToString(b)
}

// Bytes returns the underlying byte slice.
func (b HexBytes) Bytes() []byte {
	return b
}

// MarshalJSON encodes the bytes as a quoted "0x" prefixed hex string.
func (b HexBytes) MarshalJSON() ([]byte, error) {
	enc := make([]byte, hex.EncodedLen(len(b))+4)
	enc[0] = '"'
	enc[1] = '0'
	enc[2] = 'x'
	hex.Encode(enc[3:], b)
	enc[len(enc)-1] = '"'
	return enc, nil
}

// UnmarshalJSON decodes a quoted hex string, with or without "0x" prefix.
func (b *HexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid JSON string: %q", data)
	}
	decoded, err := HexStringToHexBytes(string(data[1 : len(data)-1]))
	if err != nil {
		return fmt.Errorf("invalid hex string: %w", err)
	}
	*b = decoded
	return nil
}

// HexStringToHexBytes decodes a hex string, with or without "0x" prefix.
func HexStringToHexBytes(s string) (HexBytes, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}
