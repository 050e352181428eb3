// Package ethereum wraps the go-ethereum secp256k1 primitives used to
// identify provers: key management, EIP-191 personal message signing and
// signer address recovery.
package ethereum

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/odyzzey/zk-accumulator-demo/util"
)

const (
	// SignatureLength is the size of an ECDSA signature in hexString format
	SignatureLength = ethcrypto.SignatureLength
	// PubKeyLengthBytes is the size of a Public Key
	PubKeyLengthBytes = 33
	// SigningPrefix is the prefix added when hashing
	SigningPrefix = "\u0019Ethereum Signed Message:\n"
)

// SignKeys represents an ECDSA pair of keys for signing.
type SignKeys struct {
	Public  ecdsa.PublicKey
	Private ecdsa.PrivateKey
}

// NewSignKeys creates an ECDSA pair of keys for signing.
func NewSignKeys() *SignKeys {
	return &SignKeys{}
}

// Generate generates new keys.
func (k *SignKeys) Generate() error {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return err
	}
	k.Private = *key
	k.Public = key.PublicKey
	return nil
}

// AddHexKey imports a private hex key.
func (k *SignKeys) AddHexKey(privHex string) error {
	key, err := ethcrypto.HexToECDSA(util.TrimHex(privHex))
	if err != nil {
		return err
	}
	k.Private = *key
	k.Public = key.PublicKey
	return nil
}

// HexString returns the public compressed and private keys as hex strings.
func (k *SignKeys) HexString() (string, string) {
	pubHexComp := fmt.Sprintf("%x", ethcrypto.CompressPubkey(&k.Public))
	privHex := fmt.Sprintf("%x", ethcrypto.FromECDSA(&k.Private))
	return pubHexComp, privHex
}

// PublicKey returns the compressed public key.
func (k *SignKeys) PublicKey() []byte {
	return ethcrypto.CompressPubkey(&k.Public)
}

// Address returns the SignKeys ethereum address.
func (k *SignKeys) Address() common.Address {
	return ethcrypto.PubkeyToAddress(k.Public)
}

// AddressString returns the ethereum Address as string.
func (k *SignKeys) AddressString() string {
	return k.Address().String()
}

// SignEthereum signs a message. Message is a normal string (no HexString
// nor a Hash).
func (k *SignKeys) SignEthereum(message []byte) ([]byte, error) {
	if k.Private.D == nil {
		return nil, errors.New("no private key available")
	}
	signature, err := ethcrypto.Sign(Hash(message), &k.Private)
	if err != nil {
		return nil, err
	}
	return signature, nil
}

// AddrFromPublicKey standaolone function to obtain the Ethereum address from
// a ECDSA public key.
func AddrFromPublicKey(pub []byte) (common.Address, error) {
	var pubHexDesc []byte
	var err error
	if len(pub) <= PubKeyLengthBytes {
		pubHexDesc, err = decompressPubKey(pub)
		if err != nil {
			return common.Address{}, err
		}
	} else {
		pubHexDesc = pub
	}
	pubKey, err := ethcrypto.UnmarshalPubkey(pubHexDesc)
	if err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(*pubKey), nil
}

// PubKeyFromSignature recovers the ECDSA public key that created the
// signature of a message. The public key is returned compressed.
func PubKeyFromSignature(message, signature []byte) ([]byte, error) {
	if len(signature) != SignatureLength {
		return nil, fmt.Errorf("signature length not correct (%d)", len(signature))
	}
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[64] > 1 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return nil, errors.New("bad recover ID byte")
	}
	pubKey, err := ethcrypto.SigToPub(Hash(message), sig)
	if err != nil {
		return nil, fmt.Errorf("sigToPub %w", err)
	}
	return ethcrypto.CompressPubkey(pubKey), nil
}

// AddrFromSignature recovers the Ethereum address that created the signature
// of a message.
func AddrFromSignature(message, signature []byte) (common.Address, error) {
	pub, err := PubKeyFromSignature(message, signature)
	if err != nil {
		return common.Address{}, err
	}
	return AddrFromPublicKey(pub)
}

// Hash data adding Ethereum prefix.
func Hash(data []byte) []byte {
	payloadToSign := []byte(fmt.Sprintf("%s%d%s", SigningPrefix, len(data), data))
	return HashRaw(payloadToSign)
}

// HashRaw hashes data with no prefix.
func HashRaw(data []byte) []byte {
	return ethcrypto.Keccak256(data)
}

func decompressPubKey(pubComp []byte) ([]byte, error) {
	pub, err := ethcrypto.DecompressPubkey(pubComp)
	if err != nil {
		return nil, fmt.Errorf("decompress pubKey %w", err)
	}
	return ethcrypto.FromECDSAPub(pub), nil
}

// HexToAddress parses a hex encoded address, returning an error if it is
// malformed.
func HexToAddress(s string) (common.Address, error) {
	b, err := hex.DecodeString(util.TrimHex(s))
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(b) != common.AddressLength {
		return common.Address{}, fmt.Errorf("invalid address length %d", len(b))
	}
	return common.BytesToAddress(b), nil
}
