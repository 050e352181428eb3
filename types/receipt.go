package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Receipt is the output of a prover session: the aggregate vote committed by
// the fold circuit (the journal), the proof of the fold and the signature of
// the prover that produced it. A receipt is settled at most once into its
// contract state.
type Receipt struct {
	ID         uuid.UUID      `json:"id"         cbor:"0,keyasint"`
	ContractID HexBytes       `json:"contractId" cbor:"1,keyasint"`
	Journal    PointVote      `json:"journal"    cbor:"2,keyasint"`
	VoteCount  int            `json:"voteCount"  cbor:"3,keyasint"`
	Proof      HexBytes       `json:"proof"      cbor:"4,keyasint"`
	Prover     common.Address `json:"prover"     cbor:"5,keyasint"`
	Signature  HexBytes       `json:"signature"  cbor:"6,keyasint,omitempty"`
}

// signedReceipt holds the receipt fields bound by the prover signature.
type signedReceipt struct {
	ID         uuid.UUID      `cbor:"0,keyasint"`
	ContractID HexBytes       `cbor:"1,keyasint"`
	Journal    PointVote      `cbor:"2,keyasint"`
	VoteCount  int            `cbor:"3,keyasint"`
	Proof      HexBytes       `cbor:"4,keyasint"`
	Prover     common.Address `cbor:"5,keyasint"`
}

// SignedPayload returns the deterministic encoding of every receipt field
// except the signature itself.
func (r *Receipt) SignedPayload() ([]byte, error) {
	return EncodeCBOR(&signedReceipt{
		ID:         r.ID,
		ContractID: r.ContractID,
		Journal:    r.Journal,
		VoteCount:  r.VoteCount,
		Proof:      r.Proof,
		Prover:     r.Prover,
	})
}
