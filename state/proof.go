package state

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/odyzzey/zk-accumulator-demo/types"
	"github.com/vocdoni/arbo"
)

// ReceiptProof is an arbo proof of the settlement of a receipt. Value is the
// JournalLeaf of the receipt journal. Siblings are kept packed, as returned
// by the tree.
type ReceiptProof struct {
	Root      types.HexBytes `json:"root"`
	Key       types.HexBytes `json:"key"`
	Value     types.HexBytes `json:"value"`
	Siblings  types.HexBytes `json:"siblings"`
	Existence bool           `json:"existence"`
}

// GenReceiptProof returns the proof of inclusion of a settled receipt in the
// current root, or the proof of non inclusion if it was never settled.
func (o *State) GenReceiptProof(receiptID uuid.UUID) (*ReceiptProof, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	root, err := o.tree.Root()
	if err != nil {
		return nil, err
	}
	leafK, leafV, packedSiblings, existence, err := o.tree.GenProof(receiptKey(receiptID))
	if err != nil {
		return nil, fmt.Errorf("generate proof: %w", err)
	}
	return &ReceiptProof{
		Root:      root,
		Key:       leafK,
		Value:     leafV,
		Siblings:  packedSiblings,
		Existence: existence,
	}, nil
}

// CheckReceiptProof returns true if the proof shows the receipt is settled
// under the proof root.
func CheckReceiptProof(p *ReceiptProof) (bool, error) {
	if p == nil || !p.Existence {
		return false, nil
	}
	return arbo.CheckProof(hashFunc, p.Key, p.Value, p.Root, p.Siblings)
}
