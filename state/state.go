// Package state is the settlement authority of the accumulator. It owns the
// ContractPoint of a contract and is the only place where it changes: each
// settled receipt folds its journal into the point exactly once. Every
// contract lives in its own arbo tree, so the tree root commits to the
// current point and to the set of receipts already settled. Leaves hold
// Poseidon commitments; the point itself is stored next to the tree and
// checked against its leaf when loaded.
package state

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/odyzzey/zk-accumulator-demo/log"
	"github.com/odyzzey/zk-accumulator-demo/types"
	"github.com/odyzzey/zk-accumulator-demo/util"
	"github.com/vocdoni/arbo"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	// ErrAlreadyInitialized is returned when Initialize is called on a
	// contract that already has a state.
	ErrAlreadyInitialized = errors.New("contract state already initialized")
	// ErrNotInitialized is returned when the contract state does not exist.
	ErrNotInitialized = errors.New("contract state not initialized")
	// ErrReceiptAlreadySettled is returned when the same receipt is settled
	// twice.
	ErrReceiptAlreadySettled = errors.New("receipt already settled")
	// ErrContractMismatch is returned when a receipt is settled in the state
	// of another contract.
	ErrContractMismatch = errors.New("receipt belongs to another contract")
	// ErrCorruptedState is returned when the stored point does not match
	// the commitment in the tree.
	ErrCorruptedState = errors.New("contract point does not match the state tree")
)

var (
	KeyContractID = []byte{0x00}
	KeyPoint      = []byte{0x01}

	// settled receipts are keyed by receiptKeyPrefix + receipt ID
	receiptKeyPrefix = byte(0x02)
	// leaves that are not settled receipts
	reservedLeaves = 2

	treePrefix = []byte("t/")
	dataPrefix = []byte("d/")
	// the encoded point, outside of the tree
	dataKeyPoint = []byte("point")
)

// hashFunc is the hash function used in the state tree.
var hashFunc = arbo.HashFunctionPoseidon

// State represents the state tree of one contract.
type State struct {
	tree       *arbo.Tree
	contractID types.ContractID
	db         db.Database
	data       db.Database

	mu    sync.RWMutex
	point types.ContractPoint
}

// New creates or opens a State stored in the passed database. The
// contractID is used as a prefix for the keys in the database. An existing
// state is loaded, a new one must be initialized with Initialize.
func New(database db.Database, contractID types.ContractID) (*State, error) {
	if len(contractID) == 0 {
		return nil, fmt.Errorf("contract ID cannot be empty")
	}
	pdb := prefixeddb.NewPrefixedDatabase(database, contractID)
	tree, err := arbo.NewTree(arbo.Config{
		Database: prefixeddb.NewPrefixedDatabase(pdb, treePrefix), MaxLevels: types.StateTreeMaxLevels,
		HashFunction: hashFunc,
	})
	if err != nil {
		return nil, err
	}
	o := &State{
		db:         pdb,
		data:       prefixeddb.NewPrefixedDatabase(pdb, dataPrefix),
		tree:       tree,
		contractID: append(types.ContractID{}, contractID...),
		point:      types.NewContractPoint(),
	}
	if err := o.Load(); err != nil && !errors.Is(err, ErrNotInitialized) {
		return nil, err
	}
	return o, nil
}

// Initialize writes the contract ID and the identity point {0,0,0} into a
// new state.
func (o *State) Initialize() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, _, err := o.tree.Get(KeyContractID); err == nil {
		return ErrAlreadyInitialized
	} else if !errors.Is(err, arbo.ErrKeyNotFound) {
		return err
	}
	point := types.NewContractPoint()
	data, err := types.EncodeCBOR(point)
	if err != nil {
		return fmt.Errorf("encode point: %w", err)
	}
	leaf, err := PointLeaf(point)
	if err != nil {
		return err
	}
	wTx := o.db.WriteTx()
	defer wTx.Discard()
	treeTx := prefixeddb.NewPrefixedWriteTx(wTx, treePrefix)
	if err := o.tree.AddWithTx(treeTx, KeyContractID, o.contractID); err != nil {
		return err
	}
	if err := o.tree.AddWithTx(treeTx, KeyPoint, leaf); err != nil {
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, dataPrefix).Set(dataKeyPoint, data); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	o.point = point
	return nil
}

// Load reads the current point and checks it against its commitment in the
// tree. It returns ErrNotInitialized if the state does not exist yet.
func (o *State) Load() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, leaf, err := o.tree.Get(KeyPoint)
	if err != nil {
		if errors.Is(err, arbo.ErrKeyNotFound) {
			return ErrNotInitialized
		}
		return err
	}
	data, err := o.data.Get(dataKeyPoint)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrCorruptedState
		}
		return err
	}
	var point types.ContractPoint
	if err := cbor.Unmarshal(data, &point); err != nil {
		return fmt.Errorf("decode point: %w", err)
	}
	want, err := PointLeaf(point)
	if err != nil {
		return err
	}
	if !bytes.Equal(leaf, want) {
		return ErrCorruptedState
	}
	o.point = point
	return nil
}

// ContractID returns the contract the state belongs to.
func (o *State) ContractID() types.ContractID {
	return o.contractID
}

// Point returns the current point. The returned value shares nothing with
// the state, so it can only be used to read.
func (o *State) Point() types.ContractPoint {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.point
}

// Root returns the root of the state tree.
func (o *State) Root() ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.tree.Root()
}

// IsSettled returns true if the receipt was already settled in this state.
func (o *State) IsSettled(receiptID uuid.UUID) (bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.isSettled(receiptID)
}

func (o *State) isSettled(receiptID uuid.UUID) (bool, error) {
	_, _, err := o.tree.Get(receiptKey(receiptID))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, arbo.ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}

// SettledCount returns the number of receipts settled in this state.
func (o *State) SettledCount() (int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	n, err := o.tree.GetNLeafs()
	if err != nil {
		return 0, err
	}
	if n < reservedLeaves {
		return 0, ErrNotInitialized
	}
	return n - reservedLeaves, nil
}

// Settle applies the journal of a receipt to the contract point and returns
// the new point. A receipt is applied at most once: settling it again fails
// with ErrReceiptAlreadySettled and leaves the state untouched. The receipt
// must have been verified by the caller.
func (o *State) Settle(r *types.Receipt) (types.ContractPoint, error) {
	if r == nil {
		return types.ContractPoint{}, fmt.Errorf("receipt cannot be nil")
	}
	if !bytes.Equal(r.ContractID, o.contractID) {
		return types.ContractPoint{}, fmt.Errorf("%w: %s", ErrContractMismatch, r.ContractID)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, _, err := o.tree.Get(KeyContractID); err != nil {
		if errors.Is(err, arbo.ErrKeyNotFound) {
			return types.ContractPoint{}, ErrNotInitialized
		}
		return types.ContractPoint{}, err
	}
	settled, err := o.isSettled(r.ID)
	if err != nil {
		return types.ContractPoint{}, err
	}
	if settled {
		return types.ContractPoint{}, fmt.Errorf("%w: %s", ErrReceiptAlreadySettled, r.ID)
	}

	point := types.Apply(o.point, r.Journal)
	pointData, err := types.EncodeCBOR(point)
	if err != nil {
		return types.ContractPoint{}, fmt.Errorf("encode point: %w", err)
	}
	pointLeaf, err := PointLeaf(point)
	if err != nil {
		return types.ContractPoint{}, err
	}
	journalLeaf, err := JournalLeaf(r.Journal)
	if err != nil {
		return types.ContractPoint{}, err
	}

	// the receipt leaf and the new point are committed together
	wTx := o.db.WriteTx()
	defer wTx.Discard()
	treeTx := prefixeddb.NewPrefixedWriteTx(wTx, treePrefix)
	if err := o.tree.AddWithTx(treeTx, receiptKey(r.ID), journalLeaf); err != nil {
		return types.ContractPoint{}, fmt.Errorf("add receipt leaf: %w", err)
	}
	if err := o.tree.UpdateWithTx(treeTx, KeyPoint, pointLeaf); err != nil {
		return types.ContractPoint{}, fmt.Errorf("update point leaf: %w", err)
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, dataPrefix).Set(dataKeyPoint, pointData); err != nil {
		return types.ContractPoint{}, fmt.Errorf("store point: %w", err)
	}
	if err := wTx.Commit(); err != nil {
		return types.ContractPoint{}, err
	}
	o.point = point

	log.Debugw("receipt settled",
		"contractID", o.contractID.String(),
		"receiptID", r.ID.String(),
		"journal", r.Journal.String(),
		"point", point.String(),
	)
	return point, nil
}

func receiptKey(id uuid.UUID) []byte {
	return append([]byte{receiptKeyPrefix}, id[:]...)
}

// PointLeaf returns the tree leaf value that commits to a contract point.
func PointLeaf(p types.ContractPoint) ([]byte, error) {
	return commitment(p.X(), p.Y(), p.Total())
}

// JournalLeaf returns the tree leaf value that commits to the journal of a
// settled receipt.
func JournalLeaf(v types.PointVote) ([]byte, error) {
	return commitment(v.X(), v.Y(), v.Weight())
}

// commitment hashes the values, reduced to the BN254 scalar field, with the
// hash function of the tree.
func commitment(values ...*big.Int) ([]byte, error) {
	inputs := make([][]byte, 0, len(values))
	for _, v := range values {
		inputs = append(inputs, arbo.BigIntToBytes(hashFunc.Len(), util.BigToFF(v)))
	}
	h, err := hashFunc.Hash(inputs...)
	if err != nil {
		return nil, fmt.Errorf("hash leaf: %w", err)
	}
	return h, nil
}
