package types

const (
	// StateTreeMaxLevels is the maximum number of levels in the contract
	// state merkle tree.
	StateTreeMaxLevels = 160
	// VotesPerBatch is the number of votes folded by a single proof.
	VotesPerBatch = 10
	// VoteWeightBits is the bit size of a single vote weight. The fold
	// circuit range checks every weight against it.
	VoteWeightBits = 64
)
