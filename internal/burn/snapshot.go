package burn

import "encoding/hex"

// SortitionID identifies one sortition: a burnchain block as seen on a
// particular fork.
type SortitionID [32]byte

// SortitionIDFromBurnHeaderHash derives the sortition ID for a burnchain
// block. With a single fork-rule set active the mapping is the identity on
// the burn header hash.
func SortitionIDFromBurnHeaderHash(h BurnchainHeaderHash) SortitionID {
	return SortitionID(h)
}

func (s SortitionID) String() string { return hex.EncodeToString(s[:]) }

func (s SortitionID) Bytes() []byte { return s[:] }

func (s SortitionID) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SortitionID) UnmarshalText(b []byte) error { return decodeFixedHex(string(b), s[:]) }

// BlockSnapshot records the outcome of processing one burnchain block on one
// fork. Snapshots are created once, appended to a fork-indexed history, and
// never mutated; forks are distinct snapshot chains sharing a prefix.
type BlockSnapshot struct {
	BlockHeight          uint64
	BurnHeaderTimestamp  uint64
	BurnHeaderHash       BurnchainHeaderHash
	ParentBurnHeaderHash BurnchainHeaderHash
	ConsensusHash        ConsensusHash
	OpsHash              OpsHash

	// TotalBurn is the cumulative burn destroyed since genesis on this fork.
	TotalBurn uint64

	// Sortition is true iff a winner was chosen in this block. The winner
	// fields are all-zero when it is false.
	Sortition              bool
	SortitionHash          SortitionHash
	WinningBlockTxid       Txid
	WinningStacksBlockHash BlockHeaderHash

	// IndexRoot is the content-addressed root of the materialized view
	// after this snapshot was appended.
	IndexRoot TrieHash

	NumSortitions uint64

	SortitionID       SortitionID
	ParentSortitionID SortitionID
}

// FirstSnapshot builds the genesis snapshot for a burnchain starting at the
// given height and header hash. The sortition hash already mixes in the
// first burn header so randomness advances from block one.
func FirstSnapshot(firstBlockHeight uint64, firstBlockHash BurnchainHeaderHash, timestamp uint64) *BlockSnapshot {
	return &BlockSnapshot{
		BlockHeight:         firstBlockHeight,
		BurnHeaderTimestamp: timestamp,
		BurnHeaderHash:      firstBlockHash,
		SortitionHash:       InitialSortitionHash().MixBurnHeader(firstBlockHash),
		SortitionID:         SortitionIDFromBurnHeaderHash(firstBlockHash),
	}
}
