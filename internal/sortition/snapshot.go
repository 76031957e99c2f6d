package sortition

import (
	"fmt"

	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burnchain"
)

// MakeBlockSnapshot computes the snapshot for one burnchain block on top
// of its parent: advances the sortition hash, runs the weighted lottery
// over the accepted commits, and derives the new consensus hash from the
// geometric ancestor series. It reads fork state through lookup but never
// writes.
func MakeBlockSnapshot(
	params *burnchain.Params,
	lookup burn.ConsensusLookup,
	parent *burn.BlockSnapshot,
	header *burnchain.BlockHeader,
	transition *StateTransition,
	poxID burn.PoxID,
) (*burn.BlockSnapshot, error) {
	if header.BlockHeight != parent.BlockHeight+1 {
		return nil, fmt.Errorf("block at height %d does not extend parent at height %d",
			header.BlockHeight, parent.BlockHeight)
	}
	if header.ParentBlockHash != parent.BurnHeaderHash {
		return nil, fmt.Errorf("block %s has parent %s, expected %s",
			header.BlockHash, header.ParentBlockHash, parent.BurnHeaderHash)
	}

	sortHash := parent.SortitionHash.MixBurnHeader(header.BlockHash)

	dist := MakeDistribution(transition.AcceptedCommits, transition.AcceptedUserBurns)
	blockBurn := TotalBurns(dist)
	totalBurn := parent.TotalBurn + blockBurn
	if totalBurn < parent.TotalBurn {
		fatalf("total burn overflow at height %d: %d + %d", header.BlockHeight, parent.TotalBurn, blockBurn)
	}

	opsHash := burn.OpsHashFromTxids(transition.AcceptedTxids)
	consensusHash, err := burn.ConsensusHashFromParentBlockData(
		lookup,
		opsHash,
		parent.BlockHeight,
		params.FirstBlockHeight,
		header.BlockHash,
		totalBurn,
		poxID,
	)
	if err != nil {
		return nil, fmt.Errorf("consensus hash at height %d: %w", header.BlockHeight, err)
	}

	snap := &burn.BlockSnapshot{
		BlockHeight:          header.BlockHeight,
		BurnHeaderTimestamp:  header.Timestamp,
		BurnHeaderHash:       header.BlockHash,
		ParentBurnHeaderHash: header.ParentBlockHash,
		ConsensusHash:        consensusHash,
		OpsHash:              opsHash,
		TotalBurn:            totalBurn,
		SortitionHash:        sortHash,
		NumSortitions:        parent.NumSortitions,
		SortitionID:          burn.SortitionIDFromBurnHeaderHash(header.BlockHash),
		ParentSortitionID:    parent.SortitionID,
	}

	if winner := SelectWinner(sortHash, dist); winner != nil {
		snap.Sortition = true
		snap.WinningBlockTxid = winner.Txid
		snap.WinningStacksBlockHash = winner.BlockHeaderHash
		snap.SortitionHash = sortHash.MixVRFSeed(winner.NewSeed)
		snap.NumSortitions = parent.NumSortitions + 1
	}

	return snap, nil
}
