package sortition

import (
	"github.com/holiman/uint256"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn/ops"
)

type (
	// CommitWithKey pairs an accepted block commit with the leader key it
	// consumed.
	CommitWithKey struct {
		Commit *ops.LeaderBlockCommitOp
		Key    *ops.LeaderKeyRegisterOp
	}

	// BurnSamplePoint is one candidate's slice of the lottery: the commit,
	// the user burns credited to it, and their combined weight.
	BurnSamplePoint struct {
		Candidate *ops.LeaderBlockCommitOp
		UserBurns []*ops.UserBurnSupportOp
		Burns     uint64
	}
)

// supportsCommit reports whether a user burn backs the given commit: it
// must commit to the same candidate block hash and name the VRF key the
// commit consumed.
func supportsCommit(ub *ops.UserBurnSupportOp, cw CommitWithKey) bool {
	return ub.BlockHeaderHash160 == cw.Commit.BlockHeaderHash.ToHash160() &&
		ub.PublicKey == cw.Key.PublicKey
}

// MakeDistribution folds the block's accepted commits and user burns into
// sample points, preserving the commits' transaction order. A user burn
// that matches no commit in this block carries no weight.
func MakeDistribution(commits []CommitWithKey, userBurns []*ops.UserBurnSupportOp) []BurnSamplePoint {
	dist := make([]BurnSamplePoint, 0, len(commits))
	for _, cw := range commits {
		point := BurnSamplePoint{
			Candidate: cw.Commit,
			Burns:     cw.Commit.BurnFee,
		}
		for _, ub := range userBurns {
			if supportsCommit(ub, cw) {
				point.UserBurns = append(point.UserBurns, ub)
				point.Burns += ub.BurnFee
			}
		}
		dist = append(dist, point)
	}
	return dist
}

// TotalBurns sums the weights of a distribution.
func TotalBurns(dist []BurnSamplePoint) uint64 {
	var total uint64
	for _, point := range dist {
		total += point.Burns
	}
	return total
}

// SelectWinner maps the sortition hash into the cumulative-weight space of
// the distribution and returns the winning commit, or nil when the
// distribution is empty or carries no burn.
func SelectWinner(sortHash burn.SortitionHash, dist []BurnSamplePoint) *ops.LeaderBlockCommitOp {
	total := TotalBurns(dist)
	if total == 0 {
		return nil
	}

	index := new(uint256.Int).Mod(sortHash.ToUint256(), uint256.NewInt(total)).Uint64()
	var cumulative uint64
	for i := range dist {
		cumulative += dist[i].Burns
		if index < cumulative {
			return dist[i].Candidate
		}
	}
	fatalf("sortition index %d fell outside cumulative burn space %d", index, cumulative)
	return nil
}
