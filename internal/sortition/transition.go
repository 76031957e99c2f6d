package sortition

import (
	"fmt"

	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn/ops"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burnchain"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/sortdb"
	"go.uber.org/zap"
)

// StateTransition is the outcome of validating one block's operations:
// what enters the lottery, what was rejected and why, and the accepted
// txids in burnchain order for the ops hash.
type StateTransition struct {
	AcceptedKeys      []*ops.LeaderKeyRegisterOp
	AcceptedCommits   []CommitWithKey
	AcceptedUserBurns []*ops.UserBurnSupportOp
	Rejected          []sortdb.RejectedOp

	// AcceptedTxids preserves the native transaction order across all
	// accepted operation kinds.
	AcceptedTxids []burn.Txid
}

type keyLocation struct {
	blockHeight uint64
	vtxindex    uint32
}

// filterVRFDuplicates drops all but the first registration of each VRF key
// within a single block. Later duplicates would be rejected against the
// database anyway once the first is accepted; filtering here keeps the
// within-block view consistent.
func filterVRFDuplicates(logger *zap.Logger, blockOps []ops.Operation) []ops.Operation {
	seen := make(map[burn.VRFPublicKey]struct{})
	filtered := make([]ops.Operation, 0, len(blockOps))
	for _, op := range blockOps {
		if key, isKey := op.(*ops.LeaderKeyRegisterOp); isKey {
			if _, dup := seen[key.PublicKey]; dup {
				logger.Debug("dropping duplicate VRF key registration",
					zap.Stringer("txid", key.Txid),
					zap.Stringer("publicKey", key.PublicKey))
				continue
			}
			seen[key.PublicKey] = struct{}{}
		}
		filtered = append(filtered, op)
	}
	return filtered
}

// ProcessOps validates a block's classified operations against the fork
// state and splits them into the accepted set and the rejected set. A
// storage failure aborts the whole block; rejections never do.
func ProcessOps(
	logger *zap.Logger,
	params *burnchain.Params,
	view ops.ChainStateView,
	blockOps []ops.Operation,
) (*StateTransition, error) {
	if err := opsAreSorted(blockOps); err != nil {
		fatalf("%v", err)
	}
	blockOps = filterVRFDuplicates(logger, blockOps)

	transition := &StateTransition{}
	consumedThisBlock := make(map[keyLocation]burn.Txid)

	for _, op := range blockOps {
		common := op.Common()
		result, err := op.Check(params, view)
		if err != nil {
			return nil, fmt.Errorf("check operation %s: %w", common.Txid, err)
		}

		if result.Ok() {
			if commit, isCommit := op.(*ops.LeaderBlockCommitOp); isCommit {
				loc := keyLocation{
					blockHeight: uint64(commit.KeyBlockPtr),
					vtxindex:    uint32(commit.KeyVtxindex),
				}
				if _, taken := consumedThisBlock[loc]; taken {
					result = ops.BlockCommitLeaderKeyAlreadyUsed
				} else {
					consumedThisBlock[loc] = commit.Txid
				}
			}
		}

		if !result.Ok() {
			logger.Debug("rejecting operation",
				zap.Stringer("txid", common.Txid),
				zap.Uint64("blockHeight", common.BlockHeight),
				zap.Uint32("vtxindex", common.Vtxindex),
				zap.Stringer("result", result))
			transition.Rejected = append(transition.Rejected, sortdb.RejectedOp{
				Txid:   common.Txid,
				Op:     common.Op,
				Result: result,
			})
			continue
		}

		switch typed := op.(type) {
		case *ops.LeaderKeyRegisterOp:
			transition.AcceptedKeys = append(transition.AcceptedKeys, typed)
		case *ops.LeaderBlockCommitOp:
			key, err := view.LeaderKeyAtLocation(uint64(typed.KeyBlockPtr), uint32(typed.KeyVtxindex))
			if err != nil {
				return nil, fmt.Errorf("load leader key for commit %s: %w", typed.Txid, err)
			}
			if key == nil {
				fatalf("accepted commit %s has no leader key at %d:%d",
					typed.Txid, typed.KeyBlockPtr, typed.KeyVtxindex)
			}
			transition.AcceptedCommits = append(transition.AcceptedCommits, CommitWithKey{
				Commit: typed,
				Key:    key,
			})
		case *ops.UserBurnSupportOp:
			transition.AcceptedUserBurns = append(transition.AcceptedUserBurns, typed)
		}
		transition.AcceptedTxids = append(transition.AcceptedTxids, common.Txid)
	}

	return transition, nil
}

// Commits strips the keys off the accepted commit pairs.
func (t *StateTransition) Commits() []*ops.LeaderBlockCommitOp {
	commits := make([]*ops.LeaderBlockCommitOp, 0, len(t.AcceptedCommits))
	for _, cw := range t.AcceptedCommits {
		commits = append(commits, cw.Commit)
	}
	return commits
}

// ConsumedLeaderKeys lists the leader keys spent by this block's accepted
// commits, in commit order.
func (t *StateTransition) ConsumedLeaderKeys() []*ops.LeaderKeyRegisterOp {
	keys := make([]*ops.LeaderKeyRegisterOp, 0, len(t.AcceptedCommits))
	for _, cw := range t.AcceptedCommits {
		keys = append(keys, cw.Key)
	}
	return keys
}

var fatalf = func(format string, args ...interface{}) {
	zap.L().Fatal(fmt.Sprintf(format, args...))
}
