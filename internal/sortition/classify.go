// Package sortition runs the per-burnchain-block lottery: it classifies a
// block's transactions into typed operations, validates them against the
// fork state, computes the burn distribution, picks at most one winning
// block commit, and assembles the block's snapshot.
package sortition

import (
	"errors"

	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn/ops"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burnchain"
	"go.uber.org/zap"
)

// ClassifyTx decodes one burnchain transaction into a typed operation.
// Returns nil for opcodes outside the sortition family and for
// recognized-but-unsupported opcodes; parse failures are logged and
// dropped, never fatal.
func ClassifyTx(
	logger *zap.Logger,
	codec burnchain.AddressCodec,
	blockHeight uint64,
	blockHash burn.BurnchainHeaderHash,
	tx *burnchain.Transaction,
) ops.Operation {
	var (
		op  ops.Operation
		err error
	)
	switch tx.Opcode {
	case ops.LeaderKeyRegisterOpcode:
		op, err = asOperation(ops.ParseLeaderKeyRegister(blockHeight, blockHash, tx))
	case ops.LeaderBlockCommitOpcode:
		op, err = asOperation(ops.ParseLeaderBlockCommit(codec, blockHeight, blockHash, tx))
	case ops.UserBurnSupportOpcode:
		op, err = asOperation(ops.ParseUserBurnSupport(codec, blockHeight, blockHash, tx))
	case ops.StackStxOpcode, ops.PreStxOpcode, ops.TransferStxOpcode:
		logger.Debug("skipping non-sortition operation",
			zap.String("opcode", string(tx.Opcode)),
			zap.Stringer("txid", tx.Txid))
		return nil
	default:
		return nil
	}

	if err != nil {
		logger.Debug("dropping malformed operation",
			zap.String("opcode", string(tx.Opcode)),
			zap.Stringer("txid", tx.Txid),
			zap.Uint64("blockHeight", blockHeight),
			zap.Error(err))
		return nil
	}
	return op
}

// asOperation collapses the typed parser results onto the Operation
// interface without wrapping a typed nil.
func asOperation[T ops.Operation](op T, err error) (ops.Operation, error) {
	if err != nil {
		return nil, err
	}
	return op, nil
}

// ClassifyBlock decodes every sortition operation in a block, preserving
// the burnchain transaction order.
func ClassifyBlock(logger *zap.Logger, codec burnchain.AddressCodec, block *burnchain.Block) []ops.Operation {
	classified := make([]ops.Operation, 0, len(block.Txs))
	for i := range block.Txs {
		tx := &block.Txs[i]
		if op := ClassifyTx(logger, codec, block.Header.BlockHeight, block.Header.BlockHash, tx); op != nil {
			classified = append(classified, op)
		}
	}
	return classified
}

var errOpsNotSorted = errors.New("block operations are not sorted by vtxindex")

// opsAreSorted verifies the strict vtxindex ordering the transition and
// lottery rely on.
func opsAreSorted(blockOps []ops.Operation) error {
	for i := 1; i < len(blockOps); i++ {
		if blockOps[i-1].Common().Vtxindex >= blockOps[i].Common().Vtxindex {
			return errOpsNotSorted
		}
	}
	return nil
}
