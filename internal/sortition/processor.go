package sortition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burnchain"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/sortdb"
	"go.uber.org/zap"
)

type (
	// ProcessorMetrics records metrics for block sortition evaluation.
	ProcessorMetrics interface {
		ObserveEvaluate(err error, started time.Time)
		ObserveSortition(won bool, accepted, rejected int)
	}
)

// Processor evaluates the sortition of burnchain blocks, one transaction
// per block: operations are validated and the snapshot appended against a
// single fork tip, and either everything commits or nothing does.
type Processor struct {
	db      *sortdb.DB
	params  *burnchain.Params
	codec   burnchain.AddressCodec
	poxID   burn.PoxID
	metrics ProcessorMetrics
	logger  *zap.Logger
}

// NewProcessor builds a sortition processor over an open database.
func NewProcessor(
	db *sortdb.DB,
	params *burnchain.Params,
	codec burnchain.AddressCodec,
	metrics ProcessorMetrics,
	logger *zap.Logger,
) (*Processor, error) {
	if metrics == nil {
		return nil, errors.New("processor metrics is required")
	}
	return &Processor{
		db:      db,
		params:  params,
		codec:   codec,
		poxID:   burn.InitialPoxID(),
		metrics: metrics,
		logger:  logger.Named("sortition"),
	}, nil
}

// ChainTip returns the canonical chain tip snapshot.
func (p *Processor) ChainTip() (*burn.BlockSnapshot, error) {
	return p.db.CanonicalChainTip()
}

// EvaluateSortition processes one burnchain block on the fork named by its
// parent hash and returns the committed snapshot.
func (p *Processor) EvaluateSortition(ctx context.Context, block *burnchain.Block) (snap *burn.BlockSnapshot, err error) {
	started := time.Now()
	defer func() {
		p.metrics.ObserveEvaluate(err, started)
	}()
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	parent, err := p.db.GetBlockSnapshot(burn.SortitionIDFromBurnHeaderHash(block.Header.ParentBlockHash))
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, fmt.Errorf("block %s builds on unprocessed parent %s",
			block.Header.BlockHash, block.Header.ParentBlockHash)
	}

	tx := p.db.TxBegin(parent.SortitionID)
	defer tx.Discard()

	blockOps := ClassifyBlock(p.logger, p.codec, block)
	transition, err := ProcessOps(p.logger, p.params, tx, blockOps)
	if err != nil {
		return nil, err
	}

	snap, err = MakeBlockSnapshot(p.params, tx, parent, &block.Header, transition, p.poxID)
	if err != nil {
		return nil, err
	}

	if _, err = tx.AppendChainTipSnapshot(parent, snap, transition.AcceptedKeys, transition.Commits(), transition.Rejected); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	accepted := len(transition.AcceptedTxids)
	p.logger.Info("processed burnchain block",
		zap.Uint64("blockHeight", snap.BlockHeight),
		zap.Stringer("burnHeaderHash", snap.BurnHeaderHash),
		zap.Stringer("consensusHash", snap.ConsensusHash),
		zap.Bool("sortition", snap.Sortition),
		zap.Int("accepted", accepted),
		zap.Int("rejected", len(transition.Rejected)),
		zap.Int("consumedLeaderKeys", len(transition.ConsumedLeaderKeys())))
	p.metrics.ObserveSortition(snap.Sortition, accepted, len(transition.Rejected))

	return snap, nil
}
