package sortition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burnchain"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/clock"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/pkg/workerpool"
	"go.uber.org/zap"
)

const (
	followerSleepDuration     = 5 * time.Second
	followerLongSleepDuration = 30 * time.Second
	followerFetchWindow       = 16
	followerFetchWorkers      = 4
)

type (
	// BlockSource fetches burnchain blocks from a node.
	BlockSource interface {
		LatestHeight(ctx context.Context) (uint64, error)
		FetchBlock(ctx context.Context, height uint64) (*burnchain.Block, error)
	}

	// SnapshotArchiver receives committed snapshots for observational
	// storage. Archive failures are logged, never consensus-affecting.
	SnapshotArchiver interface {
		ArchiveSnapshot(ctx context.Context, snap *burn.BlockSnapshot) error
	}

	// FollowerMetrics records metrics for the follower loop.
	FollowerMetrics interface {
		ObserveFetchTip(err error, started time.Time)
		ObserveFetchBlock(err error, started time.Time)
	}
)

// Follower tails the burnchain and feeds stable blocks, in order, to the
// sortition processor. Blocks within a fetch window are retrieved
// concurrently; sortition itself stays strictly sequential.
type Follower struct {
	logger    *zap.Logger
	source    BlockSource
	processor *Processor
	archive   SnapshotArchiver
	metrics   FollowerMetrics
	params    *burnchain.Params

	sleep             func(context.Context, time.Duration) error
	sleepDuration     time.Duration
	longSleepDuration time.Duration
	fetchWindow       uint64
	fetchWorkers      int
}

// NewFollower builds the follower service. archive may be nil.
func NewFollower(
	source BlockSource,
	processor *Processor,
	archive SnapshotArchiver,
	metrics FollowerMetrics,
	params *burnchain.Params,
	logger *zap.Logger,
) (*Follower, error) {
	if metrics == nil {
		return nil, errors.New("follower metrics is required")
	}
	return &Follower{
		logger:            logger.Named("follower"),
		source:            source,
		processor:         processor,
		archive:           archive,
		metrics:           metrics,
		params:            params,
		sleep:             clock.Sleep,
		sleepDuration:     followerSleepDuration,
		longSleepDuration: followerLongSleepDuration,
		fetchWindow:       followerFetchWindow,
		fetchWorkers:      followerFetchWorkers,
	}, nil
}

// Run follows the burnchain until the context is canceled.
func (f *Follower) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.run(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			f.logger.Warn("run iteration failed, backing off",
				zap.Error(err), zap.Duration("sleep", f.sleepDuration))
			if sleepErr := f.sleep(ctx, f.sleepDuration); sleepErr != nil {
				return sleepErr
			}
		}
	}
}

func (f *Follower) run(ctx context.Context) error {
	tip, err := f.processor.ChainTip()
	if err != nil {
		return err
	}

	started := time.Now()
	latest, err := f.source.LatestHeight(ctx)
	f.metrics.ObserveFetchTip(err, started)
	if err != nil {
		return fmt.Errorf("get latest burnchain height: %w", err)
	}

	stable := uint64(0)
	if latest >= uint64(f.params.StableConfirmations) {
		stable = latest - uint64(f.params.StableConfirmations)
	}
	next := tip.BlockHeight + 1
	if next > stable {
		f.logger.Debug("no stable blocks to process; sleeping",
			zap.Uint64("tipHeight", tip.BlockHeight),
			zap.Uint64("stableHeight", stable),
			zap.Duration("sleep", f.longSleepDuration))
		return f.sleep(ctx, f.longSleepDuration)
	}

	end := stable
	if end-next+1 > f.fetchWindow {
		end = next + f.fetchWindow - 1
	}

	blocks, err := f.prefetch(ctx, next, end)
	if err != nil {
		return err
	}
	for _, block := range blocks {
		snap, err := f.processor.EvaluateSortition(ctx, block)
		if err != nil {
			return err
		}
		if f.archive != nil {
			if err := f.archive.ArchiveSnapshot(ctx, snap); err != nil {
				f.logger.Warn("archive snapshot failed",
					zap.Uint64("blockHeight", snap.BlockHeight), zap.Error(err))
			}
		}
	}

	return f.sleep(ctx, f.sleepDuration)
}

// prefetch retrieves blocks [from, to] concurrently and returns them in
// height order.
func (f *Follower) prefetch(ctx context.Context, from, to uint64) ([]*burnchain.Block, error) {
	heights := make([]uint64, 0, to-from+1)
	for h := from; h <= to; h++ {
		heights = append(heights, h)
	}

	var mu sync.Mutex
	fetched := make(map[uint64]*burnchain.Block, len(heights))

	err := workerpool.Process(ctx, f.fetchWorkers, heights, func(ctx context.Context, height uint64) error {
		started := time.Now()
		block, err := f.source.FetchBlock(ctx, height)
		f.metrics.ObserveFetchBlock(err, started)
		if err != nil {
			return fmt.Errorf("fetch block at height %d: %w", height, err)
		}
		mu.Lock()
		fetched[height] = block
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	blocks := make([]*burnchain.Block, 0, len(heights))
	for _, h := range heights {
		block, ok := fetched[h]
		if !ok {
			return nil, fmt.Errorf("block at height %d missing after fetch", h)
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}
