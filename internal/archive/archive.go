// Package archive buffers committed snapshots and flushes them to the
// observational store in batches.
package archive

import (
	"context"
	"time"

	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/pkg/batcher"
	"go.uber.org/zap"
)

const (
	defaultFlushSize     = 64
	defaultFlushInterval = 5 * time.Second
	defaultFlushRPS      = 2
)

// Storage persists snapshot batches.
type Storage interface {
	InsertSnapshots(ctx context.Context, snaps []burn.BlockSnapshot) error
}

// Archive batches snapshots toward a Storage. Flush failures are logged by
// the batcher and dropped; the archive is not part of consensus state.
type Archive struct {
	batcher *batcher.Batcher[burn.BlockSnapshot]
}

// New builds an Archive over the given storage.
func New(storage Storage, logger *zap.Logger) *Archive {
	return &Archive{
		batcher: batcher.New(
			logger.Named("snapshotArchive"),
			storage.InsertSnapshots,
			defaultFlushSize,
			defaultFlushInterval,
			defaultFlushRPS,
		),
	}
}

// Start begins background flushing.
func (a *Archive) Start(ctx context.Context) {
	a.batcher.Start(ctx)
}

// Stop flushes the buffer and stops the background loop.
func (a *Archive) Stop() {
	a.batcher.Stop()
}

// ArchiveSnapshot queues one snapshot for archival.
func (a *Archive) ArchiveSnapshot(ctx context.Context, snap *burn.BlockSnapshot) error {
	return a.batcher.Add(ctx, *snap)
}
