package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
)

// InsertSnapshots stores committed snapshot rows.
func (r *Repository) InsertSnapshots(ctx context.Context, snaps []burn.BlockSnapshot) error {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("insert_snapshots", err, start)
	}()

	if len(snaps) == 0 {
		return nil
	}

	const query = `
INSERT INTO sortition_snapshots (
	network,
	block_height,
	burn_header_timestamp,
	burn_header_hash,
	parent_burn_header_hash,
	consensus_hash,
	ops_hash,
	total_burn,
	sortition,
	sortition_hash,
	winning_block_txid,
	winning_stacks_block_hash,
	index_root,
	num_sortitions,
	sortition_id,
	parent_sortition_id
) VALUES`

	batch, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare snapshots batch: %w", err)
	}

	for _, snap := range snaps {
		sortition := uint8(0)
		if snap.Sortition {
			sortition = 1
		}
		if err = batch.Append(
			r.network,
			snap.BlockHeight,
			time.Unix(int64(snap.BurnHeaderTimestamp), 0).UTC(),
			snap.BurnHeaderHash.String(),
			snap.ParentBurnHeaderHash.String(),
			snap.ConsensusHash.String(),
			snap.OpsHash.String(),
			snap.TotalBurn,
			sortition,
			snap.SortitionHash.String(),
			snap.WinningBlockTxid.String(),
			snap.WinningStacksBlockHash.String(),
			snap.IndexRoot.String(),
			snap.NumSortitions,
			snap.SortitionID.String(),
			snap.ParentSortitionID.String(),
		); err != nil {
			return fmt.Errorf("append snapshot: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("insert snapshots: %w", err)
	}
	return nil
}
