package clickhouse

import (
	"context"
	"fmt"
	"time"
)

// MaxSnapshotHeight returns the maximum archived snapshot height for the
// repository's network.
func (r *Repository) MaxSnapshotHeight(ctx context.Context) (uint64, error) {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("max_snapshot_height", err, start)
	}()

	const query = `
SELECT coalesce(max(block_height), toUInt64(0)) AS max_height
FROM sortition_snapshots
WHERE network = ?`

	rows, err := r.conn.Query(ctx, query, r.network)
	if err != nil {
		return 0, fmt.Errorf("query max snapshot height: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", closeErr)
		}
	}()

	var height uint64
	if !rows.Next() {
		return 0, fmt.Errorf("max snapshot height not found")
	}

	if err = rows.Scan(&height); err != nil {
		return 0, fmt.Errorf("scan max snapshot height: %w", err)
	}
	if err = rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate max snapshot height: %w", err)
	}

	return height, nil
}
