package sortdb

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn/ops"
)

type (
	// snapshotRow is the stored form of a snapshot plus its skip pointers.
	// SkipBack[i] is the ancestor 2^i blocks back on the same fork, as far
	// as ancestors exist; SkipBack[0] is the parent.
	snapshotRow struct {
		Snapshot burn.BlockSnapshot
		SkipBack []burn.SortitionID
	}

	// consumedRow records the commit that spent a leader key.
	consumedRow struct {
		BlockHeight    uint64
		BurnHeaderHash burn.BurnchainHeaderHash
		Txid           burn.Txid
	}

	// RejectedOp records why a structurally valid operation was excluded
	// from a block's sortition. Kept for operators; never read back by
	// consensus code.
	RejectedOp struct {
		Txid   burn.Txid
		Op     byte
		Result ops.CheckResult
	}
)

// Tx is a fork-scoped transaction. Reads see the fork ending at tip plus
// any rows staged by this transaction; nothing reaches the store until
// Commit.
type Tx struct {
	db     *DB
	tip    burn.SortitionID
	staged map[string][]byte
	batch  *leveldb.Batch
}

// Tip returns the fork tip this transaction reads against. It advances as
// snapshots are appended.
func (tx *Tx) Tip() burn.SortitionID { return tx.tip }

// Commit atomically writes all staged rows.
func (tx *Tx) Commit() error {
	if err := tx.db.ldb.Write(tx.batch, nil); err != nil {
		return fmt.Errorf("commit sortition tx: %w", err)
	}
	return nil
}

// Discard drops all staged rows.
func (tx *Tx) Discard() {
	tx.staged = make(map[string][]byte)
	tx.batch.Reset()
}

func (tx *Tx) stage(key, value []byte) {
	tx.staged[string(key)] = value
	tx.batch.Put(key, value)
}

func (tx *Tx) get(key []byte) ([]byte, bool, error) {
	if v, ok := tx.staged[string(key)]; ok {
		return v, true, nil
	}
	v, err := tx.db.ldb.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %q: %w", key, err)
	}
	return v, true, nil
}

// scanPrefix calls fn for every value under prefix, staged rows first.
// fn returns true to stop early.
func (tx *Tx) scanPrefix(prefix []byte, fn func(value []byte) (bool, error)) error {
	sp := string(prefix)
	var stagedKeys []string
	for k := range tx.staged {
		if strings.HasPrefix(k, sp) {
			stagedKeys = append(stagedKeys, k)
		}
	}
	sort.Strings(stagedKeys)
	for _, k := range stagedKeys {
		done, err := fn(tx.staged[k])
		if err != nil || done {
			return err
		}
	}

	iter := tx.db.ldb.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		if _, ok := tx.staged[string(iter.Key())]; ok {
			continue
		}
		value := append([]byte(nil), iter.Value()...)
		done, err := fn(value)
		if err != nil || done {
			return err
		}
	}
	return iter.Error()
}

func (tx *Tx) snapshotRow(id burn.SortitionID) (*snapshotRow, bool, error) {
	raw, ok, err := tx.get(snapshotKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	var row snapshotRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, false, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return &row, true, nil
}

// ancestorAt walks the fork ending at from down to the snapshot at the
// given height, following skip pointers. Returns nil if the fork does not
// reach that height.
func (tx *Tx) ancestorAt(from burn.SortitionID, height uint64) (*snapshotRow, error) {
	row, ok, err := tx.snapshotRow(from)
	if err != nil {
		return nil, err
	}
	if !ok || height > row.Snapshot.BlockHeight || height < tx.db.params.FirstBlockHeight {
		return nil, nil
	}

	for row.Snapshot.BlockHeight > height {
		if len(row.SkipBack) == 0 {
			return nil, nil
		}
		step := 0
		for i := 1; i < len(row.SkipBack); i++ {
			span := uint64(1) << uint(i)
			if span <= row.Snapshot.BlockHeight && row.Snapshot.BlockHeight-span >= height {
				step = i
			} else {
				break
			}
		}
		next := row.SkipBack[step]
		row, ok, err = tx.snapshotRow(next)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("missing ancestor snapshot %s", next)
		}
	}
	return row, nil
}

// onFork reports whether the fork ending at the transaction tip contains
// the given block at the given height.
func (tx *Tx) onFork(blockHeight uint64, burnHeaderHash burn.BurnchainHeaderHash) (bool, error) {
	anc, err := tx.ancestorAt(tx.tip, blockHeight)
	if err != nil {
		return false, err
	}
	return anc != nil && anc.Snapshot.BurnHeaderHash == burnHeaderHash, nil
}

// SnapshotAtHeight returns the snapshot at the given height on this fork,
// or nil if the fork is shorter.
func (tx *Tx) SnapshotAtHeight(height uint64) (*burn.BlockSnapshot, error) {
	row, err := tx.ancestorAt(tx.tip, height)
	if err != nil || row == nil {
		return nil, err
	}
	snap := row.Snapshot
	return &snap, nil
}

// GetConsensusAt returns the consensus hash of the snapshot at the given
// height on this fork, or nil if none exists.
func (tx *Tx) GetConsensusAt(height uint64) (*burn.ConsensusHash, error) {
	row, err := tx.ancestorAt(tx.tip, height)
	if err != nil || row == nil {
		return nil, err
	}
	ch := row.Snapshot.ConsensusHash
	return &ch, nil
}

// GetAncestorBlockHash returns the burn header hash at the given height on
// this fork, or nil if the fork is shorter.
func (tx *Tx) GetAncestorBlockHash(height uint64) (*burn.BurnchainHeaderHash, error) {
	row, err := tx.ancestorAt(tx.tip, height)
	if err != nil || row == nil {
		return nil, err
	}
	h := row.Snapshot.BurnHeaderHash
	return &h, nil
}

// IsFreshConsensusHash reports whether ch matches the consensus hash of
// one of the last lifetime snapshots on this fork, as of blockHeight.
func (tx *Tx) IsFreshConsensusHash(blockHeight uint64, lifetime uint32, ch burn.ConsensusHash) (bool, error) {
	oldest := uint64(0)
	if blockHeight >= uint64(lifetime) {
		oldest = blockHeight - uint64(lifetime)
	}

	row, ok, err := tx.snapshotRow(tx.tip)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("missing tip snapshot %s", tx.tip)
	}
	for row.Snapshot.BlockHeight >= oldest {
		if row.Snapshot.ConsensusHash == ch {
			return true, nil
		}
		if len(row.SkipBack) == 0 {
			break
		}
		row, ok, err = tx.snapshotRow(row.SkipBack[0])
		if err != nil {
			return false, err
		}
		if !ok {
			return false, fmt.Errorf("missing ancestor snapshot")
		}
	}
	return false, nil
}

// LeaderKeyByVRFKey returns the accepted registration carrying the given
// VRF public key on this fork, or nil.
func (tx *Tx) LeaderKeyByVRFKey(key burn.VRFPublicKey) (*ops.LeaderKeyRegisterOp, error) {
	var found *ops.LeaderKeyRegisterOp
	err := tx.scanPrefix(vrfKeyPrefix(key), func(value []byte) (bool, error) {
		var op ops.LeaderKeyRegisterOp
		if err := json.Unmarshal(value, &op); err != nil {
			return false, fmt.Errorf("decode leader key row: %w", err)
		}
		onFork, err := tx.onFork(op.BlockHeight, op.BurnHeaderHash)
		if err != nil || !onFork {
			return false, err
		}
		found = &op
		return true, nil
	})
	return found, err
}

// LeaderKeyAtLocation returns the accepted registration at the given block
// height and vtxindex on this fork, or nil.
func (tx *Tx) LeaderKeyAtLocation(blockHeight uint64, vtxindex uint32) (*ops.LeaderKeyRegisterOp, error) {
	var found *ops.LeaderKeyRegisterOp
	err := tx.scanPrefix(keyLocPrefix(blockHeight, vtxindex), func(value []byte) (bool, error) {
		var op ops.LeaderKeyRegisterOp
		if err := json.Unmarshal(value, &op); err != nil {
			return false, fmt.Errorf("decode leader key row: %w", err)
		}
		onFork, err := tx.onFork(op.BlockHeight, op.BurnHeaderHash)
		if err != nil || !onFork {
			return false, err
		}
		found = &op
		return true, nil
	})
	return found, err
}

// BlockCommitAtLocation returns the accepted block commit at the given
// block height and vtxindex on this fork, or nil.
func (tx *Tx) BlockCommitAtLocation(blockHeight uint64, vtxindex uint32) (*ops.LeaderBlockCommitOp, error) {
	var found *ops.LeaderBlockCommitOp
	err := tx.scanPrefix(commitLocPrefix(blockHeight, vtxindex), func(value []byte) (bool, error) {
		var op ops.LeaderBlockCommitOp
		if err := json.Unmarshal(value, &op); err != nil {
			return false, fmt.Errorf("decode block commit row: %w", err)
		}
		onFork, err := tx.onFork(op.BlockHeight, op.BurnHeaderHash)
		if err != nil || !onFork {
			return false, err
		}
		found = &op
		return true, nil
	})
	return found, err
}

// IsLeaderKeyConsumed reports whether an accepted commit on this fork has
// already spent the key registered at the given location.
func (tx *Tx) IsLeaderKeyConsumed(keyBlockHeight uint64, keyVtxindex uint32) (bool, error) {
	consumed := false
	err := tx.scanPrefix(consumedKeyPrefix(keyBlockHeight, keyVtxindex), func(value []byte) (bool, error) {
		var row consumedRow
		if err := json.Unmarshal(value, &row); err != nil {
			return false, fmt.Errorf("decode consumed key row: %w", err)
		}
		onFork, err := tx.onFork(row.BlockHeight, row.BurnHeaderHash)
		if err != nil || !onFork {
			return false, err
		}
		consumed = true
		return true, nil
	})
	return consumed, err
}

// AppendChainTipSnapshot appends snap on top of parent, indexes the
// accepted operations under the new sortition ID, and returns the new
// index root. The appended snapshot becomes both the transaction tip and,
// on commit, the canonical chain tip.
func (tx *Tx) AppendChainTipSnapshot(
	parent *burn.BlockSnapshot,
	snap *burn.BlockSnapshot,
	acceptedKeys []*ops.LeaderKeyRegisterOp,
	acceptedCommits []*ops.LeaderBlockCommitOp,
	rejected []RejectedOp,
) (burn.TrieHash, error) {
	if snap.BlockHeight != parent.BlockHeight+1 {
		fatalf("snapshot at height %d does not extend parent at height %d",
			snap.BlockHeight, parent.BlockHeight)
	}
	if _, ok, err := tx.snapshotRow(snap.SortitionID); err != nil {
		return burn.TrieHash{}, err
	} else if ok {
		fatalf("snapshot %s already exists", snap.SortitionID)
	}

	snap.ParentSortitionID = parent.SortitionID
	skip, err := tx.skipBackPointers(parent)
	if err != nil {
		return burn.TrieHash{}, err
	}
	snap.IndexRoot = snapshotIndexRoot(parent.IndexRoot, snap)

	row := snapshotRow{Snapshot: *snap, SkipBack: skip}
	enc, err := json.Marshal(&row)
	if err != nil {
		return burn.TrieHash{}, fmt.Errorf("encode snapshot %s: %w", snap.SortitionID, err)
	}
	tx.stage(snapshotKey(snap.SortitionID), enc)

	for _, key := range acceptedKeys {
		enc, err := json.Marshal(key)
		if err != nil {
			return burn.TrieHash{}, fmt.Errorf("encode leader key %s: %w", key.Txid, err)
		}
		tx.stage(vrfKeyKey(key.PublicKey, snap.SortitionID), enc)
		tx.stage(keyLocKey(key.BlockHeight, key.Vtxindex, snap.SortitionID), enc)
	}
	for _, commit := range acceptedCommits {
		enc, err := json.Marshal(commit)
		if err != nil {
			return burn.TrieHash{}, fmt.Errorf("encode block commit %s: %w", commit.Txid, err)
		}
		tx.stage(commitLocKey(commit.BlockHeight, commit.Vtxindex, snap.SortitionID), enc)

		spent, err := json.Marshal(&consumedRow{
			BlockHeight:    commit.BlockHeight,
			BurnHeaderHash: commit.BurnHeaderHash,
			Txid:           commit.Txid,
		})
		if err != nil {
			return burn.TrieHash{}, fmt.Errorf("encode consumed key row: %w", err)
		}
		tx.stage(consumedKeyKey(uint64(commit.KeyBlockPtr), uint32(commit.KeyVtxindex), snap.SortitionID), spent)
	}

	if len(rejected) > 0 {
		enc, err := json.Marshal(rejected)
		if err != nil {
			return burn.TrieHash{}, fmt.Errorf("encode rejected ops: %w", err)
		}
		tx.stage(rejectedKey(snap.SortitionID), enc)
	}

	tx.stage(tipKey(), snap.SortitionID.Bytes())
	tx.tip = snap.SortitionID
	return snap.IndexRoot, nil
}

// RejectedOpsFor returns the rejected operations recorded for a snapshot.
func (tx *Tx) RejectedOpsFor(id burn.SortitionID) ([]RejectedOp, error) {
	raw, ok, err := tx.get(rejectedKey(id))
	if err != nil || !ok {
		return nil, err
	}
	var rejected []RejectedOp
	if err := json.Unmarshal(raw, &rejected); err != nil {
		return nil, fmt.Errorf("decode rejected ops for %s: %w", id, err)
	}
	return rejected, nil
}

// skipBackPointers builds the skip pointer list for a snapshot whose
// parent is the given one.
func (tx *Tx) skipBackPointers(parent *burn.BlockSnapshot) ([]burn.SortitionID, error) {
	skip := []burn.SortitionID{parent.SortitionID}
	cur := parent.SortitionID
	for i := 1; ; i++ {
		row, ok, err := tx.snapshotRow(cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("missing snapshot %s while building skip pointers", cur)
		}
		if len(row.SkipBack) < i {
			break
		}
		cur = row.SkipBack[i-1]
		skip = append(skip, cur)
	}
	return skip, nil
}
