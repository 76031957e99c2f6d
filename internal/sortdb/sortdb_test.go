package sortdb

import (
	"testing"

	"go.uber.org/zap"

	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burnchain"
)

func testParams() *burnchain.Params {
	var first burn.BurnchainHeaderHash
	first[0] = 0xfe
	return &burnchain.Params{
		ChainName:             "bitcoin",
		NetworkName:           "regtest",
		FirstBlockHeight:      0,
		FirstBlockHash:        first,
		ConsensusHashLifetime: burnchain.ConsensusHashLifetime,
		StableConfirmations:   1,
		Magic:                 burnchain.DefaultMagic,
	}
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Connect(t.TempDir(), testParams(), zap.NewNop())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// burnHash builds a header hash distinguishable by two bytes, so forks can
// reuse a height with a different final byte.
func burnHash(height uint64, fork byte) burn.BurnchainHeaderHash {
	var h burn.BurnchainHeaderHash
	h[0] = byte(height)
	h[1] = byte(height >> 8)
	h[31] = fork
	return h
}

// childSnapshot builds the minimal valid snapshot extending parent.
func childSnapshot(parent *burn.BlockSnapshot, fork byte) *burn.BlockSnapshot {
	height := parent.BlockHeight + 1
	hash := burnHash(height, fork)

	var ch burn.ConsensusHash
	ch[0] = byte(height)
	ch[1] = byte(height >> 8)
	ch[19] = fork

	return &burn.BlockSnapshot{
		BlockHeight:          height,
		BurnHeaderHash:       hash,
		ParentBurnHeaderHash: parent.BurnHeaderHash,
		ConsensusHash:        ch,
		TotalBurn:            parent.TotalBurn,
		SortitionHash:        parent.SortitionHash.MixBurnHeader(hash),
		NumSortitions:        parent.NumSortitions,
		SortitionID:          burn.SortitionIDFromBurnHeaderHash(hash),
	}
}

// appendBlock appends one empty block on top of parent and commits it.
func appendBlock(t *testing.T, db *DB, parent *burn.BlockSnapshot, fork byte) *burn.BlockSnapshot {
	t.Helper()
	snap := childSnapshot(parent, fork)

	tx := db.TxBegin(parent.SortitionID)
	defer tx.Discard()
	if _, err := tx.AppendChainTipSnapshot(parent, snap, nil, nil, nil); err != nil {
		t.Fatalf("AppendChainTipSnapshot() error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return snap
}

func TestConnectCreatesGenesis(t *testing.T) {
	params := testParams()
	path := t.TempDir()

	db, err := Connect(path, params, zap.NewNop())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	tip, err := db.CanonicalChainTip()
	if err != nil {
		t.Fatalf("CanonicalChainTip() error = %v", err)
	}
	if tip.BlockHeight != params.FirstBlockHeight {
		t.Errorf("tip height = %d, want %d", tip.BlockHeight, params.FirstBlockHeight)
	}
	if tip.BurnHeaderHash != params.FirstBlockHash {
		t.Errorf("tip hash = %s, want %s", tip.BurnHeaderHash, params.FirstBlockHash)
	}
	if tip.IndexRoot == (burn.TrieHash{}) {
		t.Error("genesis index root should be set")
	}

	// reopening must not recreate genesis
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	db, err = Connect(path, params, zap.NewNop())
	if err != nil {
		t.Fatalf("Connect() after reopen error = %v", err)
	}
	defer db.Close()

	again, err := db.CanonicalChainTip()
	if err != nil {
		t.Fatalf("CanonicalChainTip() after reopen error = %v", err)
	}
	if *again != *tip {
		t.Errorf("tip changed across reopen: %+v != %+v", again, tip)
	}
}

func TestAppendChainTipSnapshot(t *testing.T) {
	db := openTestDB(t)

	genesis, err := db.CanonicalChainTip()
	if err != nil {
		t.Fatalf("CanonicalChainTip() error = %v", err)
	}

	b1 := appendBlock(t, db, genesis, 0)
	b2 := appendBlock(t, db, b1, 0)

	tip, err := db.CanonicalChainTip()
	if err != nil {
		t.Fatalf("CanonicalChainTip() error = %v", err)
	}
	if tip.SortitionID != b2.SortitionID {
		t.Fatalf("tip = %s, want %s", tip.SortitionID, b2.SortitionID)
	}
	if tip.ParentSortitionID != b1.SortitionID {
		t.Errorf("parent sortition ID = %s, want %s", tip.ParentSortitionID, b1.SortitionID)
	}
	if tip.IndexRoot == b1.IndexRoot || tip.IndexRoot == (burn.TrieHash{}) {
		t.Error("index root should advance with every snapshot")
	}

	got, err := db.GetBlockSnapshot(b1.SortitionID)
	if err != nil {
		t.Fatalf("GetBlockSnapshot() error = %v", err)
	}
	if got == nil || got.BlockHeight != 1 {
		t.Fatalf("GetBlockSnapshot() = %+v, want height 1", got)
	}

	missing, err := db.GetBlockSnapshot(burn.SortitionID{0xde, 0xad})
	if err != nil {
		t.Fatalf("GetBlockSnapshot() error = %v", err)
	}
	if missing != nil {
		t.Fatal("unknown sortition ID should yield nil")
	}
}

func TestAncestorLookups(t *testing.T) {
	db := openTestDB(t)

	tip, err := db.CanonicalChainTip()
	if err != nil {
		t.Fatalf("CanonicalChainTip() error = %v", err)
	}
	snaps := []*burn.BlockSnapshot{tip}
	for i := 0; i < 40; i++ {
		tip = appendBlock(t, db, tip, 0)
		snaps = append(snaps, tip)
	}

	tx := db.TxBegin(tip.SortitionID)
	defer tx.Discard()

	for _, height := range []uint64{0, 1, 7, 16, 33, 40} {
		snap, err := tx.SnapshotAtHeight(height)
		if err != nil {
			t.Fatalf("SnapshotAtHeight(%d) error = %v", height, err)
		}
		if snap == nil || snap.SortitionID != snaps[height].SortitionID {
			t.Fatalf("SnapshotAtHeight(%d) = %+v, want %s", height, snap, snaps[height].SortitionID)
		}

		ch, err := tx.GetConsensusAt(height)
		if err != nil {
			t.Fatalf("GetConsensusAt(%d) error = %v", height, err)
		}
		if ch == nil || *ch != snaps[height].ConsensusHash {
			t.Fatalf("GetConsensusAt(%d) = %v, want %s", height, ch, snaps[height].ConsensusHash)
		}

		bh, err := tx.GetAncestorBlockHash(height)
		if err != nil {
			t.Fatalf("GetAncestorBlockHash(%d) error = %v", height, err)
		}
		if bh == nil || *bh != snaps[height].BurnHeaderHash {
			t.Fatalf("GetAncestorBlockHash(%d) = %v, want %s", height, bh, snaps[height].BurnHeaderHash)
		}
	}

	beyond, err := tx.SnapshotAtHeight(41)
	if err != nil {
		t.Fatalf("SnapshotAtHeight(41) error = %v", err)
	}
	if beyond != nil {
		t.Fatal("height beyond the fork tip should yield nil")
	}
}

func TestIsFreshConsensusHash(t *testing.T) {
	db := openTestDB(t)

	tip, err := db.CanonicalChainTip()
	if err != nil {
		t.Fatalf("CanonicalChainTip() error = %v", err)
	}
	snaps := []*burn.BlockSnapshot{tip}
	for i := 0; i < 30; i++ {
		tip = appendBlock(t, db, tip, 0)
		snaps = append(snaps, tip)
	}

	tx := db.TxBegin(tip.SortitionID)
	defer tx.Discard()

	const lifetime = 24
	height := tip.BlockHeight + 1

	fresh, err := tx.IsFreshConsensusHash(height, lifetime, snaps[30].ConsensusHash)
	if err != nil {
		t.Fatalf("IsFreshConsensusHash() error = %v", err)
	}
	if !fresh {
		t.Error("the tip's consensus hash should be fresh")
	}

	fresh, err = tx.IsFreshConsensusHash(height, lifetime, snaps[7].ConsensusHash)
	if err != nil {
		t.Fatalf("IsFreshConsensusHash() error = %v", err)
	}
	if !fresh {
		t.Error("a hash at the window edge should be fresh")
	}

	fresh, err = tx.IsFreshConsensusHash(height, lifetime, snaps[3].ConsensusHash)
	if err != nil {
		t.Fatalf("IsFreshConsensusHash() error = %v", err)
	}
	if fresh {
		t.Error("a hash older than the window should be stale")
	}

	fresh, err = tx.IsFreshConsensusHash(height, lifetime, burn.ConsensusHash{0xff})
	if err != nil {
		t.Fatalf("IsFreshConsensusHash() error = %v", err)
	}
	if fresh {
		t.Error("an unknown hash should not be fresh")
	}
}

func TestHeightGapIsFatal(t *testing.T) {
	db := openTestDB(t)

	genesis, err := db.CanonicalChainTip()
	if err != nil {
		t.Fatalf("CanonicalChainTip() error = %v", err)
	}
	b1 := appendBlock(t, db, genesis, 0)

	snap := childSnapshot(b1, 0)
	snap.BlockHeight = b1.BlockHeight + 2 // gap

	defer func(orig func(string, ...interface{})) { fatalf = orig }(fatalf)
	fatalCalled := false
	fatalf = func(format string, args ...interface{}) {
		fatalCalled = true
		panic("fatal")
	}

	tx := db.TxBegin(b1.SortitionID)
	defer tx.Discard()
	func() {
		defer func() { recover() }()
		tx.AppendChainTipSnapshot(b1, snap, nil, nil, nil)
	}()
	if !fatalCalled {
		t.Fatal("a height gap must abort")
	}
}

func TestDuplicateSnapshotIsFatal(t *testing.T) {
	db := openTestDB(t)

	genesis, err := db.CanonicalChainTip()
	if err != nil {
		t.Fatalf("CanonicalChainTip() error = %v", err)
	}
	b1 := appendBlock(t, db, genesis, 0)

	dup := childSnapshot(genesis, 0) // same header hash as b1

	defer func(orig func(string, ...interface{})) { fatalf = orig }(fatalf)
	fatalCalled := false
	fatalf = func(format string, args ...interface{}) {
		fatalCalled = true
		panic("fatal")
	}

	tx := db.TxBegin(b1.SortitionID)
	defer tx.Discard()
	func() {
		defer func() { recover() }()
		tx.AppendChainTipSnapshot(genesis, dup, nil, nil, nil)
	}()
	if !fatalCalled {
		t.Fatal("appending an existing snapshot must abort")
	}
}
