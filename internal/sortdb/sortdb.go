// Package sortdb stores the fork-indexed sortition history: block
// snapshots, accepted operations, and the indexes the contextual checks
// read. Rows are append-only; a fork is the chain of parent pointers from
// any snapshot back to genesis, and every read is scoped to one fork tip.
package sortdb

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burnchain"
	"go.uber.org/zap"
)

// DB is a handle to the sortition database.
type DB struct {
	ldb    *leveldb.DB
	params *burnchain.Params
	logger *zap.Logger
}

// Connect opens the database at path, creating the genesis snapshot on
// first use.
func Connect(path string, params *burnchain.Params, logger *zap.Logger) (*DB, error) {
	ldb, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open sortition db at %s: %w", path, err)
	}

	db := &DB{
		ldb:    ldb,
		params: params,
		logger: logger.Named("sortdb"),
	}
	if err := db.ensureGenesis(); err != nil {
		ldb.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the underlying store.
func (db *DB) Close() error {
	return db.ldb.Close()
}

func (db *DB) ensureGenesis() error {
	_, err := db.ldb.Get(tipKey(), nil)
	if err == nil {
		return nil
	}
	if err != leveldb.ErrNotFound {
		return fmt.Errorf("read chain tip: %w", err)
	}

	first := burn.FirstSnapshot(db.params.FirstBlockHeight, db.params.FirstBlockHash, 0)
	first.IndexRoot = snapshotIndexRoot(burn.TrieHash{}, first)

	row := snapshotRow{Snapshot: *first}
	enc, err := json.Marshal(&row)
	if err != nil {
		return fmt.Errorf("encode genesis snapshot: %w", err)
	}

	batch := new(leveldb.Batch)
	batch.Put(snapshotKey(first.SortitionID), enc)
	batch.Put(tipKey(), first.SortitionID.Bytes())
	if err := db.ldb.Write(batch, nil); err != nil {
		return fmt.Errorf("write genesis snapshot: %w", err)
	}

	db.logger.Info("initialized genesis snapshot",
		zap.Uint64("blockHeight", first.BlockHeight),
		zap.Stringer("burnHeaderHash", first.BurnHeaderHash))
	return nil
}

// CanonicalChainTip returns the snapshot the database considers the
// current best fork tip.
func (db *DB) CanonicalChainTip() (*burn.BlockSnapshot, error) {
	raw, err := db.ldb.Get(tipKey(), nil)
	if err != nil {
		return nil, fmt.Errorf("read chain tip: %w", err)
	}
	var id burn.SortitionID
	copy(id[:], raw)

	tx := db.TxBegin(id)
	defer tx.Discard()
	row, ok, err := tx.snapshotRow(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("chain tip %s has no snapshot", id)
	}
	snap := row.Snapshot
	return &snap, nil
}

// GetBlockSnapshot returns the snapshot with the given sortition ID, or
// nil if it was never processed.
func (db *DB) GetBlockSnapshot(id burn.SortitionID) (*burn.BlockSnapshot, error) {
	tx := db.TxBegin(id)
	defer tx.Discard()
	row, ok, err := tx.snapshotRow(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	snap := row.Snapshot
	return &snap, nil
}

// TxBegin opens a transaction whose reads are scoped to the fork ending at
// tip. Writes are staged and only hit the store on Commit.
func (db *DB) TxBegin(tip burn.SortitionID) *Tx {
	return &Tx{
		db:     db,
		tip:    tip,
		staged: make(map[string][]byte),
		batch:  new(leveldb.Batch),
	}
}

// snapshotIndexRoot chains the parent's root with the snapshot encoding,
// committing to the whole fork history in one hash.
func snapshotIndexRoot(parentRoot burn.TrieHash, snap *burn.BlockSnapshot) burn.TrieHash {
	tmp := *snap
	tmp.IndexRoot = burn.TrieHash{}
	enc, err := json.Marshal(&tmp)
	if err != nil {
		fatalf("encode snapshot for index root: %v", err)
	}

	h := sha256.New()
	h.Write(parentRoot.Bytes())
	h.Write(enc)
	var root burn.TrieHash
	copy(root[:], h.Sum(nil))
	return root
}

var fatalf = func(format string, args ...interface{}) {
	zap.L().Fatal(fmt.Sprintf(format, args...))
}
