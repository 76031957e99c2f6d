package sortition

import (
	"context"
	"testing"

	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn/ops"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burnchain"
)

// nextHeader builds the burnchain header extending the given snapshot.
func nextHeader(parent *burn.BlockSnapshot, numTxs uint64) burnchain.BlockHeader {
	height := parent.BlockHeight + 1
	var hash burn.BurnchainHeaderHash
	hash[0] = byte(height)
	hash[1] = 0x51
	return burnchain.BlockHeader{
		BlockHeight:     height,
		BlockHash:       hash,
		ParentBlockHash: parent.BurnHeaderHash,
		NumTxs:          numTxs,
		Timestamp:       1700000000 + height,
	}
}

func evaluate(t *testing.T, p *Processor, parent *burn.BlockSnapshot, txs ...burnchain.Transaction) *burn.BlockSnapshot {
	t.Helper()
	block := &burnchain.Block{
		Header: nextHeader(parent, uint64(len(txs))),
		Txs:    txs,
	}
	snap, err := p.EvaluateSortition(context.Background(), block)
	if err != nil {
		t.Fatalf("EvaluateSortition(height %d) error = %v", block.Header.BlockHeight, err)
	}
	return snap
}

// TestSortitionLifecycle drives a ten-block chain through the processor:
// key registrations, block commits, a supporting user burn, a rejected
// commit, and empty blocks in between.
func TestSortitionLifecycle(t *testing.T) {
	p := openTestProcessor(t)

	genesis, err := p.ChainTip()
	if err != nil {
		t.Fatalf("ChainTip() error = %v", err)
	}

	minerA := burnchain.NewAddress([]byte("miner-a"))
	minerB := burnchain.NewAddress([]byte("miner-b"))
	keyA := vrfKey(t, 0x0a)
	keyB := vrfKey(t, 0x0b)

	// block 1: miner A registers a key against the genesis consensus hash
	snap1 := evaluate(t, p, genesis,
		keyRegisterTx(testTxid(0x11), 0, genesis.ConsensusHash, keyA, minerA))
	if snap1.Sortition {
		t.Fatal("a key registration alone must not trigger a sortition")
	}
	if snap1.NumSortitions != 0 {
		t.Fatalf("NumSortitions = %d, want 0", snap1.NumSortitions)
	}
	if snap1.OpsHash != burn.OpsHashFromTxids([]burn.Txid{testTxid(0x11)}) {
		t.Fatal("ops hash should cover the accepted registration")
	}

	// block 2: empty
	snap2 := evaluate(t, p, snap1)
	if snap2.Sortition || snap2.TotalBurn != 0 {
		t.Fatalf("empty block: sortition=%v totalBurn=%d", snap2.Sortition, snap2.TotalBurn)
	}
	if snap2.OpsHash != burn.OpsHashFromTxids(nil) {
		t.Fatal("empty block should carry the empty ops hash")
	}

	// block 3: miner A commits, consuming the key from block 1
	candidateA := burn.BlockHeaderHash{0xa1}
	commitATxid := testTxid(0x13)
	snap3 := evaluate(t, p, snap2,
		blockCommitTx(commitATxid, 0, candidateA, burn.VRFSeed{0xa2},
			0, 0, uint32(snap1.BlockHeight), 0, 10000, minerA))
	if !snap3.Sortition {
		t.Fatal("the only weighted commit must win")
	}
	if snap3.WinningBlockTxid != commitATxid {
		t.Fatalf("WinningBlockTxid = %s, want %s", snap3.WinningBlockTxid, commitATxid)
	}
	if snap3.WinningStacksBlockHash != candidateA {
		t.Fatalf("WinningStacksBlockHash = %s, want %s", snap3.WinningStacksBlockHash, candidateA)
	}
	if snap3.NumSortitions != 1 {
		t.Fatalf("NumSortitions = %d, want 1", snap3.NumSortitions)
	}
	if snap3.TotalBurn != 10000 {
		t.Fatalf("TotalBurn = %d, want 10000", snap3.TotalBurn)
	}

	// block 4: miner B registers a key against a recent consensus hash
	snap4 := evaluate(t, p, snap3,
		keyRegisterTx(testTxid(0x14), 0, snap3.ConsensusHash, keyB, minerB))
	if snap4.NumSortitions != 1 {
		t.Fatalf("NumSortitions = %d, want 1", snap4.NumSortitions)
	}

	// block 5: miner B commits on top of miner A's commit, plus a user
	// burn backing the same candidate under miner B's key
	candidateB := burn.BlockHeaderHash{0xb1}
	commitBTxid := testTxid(0x15)
	snap5 := evaluate(t, p, snap4,
		blockCommitTx(commitBTxid, 0, candidateB, burn.VRFSeed{0xb2},
			uint32(snap3.BlockHeight), 0, uint32(snap4.BlockHeight), 0, 5000, minerB),
		userBurnTx(testTxid(0x16), 1, snap4.ConsensusHash, keyB, candidateB, 2000))
	if !snap5.Sortition || snap5.WinningBlockTxid != commitBTxid {
		t.Fatalf("snapshot 5 = sortition=%v winner=%s, want commit B", snap5.Sortition, snap5.WinningBlockTxid)
	}
	if snap5.NumSortitions != 2 {
		t.Fatalf("NumSortitions = %d, want 2", snap5.NumSortitions)
	}
	if snap5.TotalBurn != 17000 {
		t.Fatalf("TotalBurn = %d, want 10000+5000+2000", snap5.TotalBurn)
	}

	// block 6: a commit naming a nonexistent key is rejected, no sortition
	snap6 := evaluate(t, p, snap5,
		blockCommitTx(testTxid(0x17), 0, burn.BlockHeaderHash{0xc1}, burn.VRFSeed{0xc2},
			0, 0, 2, 9, 8000, minerA))
	if snap6.Sortition {
		t.Fatal("a rejected commit must not trigger a sortition")
	}
	if snap6.NumSortitions != 2 || snap6.TotalBurn != 17000 {
		t.Fatalf("snapshot 6 = sortitions=%d burn=%d, want unchanged", snap6.NumSortitions, snap6.TotalBurn)
	}
	if snap6.OpsHash != burn.OpsHashFromTxids(nil) {
		t.Fatal("a rejected operation must not enter the ops hash")
	}

	tx := p.db.TxBegin(snap6.SortitionID)
	rejected, err := tx.RejectedOpsFor(snap6.SortitionID)
	tx.Discard()
	if err != nil {
		t.Fatalf("RejectedOpsFor() error = %v", err)
	}
	if len(rejected) != 1 || rejected[0].Result != ops.BlockCommitNoLeaderKey {
		t.Fatalf("rejected ops = %+v, want one no-leader-key entry", rejected)
	}

	// block 7: the same key registered twice in one block; only the
	// first registration survives
	keyC := vrfKey(t, 0x0c)
	snap7 := evaluate(t, p, snap6,
		keyRegisterTx(testTxid(0x18), 0, snap6.ConsensusHash, keyC, minerA),
		keyRegisterTx(testTxid(0x19), 1, snap6.ConsensusHash, keyC, minerB))
	if snap7.OpsHash != burn.OpsHashFromTxids([]burn.Txid{testTxid(0x18)}) {
		t.Fatal("only the first same-key registration should be accepted")
	}

	tx = p.db.TxBegin(snap7.SortitionID)
	firstReg, err := tx.LeaderKeyAtLocation(snap7.BlockHeight, 0)
	if err != nil {
		t.Fatalf("LeaderKeyAtLocation(vtx 0) error = %v", err)
	}
	dupReg, err := tx.LeaderKeyAtLocation(snap7.BlockHeight, 1)
	tx.Discard()
	if err != nil {
		t.Fatalf("LeaderKeyAtLocation(vtx 1) error = %v", err)
	}
	if firstReg == nil || dupReg != nil {
		t.Fatalf("registrations at block 7 = %v / %v, want first only", firstReg, dupReg)
	}

	// blocks 8-10: empty; the accumulator still advances every block
	prev := snap7
	seen := map[burn.SortitionHash]bool{
		snap1.SortitionHash: true, snap2.SortitionHash: true,
		snap3.SortitionHash: true, snap4.SortitionHash: true,
		snap5.SortitionHash: true, snap6.SortitionHash: true,
		snap7.SortitionHash: true,
	}
	for i := 0; i < 3; i++ {
		snap := evaluate(t, p, prev)
		if snap.BlockHeight != prev.BlockHeight+1 {
			t.Fatalf("height = %d, want %d", snap.BlockHeight, prev.BlockHeight+1)
		}
		if seen[snap.SortitionHash] {
			t.Fatal("the sortition hash must change every block")
		}
		seen[snap.SortitionHash] = true
		prev = snap
	}
	if prev.NumSortitions != 2 {
		t.Fatalf("final NumSortitions = %d, want 2", prev.NumSortitions)
	}

	// the canonical tip tracks the appended chain
	tip, err := p.ChainTip()
	if err != nil {
		t.Fatalf("ChainTip() error = %v", err)
	}
	if tip.SortitionID != prev.SortitionID {
		t.Fatalf("tip = %s, want %s", tip.SortitionID, prev.SortitionID)
	}
}

func TestEvaluateSortitionUnknownParent(t *testing.T) {
	p := openTestProcessor(t)

	block := &burnchain.Block{
		Header: burnchain.BlockHeader{
			BlockHeight:     5,
			BlockHash:       burn.BurnchainHeaderHash{0x05},
			ParentBlockHash: burn.BurnchainHeaderHash{0x04},
		},
	}
	if _, err := p.EvaluateSortition(context.Background(), block); err == nil {
		t.Fatal("a block on an unprocessed parent must fail")
	}
}

func TestEvaluateSortitionCanceledContext(t *testing.T) {
	p := openTestProcessor(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tip, err := p.ChainTip()
	if err != nil {
		t.Fatalf("ChainTip() error = %v", err)
	}
	block := &burnchain.Block{Header: nextHeader(tip, 0)}
	if _, err := p.EvaluateSortition(ctx, block); err == nil {
		t.Fatal("a canceled context must abort evaluation")
	}
}
