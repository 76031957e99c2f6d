package sortition

import (
	"testing"
	"time"

	"filippo.io/edwards25519"
	"go.uber.org/zap"

	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn/ops"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burnchain"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/sortdb"
)

// vrfKey derives a distinct valid VRF public key from a one-byte seed.
func vrfKey(t *testing.T, seed byte) burn.VRFPublicKey {
	t.Helper()
	var sk [32]byte
	for i := range sk {
		sk[i] = seed
	}
	scalar, err := edwards25519.NewScalar().SetBytesWithClamping(sk[:])
	if err != nil {
		t.Fatalf("SetBytesWithClamping() error = %v", err)
	}
	point := new(edwards25519.Point).ScalarBaseMult(scalar)
	key, err := burn.NewVRFPublicKey(point.Bytes())
	if err != nil {
		t.Fatalf("NewVRFPublicKey() error = %v", err)
	}
	return key
}

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

// fakeCodec recognizes every script as an address of its own bytes and
// designates a fixed 20-byte burn address.
type fakeCodec struct{}

func (fakeCodec) ParseAddress(script []byte) (burnchain.Address, error) {
	return burnchain.NewAddress(script), nil
}

func (fakeCodec) BurnBytes() []byte { return make([]byte, 20) }

func burnOutput(units uint64) burnchain.TxOutput {
	return burnchain.TxOutput{Address: burnchain.NewAddress(make([]byte, 20)), Units: units}
}

func minerAddress() burnchain.Address {
	return burnchain.NewAddress([]byte("miner"))
}

func testTxid(b byte) burn.Txid {
	var t burn.Txid
	t[0] = b
	t[1] = 0xee
	return t
}

// keyRegisterTx builds a leader-key registration transaction.
func keyRegisterTx(txid burn.Txid, vtxindex uint32, ch burn.ConsensusHash, key burn.VRFPublicKey, payout burnchain.Address) burnchain.Transaction {
	data := make([]byte, 0, 52)
	data = append(data, ch.Bytes()...)
	data = append(data, key.Bytes()...)
	return burnchain.Transaction{
		Txid:     txid,
		Vtxindex: vtxindex,
		Opcode:   ops.LeaderKeyRegisterOpcode,
		Data:     data,
		Inputs:   []burnchain.TxInput{{Address: burnchain.NewAddress([]byte("registrant"))}},
		Outputs:  []burnchain.TxOutput{{Address: payout, Units: 100}},
	}
}

// blockCommitTx builds a block-commit transaction.
func blockCommitTx(
	txid burn.Txid,
	vtxindex uint32,
	candidate burn.BlockHeaderHash,
	seed burn.VRFSeed,
	parentPtr uint32, parentVtx uint16,
	keyPtr uint32, keyVtx uint16,
	burnFee uint64,
	spender burnchain.Address,
) burnchain.Transaction {
	data := make([]byte, 76)
	copy(data[0:32], candidate.Bytes())
	copy(data[32:64], seed.Bytes())
	data[64] = byte(parentPtr >> 24)
	data[65] = byte(parentPtr >> 16)
	data[66] = byte(parentPtr >> 8)
	data[67] = byte(parentPtr)
	data[68] = byte(parentVtx >> 8)
	data[69] = byte(parentVtx)
	data[70] = byte(keyPtr >> 24)
	data[71] = byte(keyPtr >> 16)
	data[72] = byte(keyPtr >> 8)
	data[73] = byte(keyPtr)
	data[74] = byte(keyVtx >> 8)
	data[75] = byte(keyVtx)
	return burnchain.Transaction{
		Txid:     txid,
		Vtxindex: vtxindex,
		Opcode:   ops.LeaderBlockCommitOpcode,
		Data:     data,
		Inputs:   []burnchain.TxInput{{Address: spender}},
		Outputs:  []burnchain.TxOutput{burnOutput(burnFee)},
	}
}

// userBurnTx builds a user-burn-support transaction.
func userBurnTx(
	txid burn.Txid,
	vtxindex uint32,
	ch burn.ConsensusHash,
	key burn.VRFPublicKey,
	candidate burn.BlockHeaderHash,
	burnFee uint64,
) burnchain.Transaction {
	data := make([]byte, 0, 72)
	data = append(data, ch.Bytes()...)
	data = append(data, key.Bytes()...)
	hash160 := candidate.ToHash160()
	data = append(data, hash160.Bytes()...)
	return burnchain.Transaction{
		Txid:     txid,
		Vtxindex: vtxindex,
		Opcode:   ops.UserBurnSupportOpcode,
		Data:     data,
		Inputs:   []burnchain.TxInput{{Address: burnchain.NewAddress([]byte("supporter"))}},
		Outputs:  []burnchain.TxOutput{burnOutput(burnFee)},
	}
}

type keyLoc struct {
	blockHeight uint64
	vtxindex    uint32
}

// fakeView is an in-memory ops.ChainStateView for transition tests.
type fakeView struct {
	freshHashes map[burn.ConsensusHash]bool
	keysByVRF   map[burn.VRFPublicKey]*ops.LeaderKeyRegisterOp
	keysByLoc   map[keyLoc]*ops.LeaderKeyRegisterOp
	commitsLoc  map[keyLoc]*ops.LeaderBlockCommitOp
	consumed    map[keyLoc]bool
}

func newFakeView() *fakeView {
	return &fakeView{
		freshHashes: map[burn.ConsensusHash]bool{},
		keysByVRF:   map[burn.VRFPublicKey]*ops.LeaderKeyRegisterOp{},
		keysByLoc:   map[keyLoc]*ops.LeaderKeyRegisterOp{},
		commitsLoc:  map[keyLoc]*ops.LeaderBlockCommitOp{},
		consumed:    map[keyLoc]bool{},
	}
}

func (v *fakeView) addKey(op *ops.LeaderKeyRegisterOp) {
	v.keysByVRF[op.PublicKey] = op
	v.keysByLoc[keyLoc{op.BlockHeight, op.Vtxindex}] = op
}

func (v *fakeView) IsFreshConsensusHash(blockHeight uint64, lifetime uint32, ch burn.ConsensusHash) (bool, error) {
	return v.freshHashes[ch], nil
}

func (v *fakeView) LeaderKeyByVRFKey(key burn.VRFPublicKey) (*ops.LeaderKeyRegisterOp, error) {
	return v.keysByVRF[key], nil
}

func (v *fakeView) LeaderKeyAtLocation(blockHeight uint64, vtxindex uint32) (*ops.LeaderKeyRegisterOp, error) {
	return v.keysByLoc[keyLoc{blockHeight, vtxindex}], nil
}

func (v *fakeView) BlockCommitAtLocation(blockHeight uint64, vtxindex uint32) (*ops.LeaderBlockCommitOp, error) {
	return v.commitsLoc[keyLoc{blockHeight, vtxindex}], nil
}

func (v *fakeView) IsLeaderKeyConsumed(keyBlockHeight uint64, keyVtxindex uint32) (bool, error) {
	return v.consumed[keyLoc{keyBlockHeight, keyVtxindex}], nil
}

// nopProcessorMetrics satisfies ProcessorMetrics for tests.
type nopProcessorMetrics struct{}

func (nopProcessorMetrics) ObserveEvaluate(err error, started time.Time)      {}
func (nopProcessorMetrics) ObserveSortition(won bool, accepted, rejected int) {}

// openTestProcessor opens a fresh database and processor over it.
func openTestProcessor(t *testing.T) *Processor {
	t.Helper()
	params := testParams()
	db, err := sortdb.Connect(t.TempDir(), params, zap.NewNop())
	if err != nil {
		t.Fatalf("sortdb.Connect() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	p, err := NewProcessor(db, params, fakeCodec{}, nopProcessorMetrics{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}
	return p
}
