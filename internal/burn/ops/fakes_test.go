package ops

import (
	"encoding/hex"
	"strings"

	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burnchain"
)

// Ed25519 base point, in canonical encoding; a valid VRF public key.
const testVRFKeyHex = "5866666666666666666666666666666666666666666666666666666666666666"

func mustHex(s string) []byte {
	raw, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return raw
}

func testVRFKey() burn.VRFPublicKey {
	k, err := burn.NewVRFPublicKeyFromHex(testVRFKeyHex)
	if err != nil {
		panic(err)
	}
	return k
}

func testConsensusHash(b byte) burn.ConsensusHash {
	ch, err := burn.NewConsensusHashFromHex(strings.Repeat(hex.EncodeToString([]byte{b}), 20))
	if err != nil {
		panic(err)
	}
	return ch
}

func testTxid(b byte) burn.Txid {
	t, err := burn.NewTxidFromHex(strings.Repeat(hex.EncodeToString([]byte{b}), 32))
	if err != nil {
		panic(err)
	}
	return t
}

func testParams() *burnchain.Params {
	return &burnchain.Params{
		ChainName:             "bitcoin",
		NetworkName:           "regtest",
		FirstBlockHeight:      0,
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

type keyLoc struct {
	blockHeight uint64
	vtxindex    uint32
}

// fakeView is an in-memory ChainStateView with per-method error injection.
type fakeView struct {
	freshHashes map[burn.ConsensusHash]bool
	keysByVRF   map[burn.VRFPublicKey]*LeaderKeyRegisterOp
	keysByLoc   map[keyLoc]*LeaderKeyRegisterOp
	commitsLoc  map[keyLoc]*LeaderBlockCommitOp
	consumed    map[keyLoc]bool

	freshErr    error
	keyErr      error
	commitErr   error
	consumedErr error
}

func newFakeView() *fakeView {
	return &fakeView{
		freshHashes: map[burn.ConsensusHash]bool{},
		keysByVRF:   map[burn.VRFPublicKey]*LeaderKeyRegisterOp{},
		keysByLoc:   map[keyLoc]*LeaderKeyRegisterOp{},
		commitsLoc:  map[keyLoc]*LeaderBlockCommitOp{},
		consumed:    map[keyLoc]bool{},
	}
}

func (v *fakeView) addKey(op *LeaderKeyRegisterOp) {
	v.keysByVRF[op.PublicKey] = op
	v.keysByLoc[keyLoc{op.BlockHeight, op.Vtxindex}] = op
}

func (v *fakeView) addCommit(op *LeaderBlockCommitOp) {
	v.commitsLoc[keyLoc{op.BlockHeight, op.Vtxindex}] = op
}

func (v *fakeView) IsFreshConsensusHash(blockHeight uint64, lifetime uint32, ch burn.ConsensusHash) (bool, error) {
	if v.freshErr != nil {
		return false, v.freshErr
	}
	return v.freshHashes[ch], nil
}

func (v *fakeView) LeaderKeyByVRFKey(key burn.VRFPublicKey) (*LeaderKeyRegisterOp, error) {
	if v.keyErr != nil {
		return nil, v.keyErr
	}
	return v.keysByVRF[key], nil
}

func (v *fakeView) LeaderKeyAtLocation(blockHeight uint64, vtxindex uint32) (*LeaderKeyRegisterOp, error) {
	if v.keyErr != nil {
		return nil, v.keyErr
	}
	return v.keysByLoc[keyLoc{blockHeight, vtxindex}], nil
}

func (v *fakeView) BlockCommitAtLocation(blockHeight uint64, vtxindex uint32) (*LeaderBlockCommitOp, error) {
	if v.commitErr != nil {
		return nil, v.commitErr
	}
	return v.commitsLoc[keyLoc{blockHeight, vtxindex}], nil
}

func (v *fakeView) IsLeaderKeyConsumed(keyBlockHeight uint64, keyVtxindex uint32) (bool, error) {
	if v.consumedErr != nil {
		return false, v.consumedErr
	}
	return v.consumed[keyLoc{keyBlockHeight, keyVtxindex}], nil
}
