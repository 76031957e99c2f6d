package ops

import (
	"bytes"
	"encoding/binary"

	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burnchain"
)

// LeaderBlockCommitOp stakes burned value on a candidate chain block. The
// commit names the key registration it consumes and the parent commit it
// builds on by their burnchain coordinates.
type LeaderBlockCommitOp struct {
	// BlockHeaderHash is the candidate chain block being committed to.
	BlockHeaderHash burn.BlockHeaderHash

	// NewSeed is the VRF seed that will feed the next sortition if this
	// commit wins.
	NewSeed burn.VRFSeed

	// ParentBlockPtr/ParentVtxindex locate the parent block commit.
	// Both zero means the commit builds directly on genesis.
	ParentBlockPtr uint32
	ParentVtxindex uint16

	// KeyBlockPtr/KeyVtxindex locate the leader key registration consumed
	// by this commit.
	KeyBlockPtr uint32
	KeyVtxindex uint16

	Memo []byte

	// BurnFee is the amount paid to the burn address; it is this commit's
	// lottery weight.
	BurnFee uint64

	// Input identifies the spender, which must match the consumed leader
	// key's registered output.
	Input burnchain.Address

	OpCommon
}

// Fixed payload layout: candidate hash, new seed, parent pointer, parent
// vtxindex, key pointer, key vtxindex; the memo follows.
const leaderBlockCommitMinLen = 32 + 32 + 4 + 2 + 4 + 2

// ParseLeaderBlockCommit decodes a block commit from a burnchain
// transaction. The first output must pay the designated burn address; its
// amount becomes the commit's burn fee.
func ParseLeaderBlockCommit(codec burnchain.AddressCodec, blockHeight uint64, blockHash burn.BurnchainHeaderHash, tx *burnchain.Transaction) (*LeaderBlockCommitOp, error) {
	if err := checkTxShape(tx, LeaderBlockCommitOpcode); err != nil {
		return nil, err
	}
	if !bytes.Equal(tx.Outputs[0].Address.Bytes(), codec.BurnBytes()) {
		return nil, ErrParse
	}
	if len(tx.Data) < leaderBlockCommitMinLen {
		return nil, ErrParse
	}

	blockHeaderHash, err := burn.NewBlockHeaderHashFromBytes(tx.Data[0:32])
	if err != nil {
		return nil, ErrParse
	}
	newSeed, err := burn.NewVRFSeedFromBytes(tx.Data[32:64])
	if err != nil {
		return nil, ErrParse
	}

	return &LeaderBlockCommitOp{
		BlockHeaderHash: blockHeaderHash,
		NewSeed:         newSeed,
		ParentBlockPtr:  binary.BigEndian.Uint32(tx.Data[64:68]),
		ParentVtxindex:  binary.BigEndian.Uint16(tx.Data[68:70]),
		KeyBlockPtr:     binary.BigEndian.Uint32(tx.Data[70:74]),
		KeyVtxindex:     binary.BigEndian.Uint16(tx.Data[74:76]),
		Memo:            append([]byte(nil), tx.Data[76:]...),
		BurnFee:         tx.Outputs[0].Units,
		Input:           tx.Inputs[0].Address,
		OpCommon: OpCommon{
			Op:             LeaderBlockCommitOpcode,
			Txid:           tx.Txid,
			Vtxindex:       tx.Vtxindex,
			BlockHeight:    blockHeight,
			BurnHeaderHash: blockHash,
		},
	}, nil
}

// IsGenesisParent reports whether the commit builds directly on the genesis
// snapshot rather than a prior commit.
func (op *LeaderBlockCommitOp) IsGenesisParent() bool {
	return op.ParentBlockPtr == 0 && op.ParentVtxindex == 0
}

// Check validates a block commit against chain state: it must not predate
// genesis, must point strictly backwards, its parent commit must exist, and
// its leader key must exist, be unconsumed, and match the commit's input.
func (op *LeaderBlockCommitOp) Check(params *burnchain.Params, view ChainStateView) (CheckResult, error) {
	if op.BlockHeight < params.FirstBlockHeight {
		return BlockCommitPredatesGenesis, nil
	}

	if uint64(op.KeyBlockPtr) >= op.BlockHeight {
		return BlockCommitBadEpoch, nil
	}
	if !op.IsGenesisParent() && uint64(op.ParentBlockPtr) >= op.BlockHeight {
		return BlockCommitBadEpoch, nil
	}

	if !op.IsGenesisParent() {
		parent, err := view.BlockCommitAtLocation(uint64(op.ParentBlockPtr), uint32(op.ParentVtxindex))
		if err != nil {
			return BlockCommitOk, &DBError{Err: err}
		}
		if parent == nil {
			return BlockCommitNoParent, nil
		}
	}

	key, err := view.LeaderKeyAtLocation(uint64(op.KeyBlockPtr), uint32(op.KeyVtxindex))
	if err != nil {
		return BlockCommitOk, &DBError{Err: err}
	}
	if key == nil {
		return BlockCommitNoLeaderKey, nil
	}

	consumed, err := view.IsLeaderKeyConsumed(uint64(op.KeyBlockPtr), uint32(op.KeyVtxindex))
	if err != nil {
		return BlockCommitOk, &DBError{Err: err}
	}
	if consumed {
		return BlockCommitLeaderKeyAlreadyUsed, nil
	}

	if !op.Input.Equal(key.Address) {
		return BlockCommitBadInput, nil
	}

	return BlockCommitOk, nil
}
