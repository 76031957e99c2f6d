package ops

import (
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burnchain"
)

// LeaderKeyRegisterOp registers the VRF public key a miner will use for
// later block commits, bound to a recent consensus hash.
type LeaderKeyRegisterOp struct {
	ConsensusHash burn.ConsensusHash
	PublicKey     burn.VRFPublicKey
	Memo          []byte

	// Address is the output the registrant paid to itself; a later block
	// commit must spend from this address to consume the key.
	Address burnchain.Address

	OpCommon
}

// leaderKeyRegisterMinLen is the consensus hash plus the VRF public key;
// the memo may be empty.
const leaderKeyRegisterMinLen = 20 + 32

// ParseLeaderKeyRegister decodes a leader-key registration from a burnchain
// transaction.
//
// Wire format of the payload (magic and opcode already stripped):
//
//	0           20                       52       N
//	|-----------|------------------------|--------|
//	consensus hash  proving public key      memo
func ParseLeaderKeyRegister(blockHeight uint64, blockHash burn.BurnchainHeaderHash, tx *burnchain.Transaction) (*LeaderKeyRegisterOp, error) {
	if err := checkTxShape(tx, LeaderKeyRegisterOpcode); err != nil {
		return nil, err
	}
	if len(tx.Data) < leaderKeyRegisterMinLen {
		return nil, ErrParse
	}

	ch, err := burn.NewConsensusHashFromBytes(tx.Data[0:20])
	if err != nil {
		return nil, ErrParse
	}
	pubkey, err := burn.NewVRFPublicKey(tx.Data[20:52])
	if err != nil {
		return nil, ErrParse
	}
	memo := append([]byte(nil), tx.Data[52:]...)

	return &LeaderKeyRegisterOp{
		ConsensusHash: ch,
		PublicKey:     pubkey,
		Memo:          memo,
		Address:       tx.Outputs[0].Address,
		OpCommon: OpCommon{
			Op:             LeaderKeyRegisterOpcode,
			Txid:           tx.Txid,
			Vtxindex:       tx.Vtxindex,
			BlockHeight:    blockHeight,
			BurnHeaderHash: blockHash,
		},
	}, nil
}

// Check rejects a registration whose VRF key already exists on this fork,
// or whose consensus hash is outside the freshness window.
func (op *LeaderKeyRegisterOp) Check(params *burnchain.Params, view ChainStateView) (CheckResult, error) {
	existing, err := view.LeaderKeyByVRFKey(op.PublicKey)
	if err != nil {
		return LeaderKeyOk, &DBError{Err: err}
	}
	if existing != nil {
		return LeaderKeyAlreadyRegistered, nil
	}

	fresh, err := view.IsFreshConsensusHash(op.BlockHeight, params.ConsensusHashLifetime, op.ConsensusHash)
	if err != nil {
		return LeaderKeyOk, &DBError{Err: err}
	}
	if !fresh {
		return LeaderKeyBadConsensusHash, nil
	}

	return LeaderKeyOk, nil
}
