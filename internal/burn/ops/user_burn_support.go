package ops

import (
	"bytes"

	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burnchain"
)

// UserBurnSupportOp is a third-party burn supporting a specific candidate
// block under a specific leader key. Its weight joins the matching commit's
// weight during winner selection.
type UserBurnSupportOp struct {
	ConsensusHash burn.ConsensusHash
	PublicKey     burn.VRFPublicKey

	// BlockHeaderHash160 commits to the supported candidate block hash.
	BlockHeaderHash160 burn.Hash160

	Memo []byte

	// BurnFee is the amount paid to the burn address.
	BurnFee uint64

	OpCommon
}

// userBurnSupportMinLen is the consensus hash, VRF public key, and block
// header commitment; the memo may be empty.
const userBurnSupportMinLen = 20 + 32 + 20

// ParseUserBurnSupport decodes a user-burn-support operation from a
// burnchain transaction.
//
// Wire format of the payload (magic and opcode already stripped):
//
//	0           20               52             72       N
//	|-----------|----------------|--------------|--------|
//	consensus hash  VRF public key  block hash160  memo
//
// The first output must pay the designated burn address; its amount becomes
// the operation's burn fee. A short payload, an invalid VRF public key, or
// a missing burn output is a parse failure, not a logical rejection.
func ParseUserBurnSupport(codec burnchain.AddressCodec, blockHeight uint64, blockHash burn.BurnchainHeaderHash, tx *burnchain.Transaction) (*UserBurnSupportOp, error) {
	if err := checkTxShape(tx, UserBurnSupportOpcode); err != nil {
		return nil, err
	}
	if !bytes.Equal(tx.Outputs[0].Address.Bytes(), codec.BurnBytes()) {
		return nil, ErrParse
	}
	if len(tx.Data) < userBurnSupportMinLen {
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
	hash160, err := burn.NewHash160FromBytes(tx.Data[52:72])
	if err != nil {
		return nil, ErrParse
	}
	memo := append([]byte(nil), tx.Data[72:]...)

	return &UserBurnSupportOp{
		ConsensusHash:      ch,
		PublicKey:          pubkey,
		BlockHeaderHash160: hash160,
		Memo:               memo,
		BurnFee:            tx.Outputs[0].Units,
		OpCommon: OpCommon{
			Op:             UserBurnSupportOpcode,
			Txid:           tx.Txid,
			Vtxindex:       tx.Vtxindex,
			BlockHeight:    blockHeight,
			BurnHeaderHash: blockHash,
		},
	}, nil
}

// Check validates the consensus hash first, then the leader key; the order
// is fixed and observable. The operation is deliberately not matched to a
// block commit here: the commit may not be known to be accepted yet, so the
// sortition algorithm resolves that cross-reference during winner
// selection.
func (op *UserBurnSupportOp) Check(params *burnchain.Params, view ChainStateView) (CheckResult, error) {
	fresh, err := view.IsFreshConsensusHash(op.BlockHeight, params.ConsensusHashLifetime, op.ConsensusHash)
	if err != nil {
		return UserBurnSupportOk, &DBError{Err: err}
	}
	if !fresh {
		return UserBurnSupportBadConsensusHash, nil
	}

	key, err := view.LeaderKeyByVRFKey(op.PublicKey)
	if err != nil {
		return UserBurnSupportOk, &DBError{Err: err}
	}
	if key == nil {
		return UserBurnSupportNoLeaderKey, nil
	}

	return UserBurnSupportOk, nil
}
