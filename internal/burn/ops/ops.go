// Package ops decodes raw burnchain-transaction payloads into typed
// sortition operations and validates them against read-only chain state.
//
// Two failure taxonomies are kept strictly apart: malformed transactions
// fail to parse with ErrParse/ErrInvalidInput and are dropped, while
// structurally valid operations that fail contextual checks are rejected
// with a CheckResult value, never an error.
package ops

import (
	"errors"
	"fmt"

	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burnchain"
)

// Operation opcodes, as encoded on the burnchain wire after the magic bytes.
const (
	LeaderBlockCommitOpcode byte = '['
	LeaderKeyRegisterOpcode byte = '^'
	UserBurnSupportOpcode   byte = '_'
	StackStxOpcode          byte = 'x'
	PreStxOpcode            byte = 'p'
	TransferStxOpcode       byte = '$'
)

var (
	// ErrParse means the transaction payload was malformed.
	ErrParse = errors.New("failed to parse transaction into a sortition operation")
	// ErrInvalidInput means the transaction shape was unusable (wrong
	// opcode, no inputs, no outputs).
	ErrInvalidInput = errors.New("invalid transaction input")
)

// DBError wraps a storage failure encountered during a check. It is
// retryable by the caller's transaction policy, unlike a CheckResult.
type DBError struct {
	Err error
}

func (e *DBError) Error() string { return fmt.Sprintf("chain state lookup: %v", e.Err) }

func (e *DBError) Unwrap() error { return e.Err }

// CheckResult is the outcome of contextually validating an operation.
// Rejection is a value, not an error: it is an expected, common outcome
// that callers branch on.
type CheckResult int

const (
	BlockCommitOk CheckResult = iota
	BlockCommitPredatesGenesis
	BlockCommitBadEpoch
	BlockCommitNoLeaderKey
	BlockCommitLeaderKeyAlreadyUsed
	BlockCommitNoParent
	BlockCommitBadInput

	LeaderKeyOk
	LeaderKeyAlreadyRegistered
	LeaderKeyBadConsensusHash

	UserBurnSupportOk
	UserBurnSupportBadConsensusHash
	UserBurnSupportNoLeaderKey
)

// Ok reports whether the operation was accepted.
func (r CheckResult) Ok() bool {
	return r == BlockCommitOk || r == LeaderKeyOk || r == UserBurnSupportOk
}

func (r CheckResult) String() string {
	switch r {
	case BlockCommitOk:
		return "block commit OK"
	case BlockCommitPredatesGenesis:
		return "block commit predates genesis block"
	case BlockCommitBadEpoch:
		return "block commit points at a non-earlier block"
	case BlockCommitNoLeaderKey:
		return "block commit has no matching leader key"
	case BlockCommitLeaderKeyAlreadyUsed:
		return "block commit leader key already used"
	case BlockCommitNoParent:
		return "block commit parent does not exist"
	case BlockCommitBadInput:
		return "block commit input does not match leader key output"
	case LeaderKeyOk:
		return "leader key OK"
	case LeaderKeyAlreadyRegistered:
		return "leader key has already been registered"
	case LeaderKeyBadConsensusHash:
		return "leader key has an invalid consensus hash"
	case UserBurnSupportOk:
		return "user burn support OK"
	case UserBurnSupportBadConsensusHash:
		return "user burn support has an invalid consensus hash"
	case UserBurnSupportNoLeaderKey:
		return "user burn support does not match a registered leader key"
	default:
		return fmt.Sprintf("check result %d", int(r))
	}
}

// ChainStateView is the read-only chain-state lookup collaborator checks
// run against. Implementations must be serializable with the caller's own
// in-progress writes (read-your-writes) but never mutate state, so checks
// can run against speculative forks.
type ChainStateView interface {
	// IsFreshConsensusHash reports whether ch matches a consensus hash
	// within lifetime blocks of blockHeight on this fork.
	IsFreshConsensusHash(blockHeight uint64, lifetime uint32, ch burn.ConsensusHash) (bool, error)

	// LeaderKeyByVRFKey returns the accepted registration carrying the
	// given VRF public key, or nil if none exists on this fork.
	LeaderKeyByVRFKey(key burn.VRFPublicKey) (*LeaderKeyRegisterOp, error)

	// LeaderKeyAtLocation returns the accepted registration at a block
	// height and vtxindex, or nil.
	LeaderKeyAtLocation(blockHeight uint64, vtxindex uint32) (*LeaderKeyRegisterOp, error)

	// BlockCommitAtLocation returns the accepted block commit at a block
	// height and vtxindex, or nil.
	BlockCommitAtLocation(blockHeight uint64, vtxindex uint32) (*LeaderBlockCommitOp, error)

	// IsLeaderKeyConsumed reports whether an earlier accepted commit on
	// this fork already spent the key registered at the given location.
	IsLeaderKeyConsumed(keyBlockHeight uint64, keyVtxindex uint32) (bool, error)
}

// OpCommon carries the fields shared by every operation. They are assigned
// by the sortition engine from the enclosing burnchain block, not by the
// wire parser.
type OpCommon struct {
	Op             byte
	Txid           burn.Txid
	Vtxindex       uint32
	BlockHeight    uint64
	BurnHeaderHash burn.BurnchainHeaderHash
}

// Common exposes the shared fields through the Operation interface.
func (c *OpCommon) Common() *OpCommon { return c }

// Operation is one typed sortition operation parsed from a burnchain
// transaction.
type Operation interface {
	Common() *OpCommon
	Check(params *burnchain.Params, view ChainStateView) (CheckResult, error)
}

// checkTxShape applies the guards every parser starts with.
func checkTxShape(tx *burnchain.Transaction, opcode byte) error {
	if len(tx.Inputs) == 0 || len(tx.Outputs) == 0 {
		return ErrInvalidInput
	}
	if tx.Opcode != opcode {
		return ErrInvalidInput
	}
	return nil
}
