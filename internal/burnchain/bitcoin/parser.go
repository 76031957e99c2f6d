package bitcoin

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burnchain"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/pkg/safe"
	"go.uber.org/zap"
)

var errNotSortitionTx = errors.New("not a sortition transaction")

// Parser extracts sortition-bearing transactions from Bitcoin blocks. A
// transaction qualifies when its first output is an OP_RETURN whose data
// starts with the configured magic bytes.
type Parser struct {
	codec  *Codec
	magic  [2]byte
	logger *zap.Logger
}

// NewParser builds a Parser for one network and wire magic.
func NewParser(codec *Codec, magic [2]byte, logger *zap.Logger) *Parser {
	return &Parser{
		codec:  codec,
		magic:  magic,
		logger: logger.Named("bitcoinParser"),
	}
}

// ParseBlock reduces a Bitcoin block to its sortition-relevant
// transactions, preserving native transaction order. Transactions that do
// not carry the magic are skipped silently; malformed candidates are
// logged and skipped.
func (p *Parser) ParseBlock(height uint64, block *wire.MsgBlock) *burnchain.Block {
	blockHash := burn.BurnchainHeaderHashFromChainHash(block.BlockHash())
	header := burnchain.BlockHeader{
		BlockHeight:     height,
		BlockHash:       blockHash,
		ParentBlockHash: burn.BurnchainHeaderHashFromChainHash(block.Header.PrevBlock),
		NumTxs:          uint64(len(block.Transactions)),
		Timestamp:       uint64(block.Header.Timestamp.Unix()),
	}

	txs := make([]burnchain.Transaction, 0)
	for i, msgTx := range block.Transactions {
		vtxindex, err := safe.Uint32(i)
		if err != nil {
			p.logger.Warn("tx index overflow, skipping rest of block", zap.Uint64("height", height))
			break
		}
		tx, err := p.ParseTx(msgTx, vtxindex)
		if err != nil {
			if !errors.Is(err, errNotSortitionTx) {
				p.logger.Debug("skipping malformed candidate tx",
					zap.Uint64("height", height),
					zap.Uint32("vtxindex", vtxindex),
					zap.Error(err),
				)
			}
			continue
		}
		txs = append(txs, *tx)
	}

	return &burnchain.Block{Header: header, Txs: txs}
}

// ParseTx converts one Bitcoin transaction into the burnchain model. The
// data output must be the first output; payload outputs follow it.
func (p *Parser) ParseTx(msgTx *wire.MsgTx, vtxindex uint32) (*burnchain.Transaction, error) {
	if len(msgTx.TxOut) == 0 {
		return nil, errNotSortitionTx
	}

	data, err := nullDataPayload(msgTx.TxOut[0].PkScript)
	if err != nil {
		return nil, errNotSortitionTx
	}
	if len(data) < 3 || data[0] != p.magic[0] || data[1] != p.magic[1] {
		return nil, errNotSortitionTx
	}
	opcode := data[2]
	payload := append([]byte(nil), data[3:]...)

	outputs := make([]burnchain.TxOutput, 0, len(msgTx.TxOut)-1)
	for _, out := range msgTx.TxOut[1:] {
		addr, err := p.codec.ParseAddress(out.PkScript)
		if err != nil {
			// non-standard output; irrelevant to the operation
			continue
		}
		units, err := safe.Uint64(out.Value)
		if err != nil {
			return nil, fmt.Errorf("output value %d: %w", out.Value, err)
		}
		outputs = append(outputs, burnchain.TxOutput{Address: addr, Units: units})
	}

	inputs := make([]burnchain.TxInput, 0, len(msgTx.TxIn))
	for _, in := range msgTx.TxIn {
		inputs = append(inputs, burnchain.TxInput{Address: spenderAddress(in.SignatureScript)})
	}

	return &burnchain.Transaction{
		Txid:     burn.TxidFromChainHash(msgTx.TxHash()),
		Vtxindex: vtxindex,
		Opcode:   opcode,
		Data:     payload,
		Inputs:   inputs,
		Outputs:  outputs,
	}, nil
}

// nullDataPayload returns the data pushed by an OP_RETURN script.
func nullDataPayload(script []byte) ([]byte, error) {
	if txscript.GetScriptClass(script) != txscript.NullDataTy {
		return nil, errors.New("not a null-data script")
	}
	pushes, err := txscript.PushedData(script)
	if err != nil {
		return nil, err
	}
	if len(pushes) == 0 || len(pushes[0]) == 0 {
		return nil, errors.New("empty null-data payload")
	}
	return pushes[0], nil
}

// spenderAddress attributes a pay-to-pubkey-hash input to the hash160 of
// the public key in its signature script. Inputs that cannot be attributed
// get an empty address, which never matches a registered key output.
func spenderAddress(sigScript []byte) burnchain.Address {
	pushes, err := txscript.PushedData(sigScript)
	if err != nil || len(pushes) == 0 {
		return burnchain.Address{}
	}
	last := pushes[len(pushes)-1]
	if len(last) != 33 && len(last) != 65 {
		return burnchain.Address{}
	}
	return burnchain.NewAddress(btcutil.Hash160(last))
}

// BuildNullDataScript assembles the OP_RETURN script for a sortition
// payload; used by tests and tooling.
func BuildNullDataScript(magic [2]byte, opcode byte, payload []byte) ([]byte, error) {
	data := make([]byte, 0, 3+len(payload))
	data = append(data, magic[0], magic[1], opcode)
	data = append(data, payload...)
	return txscript.NullDataScript(data)
}
