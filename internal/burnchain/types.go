// Package burnchain models the external ledger whose transactions carry
// sortition operations: block headers, parsed transactions, and the
// per-chain address capability used to recognize burn outputs.
package burnchain

import (
	"bytes"
	"encoding/hex"

	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
)

// Address is an opaque burnchain address, compared by its raw bytes.
type Address struct {
	raw []byte
}

// NewAddress wraps raw address bytes.
func NewAddress(raw []byte) Address {
	out := make([]byte, len(raw))
	copy(out, raw)
	return Address{raw: out}
}

func (a Address) Bytes() []byte { return a.raw }

func (a Address) Equal(other Address) bool { return bytes.Equal(a.raw, other.raw) }

func (a Address) IsEmpty() bool { return len(a.raw) == 0 }

func (a Address) String() string { return hex.EncodeToString(a.raw) }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(b []byte) error {
	raw, err := hex.DecodeString(string(b))
	if err != nil {
		return err
	}
	a.raw = raw
	return nil
}

// AddressCodec is the per-burnchain address capability: parsing an address
// out of an output script and naming the designated burn address.
type AddressCodec interface {
	// ParseAddress extracts an address from an output script.
	ParseAddress(script []byte) (Address, error)
	// BurnBytes is the raw byte form of the designated burn address.
	BurnBytes() []byte
}

// TxInput is a transaction input reduced to the spender it represents.
type TxInput struct {
	// Address identifies the spending key set; empty when the input script
	// could not be attributed.
	Address Address
}

// TxOutput is a transaction output reduced to its recipient and amount.
type TxOutput struct {
	Address Address
	// Units is the amount paid, in the burnchain's base denomination.
	Units uint64
}

// Transaction is a burnchain transaction that carried the sortition wire
// magic: its opcode, the payload after magic and opcode, and the
// surrounding inputs and outputs.
type Transaction struct {
	Txid     burn.Txid
	Vtxindex uint32
	Opcode   byte
	// Data is the payload with the 2-byte magic and 1-byte opcode stripped.
	Data    []byte
	Inputs  []TxInput
	Outputs []TxOutput
}

// BlockHeader describes a burnchain block being processed.
type BlockHeader struct {
	BlockHeight     uint64
	BlockHash       burn.BurnchainHeaderHash
	ParentBlockHash burn.BurnchainHeaderHash
	NumTxs          uint64
	Timestamp       uint64
}

// Block is a burnchain block reduced to its sortition-relevant transactions,
// in native transaction order.
type Block struct {
	Header BlockHeader
	Txs    []Transaction
}
