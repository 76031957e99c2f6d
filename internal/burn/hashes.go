// Package burn defines the consensus-critical primitives of the
// proof-of-burn sortition engine: fixed-size hash newtypes, the rolling
// sortition hash, the consensus-hash chain, and block snapshots.
package burn

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ConsensusHash is a 20-byte fingerprint summarizing a fork's operation
// history via a sparse ancestor chain.
type ConsensusHash [20]byte

// BlockHeaderHash identifies a candidate chain block (32 bytes).
type BlockHeaderHash [32]byte

// BurnchainHeaderHash identifies a burnchain block (32 bytes, big-endian
// display order, i.e. the reverse of Bitcoin's internal byte order).
type BurnchainHeaderHash [32]byte

// Txid is a burnchain transaction ID in big-endian display order.
type Txid [32]byte

// OpsHash is the SHA256 chain over the ordered transaction IDs accepted
// in a burnchain block.
type OpsHash [32]byte

// Hash160 is RIPEMD160(SHA256(data)), a 20-byte commitment.
type Hash160 [20]byte

// TrieHash is the content-addressed root of the materialized snapshot view.
type TrieHash [32]byte

func decodeFixedHex(s string, dst []byte) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("expected %d hex-encoded bytes, got %d", len(dst), len(raw))
	}
	copy(dst, raw)
	return nil
}

func copyFixed(dst, src []byte) error {
	if len(src) != len(dst) {
		return fmt.Errorf("expected %d bytes, got %d", len(dst), len(src))
	}
	copy(dst, src)
	return nil
}

// NewConsensusHashFromHex decodes a 40-character hex string.
func NewConsensusHashFromHex(s string) (ConsensusHash, error) {
	var h ConsensusHash
	err := decodeFixedHex(s, h[:])
	return h, err
}

// NewConsensusHashFromBytes copies a 20-byte slice.
func NewConsensusHashFromBytes(b []byte) (ConsensusHash, error) {
	var h ConsensusHash
	err := copyFixed(h[:], b)
	return h, err
}

func (h ConsensusHash) String() string { return hex.EncodeToString(h[:]) }

// Bytes returns a view of the raw hash bytes.
func (h ConsensusHash) Bytes() []byte { return h[:] }

// IsZero reports whether the hash is the empty consensus hash.
func (h ConsensusHash) IsZero() bool { return h == ConsensusHash{} }

func (h ConsensusHash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *ConsensusHash) UnmarshalText(b []byte) error { return decodeFixedHex(string(b), h[:]) }

// NewBlockHeaderHashFromHex decodes a 64-character hex string.
func NewBlockHeaderHashFromHex(s string) (BlockHeaderHash, error) {
	var h BlockHeaderHash
	err := decodeFixedHex(s, h[:])
	return h, err
}

// NewBlockHeaderHashFromBytes copies a 32-byte slice.
func NewBlockHeaderHashFromBytes(b []byte) (BlockHeaderHash, error) {
	var h BlockHeaderHash
	err := copyFixed(h[:], b)
	return h, err
}

func (h BlockHeaderHash) String() string { return hex.EncodeToString(h[:]) }

func (h BlockHeaderHash) Bytes() []byte { return h[:] }

func (h BlockHeaderHash) IsZero() bool { return h == BlockHeaderHash{} }

func (h BlockHeaderHash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *BlockHeaderHash) UnmarshalText(b []byte) error { return decodeFixedHex(string(b), h[:]) }

// NewBurnchainHeaderHashFromHex decodes a 64-character hex string.
func NewBurnchainHeaderHashFromHex(s string) (BurnchainHeaderHash, error) {
	var h BurnchainHeaderHash
	err := decodeFixedHex(s, h[:])
	return h, err
}

// NewBurnchainHeaderHashFromBytes copies a 32-byte slice.
func NewBurnchainHeaderHashFromBytes(b []byte) (BurnchainHeaderHash, error) {
	var h BurnchainHeaderHash
	err := copyFixed(h[:], b)
	return h, err
}

// BurnchainHeaderHashFromChainHash converts a Bitcoin block hash,
// reversing from Bitcoin's little-endian internal order to display order.
func BurnchainHeaderHashFromChainHash(ch chainhash.Hash) BurnchainHeaderHash {
	var h BurnchainHeaderHash
	for i := 0; i < chainhash.HashSize; i++ {
		h[i] = ch[chainhash.HashSize-1-i]
	}
	return h
}

func (h BurnchainHeaderHash) String() string { return hex.EncodeToString(h[:]) }

func (h BurnchainHeaderHash) Bytes() []byte { return h[:] }

func (h BurnchainHeaderHash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *BurnchainHeaderHash) UnmarshalText(b []byte) error { return decodeFixedHex(string(b), h[:]) }

// NewTxidFromHex decodes a 64-character hex string.
func NewTxidFromHex(s string) (Txid, error) {
	var t Txid
	err := decodeFixedHex(s, t[:])
	return t, err
}

// TxidFromChainHash converts a Bitcoin transaction hash, reversing from
// Bitcoin's little-endian internal order to display order.
func TxidFromChainHash(ch chainhash.Hash) Txid {
	var t Txid
	for i := 0; i < chainhash.HashSize; i++ {
		t[i] = ch[chainhash.HashSize-1-i]
	}
	return t
}

func (t Txid) String() string { return hex.EncodeToString(t[:]) }

func (t Txid) Bytes() []byte { return t[:] }

func (t Txid) IsZero() bool { return t == Txid{} }

func (t Txid) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Txid) UnmarshalText(b []byte) error { return decodeFixedHex(string(b), t[:]) }

// NewOpsHashFromBytes copies a 32-byte slice.
func NewOpsHashFromBytes(b []byte) (OpsHash, error) {
	var h OpsHash
	err := copyFixed(h[:], b)
	return h, err
}

func (h OpsHash) String() string { return hex.EncodeToString(h[:]) }

func (h OpsHash) Bytes() []byte { return h[:] }

func (h OpsHash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *OpsHash) UnmarshalText(b []byte) error { return decodeFixedHex(string(b), h[:]) }

// NewHash160FromBytes copies a 20-byte slice.
func NewHash160FromBytes(b []byte) (Hash160, error) {
	var h Hash160
	err := copyFixed(h[:], b)
	return h, err
}

func (h Hash160) String() string { return hex.EncodeToString(h[:]) }

func (h Hash160) Bytes() []byte { return h[:] }

func (h Hash160) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Hash160) UnmarshalText(b []byte) error { return decodeFixedHex(string(b), h[:]) }

func (h TrieHash) String() string { return hex.EncodeToString(h[:]) }

func (h TrieHash) Bytes() []byte { return h[:] }

func (h TrieHash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *TrieHash) UnmarshalText(b []byte) error { return decodeFixedHex(string(b), h[:]) }
