package burn

import (
	"crypto/sha256"
	"encoding/binary"

	"golang.org/x/crypto/ripemd160"
)

// systemForkSetVersion tags the fork-rule set every consensus hash commits to.
var systemForkSetVersion = [4]byte{23, 0, 0, 0}

// PoxID is the fork-identifier bit vector distinguishing reward-cycle fork
// choices. Its serialized form is one '1' or '0' character per bit.
type PoxID struct {
	bits []bool
}

// NewPoxID builds a PoxID from explicit bits.
func NewPoxID(bits []bool) PoxID {
	out := make([]bool, len(bits))
	copy(out, bits)
	return PoxID{bits: out}
}

// InitialPoxID is the fork identifier before any reward-cycle choice: a
// single set bit.
func InitialPoxID() PoxID {
	return PoxID{bits: []bool{true}}
}

func (p PoxID) String() string {
	buf := make([]byte, len(p.bits))
	for i, b := range p.bits {
		if b {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	return string(buf)
}

// ConsensusLookup reads committed consensus hashes from a specific fork.
// A nil result means the row does not exist yet.
type ConsensusLookup interface {
	GetConsensusAt(height uint64) (*ConsensusHash, error)
}

// ConsensusHashFromOps computes the consensus hash for a block from its burn
// header hash, ops hash, the cumulative burn so far, the fork identifier, and
// the geometric series of previous consensus hashes (most recent first).
// The digest is SHA256 over the fixed-order fields, then RIPEMD160 over that
// digest to produce the 20-byte hash.
func ConsensusHashFromOps(
	burnHeaderHash BurnchainHeaderHash,
	opsHash OpsHash,
	totalBurn uint64,
	prevConsensusHashes []ConsensusHash,
	poxID PoxID,
) ConsensusHash {
	var burnBytes [8]byte
	binary.BigEndian.PutUint64(burnBytes[:], totalBurn)

	d := sha256.New()
	d.Write(systemForkSetVersion[:])
	d.Write(burnHeaderHash[:])
	d.Write(opsHash[:])
	d.Write(burnBytes[:])
	d.Write([]byte(poxID.String()))
	for _, ch := range prevConsensusHashes {
		d.Write(ch[:])
	}
	sum := d.Sum(nil)

	r := ripemd160.New()
	r.Write(sum)
	var out ConsensusHash
	copy(out[:], r.Sum(nil))
	return out
}

// ConsensusHashFromData hashes raw bytes into a consensus hash with the same
// double-hash construction.
func ConsensusHashFromData(data []byte) ConsensusHash {
	sum := sha256.Sum256(data)
	r := ripemd160.New()
	r.Write(sum[:])
	var out ConsensusHash
	copy(out[:], r.Sum(nil))
	return out
}

// GetPrevConsensusHashes returns the geometric ancestor series for the next
// consensus hash at blockHeight: the consensus hashes at heights
// blockHeight - (2^i - 1) for i = 0, 1, 2, ... while that height stays at or
// above firstBlockHeight. Rows that are not yet computed default to the
// empty consensus hash. More than 64 iterations cannot happen for any
// feasible chain and aborts the process.
func GetPrevConsensusHashes(lookup ConsensusLookup, blockHeight, firstBlockHeight uint64) ([]ConsensusHash, error) {
	var prev []ConsensusHash
	i := uint(0)
	for i < 64 && blockHeight-((uint64(1)<<i)-1) >= firstBlockHeight {
		prevHeight := blockHeight - ((uint64(1) << i) - 1)
		ch, err := lookup.GetConsensusAt(prevHeight)
		if err != nil {
			return nil, err
		}
		if ch == nil {
			prev = append(prev, ConsensusHash{})
		} else {
			prev = append(prev, *ch)
		}
		i++

		if blockHeight < (uint64(1)<<i)-1 {
			break
		}
	}
	if i == 64 {
		fatalf("numeric overflow calculating consensus hash ancestors at height %d from genesis height %d", blockHeight, firstBlockHeight)
	}
	return prev, nil
}

// ConsensusHashFromParentBlockData fetches the geometric ancestor series
// anchored at the parent block height and computes the new consensus hash.
func ConsensusHashFromParentBlockData(
	lookup ConsensusLookup,
	opsHash OpsHash,
	parentBlockHeight uint64,
	firstBlockHeight uint64,
	thisBlockHash BurnchainHeaderHash,
	totalBurn uint64,
	poxID PoxID,
) (ConsensusHash, error) {
	prev, err := GetPrevConsensusHashes(lookup, parentBlockHeight, firstBlockHeight)
	if err != nil {
		return ConsensusHash{}, err
	}
	return ConsensusHashFromOps(thisBlockHash, opsHash, totalBurn, prev, poxID), nil
}
