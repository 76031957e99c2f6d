package burn

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/chacha20"
)

// SortitionHash is the rolling accumulator of burnchain randomness. It is
// advanced once per burnchain block with the block's header hash, and again
// with the winner's VRF seed whenever a sortition occurs.
type SortitionHash [32]byte

// InitialSortitionHash is the accumulator value before the first burnchain
// block: all zeros.
func InitialSortitionHash() SortitionHash { return SortitionHash{} }

// NewSortitionHashFromHex decodes a 64-character hex string.
func NewSortitionHashFromHex(s string) (SortitionHash, error) {
	var h SortitionHash
	err := decodeFixedHex(s, h[:])
	return h, err
}

func (h SortitionHash) String() string { return hex.EncodeToString(h[:]) }

func (h SortitionHash) Bytes() []byte { return h[:] }

func (h SortitionHash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *SortitionHash) UnmarshalText(b []byte) error { return decodeFixedHex(string(b), h[:]) }

// MixBurnHeader folds a burnchain block header into the accumulator:
// SHA256(prev || header_hash). Applied once per burnchain block whether or
// not a sortition occurs, so randomness always advances.
func (h SortitionHash) MixBurnHeader(burnHeaderHash BurnchainHeaderHash) SortitionHash {
	d := sha256.New()
	d.Write(h[:])
	d.Write(burnHeaderHash[:])
	var out SortitionHash
	copy(out[:], d.Sum(nil))
	return out
}

// MixVRFSeed folds the winning VRF seed into the accumulator:
// SHA256(prev || seed). Applied only when a sortition chose a winner, tying
// the next block's randomness to who won this one.
func (h SortitionHash) MixVRFSeed(seed VRFSeed) SortitionHash {
	d := sha256.New()
	d.Write(h[:])
	d.Write(seed[:])
	var out SortitionHash
	copy(out[:], d.Sum(nil))
	return out
}

// ToUint256 interprets the 32 bytes as four little-endian 64-bit limbs,
// least-significant limb first.
func (h SortitionHash) ToUint256() *uint256.Int {
	z := new(uint256.Int)
	for i := 0; i < 4; i++ {
		z[i] = binary.LittleEndian.Uint64(h[8*i : 8*i+8])
	}
	return z
}

// ChooseTwo deterministically derives two distinct indices in [0, max) by
// seeding a ChaCha20 keystream with the hash value. The first index is drawn
// uniformly from [0, max), the second from [0, max-1); if the second
// collides with the first it is substituted with max-1 rather than redrawn.
// The substitution rule is consensus-fixed and must not be altered.
// When max < 2, the indices 0..max are returned verbatim.
func (h SortitionHash) ChooseTwo(max uint32) []uint32 {
	if max < 2 {
		out := make([]uint32, 0, max)
		for i := uint32(0); i < max; i++ {
			out = append(out, i)
		}
		return out
	}

	s := newSeededStream(h)
	first := s.uniform(max)
	second := s.uniform(max - 1)
	if second == first {
		second = max - 1
	}
	return []uint32{first, second}
}

// seededStream yields deterministic 32-bit draws from a ChaCha20 keystream
// keyed with a sortition hash and an all-zero nonce.
type seededStream struct {
	cipher *chacha20.Cipher
}

func newSeededStream(seed SortitionHash) *seededStream {
	nonce := make([]byte, chacha20.NonceSize)
	c, err := chacha20.NewUnauthenticatedCipher(seed[:], nonce)
	if err != nil {
		// only possible with wrong key/nonce sizes, which are fixed here
		panic(err)
	}
	return &seededStream{cipher: c}
}

func (s *seededStream) next() uint32 {
	var buf [4]byte
	s.cipher.XORKeyStream(buf[:], buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

// uniform draws from [0, max) without modulo bias by rejecting the
// non-uniform low range of the 32-bit space.
func (s *seededStream) uniform(max uint32) uint32 {
	thresh := -max % max
	for {
		v := s.next()
		if v >= thresh {
			return v % max
		}
	}
}
