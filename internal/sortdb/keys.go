package sortdb

import (
	"encoding/binary"

	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
)

// Key layout. Location-indexed rows carry the accepting snapshot's
// sortition ID as the key suffix so the same location can hold rows on
// several forks; readers filter candidates by fork ancestry.
const (
	prefixSnapshot    = "snapshot/"
	prefixVRFKey      = "leader-key/vrf/"
	prefixKeyLoc      = "leader-key/loc/"
	prefixCommitLoc   = "block-commit/loc/"
	prefixConsumedKey = "consumed-key/loc/"
	prefixRejected    = "rejected/"
	chainTipKey       = "chain-tip"
)

func tipKey() []byte { return []byte(chainTipKey) }

func snapshotKey(id burn.SortitionID) []byte {
	return append([]byte(prefixSnapshot), id.Bytes()...)
}

func locBytes(blockHeight uint64, vtxindex uint32) []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint64(b[0:8], blockHeight)
	binary.BigEndian.PutUint32(b[8:12], vtxindex)
	return b
}

func vrfKeyPrefix(key burn.VRFPublicKey) []byte {
	return append([]byte(prefixVRFKey), key.Bytes()...)
}

func vrfKeyKey(key burn.VRFPublicKey, id burn.SortitionID) []byte {
	return append(vrfKeyPrefix(key), id.Bytes()...)
}

func keyLocPrefix(blockHeight uint64, vtxindex uint32) []byte {
	return append([]byte(prefixKeyLoc), locBytes(blockHeight, vtxindex)...)
}

func keyLocKey(blockHeight uint64, vtxindex uint32, id burn.SortitionID) []byte {
	return append(keyLocPrefix(blockHeight, vtxindex), id.Bytes()...)
}

func commitLocPrefix(blockHeight uint64, vtxindex uint32) []byte {
	return append([]byte(prefixCommitLoc), locBytes(blockHeight, vtxindex)...)
}

func commitLocKey(blockHeight uint64, vtxindex uint32, id burn.SortitionID) []byte {
	return append(commitLocPrefix(blockHeight, vtxindex), id.Bytes()...)
}

func consumedKeyPrefix(blockHeight uint64, vtxindex uint32) []byte {
	return append([]byte(prefixConsumedKey), locBytes(blockHeight, vtxindex)...)
}

func consumedKeyKey(blockHeight uint64, vtxindex uint32, id burn.SortitionID) []byte {
	return append(consumedKeyPrefix(blockHeight, vtxindex), id.Bytes()...)
}

func rejectedKey(id burn.SortitionID) []byte {
	return append([]byte(prefixRejected), id.Bytes()...)
}
