package burn

import "crypto/sha256"

// OpsHashFromTxids chains SHA256 over the ordered transaction IDs accepted
// in a burnchain block. The order is the burnchain's native transaction
// order; callers must not re-sort.
func OpsHashFromTxids(txids []Txid) OpsHash {
	d := sha256.New()
	for _, txid := range txids {
		d.Write(txid[:])
	}
	var out OpsHash
	copy(out[:], d.Sum(nil))
	return out
}
