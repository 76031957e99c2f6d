package burnchain

import (
	"fmt"
	"strings"

	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
)

// ConsensusHashLifetime is the default freshness window, in burnchain
// blocks, within which an operation's consensus hash is accepted.
const ConsensusHashLifetime = 24

// DefaultMagic marks sortition transactions on the burnchain wire.
var DefaultMagic = [2]byte{'i', 'd'}

// Params fixes the consensus-relevant configuration of a burnchain.
type Params struct {
	ChainName   string
	NetworkName string

	// FirstBlockHeight and FirstBlockHash anchor the genesis snapshot.
	FirstBlockHeight uint64
	FirstBlockHash   burn.BurnchainHeaderHash

	// ConsensusHashLifetime is the freshness window for consensus hashes
	// carried by operations.
	ConsensusHashLifetime uint32

	// StableConfirmations is how deep a burnchain block must be before its
	// operations are considered settled. Fetch policy lives with the
	// follower; this is recorded for operators.
	StableConfirmations uint32

	Magic [2]byte
}

// ParamsForNetwork returns the fixed parameters for a named Bitcoin network.
func ParamsForNetwork(network string) (*Params, error) {
	p := &Params{
		ChainName:             "bitcoin",
		NetworkName:           strings.ToLower(network),
		ConsensusHashLifetime: ConsensusHashLifetime,
		Magic:                 DefaultMagic,
	}
	switch p.NetworkName {
	case "mainnet", "main", "bitcoin":
		p.StableConfirmations = 7
	case "testnet", "testnet3":
		p.StableConfirmations = 7
	case "regtest":
		p.StableConfirmations = 1
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}
	return p, nil
}
