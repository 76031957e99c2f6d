// Package bitcoin adapts Bitcoin blocks and transactions to the burnchain
// model consumed by the sortition engine.
package bitcoin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burnchain"
)

// burnAddressBytes is the designated burn address: a pay-to-pubkey-hash
// output whose hash160 is all zeros.
var burnAddressBytes = make([]byte, 20)

// Codec implements burnchain.AddressCodec for Bitcoin script outputs.
type Codec struct {
	params *chaincfg.Params
}

// NewCodec builds a Codec for the named Bitcoin network.
func NewCodec(network string) (*Codec, error) {
	params, err := chainParamsForNetwork(network)
	if err != nil {
		return nil, err
	}
	return &Codec{params: params}, nil
}

// ParseAddress extracts the first standard address from an output script
// and reduces it to its raw hash bytes.
func (c *Codec) ParseAddress(script []byte) (burnchain.Address, error) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, c.params)
	if err != nil {
		return burnchain.Address{}, err
	}
	if len(addrs) == 0 {
		return burnchain.Address{}, errors.New("no address in output script")
	}
	return burnchain.NewAddress(addrs[0].ScriptAddress()), nil
}

// BurnBytes returns the raw byte form of the burn address.
func (c *Codec) BurnBytes() []byte {
	return burnAddressBytes
}

func chainParamsForNetwork(network string) (*chaincfg.Params, error) {
	switch strings.ToLower(network) {
	case "main", "mainnet", "bitcoin":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}
}
