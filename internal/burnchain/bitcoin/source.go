package bitcoin

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burnchain"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/pkg/safe"
	"go.uber.org/ratelimit"
)

type (
	// RPCMetrics records metrics for node RPC calls.
	RPCMetrics interface {
		Observe(operation string, err error, started time.Time)
	}

	// ChainRPC is the subset of node RPC the source needs.
	ChainRPC interface {
		GetBlockCount() (int64, error)
		GetBlockHash(blockHeight int64) (*chainhash.Hash, error)
		GetBlock(blockHash *chainhash.Hash) (*wire.MsgBlock, error)
	}
)

// RPCClient wraps the btcd rpcclient with metrics instrumentation and a
// rate limit so the follower cannot starve the node.
type RPCClient struct {
	client  *rpcclient.Client
	metrics RPCMetrics
	rl      ratelimit.Limiter
}

// NewRPCClient constructs an instrumented, rate-limited RPC client.
func NewRPCClient(client *rpcclient.Client, metrics RPCMetrics, rps int) *RPCClient {
	return &RPCClient{
		client:  client,
		metrics: metrics,
		rl:      ratelimit.New(rps),
	}
}

// GetBlockCount returns the latest block count.
func (r *RPCClient) GetBlockCount() (count int64, err error) {
	r.rl.Take()
	started := time.Now()
	defer func() {
		r.metrics.Observe("get_block_count", err, started)
	}()
	return r.client.GetBlockCount()
}

// GetBlockHash returns the block hash for a height.
func (r *RPCClient) GetBlockHash(blockHeight int64) (hash *chainhash.Hash, err error) {
	r.rl.Take()
	started := time.Now()
	defer func() {
		r.metrics.Observe("get_block_hash", err, started)
	}()
	return r.client.GetBlockHash(blockHeight)
}

// GetBlock returns the full block for a hash.
func (r *RPCClient) GetBlock(blockHash *chainhash.Hash) (block *wire.MsgBlock, err error) {
	r.rl.Take()
	started := time.Now()
	defer func() {
		r.metrics.Observe("get_block", err, started)
	}()
	return r.client.GetBlock(blockHash)
}

// Source fetches burnchain blocks from a Bitcoin node and reduces them to
// sortition-relevant transactions.
type Source struct {
	rpc    ChainRPC
	parser *Parser
}

// NewSource builds a Source over an RPC client and parser.
func NewSource(rpc ChainRPC, parser *Parser) *Source {
	return &Source{rpc: rpc, parser: parser}
}

// LatestHeight returns the node's current chain height.
func (s *Source) LatestHeight(_ context.Context) (uint64, error) {
	count, err := s.rpc.GetBlockCount()
	if err != nil {
		return 0, err
	}
	height, err := safe.Uint64(count)
	if err != nil {
		return 0, fmt.Errorf("block count overflow: %w", err)
	}
	return height, nil
}

// FetchBlock retrieves and parses the burnchain block at the given height.
func (s *Source) FetchBlock(ctx context.Context, height uint64) (*burnchain.Block, error) {
	if height > math.MaxInt64 {
		return nil, fmt.Errorf("block height %d exceeds rpc limit", height)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash, err := s.rpc.GetBlockHash(int64(height))
	if err != nil {
		return nil, fmt.Errorf("get block hash at height %d: %w", height, err)
	}
	block, err := s.rpc.GetBlock(hash)
	if err != nil {
		return nil, fmt.Errorf("get block %s: %w", hash, err)
	}
	return s.parser.ParseBlock(height, block), nil
}
