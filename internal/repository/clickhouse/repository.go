// Package clickhouse archives committed block snapshots for operators and
// analytics. It is strictly observational: consensus state lives in the
// sortition database, and nothing here is ever read back by consensus code.
package clickhouse

import (
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

type (
	Metrics interface {
		Observe(operation string, err error, started time.Time)
	}
)

type Repository struct {
	conn    clickhouse.Conn
	network string
	metrics Metrics
}

// NewRepository opens a ClickHouse connection for the snapshot archive.
func NewRepository(dsn, network string, metrics Metrics) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("clickhouse dsn is required")
	}

	options, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	return NewRepositoryWithConn(conn, network, metrics), nil
}

// NewRepositoryWithConn wraps an existing connection.
func NewRepositoryWithConn(conn clickhouse.Conn, network string, metrics Metrics) *Repository {
	return &Repository{conn: conn, network: network, metrics: metrics}
}
