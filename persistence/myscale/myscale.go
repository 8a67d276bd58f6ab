// Package myscale runs top-k nearest-neighbour queries against a MyScale
// table over the ClickHouse native protocol. The table and its vector
// index are owned by the database; this backend only reads.
package myscale

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/passageway/passageway/retriever"
)

var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrColumnMismatch    = errors.New("result columns do not match configuration")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Conn is the slice of the ClickHouse driver the backend needs. The
// tests substitute a fake; production passes the conn from Open.
type Conn interface {
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	Ping(ctx context.Context) error
	Close() error
}

type Backend struct {
	conn    Conn
	columns []string
	query   string
	log     *zap.Logger
}

// Open dials MyScale, verifies the connection and returns a ready
// backend. A bad configuration fails before anything touches the
// network.
func Open(ctx context.Context, cfg retriever.Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if _, err := buildQuery(cfg); err != nil {
		return nil, err
	}

	opts := &clickhouse.Options{
		Addr: cfg.MyScale.Addresses,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.MyScale.Username,
			Password: cfg.MyScale.Password,
		},
	}

	if cfg.MyScale.MaxExecutionTime > 0 {
		opts.Settings = clickhouse.Settings{
			"max_execution_time": cfg.MyScale.MaxExecutionTime,
		}
	}

	if cfg.MyScale.Secure {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	zap.L().Info("connected to MyScale",
		zap.String("backend", "myscale"),
		zap.Strings("addresses", cfg.MyScale.Addresses),
		zap.String("database", cfg.Database),
	)

	backend, err := New(conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return backend, nil
}

func New(conn Conn, cfg retriever.Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	query, err := buildQuery(cfg)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.String("backend", "myscale"),
		zap.String("table", cfg.Database+"."+cfg.Table),
	)

	return &Backend{
		conn:    conn,
		columns: cfg.MetadataColumns,
		query:   query,
		log:     log,
	}, nil
}

// buildQuery renders the search statement once, at construction.
// Identifiers come from configuration, never from callers, and are
// still validated and backtick-quoted. The embedding and the limit
// travel as bind parameters.
func buildQuery(cfg retriever.Config) (string, error) {
	idents := make([]string, 0, len(cfg.MetadataColumns)+3)
	idents = append(idents, cfg.Database, cfg.Table, cfg.VectorColumn)
	idents = append(idents, cfg.MetadataColumns...)

	for _, ident := range idents {
		if !identifierPattern.MatchString(ident) {
			return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, ident)
		}
	}

	columns := make([]string, len(cfg.MetadataColumns))
	for i, column := range cfg.MetadataColumns {
		columns[i] = "`" + column + "`"
	}

	query := fmt.Sprintf("SELECT %s, distance(`%s`, ?) AS dist FROM `%s`.`%s` ORDER BY dist ASC LIMIT ?",
		strings.Join(columns, ", "), cfg.VectorColumn, cfg.Database, cfg.Table)

	return query, nil
}

func (b *Backend) Search(ctx context.Context, embedding []float32, k int) ([]retriever.Result, error) {
	rows, err := b.conn.Query(ctx, b.query, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	// Metadata columns plus the trailing distance.
	columnTypes := rows.ColumnTypes()
	if len(columnTypes) != len(b.columns)+1 {
		return nil, fmt.Errorf("%w: expected %d columns, got %d",
			ErrColumnMismatch, len(b.columns)+1, len(columnTypes))
	}

	results := make([]retriever.Result, 0, k)
	for rows.Next() {
		dest := make([]any, len(columnTypes))
		for i, ct := range columnTypes {
			dest[i] = reflect.New(ct.ScanType()).Interface()
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		values := make(map[string]any, len(b.columns))
		for i, column := range b.columns {
			values[column] = indirect(dest[i])
		}

		distance, err := toFloat32(indirect(dest[len(dest)-1]))
		if err != nil {
			return nil, err
		}

		results = append(results, retriever.Result{
			Values:   values,
			Distance: distance,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	b.log.Debug("passages searched",
		zap.Int("k", k),
		zap.Int("results", len(results)),
	)

	return results, nil
}

func (b *Backend) Close() error {
	return b.conn.Close()
}

// indirect unwraps the scan destination and any Nullable pointer inside
// it. A nil Nullable value becomes nil.
func indirect(v any) any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}

		rv = rv.Elem()
	}

	return rv.Interface()
}

func toFloat32(v any) (float32, error) {
	switch value := v.(type) {
	case float32:
		return value, nil
	case float64:
		return float32(value), nil
	default:
		return 0, fmt.Errorf("unexpected distance type %T", v)
	}
}

var _ retriever.Backend = (*Backend)(nil)
