//nolint:nilnil
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/altcatalin/ses-monitor/feedback"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var errNotConnected = errors.New("client is not connected")

// pool defines the interface for database operations.
// This interface is satisfied by *pgxpool.Pool and can be mocked for testing.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
	Ping(ctx context.Context) error
}

// Client is a PostgreSQL-backed suppression store. Like the DynamoDB store,
// it writes each recipient at most once.
type Client struct {
	conn pool
	opts *options
}

// New creates a Client. Call [Client.Connect] before use.
func New(opts ...Option) *Client {
	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Client{opts: o}
}

// Connect validates the options, opens the connection pool and pings the
// database. An existing pool is closed first.
func (c *Client) Connect(ctx context.Context) error {
	// Close existing connection if any to prevent leaks
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid Postgres db configuration: %w", err)
	}

	config, err := pgxpool.ParseConfig(c.opts.connectionString())
	if err != nil {
		return fmt.Errorf("failed to parse Postgres db connection string: %w", err)
	}

	if c.opts.poolMaxConnections != nil {
		config.MaxConns = *c.opts.poolMaxConnections
	}

	if c.opts.poolMinConnections != nil {
		config.MinConns = *c.opts.poolMinConnections
	}

	if c.opts.poolMinIdleConnections != nil {
		config.MinIdleConns = *c.opts.poolMinIdleConnections
	}

	if c.opts.poolMaxConnectionLifetime != nil {
		config.MaxConnLifetime = *c.opts.poolMaxConnectionLifetime
	}

	if c.opts.poolMaxConnectionIdleTime != nil {
		config.MaxConnIdleTime = *c.opts.poolMaxConnectionIdleTime
	}

	if c.opts.poolHealthCheckPeriod != nil {
		config.HealthCheckPeriod = *c.opts.poolHealthCheckPeriod
	}

	if c.opts.poolMaxConnectionLifetimeJitter != nil {
		config.MaxConnLifetimeJitter = *c.opts.poolMaxConnectionLifetimeJitter
	}

	conn, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create new Postgres connection pool: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping Postgres db: %w", err)
	}

	c.conn = conn

	return nil
}

// Close releases the connection pool. It is safe to call when not connected.
func (c *Client) Close(_ context.Context) error {
	if c.conn == nil {
		return nil
	}

	c.conn.Close()

	c.conn = nil

	return nil
}

// Init creates the suppressions table and its listing index if they do not
// exist, then verifies the column layout unless skipSchemaValidation is set.
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if c.conn == nil {
		return errNotConnected
	}

	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin init transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }() // No-op if committed

	for _, sql := range c.opts.createStatements() {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to execute create statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit init transaction: %w", err)
	}

	if skipSchemaValidation {
		return nil
	}

	query := "SELECT table_name, column_name, data_type, is_nullable FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1 ORDER BY ordinal_position"

	rows, err := c.conn.Query(ctx, query, c.opts.suppressionsTable)
	if err != nil {
		return fmt.Errorf("failed to query information schema: %w", err)
	}

	defer rows.Close()

	infoRows := map[string]*dbRow{}

	for rows.Next() {
		var table, column string
		infoRow := &dbRow{}

		if err := rows.Scan(&table, &column, &infoRow.DataType, &infoRow.IsNullable); err != nil {
			return fmt.Errorf("failed to scan row from information schema: %w", err)
		}

		infoRows[table+"."+column] = infoRow
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating over rows from information schema: %w", err)
	}

	if err := c.opts.verifyCurrentDatabaseVersion(infoRows); err != nil {
		return fmt.Errorf("failed to verify current database version: %w", err)
	}

	return nil
}

// DropAllData drops the suppressions table. Intended for tests only.
func (c *Client) DropAllData(ctx context.Context) error {
	if c.conn == nil {
		return errNotConnected
	}

	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin drop tables transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }() // No-op if committed

	for _, sql := range c.opts.dropStatements() {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to execute drop statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit drop tables transaction: %w", err)
	}

	return nil
}

// Record inserts the suppression unless a row for the recipient already
// exists. Zero affected rows is reported as [feedback.AlreadyExists].
func (c *Client) Record(ctx context.Context, s *feedback.Suppression) (feedback.Outcome, error) {
	if c.conn == nil {
		return 0, errNotConnected
	}

	if s == nil {
		return 0, errors.New("suppression cannot be nil")
	}

	if s.Recipient == "" {
		return 0, errors.New("suppression recipient cannot be empty")
	}

	status := s.Status
	if status == 0 {
		status = feedback.StatusSuppressed
	}

	sql, args := c.getSuppressionInsertSQL(s, status)

	tag, err := c.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to save suppression to Postgres db: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return feedback.AlreadyExists, nil
	}

	return feedback.Created, nil
}

// FindSuppression returns the suppression recorded for the recipient, or nil
// if there is none.
func (c *Client) FindSuppression(ctx context.Context, recipient string) (*feedback.Suppression, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	if recipient == "" {
		return nil, errors.New("recipient cannot be empty")
	}

	sql := fmt.Sprintf("SELECT recipient, message_id, sent_at, status FROM %s WHERE recipient = $1", c.opts.suppressionsTable)

	s := &feedback.Suppression{}

	if err := c.conn.QueryRow(ctx, sql, recipient).Scan(&s.Recipient, &s.MessageID, &s.Timestamp, &s.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to find suppression in Postgres db: %w", err)
	}

	return s, nil
}

// ListSuppressions returns suppressions ordered by send timestamp, newest
// first. A limit of zero or less returns every row.
func (c *Client) ListSuppressions(ctx context.Context, limit int) ([]*feedback.Suppression, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	sql := fmt.Sprintf("SELECT recipient, message_id, sent_at, status FROM %s WHERE status = $1 ORDER BY sent_at DESC, recipient", c.opts.suppressionsTable)
	args := []any{feedback.StatusSuppressed}

	if limit > 0 {
		sql += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list suppressions from Postgres db: %w", err)
	}

	defer rows.Close()

	result := []*feedback.Suppression{}

	for rows.Next() {
		s := &feedback.Suppression{}

		if err := rows.Scan(&s.Recipient, &s.MessageID, &s.Timestamp, &s.Status); err != nil {
			return nil, fmt.Errorf("failed to scan suppression row: %w", err)
		}

		result = append(result, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over suppression rows: %w", err)
	}

	return result, nil
}

func (c *Client) getSuppressionInsertSQL(s *feedback.Suppression, status int) (string, []any) {
	sql := fmt.Sprintf("INSERT INTO %s (recipient, version, message_id, sent_at, status) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (recipient) DO NOTHING", c.opts.suppressionsTable)

	return sql, []any{s.Recipient, SuppressionModelVersion, s.MessageID, s.Timestamp, status}
}
