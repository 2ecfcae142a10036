// Package postgresql opens the shared sqlx pool
package postgresql

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const (
	defaultPingTimeout   = 5 * time.Second
	defaultRetryInterval = 2 * time.Second
	healthCheckTimeout   = 2 * time.Second

	// schemaLockKey serializes concurrent ApplySchema calls across processes
	schemaLockKey int64 = 0x64756e67656f6e
)

// Config holds PostgreSQL connection configuration
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// ConnectRetries is how many extra pings are tried before giving up
	ConnectRetries int
	RetryInterval  time.Duration
	PingTimeout    time.Duration
}

// Client represents a PostgreSQL database client
type Client struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// DSN renders the connection URL; credentials are escaped
func (c *Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

// NewClient opens the pool and waits until the server answers a ping
func NewClient(ctx context.Context, config *Config, logger *slog.Logger) (*Client, error) {
	logger.Info("Connecting to PostgreSQL",
		slog.String("host", config.Host),
		slog.Int("port", config.Port),
		slog.String("database", config.Database),
	)

	db, err := sqlx.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL pool: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := waitForServer(ctx, db, config, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("Successfully connected to PostgreSQL",
		slog.Int("max_open_conns", config.MaxOpenConns),
		slog.Int("max_idle_conns", config.MaxIdleConns),
		slog.Duration("conn_max_lifetime", config.ConnMaxLifetime),
	)

	return &Client{db: db, logger: logger}, nil
}

// waitForServer pings until success, the retry budget runs out, or ctx ends
func waitForServer(ctx context.Context, db *sqlx.DB, config *Config, logger *slog.Logger) error {
	pingTimeout := config.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = defaultPingTimeout
	}
	interval := config.RetryInterval
	if interval <= 0 {
		interval = defaultRetryInterval
	}

	var err error
	for attempt := 0; attempt <= config.ConnectRetries; attempt++ {
		if attempt > 0 {
			logger.Warn("PostgreSQL not ready, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("retry_in", interval),
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("gave up connecting to PostgreSQL: %w", ctx.Err())
			case <-time.After(interval):
			}
		}

		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
	}

	logger.Error("Failed to ping PostgreSQL", slog.String("error", err.Error()))
	return fmt.Errorf("failed to ping PostgreSQL after %d attempt(s): %w", config.ConnectRetries+1, err)
}

// GetDB returns the underlying sqlx.DB instance
func (c *Client) GetDB() *sqlx.DB {
	return c.db
}

// Close closes the database connection
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close PostgreSQL connection", slog.String("error", err.Error()))
		return err
	}
	c.logger.Info("PostgreSQL connection closed")
	return nil
}

// ApplySchema runs statements in one transaction.
// The API and the worker may both do this at boot, so the transaction holds an advisory lock.
func (c *Client) ApplySchema(ctx context.Context, statements []string) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", schemaLockKey); err != nil {
		return fmt.Errorf("failed to take schema lock: %w", err)
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}

	c.logger.Info("Database schema applied", slog.Int("statements", len(statements)))
	return nil
}

// HealthCheck runs a trivial query within a short deadline
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var result int
	if err := c.db.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
