package db

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config describes the register database and its pool.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns settings for a local database.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Password:        "postgres",
		DBName:          "caz_register",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
	}
}

// DSN renders the configuration as a postgres URL.
func (c Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.DBName,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// PoolConfig builds the pgxpool settings. Zero sizing fields fall back to DefaultConfig.
func (c Config) PoolConfig() (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(c.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	defaults := DefaultConfig()
	poolConfig.MaxConns = firstPositive(c.MaxConns, defaults.MaxConns)
	poolConfig.MinConns = firstPositive(c.MinConns, defaults.MinConns)
	poolConfig.MaxConnLifetime = firstPositive(c.MaxConnLifetime, defaults.MaxConnLifetime)
	poolConfig.MaxConnIdleTime = firstPositive(c.MaxConnIdleTime, defaults.MaxConnIdleTime)
	poolConfig.HealthCheckPeriod = time.Minute
	return poolConfig, nil
}

func firstPositive[N int32 | time.Duration](value, fallback N) N {
	if value > 0 {
		return value
	}
	return fallback
}

// Connection owns the pool shared by the repositories and the exporter.
type Connection struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewConnection opens the pool and pings the database once.
func NewConnection(ctx context.Context, config Config, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	poolConfig, err := config.PoolConfig()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("connected to database",
		"host", config.Host,
		"database", config.DBName,
		"max_conns", poolConfig.MaxConns,
	)
	return &Connection{Pool: pool, logger: logger}, nil
}

func (c *Connection) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// Ping checks that the database is reachable.
func (c *Connection) Ping(ctx context.Context) error {
	return c.Pool.Ping(ctx)
}

// WithTx runs fn in a transaction that is committed when fn returns nil and rolled back
// otherwise, including on panic.
func (c *Connection) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	if err := pgx.BeginFunc(ctx, c.Pool, fn); err != nil {
		c.logger.Debug("transaction rolled back", "error", err)
		return err
	}
	return nil
}
