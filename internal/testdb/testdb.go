// Package testdb provides a PostgreSQL database for integration tests.
//
// A single container is started per test binary and shared by every test
// that asks for it. Setting LENDING_TEST_DATABASE_URL points the tests at an
// existing server instead.
package testdb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/lending/internal/config"
	"github.com/JonMunkholm/lending/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresImage    = "postgres:16-alpine"
	PostgresUser     = "lending"
	PostgresPassword = "lending"
	PostgresDB       = "lending"

	// URLEnv overrides the container with an existing database.
	URLEnv = "LENDING_TEST_DATABASE_URL"
)

var (
	once    sync.Once
	connStr string
	errBoot error
)

// start launches the shared container once.
func start() (string, error) {
	once.Do(func() {
		if url := os.Getenv(URLEnv); url != "" {
			connStr = url
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		ctr, err := postgres.Run(ctx,
			PostgresImage,
			postgres.WithUsername(PostgresUser),
			postgres.WithPassword(PostgresPassword),
			postgres.WithDatabase(PostgresDB),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			errBoot = fmt.Errorf("start postgres: %w", err)
			return
		}

		connStr, err = ctr.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			ctr.Terminate(context.Background()) //nolint:errcheck
			errBoot = fmt.Errorf("get connection string: %w", err)
		}
		// The container is reaped by testcontainers' ryuk when the binary exits.
	})
	return connStr, errBoot
}

// Pool returns a pool on the shared test database, closed when t ends.
// The test is skipped in -short mode or when no database can be started.
func Pool(t testing.TB) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}

	url, err := start()
	if err != nil {
		t.Skipf("no test database: %v", err)
	}

	pool, err := database.Connect(context.Background(), &config.DatabaseConfig{
		URL:             url,
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: time.Minute,
	})
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// DropTables removes tables when t ends.
func DropTables(t testing.TB, pool *pgxpool.Pool, tables ...string) {
	t.Helper()
	t.Cleanup(func() {
		for _, table := range tables {
			pool.Exec(context.Background(), fmt.Sprintf("DROP TABLE IF EXISTS %q", table)) //nolint:errcheck
		}
	})
}
