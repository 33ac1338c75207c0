package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gmc-club/membership-api/internal/adapters/postgres"
)

const recordTableDDL = `
	id UUID PRIMARY KEY,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	gender TEXT NOT NULL DEFAULT '',
	birth_date DATE NOT NULL,
	birth_place TEXT NOT NULL DEFAULT '',
	fiscal_code TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	postal_code TEXT NOT NULL DEFAULT '',
	province TEXT NOT NULL DEFAULT '',
	privacy_consent BOOLEAN NOT NULL DEFAULT FALSE,
	comms_consent BOOLEAN NOT NULL DEFAULT FALSE,
	guardian_first_name TEXT,
	guardian_last_name TEXT,
	guardian_birth_date DATE,
	membership_year TEXT NOT NULL DEFAULT '',
	tessera TEXT NOT NULL DEFAULT '',
	fee NUMERIC(10,2) NOT NULL DEFAULT 0,
	roles TEXT[] NOT NULL DEFAULT '{}',
	notes TEXT NOT NULL DEFAULT '',
	request_date TIMESTAMPTZ,
	join_date TIMESTAMPTZ,
	renewal_date TIMESTAMPTZ,
	expiration_date TIMESTAMPTZ,
	rejected BOOLEAN NOT NULL DEFAULT FALSE
`

// OpenMigratedPool connects to the database named by TEST_DATABASE_URL, creates
// the schema if needed, and truncates both partitions so each test run starts
// clean. Tests are skipped when the variable is unset.
func OpenMigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping postgres tests")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolOptions{})
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	for _, table := range []string{"members", "applications"} {
		if _, err := pool.Exec(ctx, "CREATE TABLE IF NOT EXISTS "+table+" ("+recordTableDDL+")"); err != nil {
			t.Fatalf("create %s: %v", table, err)
		}
		if _, err := pool.Exec(ctx, "TRUNCATE "+table); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
	return pool
}
