package test

import (
	"os"
	"testing"
)

// GetPostgresDSN returns the DSN of the PostgreSQL database used for testing.
// The database must be empty; tests are skipped when POSTGRES_TEST_DSN is unset.
func GetPostgresDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	return dsn
}
