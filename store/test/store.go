package test

import (
	"context"
	"os"
	"testing"

	"github.com/hrygo/atlas/internal/profile"
	"github.com/hrygo/atlas/internal/version"
	"github.com/hrygo/atlas/store"
	"github.com/hrygo/atlas/store/db"
)

// NewTestingStore opens a migrated store for the driver named by DRIVER (default sqlite).
// PostgreSQL tests read their DSN from POSTGRES_TEST_DSN and are skipped without it.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()

	p := getTestingProfile(t)
	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	s := store.New(dbDriver, p)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("failed to close store: %v", err)
		}
	})
	return s
}

func getTestingProfile(t *testing.T) *profile.Profile {
	driver := getDriverFromEnv()
	p := &profile.Profile{
		Mode:    "prod",
		Data:    t.TempDir(),
		Driver:  driver,
		Version: version.GetCurrentVersion("prod"),
	}

	if driver == "postgres" {
		dsn := GetPostgresDSN(t)
		p.DSN = dsn
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("invalid testing profile: %v", err)
	}
	return p
}

func getDriverFromEnv() string {
	if driver := os.Getenv("DRIVER"); driver != "" {
		return driver
	}
	return "sqlite"
}
