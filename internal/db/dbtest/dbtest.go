// Package dbtest opens the Postgres database used by integration tests.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hackgods/clinic-booking/internal/db"
)

// Open connects to TEST_POSTGRES_DSN and migrates models, or skips the test when it is unset.
func Open(t *testing.T, models ...any) *gorm.DB {
	t.Helper()
	return OpenEnv(t, "TEST_POSTGRES_DSN", models...)
}

// OpenEnv is Open with the DSN taken from env.
func OpenEnv(t *testing.T, env string, models ...any) *gorm.DB {
	t.Helper()

	dsn := os.Getenv(env)
	if dsn == "" {
		t.Skipf("%s not set", env)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, db.PoolOptions{})
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(pool.Close)

	log := zap.NewNop()
	gdb, err := db.OpenGorm(pool, log)
	if err != nil {
		t.Fatalf("gorm: %v", err)
	}
	if err := db.AutoMigrate(ctx, gdb, log, models...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}
