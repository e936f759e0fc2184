// Package dbtest opens isolated in-memory sqlite databases carrying the service
// schema for repository and service tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/listingforge-backend/pkg/db"
)

// Open returns a client bound to a fresh database. The pool is pinned to a single
// connection so transactions serialize the same way row locks would on Postgres.
func Open(t testing.TB) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	client := db.NewFromGorm(conn)
	if err := client.EnsureSQLiteSchema(context.Background()); err != nil {
		t.Fatalf("sqlite schema: %v", err)
	}
	return client
}
