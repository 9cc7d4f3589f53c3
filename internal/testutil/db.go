package testutil

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"

	"bitget-pnl-tracker-go/internal/database"
)

// SetupDB opens a private in-memory SQLite database with the tracker schema.
// A single connection is used so every query sees the same memory database.
func SetupDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.NewDatabase(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
