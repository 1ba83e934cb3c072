// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"

	"usermgmt/internal/db"
	"usermgmt/internal/model"
)

var dbSeq atomic.Int64

// NewDB opens a private in-memory sqlite database with the schema migrated.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	gdb, err := db.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}

// User returns a valid, unsaved user. n keeps email and phone unique across fixtures.
func User(n int, role model.Role) *model.User {
	return &model.User{
		Name:         "Test User",
		Email:        fmt.Sprintf("user%d@example.com", n),
		Phone:        fmt.Sprintf("98765%05d", n),
		PasswordHash: "$2a$04$placeholderplaceholderplaceholderplaceholderplacehold",
		State:        "Karnataka",
		City:         "Bengaluru",
		Country:      "India",
		Pincode:      "560001",
		Role:         role,
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
