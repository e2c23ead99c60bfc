package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func init() {
	// The sqlite driver keeps ? placeholders as-is.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// NewTestStore creates a fresh in-memory sqlite database with the schema
// applied. Each call gets its own database.
func NewTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	// Shared-cache in-memory databases misbehave with concurrent writers;
	// a single connection keeps transactions serialized.
	db.SetMaxOpenConns(1)

	s := NewStoreWithDB(db)
	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		t.Fatalf("creating test database schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return s
}
