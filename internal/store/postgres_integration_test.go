//go:build postgres_integration

package store

import (
	"errors"
	"os"
	"testing"
)

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	if err := p.Ping(t.Context()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := p.InitSchema(t.Context()); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	if err := p.InitSchema(t.Context()); err != nil {
		t.Fatalf("InitSchema (second run): %v", err)
	}
	exerciseStore(t, p)

	if _, err := p.GetInstance(t.Context(), "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetInstance(bad id) = %v, want ErrNotFound", err)
	}
}
