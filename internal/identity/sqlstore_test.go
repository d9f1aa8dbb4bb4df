package identity

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/evcraddock/propchain/internal/apperr"
	"github.com/evcraddock/propchain/internal/db"
)

func TestSQLStoreRoundTrip(t *testing.T) {
	s := testSQLStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, "user_1", "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}

	u, err := s.GetUser(ctx, "user_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.Coins() != 0 {
		t.Errorf("coins = %d, want 0", u.Coins())
	}

	if err := s.UpdateMetadata(ctx, "user_1", u.MetadataWithCoins(40)); err != nil {
		t.Fatalf("update: %v", err)
	}

	byName, err := s.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if byName.Coins() != 40 {
		t.Errorf("coins = %d, want 40", byName.Coins())
	}
}

func TestSQLStoreLargeBalanceExact(t *testing.T) {
	s := testSQLStore(t)
	ctx := context.Background()

	u, err := s.Create(ctx, "user_1", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	const big = math.MaxInt64 - 5
	if err := s.UpdateMetadata(ctx, "user_1", u.MetadataWithCoins(big)); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetUser(ctx, "user_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Coins() != big {
		t.Errorf("coins = %d, want %d", got.Coins(), int64(big))
	}
}

func TestSQLStoreNotFound(t *testing.T) {
	s := testSQLStore(t)
	ctx := context.Background()

	if _, err := s.GetUser(ctx, "ghost"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("get: expected not found, got %v", err)
	}
	if _, err := s.FindByUsername(ctx, "ghost"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("find: expected not found, got %v", err)
	}
	if err := s.UpdateMetadata(ctx, "ghost", map[string]any{}); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("update: expected not found, got %v", err)
	}
}

func TestSQLStoreCreateValidation(t *testing.T) {
	s := testSQLStore(t)

	if _, err := s.Create(context.Background(), "", "alice"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func testSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	d, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return NewSQLStore(d)
}
