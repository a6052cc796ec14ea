package db_test

import (
	"context"
	"testing"

	"github.com/pharmalife/blister/internal/platform/db"
	"github.com/pharmalife/blister/internal/platform/db/dbtest"
)

func TestPG_Migrator_UpIsIdempotent(t *testing.T) {
	pool := dbtest.NewPool(t)
	ctx := context.Background()
	m := db.NewMigrator(pool, dbtest.MigrationsDir())

	n, err := m.Up(ctx)
	if err != nil {
		t.Fatalf("up: %v", err)
	}
	if n != 0 {
		t.Errorf("expected nothing left to apply, got %d", n)
	}

	statuses, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(statuses) == 0 {
		t.Fatal("expected migrations")
	}
	for _, s := range statuses {
		if !s.Applied || s.AppliedAt == nil {
			t.Errorf("migration %03d_%s not applied", s.Version, s.Name)
		}
	}
}

func TestPG_WithTx_RollsBack(t *testing.T) {
	pool := dbtest.NewPool(t)
	ctx := context.Background()
	if _, err := pool.Exec(ctx, `CREATE TABLE tx_check (n INT)`); err != nil {
		t.Fatalf("create: %v", err)
	}

	tx := db.NewTransactor(pool)
	err := tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := db.TxFromContext(ctx).Exec(ctx, `INSERT INTO tx_check VALUES (1)`); err != nil {
			return err
		}
		_, err := db.TxFromContext(ctx).Exec(ctx, `INSERT INTO tx_check VALUES ('not a number')`)
		return err
	})
	if err == nil {
		t.Fatal("expected insert error")
	}

	var n int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM tx_check`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected rollback, got %d rows", n)
	}
}
