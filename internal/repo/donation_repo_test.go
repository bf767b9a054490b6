package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/streamrig/go-donation-backend/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func archivedDonation(id string, at time.Time, value float64) domain.Donation {
	return domain.Donation{
		ID:      id,
		At:      at,
		Value:   value,
		Sender:  "Alice",
		Message: "hi",
		Status:  "paid",
	}
}

func TestArchiveDonation_InsertAndConflict(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	inserted, err := ArchiveDonation(ctx, db, archivedDonation("lp_1", now, 10))
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}

	// Redelivery of the same id is not an error, just not inserted.
	inserted, err = ArchiveDonation(ctx, db, archivedDonation("lp_1", now, 10))
	if err != nil {
		t.Fatalf("conflict insert: %v", err)
	}
	if inserted {
		t.Fatalf("conflicting id reported as inserted")
	}

	total, err := CountDonations(ctx, db)
	if err != nil || total != 1 {
		t.Fatalf("count = %d err = %v", total, err)
	}
}

func TestHasDonation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := ArchiveDonation(ctx, db, archivedDonation("lp_x", time.Now().UTC(), 5)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := HasDonation(ctx, db, "lp_x")
	if err != nil || !got {
		t.Fatalf("HasDonation(lp_x) = %v, %v", got, err)
	}
	got, err = HasDonation(ctx, db, "lp_missing")
	if err != nil || got {
		t.Fatalf("HasDonation(lp_missing) = %v, %v", got, err)
	}
}

func TestGetDonation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := ArchiveDonation(ctx, db, archivedDonation("lp_get", time.Now().UTC(), 7.5)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rec, err := GetDonation(ctx, db, "lp_get")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Value != 7.5 || rec.Sender != "Alice" {
		t.Fatalf("record = %+v", rec)
	}

	if _, err := GetDonation(ctx, db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing id err = %v, want ErrNotFound", err)
	}
}

func TestListDonations_OrderAndClamp(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 5; i++ {
		d := archivedDonation(fmt.Sprintf("lp_%d", i), base.Add(time.Duration(i)*time.Minute), float64(i))
		if _, err := ArchiveDonation(ctx, db, d); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	out, err := ListDonations(ctx, db, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	// Newest first.
	if out[0].ID != "lp_4" || out[2].ID != "lp_2" {
		t.Fatalf("order = [%s %s %s]", out[0].ID, out[1].ID, out[2].ID)
	}

	// Non-positive limit falls back to the default.
	out, err = ListDonations(ctx, db, 0)
	if err != nil || len(out) != 5 {
		t.Fatalf("default limit list: len=%d err=%v", len(out), err)
	}
}

func TestSenderStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, v := range []float64{10, 20} {
		if _, err := ArchiveDonation(ctx, db, archivedDonation(fmt.Sprintf("lp_a%d", i), now, v)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	other := archivedDonation("lp_b", now, 99)
	other.Sender = "Bob"
	if _, err := ArchiveDonation(ctx, db, other); err != nil {
		t.Fatalf("insert: %v", err)
	}

	count, total, err := SenderStats(ctx, db, "Alice")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if count != 2 || total != 30 {
		t.Fatalf("stats = %d/%v, want 2/30", count, total)
	}

	count, total, err = SenderStats(ctx, db, "Nobody")
	if err != nil || count != 0 || total != 0 {
		t.Fatalf("empty stats = %d/%v err=%v", count, total, err)
	}
}
