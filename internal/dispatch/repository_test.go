package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/showsync/showsync-core/internal/infrastructure/database"
	_ "github.com/showsync/showsync-core/migrations"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func testRecord(id, showID string, at time.Time) Record {
	return Record{
		ID:           id,
		ShowID:       showID,
		EventTimeS:   12.5,
		DispatchedAt: at,
		DryRun:       false,
		Attempted:    4,
		Succeeded:    3,
		TimedOut:     1,
		Skipped:      0,
		DurationMS:   480,
	}
}

func TestSQLiteRepositoryInsertAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	want := testRecord("rec-1", "spooky-song", time.Now().UTC())
	if err := repo.Insert(ctx, want); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "rec-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.ShowID != want.ShowID {
		t.Errorf("ShowID = %q, want %q", got.ShowID, want.ShowID)
	}
	if got.EventTimeS != want.EventTimeS {
		t.Errorf("EventTimeS = %v, want %v", got.EventTimeS, want.EventTimeS)
	}
	if got.Attempted != 4 || got.Succeeded != 3 || got.TimedOut != 1 {
		t.Errorf("counts = %d/%d/%d, want 4/3/1", got.Attempted, got.Succeeded, got.TimedOut)
	}
	if got.DurationMS != want.DurationMS {
		t.Errorf("DurationMS = %v, want %v", got.DurationMS, want.DurationMS)
	}
}

func TestSQLiteRepositoryGetMissing(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByID(context.Background(), "nope")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("GetByID() error = %v, want ErrRecordNotFound", err)
	}
}

func TestSQLiteRepositoryListByShow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i, rec := range []Record{
		testRecord("a", "show-1", base.Add(1*time.Second)),
		testRecord("b", "show-1", base.Add(2*time.Second)),
		testRecord("c", "show-2", base.Add(3*time.Second)),
	} {
		if err := repo.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert() %d error = %v", i, err)
		}
	}

	records, err := repo.ListByShow(ctx, "show-1", 10)
	if err != nil {
		t.Fatalf("ListByShow() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ListByShow() returned %d records, want 2", len(records))
	}
	// Newest first.
	if records[0].ID != "b" || records[1].ID != "a" {
		t.Errorf("order = %q, %q; want b, a", records[0].ID, records[1].ID)
	}

	all, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(all) != 2 || all[0].ID != "c" {
		t.Errorf("ListRecent() = %d records, first %q; want 2 records, first c", len(all), all[0].ID)
	}
}
