package db_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brensch/camava/internal/db"
	"github.com/brensch/camava/internal/providers"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.duckdb")
	s, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(); _ = os.Remove(path) })
	return s
}

func day(d int) time.Time { return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC) }

func site(facility, id int, start, end time.Time) providers.AvailableCampsite {
	return providers.AvailableCampsite{CampsiteID: id, SiteName: "Site", Type: providers.SiteTent, FacilityID: facility, BookingDate: start, BookingEndDate: end}
}

func recordOK(t *testing.T, s *db.Store, facility int, start, end, at time.Time) {
	t.Helper()
	err := s.RecordLookup(context.Background(), db.LookupLog{Provider: "santabarbara", FacilityID: facility, StartDate: start, EndDate: end, CheckedAt: at, Success: true, RunID: "r"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
}

func TestLookupLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	recordOK(t, s, 2, day(10), day(12), now)
	if err := s.RecordLookup(ctx, db.LookupLog{Provider: "santabarbara", FacilityID: 2, StartDate: day(12), EndDate: day(13), CheckedAt: now, Err: "status 503"}); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	recordOK(t, s, 2, day(10), day(12), now.Add(-48*time.Hour))

	n, err := s.CountLookupsSince(ctx, "santabarbara", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 recent lookups, got %d", n)
	}
	if n, _ := s.CountLookupsSince(ctx, "other", now.Add(-time.Hour)); n != 0 {
		t.Fatalf("other provider should have no lookups, got %d", n)
	}
}

func TestFacilities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	list := []providers.Facility{
		{ID: 2, Name: "Jalama Beach", ParkName: "Santa Barbara County Parks"},
		{ID: 1, Name: "Cachuma Lake", ParkName: "Santa Barbara County Parks"},
	}
	if err := s.UpsertFacilities(ctx, "santabarbara", list); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// Renames replace the existing row.
	if err := s.UpsertFacilities(ctx, "santabarbara", []providers.Facility{{ID: 2, Name: "Jalama Beach Park"}}); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	all, err := s.ListFacilities(ctx, "santabarbara", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != 1 || all[1].Name != "Jalama Beach Park" {
		t.Fatalf("unexpected facilities %+v", all)
	}
	got, err := s.ListFacilities(ctx, "santabarbara", "JALAMA")
	if err != nil || len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("fuzzy list: %v %+v", err, got)
	}
	if got, _ := s.ListFacilities(ctx, "other", ""); len(got) != 0 {
		t.Fatalf("expected no facilities for other provider, got %+v", got)
	}
}

func TestReconcileAvailability_OpensOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run1 := time.Now().UTC().Add(-time.Hour)
	recordOK(t, s, 2, day(10), day(12), run1)

	sites := []providers.AvailableCampsite{site(2, 101, day(10), day(12)), site(2, 102, day(10), day(12)), site(2, 101, day(10), day(12))}
	newly, err := s.ReconcileAvailability(ctx, "santabarbara", sites, run1)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(newly) != 2 {
		t.Fatalf("want 2 newly open, got %d", len(newly))
	}

	run2 := run1.Add(15 * time.Minute)
	recordOK(t, s, 2, day(10), day(12), run2)
	newly, err = s.ReconcileAvailability(ctx, "santabarbara", sites[:2], run2)
	if err != nil {
		t.Fatalf("reconcile 2: %v", err)
	}
	if len(newly) != 0 {
		t.Fatalf("already open sites should not be returned again, got %+v", newly)
	}
	if n, _ := s.OpenCount(ctx, "santabarbara", 2); n != 2 {
		t.Fatalf("want 2 open, got %d", n)
	}
}

func TestReconcileAvailability_ClosesAndReopens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run1 := time.Now().UTC().Add(-time.Hour)
	recordOK(t, s, 2, day(10), day(12), run1)
	if _, err := s.ReconcileAvailability(ctx, "santabarbara", []providers.AvailableCampsite{site(2, 101, day(10), day(12))}, run1); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	// Site 101 gone in a successful lookup: closed.
	run2 := run1.Add(15 * time.Minute)
	recordOK(t, s, 2, day(10), day(12), run2)
	if _, err := s.ReconcileAvailability(ctx, "santabarbara", nil, run2); err != nil {
		t.Fatalf("reconcile 2: %v", err)
	}
	if n, _ := s.OpenCount(ctx, "santabarbara", 2); n != 0 {
		t.Fatalf("want 0 open after close, got %d", n)
	}

	run3 := run2.Add(15 * time.Minute)
	recordOK(t, s, 2, day(10), day(12), run3)
	newly, err := s.ReconcileAvailability(ctx, "santabarbara", []providers.AvailableCampsite{site(2, 101, day(10), day(12))}, run3)
	if err != nil {
		t.Fatalf("reconcile 3: %v", err)
	}
	if len(newly) != 1 || newly[0].CampsiteID != 101 {
		t.Fatalf("reopened site should be new again, got %+v", newly)
	}
}

func TestReconcileAvailability_FailedLookupKeepsState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run1 := time.Now().UTC().Add(-time.Hour)
	recordOK(t, s, 2, day(10), day(12), run1)
	if _, err := s.ReconcileAvailability(ctx, "santabarbara", []providers.AvailableCampsite{site(2, 101, day(10), day(12))}, run1); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	// No successful lookup in run2 for that stay, so nothing closes.
	run2 := run1.Add(15 * time.Minute)
	if err := s.RecordLookup(ctx, db.LookupLog{Provider: "santabarbara", FacilityID: 2, StartDate: day(10), EndDate: day(12), CheckedAt: run2, Err: "boom"}); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if _, err := s.ReconcileAvailability(ctx, "santabarbara", nil, run2); err != nil {
		t.Fatalf("reconcile 2: %v", err)
	}
	if n, _ := s.OpenCount(ctx, "santabarbara", 2); n != 1 {
		t.Fatalf("failed lookup should not close sites, open=%d", n)
	}
}

func TestOpenReadOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ro.duckdb")
	s, err := db.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.UpsertFacilities(context.Background(), "santabarbara", []providers.Facility{{ID: 1, Name: "Cachuma Lake"}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	_ = s.Close()

	ro, err := db.OpenReadOnly(path)
	if err != nil {
		t.Fatalf("open read only: %v", err)
	}
	defer ro.Close()
	got, err := ro.ListFacilities(context.Background(), "santabarbara", "cachuma")
	if err != nil || len(got) != 1 {
		t.Fatalf("read only list: %v %+v", err, got)
	}
}
