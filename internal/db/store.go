package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brensch/camava/internal/providers"
	_ "github.com/marcboeker/go-duckdb"
)

//go:embed schema.sql
var schemaFS embed.FS

const (
	stateOpen   = "open"
	stateClosed = "closed"
)

type Store struct {
	DB *sql.DB
}

func Open(path string) (*Store, error) {
	return OpenWithMode(path, "READ_WRITE")
}

// OpenReadOnly opens the database in READ_ONLY mode (no write lock)
func OpenReadOnly(path string) (*Store, error) { return OpenWithMode(path, "READ_ONLY") }

// OpenWithMode allows specifying DuckDB access_mode (READ_WRITE or READ_ONLY)
func OpenWithMode(path, mode string) (*Store, error) {
	if mode == "" {
		mode = "READ_WRITE"
	}
	dsn := fmt.Sprintf("%s?access_mode=%s", path, mode)
	slog.Debug("connecting to duckdb", slog.String("dsn", dsn))
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if strings.EqualFold(mode, "READ_WRITE") {
		if err := migrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

func migrate(db *sql.DB) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(string(schemaBytes))
	return err
}

// Models

type LookupLog struct {
	Provider   string
	FacilityID int
	// StartDate is the arrival date (inclusive), EndDate is the departure date (exclusive)
	StartDate time.Time
	EndDate   time.Time
	CheckedAt time.Time
	Success   bool
	Err       string
	Count     int
	RunID     string
}

func (s *Store) RecordLookup(ctx context.Context, l LookupLog) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO lookup_log(provider, facility_id, start_date, end_date, checked_at, success, err, count, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.Provider, l.FacilityID, normalizeDay(l.StartDate), normalizeDay(l.EndDate), l.CheckedAt.UTC(), l.Success, l.Err, l.Count, l.RunID)
	return err
}

// CountLookupsSince returns the number of lookups recorded for provider at or after since.
func (s *Store) CountLookupsSince(ctx context.Context, provider string, since time.Time) (int64, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT coalesce(count(*),0)
		FROM lookup_log
		WHERE provider=? AND checked_at >= CAST(? AS TIMESTAMP)
	`, provider, since.UTC())
	var n int64
	return n, row.Scan(&n)
}

// Metadata

func (s *Store) UpsertFacilities(ctx context.Context, provider string, list []providers.Facility) error {
	if len(list) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO facilities(provider, id, name, park_name, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	now := time.Now().UTC()
	for _, f := range list {
		if _, err := stmt.ExecContext(ctx, provider, f.ID, f.Name, f.ParkName, now); err != nil {
			stmt.Close()
			tx.Rollback()
			return err
		}
	}
	stmt.Close()
	return tx.Commit()
}

// ListFacilities returns stored facilities whose name contains like, best
// matches first. An empty like returns everything ordered by id.
func (s *Store) ListFacilities(ctx context.Context, provider, like string) ([]providers.Facility, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, name, coalesce(park_name, '')
		FROM facilities
		WHERE provider=? AND lower(name) LIKE '%' || lower(?) || '%'
		ORDER BY
			CASE
				WHEN lower(name) = lower(?) THEN 0
				WHEN lower(name) LIKE lower(?) || '%' THEN 1
				ELSE 2
			END,
			id
	`, provider, like, like, like)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []providers.Facility{}
	for rows.Next() {
		var f providers.Facility
		if err := rows.Scan(&f.ID, &f.Name, &f.ParkName); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Availability

// Dates in keys are always normalized, so == on time.Time is safe.
type stayKey struct {
	facility   int
	campsite   int
	start, end time.Time
}

type windowKey struct {
	facility   int
	start, end time.Time
}

func keyOf(facility, campsite int, start, end time.Time) stayKey {
	return stayKey{facility, campsite, normalizeDay(start), normalizeDay(end)}
}

// ReconcileAvailability records the sites seen open in the run that started
// at checkedAt and returns the ones that were not already open.
//
// A site that is currently open but missing from sites is closed, provided a
// lookup for its facility and stay succeeded at or after checkedAt. Stays
// whose lookup failed keep their previous state.
func (s *Store) ReconcileAvailability(ctx context.Context, provider string, sites []providers.AvailableCampsite, checkedAt time.Time) ([]providers.AvailableCampsite, error) {
	checkedAt = checkedAt.UTC()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		// If not committed due to early return, rollback
		_ = tx.Rollback()
	}()

	open, err := openStays(ctx, tx, provider)
	if err != nil {
		return nil, err
	}
	checked, err := checkedWindows(ctx, tx, provider, checkedAt)
	if err != nil {
		return nil, err
	}

	stInsert, err := tx.PrepareContext(ctx, `
		INSERT INTO campsite_availability(provider, facility_id, campsite_id, start_date, end_date, state, site_name, site_type, price, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, err
	}
	defer stInsert.Close()

	newly := []providers.AvailableCampsite{}
	seen := map[stayKey]bool{}
	for _, site := range sites {
		k := keyOf(site.FacilityID, site.CampsiteID, site.BookingDate, site.BookingEndDate)
		if seen[k] {
			continue
		}
		seen[k] = true
		if open[k] {
			continue
		}
		if _, err := stInsert.ExecContext(ctx, provider, site.FacilityID, site.CampsiteID, normalizeDay(site.BookingDate), normalizeDay(site.BookingEndDate),
			stateOpen, site.SiteName, string(site.Type), site.Price, checkedAt); err != nil {
			return nil, err
		}
		newly = append(newly, site)
	}

	for k := range open {
		if seen[k] || !checked[windowKey{k.facility, k.start, k.end}] {
			continue
		}
		if _, err := stInsert.ExecContext(ctx, provider, k.facility, k.campsite, k.start, k.end, stateClosed, nil, nil, nil, checkedAt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return newly, nil
}

// openStays returns the stays whose latest recorded state is open.
func openStays(ctx context.Context, tx *sql.Tx, provider string) (map[stayKey]bool, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT facility_id, campsite_id, start_date, end_date
		FROM (
			SELECT facility_id, campsite_id, start_date, end_date, state,
				   ROW_NUMBER() OVER (PARTITION BY facility_id, campsite_id, start_date, end_date ORDER BY checked_at DESC) AS rn
			FROM campsite_availability
			WHERE provider=?
		) t
		WHERE rn = 1 AND state = ?
	`, provider, stateOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[stayKey]bool{}
	for rows.Next() {
		var facility, campsite int
		var start, end time.Time
		if err := rows.Scan(&facility, &campsite, &start, &end); err != nil {
			return nil, err
		}
		out[keyOf(facility, campsite, start, end)] = true
	}
	return out, rows.Err()
}

func checkedWindows(ctx context.Context, tx *sql.Tx, provider string, since time.Time) (map[windowKey]bool, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT DISTINCT facility_id, start_date, end_date
		FROM lookup_log
		WHERE provider=? AND success=true AND checked_at >= CAST(? AS TIMESTAMP)
	`, provider, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[windowKey]bool{}
	for rows.Next() {
		var facility int
		var start, end time.Time
		if err := rows.Scan(&facility, &start, &end); err != nil {
			return nil, err
		}
		out[windowKey{facility, normalizeDay(start), normalizeDay(end)}] = true
	}
	return out, rows.Err()
}

// OpenCount returns how many stays are currently open for a facility.
func (s *Store) OpenCount(ctx context.Context, provider string, facilityID int) (int64, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT coalesce(count(*),0)
		FROM (
			SELECT state,
				   ROW_NUMBER() OVER (PARTITION BY campsite_id, start_date, end_date ORDER BY checked_at DESC) AS rn
			FROM campsite_availability
			WHERE provider=? AND facility_id=?
		) t
		WHERE rn = 1 AND state = ?
	`, provider, facilityID, stateOpen)
	var n int64
	return n, row.Scan(&n)
}

// normalizeDay returns the calendar date of t, in t's own location, as midnight UTC.
func normalizeDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
