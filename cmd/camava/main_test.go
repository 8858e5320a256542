package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brensch/camava/internal/providers"
)

const (
	testCatalog = `<html><body><form>
		<select name="parent_idno">
			<option value="">Select</option>
			<option value="1">Cachuma Lake</option>
			<option value="2">Jalama Beach</option>
		</select></form></body></html>`
	testResults = `<html><body>
		<div data-id="101" data-lat="34.5" data-lng="-120.5">Site 12A Tent Use Fee: $40.00 Persons: 8</div>
		<div data-id="102">Site 13 RV hookups Use Fee: $55.00 Persons: 6</div>
	</body></html>`
)

func newPortal(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = io.WriteString(w, testResults)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "ASPSESSIONID", Value: "abc", Path: "/"})
		_, _ = io.WriteString(w, testCatalog)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	srv := newPortal(t)
	dir := t.TempDir()
	t.Setenv("CAMAVA_BASE_URL", srv.URL)
	t.Setenv("DB_PATH", filepath.Join(dir, "camava.duckdb"))
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("DISCORD_CHANNEL_ID", "")
	t.Setenv("CAMAVA_FACILITY_ID", "")
	cfg := filepath.Join(dir, "camava.yaml")
	body := "search:\n  horizon_days: 2\n  requests_per_second: 1000\nwatch:\n  timezone: UTC\n"
	if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfg
}

func TestSearchCommand_JSON(t *testing.T) {
	cfg := setupEnv(t)
	out, err := run(t, "--config", cfg, "search", "--start", "2026-01-10", "--nights", "2", "--format", "json")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var got searchJSON
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Count != 2 || got.FacilityID != 2 || got.CheckOut != "2026-01-12" {
		t.Fatalf("unexpected result %+v", got)
	}
	if got.ByType["Tent"] != 1 || got.ByType["RV"] != 1 {
		t.Fatalf("unexpected by_type %v", got.ByType)
	}
	s := got.Sites[0]
	if s.SiteName != "Site 12A" || s.Price != 40 || s.MaxOccupancy != 8 || s.Facility != "Jalama Beach" || s.Latitude == nil {
		t.Fatalf("unexpected site %+v", s)
	}
	if !strings.HasSuffix(got.BookingURL, "/reservation/camping/index.asp") {
		t.Fatalf("unexpected booking url %q", got.BookingURL)
	}
}

func TestSearchCommand_Text(t *testing.T) {
	cfg := setupEnv(t)
	out, err := run(t, "--config", cfg, "search", "--facility", "1", "--start", "2026-01-10", "--end", "2026-01-11")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, want := range []string{"Cachuma Lake (facility 1)", "(1 nights)", "Found 2 available sites", "Tent:", "$55.00", "Book at: "} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSearchCommand_BadInput(t *testing.T) {
	cfg := setupEnv(t)
	tests := [][]string{
		{"search", "--start", "2026-01-10"},
		{"search", "--start", "01/10/2026", "--nights", "1"},
		{"search", "--start", "2026-01-10", "--end", "2026-01-10"},
		{"search", "--start", "2026-01-10", "--nights", "1", "--format", "xml"},
		{"search", "--start", "2026-01-10", "--nights", "1", "--end", "2026-01-12"},
	}
	for _, args := range tests {
		if _, err := run(t, append([]string{"--config", cfg}, args...)...); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
	_, err := run(t, "--config", cfg, "search", "--start", "2026-01-10", "--end", "2026-01-09")
	if !errors.Is(err, providers.ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
}

func TestFacilitiesCommand(t *testing.T) {
	cfg := setupEnv(t)
	out, err := run(t, "--config", cfg, "facilities")
	if err != nil {
		t.Fatalf("facilities: %v", err)
	}
	if !strings.Contains(out, "   1  Cachuma Lake") || !strings.Contains(out, "   2  Jalama Beach") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, err = run(t, "--config", cfg, "facilities", "jalama", "--refresh")
	if err != nil {
		t.Fatalf("facilities hint: %v", err)
	}
	if strings.Contains(out, "Cachuma") || !strings.Contains(out, "Jalama Beach") {
		t.Fatalf("hint not applied:\n%s", out)
	}
}

func TestUnitsCommand(t *testing.T) {
	cfg := setupEnv(t)
	_, err := run(t, "--config", cfg, "units")
	if !errors.Is(err, providers.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestUnknownProvider(t *testing.T) {
	cfg := setupEnv(t)
	_, err := run(t, "--config", cfg, "--provider", "yosemite", "units")
	if err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}

func TestWatchCommand_Once(t *testing.T) {
	cfg := setupEnv(t)
	out, err := run(t, "--config", cfg, "watch", "--once")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if !strings.Contains(out, "1 lookups, 0 failed, 2 sites open, 2 new") {
		t.Fatalf("unexpected output %q", out)
	}
	out, err = run(t, "--config", cfg, "watch", "--once")
	if err != nil {
		t.Fatalf("watch 2: %v", err)
	}
	if !strings.Contains(out, "2 sites open, 0 new") {
		t.Fatalf("second pass should find nothing new, got %q", out)
	}

	out, err = run(t, "--config", cfg, "sql", "--csv", "SELECT count(*) AS n FROM lookup_log WHERE success")
	if err != nil {
		t.Fatalf("sql: %v", err)
	}
	if out != "n\n2\n" {
		t.Fatalf("unexpected sql output %q", out)
	}
	out, err = run(t, "--config", cfg, "sql", "--arg", "2", "SELECT name FROM facilities WHERE id = CAST(? AS INTEGER)")
	if err != nil || !strings.Contains(out, "Jalama Beach") {
		t.Fatalf("sql with arg: %v %q", err, out)
	}
}

func TestReadQuery(t *testing.T) {
	q, err := readQuery("", "", strings.NewReader("  SELECT 1\n"))
	if err != nil || q != "SELECT 1" {
		t.Fatalf("stdin query: %q %v", q, err)
	}
	if _, err := readQuery("", "", strings.NewReader("")); err == nil {
		t.Fatalf("expected error for empty query")
	}
	if !looksLikeSelect(" WITH x AS (SELECT 1) SELECT * FROM x") || looksLikeSelect("DELETE FROM lookup_log") {
		t.Fatalf("looksLikeSelect misclassified")
	}
}

func TestWriteSearchText_CapsListing(t *testing.T) {
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	sites := make([]providers.AvailableCampsite, 20)
	for i := range sites {
		sites[i] = providers.AvailableCampsite{SiteName: "Site", Type: providers.SiteStandard, FacilityName: "Jalama Beach", Occupancy: providers.Occupancy{Min: 1, Max: 1}}
	}
	var buf bytes.Buffer
	if err := WriteSearch(&buf, &SearchResult{FacilityID: 2, Start: start, End: start.AddDate(0, 0, 1), BookingURL: "u", Sites: sites}, FormatText); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if got := strings.Count(out, "up to 1 people"); got != 15 {
		t.Fatalf("want 15 listed, got %d", got)
	}
	if !strings.Contains(out, "... and 5 more") || !strings.Contains(out, "price unknown") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestParseStay(t *testing.T) {
	start, end, err := parseStay("2026-02-27", "", 3)
	if err != nil {
		t.Fatalf("parseStay: %v", err)
	}
	if start.Format(dateLayout) != "2026-02-27" || end.Format(dateLayout) != "2026-03-02" {
		t.Fatalf("unexpected stay %v..%v", start, end)
	}
	if _, _, err := parseStay("2026-02-27", "", 0); err == nil {
		t.Fatalf("expected error without end or nights")
	}
}
