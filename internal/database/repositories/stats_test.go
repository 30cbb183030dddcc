package repositories

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"ezvis/internal/database"
	"ezvis/internal/database/models"
	"ezvis/internal/parser/useragent"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) (*gorm.DB, *pterm.Logger) {
	t.Helper()
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelWarn)

	db, err := database.NewConnection(&database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
	}, logger)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	if err := database.EnsureSchema(db, logger); err != nil {
		t.Fatalf("Failed to ensure schema: %v", err)
	}
	return db, logger
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("Bad test time %q: %v", s, err)
	}
	return ts.UTC()
}

type rowOpt func(*models.Request)

func withHost(h string) rowOpt       { return func(r *models.Request) { r.Host = h } }
func withStatus(s int) rowOpt        { return func(r *models.Request) { r.Status = s } }
func withBytes(b int64) rowOpt       { return func(r *models.Request) { r.Bytes = b } }
func withCountry(c string) rowOpt    { return func(r *models.Request) { r.Country = c } }
func withPath(p string) rowOpt       { return func(r *models.Request) { r.Path = p } }
func withUserAgent(ua string) rowOpt { return func(r *models.Request) { r.UserAgent = ua } }

func newRow(ts time.Time, opts ...rowOpt) *models.Request {
	r := &models.Request{
		Ts:          ts,
		RemoteAddr:  "10.0.0.1",
		Identd:      "-",
		Method:      "GET",
		Scheme:      "https",
		Host:        "www.example.org",
		Port:        443,
		Path:        "/",
		HTTPVersion: "HTTP/1.1",
		Status:      200,
		Bytes:       100,
		Country:     "US",
		UserAgent:   "Mozilla/5.0",
	}
	for _, opt := range opts {
		opt(r)
	}
	r.URL = r.Scheme + "://" + r.Host + r.Path
	r.Raw = fmt.Sprintf("%s - - [%s] \"GET %s HTTP/1.1\" %d %d", r.RemoteAddr, ts.Format("02/Jan/2006:15:04:05 -0700"), r.URL, r.Status, r.Bytes)
	return r
}

func seed(t *testing.T, db *gorm.DB, logger *pterm.Logger, rows ...*models.Request) {
	t.Helper()
	if err := NewRequestRepository(db, logger).AppendBatch(rows); err != nil {
		t.Fatalf("Failed to seed rows: %v", err)
	}
}

func TestStatsRepository_StatusCodesSingleRow(t *testing.T) {
	db, logger := newTestDB(t)
	seed(t, db, logger, newRow(mustTime(t, "2026-02-15T00:00:04Z")))

	repo := NewStatsRepository(db, logger)
	stats, err := repo.StatusCodes(context.Background(), TimeRange{})
	if err != nil {
		t.Fatalf("StatusCodes failed: %v", err)
	}

	if len(stats) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(stats))
	}
	if stats[0].Status != 200 || stats[0].Count != 1 {
		t.Errorf("Expected {200, 1}, got {%d, %d}", stats[0].Status, stats[0].Count)
	}
}

func TestStatsRepository_StatusCodesOrder(t *testing.T) {
	db, logger := newTestDB(t)
	base := mustTime(t, "2026-02-15T10:00:00Z")
	seed(t, db, logger,
		newRow(base, withStatus(404)),
		newRow(base, withStatus(200)),
		newRow(base, withStatus(200)),
		newRow(base, withStatus(302)),
	)

	stats, err := NewStatsRepository(db, logger).StatusCodes(context.Background(), TimeRange{})
	if err != nil {
		t.Fatalf("StatusCodes failed: %v", err)
	}

	expected := []int{200, 302, 404}
	if len(stats) != len(expected) {
		t.Fatalf("Expected %d rows, got %d", len(expected), len(stats))
	}
	for i, status := range expected {
		if stats[i].Status != status {
			t.Errorf("Row %d: expected status %d, got %d", i, status, stats[i].Status)
		}
	}
}

func TestStatsRepository_BandwidthOverTime(t *testing.T) {
	db, logger := newTestDB(t)
	seed(t, db, logger,
		newRow(mustTime(t, "2026-02-15T10:05:00Z"), withBytes(0)),
		newRow(mustTime(t, "2026-02-15T10:45:00Z"), withBytes(512)),
	)

	points, err := NewStatsRepository(db, logger).BandwidthOverTime(context.Background(), TimeRange{})
	if err != nil {
		t.Fatalf("BandwidthOverTime failed: %v", err)
	}

	if len(points) != 1 {
		t.Fatalf("Expected 1 bucket, got %d", len(points))
	}
	if !points[0].Bucket.Equal(mustTime(t, "2026-02-15T10:00:00Z")) {
		t.Errorf("Expected bucket 10:00, got %v", points[0].Bucket)
	}
	if points[0].Bytes != 512 {
		t.Errorf("Expected 512 bytes, got %d", points[0].Bytes)
	}
	if points[0].MB != 512/1e6 {
		t.Errorf("Expected %v MB, got %v", 512/1e6, points[0].MB)
	}
}

func TestStatsRepository_RequestsOverTime(t *testing.T) {
	db, logger := newTestDB(t)
	seed(t, db, logger,
		newRow(mustTime(t, "2026-02-15T11:00:00Z")),
		newRow(mustTime(t, "2026-02-15T10:59:59Z")),
		newRow(mustTime(t, "2026-02-15T10:05:00Z")),
		// +0200 offsets are stored as UTC by the parser; 13:30+02:00 is 11:30Z
		newRow(mustTime(t, "2026-02-15T13:30:00+02:00")),
	)

	points, err := NewStatsRepository(db, logger).RequestsOverTime(context.Background(), TimeRange{})
	if err != nil {
		t.Fatalf("RequestsOverTime failed: %v", err)
	}

	if len(points) != 2 {
		t.Fatalf("Expected 2 buckets, got %d", len(points))
	}
	if !points[0].Bucket.Equal(mustTime(t, "2026-02-15T10:00:00Z")) || points[0].Count != 2 {
		t.Errorf("Expected {10:00, 2}, got {%v, %d}", points[0].Bucket, points[0].Count)
	}
	if !points[1].Bucket.Equal(mustTime(t, "2026-02-15T11:00:00Z")) || points[1].Count != 2 {
		t.Errorf("Expected {11:00, 2}, got {%v, %d}", points[1].Bucket, points[1].Count)
	}
}

func TestStatsRepository_TopHostsLimitAndTieBreak(t *testing.T) {
	db, logger := newTestDB(t)
	ts := mustTime(t, "2026-02-15T10:00:00Z")

	var rows []*models.Request
	for i := 0; i < 20; i++ {
		rows = append(rows, newRow(ts, withHost(fmt.Sprintf("host%02d.example", i))))
	}
	rows = append(rows,
		newRow(ts, withHost("zeta.example")),
		newRow(ts, withHost("zeta.example")),
		newRow(ts, withHost("zeta.example")),
		newRow(ts, withHost("")),
		newRow(ts, withHost("")),
		newRow(ts, withHost("")),
		newRow(ts, withHost("")),
	)
	seed(t, db, logger, rows...)

	stats, err := NewStatsRepository(db, logger).TopHosts(context.Background(), TimeRange{})
	if err != nil {
		t.Fatalf("TopHosts failed: %v", err)
	}

	if len(stats) != TopHostsLimit {
		t.Fatalf("Expected %d hosts, got %d", TopHostsLimit, len(stats))
	}
	if stats[0].Host != "zeta.example" || stats[0].Hits != 3 {
		t.Errorf("Expected zeta.example with 3 hits first, got %s with %d", stats[0].Host, stats[0].Hits)
	}
	for i := 1; i < len(stats); i++ {
		expected := fmt.Sprintf("host%02d.example", i-1)
		if stats[i].Host != expected {
			t.Errorf("Row %d: expected host '%s', got '%s'", i, expected, stats[i].Host)
		}
	}
}

func TestStatsRepository_TopCountries(t *testing.T) {
	db, logger := newTestDB(t)
	ts := mustTime(t, "2026-02-15T10:00:00Z")
	seed(t, db, logger,
		newRow(ts, withCountry("US")),
		newRow(ts, withCountry("GB")),
		newRow(ts, withCountry("GB")),
		newRow(ts, withCountry("DE")),
		newRow(ts, withCountry("")),
		newRow(ts, withCountry("")),
		newRow(ts, withCountry("")),
	)

	stats, err := NewStatsRepository(db, logger).TopCountries(context.Background(), TimeRange{})
	if err != nil {
		t.Fatalf("TopCountries failed: %v", err)
	}

	expected := []CountryStats{{"GB", 2}, {"DE", 1}, {"US", 1}}
	if len(stats) != len(expected) {
		t.Fatalf("Expected %d countries, got %d", len(expected), len(stats))
	}
	for i, e := range expected {
		if *stats[i] != e {
			t.Errorf("Row %d: expected %+v, got %+v", i, e, *stats[i])
		}
	}
}

func TestStatsRepository_HourlyHeatmap(t *testing.T) {
	db, logger := newTestDB(t)
	seed(t, db, logger,
		newRow(mustTime(t, "2026-02-15T00:00:04Z")), // Sunday 00h
		newRow(mustTime(t, "2026-02-15T00:59:00Z")), // Sunday 00h
		newRow(mustTime(t, "2026-02-16T13:30:00Z")), // Monday 13h
		newRow(mustTime(t, "2026-02-21T23:10:00Z")), // Saturday 23h
	)

	cells, err := NewStatsRepository(db, logger).HourlyHeatmap(context.Background(), TimeRange{})
	if err != nil {
		t.Fatalf("HourlyHeatmap failed: %v", err)
	}

	if len(cells) != HeatmapCells {
		t.Fatalf("Expected %d cells, got %d", HeatmapCells, len(cells))
	}

	var total int64
	for i, cell := range cells {
		if cell.Day != i/24 || cell.Hour != i%24 {
			t.Errorf("Cell %d out of order: day=%d hour=%d", i, cell.Day, cell.Hour)
		}
		if cell.Count < 0 {
			t.Errorf("Cell %d has negative count", i)
		}
		total += cell.Count
	}
	if total != 4 {
		t.Errorf("Expected cells to sum to 4, got %d", total)
	}

	if cells[0].Count != 2 {
		t.Errorf("Expected Sunday 00h count 2, got %d", cells[0].Count)
	}
	if cells[1*24+13].Count != 1 {
		t.Errorf("Expected Monday 13h count 1, got %d", cells[1*24+13].Count)
	}
	if cells[6*24+23].Count != 1 {
		t.Errorf("Expected Saturday 23h count 1, got %d", cells[6*24+23].Count)
	}
}

func TestStatsRepository_HourlyHeatmapEmptyStore(t *testing.T) {
	db, logger := newTestDB(t)

	cells, err := NewStatsRepository(db, logger).HourlyHeatmap(context.Background(), TimeRange{})
	if err != nil {
		t.Fatalf("HourlyHeatmap failed: %v", err)
	}
	if len(cells) != HeatmapCells {
		t.Fatalf("Expected %d cells on an empty store, got %d", HeatmapCells, len(cells))
	}
	for _, cell := range cells {
		if cell.Count != 0 {
			t.Errorf("Expected zero count, got %d", cell.Count)
		}
	}
}

func TestStatsRepository_ErrorAnalysis(t *testing.T) {
	db, logger := newTestDB(t)
	ts := mustTime(t, "2026-02-15T10:00:00Z")
	seed(t, db, logger,
		newRow(ts, withHost("a.example"), withStatus(404)),
		newRow(ts, withHost("a.example"), withStatus(500)),
		newRow(ts, withHost("a.example"), withStatus(503)),
		newRow(ts, withHost("a.example"), withStatus(200)),
		newRow(ts, withHost("b.example"), withStatus(403)),
		newRow(ts, withHost("c.example"), withStatus(200)),
	)

	stats, err := NewStatsRepository(db, logger).ErrorAnalysis(context.Background(), TimeRange{})
	if err != nil {
		t.Fatalf("ErrorAnalysis failed: %v", err)
	}

	expected := []ErrorStats{
		{Host: "a.example", Errors: 3, ClientErrors: 1, ServerErrors: 2},
		{Host: "b.example", Errors: 1, ClientErrors: 1, ServerErrors: 0},
	}
	if len(stats) != len(expected) {
		t.Fatalf("Expected %d hosts, got %d", len(expected), len(stats))
	}
	for i, e := range expected {
		if *stats[i] != e {
			t.Errorf("Row %d: expected %+v, got %+v", i, e, *stats[i])
		}
	}
}

func TestStatsRepository_UserAgentsMatchFamily(t *testing.T) {
	db, logger := newTestDB(t)
	ts := mustTime(t, "2026-02-15T10:00:00Z")

	agents := []string{
		"Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0",
		"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Macintosh) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
		"Mozilla/5.0 (compatible; Googlebot/2.1)",
		"Mozilla/5.0 (Windows NT 10.0) Chrome/120.0 Safari/537.36 OPR/106.0",
		"curl/8.4.0",
		"",
	}

	expected := map[string]int64{}
	var rows []*models.Request
	for _, ua := range agents {
		rows = append(rows, newRow(ts, withUserAgent(ua)))
		if ua != "" {
			expected[useragent.Family(ua)]++
		}
	}
	seed(t, db, logger, rows...)

	stats, err := NewStatsRepository(db, logger).UserAgents(context.Background(), TimeRange{})
	if err != nil {
		t.Fatalf("UserAgents failed: %v", err)
	}

	if len(stats) != len(expected) {
		t.Fatalf("Expected %d families, got %d", len(expected), len(stats))
	}
	for _, s := range stats {
		if expected[s.Family] != s.Count {
			t.Errorf("Family '%s': expected %d, got %d", s.Family, expected[s.Family], s.Count)
		}
	}
	if stats[0].Family != "Chrome" || stats[0].Count != 2 {
		t.Errorf("Expected Chrome with 2 first, got %s with %d", stats[0].Family, stats[0].Count)
	}
	// Ties break alphabetically
	for i := 2; i < len(stats); i++ {
		if stats[i-1].Count == stats[i].Count && stats[i-1].Family > stats[i].Family {
			t.Errorf("Families out of order: %s before %s", stats[i-1].Family, stats[i].Family)
		}
	}
}

func TestStatsRepository_TopPaths(t *testing.T) {
	db, logger := newTestDB(t)
	ts := mustTime(t, "2026-02-15T10:00:00Z")
	seed(t, db, logger,
		newRow(ts, withPath("/stable/1"), withBytes(100)),
		newRow(ts, withPath("/stable/1"), withBytes(300)),
		newRow(ts, withPath("/search"), withBytes(50)),
		newRow(ts, withPath(""), withBytes(10)),
	)

	stats, err := NewStatsRepository(db, logger).TopPaths(context.Background(), TimeRange{})
	if err != nil {
		t.Fatalf("TopPaths failed: %v", err)
	}

	if len(stats) != 2 {
		t.Fatalf("Expected 2 paths, got %d", len(stats))
	}
	if stats[0].Path != "/stable/1" || stats[0].Hits != 2 || stats[0].AvgBytes != 200 {
		t.Errorf("Expected {/stable/1, 2, 200}, got %+v", *stats[0])
	}
	if stats[1].Path != "/search" || stats[1].Hits != 1 || stats[1].AvgBytes != 50 {
		t.Errorf("Expected {/search, 1, 50}, got %+v", *stats[1])
	}
}

func TestStatsRepository_TimeRangeIsHalfOpen(t *testing.T) {
	db, logger := newTestDB(t)
	seed(t, db, logger,
		newRow(mustTime(t, "2026-02-15T10:00:00Z"), withStatus(200)),
		newRow(mustTime(t, "2026-02-15T11:00:00Z"), withStatus(301)),
		newRow(mustTime(t, "2026-02-15T11:59:59Z"), withStatus(302)),
		newRow(mustTime(t, "2026-02-15T12:00:00Z"), withStatus(404)),
	)

	tr, err := ParseTimeRange("2026-02-15T11:00:00Z", "2026-02-15T12:00:00Z")
	if err != nil {
		t.Fatalf("ParseTimeRange failed: %v", err)
	}

	stats, err := NewStatsRepository(db, logger).StatusCodes(context.Background(), tr)
	if err != nil {
		t.Fatalf("StatusCodes failed: %v", err)
	}

	if len(stats) != 2 || stats[0].Status != 301 || stats[1].Status != 302 {
		t.Errorf("Expected statuses [301 302], got %+v", stats)
	}

	// Open-ended ranges
	onlyStart, _ := ParseTimeRange("2026-02-15T11:30:00Z", "")
	points, err := NewStatsRepository(db, logger).RequestsOverTime(context.Background(), onlyStart)
	if err != nil {
		t.Fatalf("RequestsOverTime failed: %v", err)
	}
	var total int64
	for _, p := range points {
		total += p.Count
	}
	if total != 2 {
		t.Errorf("Expected 2 requests after 11:30, got %d", total)
	}
}

func TestStatsRepository_QueryDispatch(t *testing.T) {
	db, logger := newTestDB(t)
	seed(t, db, logger, newRow(mustTime(t, "2026-02-15T10:00:00Z")))
	repo := NewStatsRepository(db, logger)

	for _, kind := range Kinds() {
		result, err := repo.Query(context.Background(), kind, TimeRange{})
		if err != nil {
			t.Errorf("Query %s failed: %v", kind, err)
			continue
		}
		if result == nil {
			t.Errorf("Query %s returned nil result", kind)
		}
	}

	_, err := repo.Query(context.Background(), Kind("nope"), TimeRange{})
	if !errors.Is(err, ErrUnknownQuery) {
		t.Errorf("Expected ErrUnknownQuery, got %v", err)
	}
	var qe *QueryError
	if !errors.As(err, &qe) || qe.Kind != "nope" {
		t.Errorf("Expected *QueryError for kind 'nope', got %v", err)
	}
}

func TestStatsRepository_InvertedRange(t *testing.T) {
	db, logger := newTestDB(t)
	start := mustTime(t, "2026-02-15T12:00:00Z")
	end := mustTime(t, "2026-02-15T10:00:00Z")

	_, err := NewStatsRepository(db, logger).TopHosts(context.Background(), TimeRange{Start: &start, End: &end})
	if !errors.Is(err, ErrInvalidTimeRange) {
		t.Errorf("Expected ErrInvalidTimeRange, got %v", err)
	}
}

func TestStatsRepository_Deterministic(t *testing.T) {
	db, logger := newTestDB(t)
	ts := mustTime(t, "2026-02-15T10:00:00Z")
	seed(t, db, logger,
		newRow(ts, withPath("/b")),
		newRow(ts, withPath("/a")),
		newRow(ts, withPath("/c")),
	)
	repo := NewStatsRepository(db, logger)

	first, err := repo.TopPaths(context.Background(), TimeRange{})
	if err != nil {
		t.Fatalf("TopPaths failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := repo.TopPaths(context.Background(), TimeRange{})
		if err != nil {
			t.Fatalf("TopPaths failed: %v", err)
		}
		for j := range first {
			if *first[j] != *again[j] {
				t.Errorf("Run %d differs at row %d: %+v vs %+v", i, j, *first[j], *again[j])
			}
		}
	}
	if first[0].Path != "/a" {
		t.Errorf("Expected '/a' first on a tie, got '%s'", first[0].Path)
	}
}
