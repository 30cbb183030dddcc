package repositories

import (
	"context"
	"fmt"
	"time"

	"ezvis/internal/database/models"
	"ezvis/internal/parser/useragent"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

// Result limits of the ranked queries
const (
	TopHostsLimit      = 15
	TopCountriesLimit  = 20
	ErrorAnalysisLimit = 10
	TopPathsLimit      = 15
)

// HeatmapCells is the fixed size of the day-of-week by hour-of-day matrix
const HeatmapCells = 7 * 24

// hourBucket truncates ts to the UTC hour
const hourBucket = "strftime('%Y-%m-%dT%H:00:00Z', ts)"

// Kind names one query of the dashboard catalog
type Kind string

const (
	KindRequestsOverTime  Kind = "requests_over_time"
	KindBandwidthOverTime Kind = "bandwidth_over_time"
	KindTopHosts          Kind = "top_hosts"
	KindStatusCodes       Kind = "status_codes"
	KindTopCountries      Kind = "top_countries"
	KindHourlyHeatmap     Kind = "hourly_heatmap"
	KindErrorAnalysis     Kind = "error_analysis"
	KindUserAgents        Kind = "user_agents"
	KindTopPaths          Kind = "top_paths"
)

// Kinds lists the catalog in dashboard order
func Kinds() []Kind {
	return []Kind{
		KindRequestsOverTime,
		KindBandwidthOverTime,
		KindTopHosts,
		KindStatusCodes,
		KindTopCountries,
		KindHourlyHeatmap,
		KindErrorAnalysis,
		KindUserAgents,
		KindTopPaths,
	}
}

// ParseKind resolves a catalog name
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == name {
			return k, nil
		}
	}
	return "", &QueryError{Kind: Kind(name), Err: ErrUnknownQuery}
}

// TimeSeriesPoint is one hour of request counts
type TimeSeriesPoint struct {
	Bucket time.Time `json:"bucket"`
	Count  int64     `json:"count"`
}

// BandwidthPoint is one hour of transferred bytes
type BandwidthPoint struct {
	Bucket time.Time `json:"bucket"`
	Bytes  int64     `json:"bytes"`
	MB     float64   `json:"mb"`
}

type HostStats struct {
	Host string `json:"host" gorm:"column:host"`
	Hits int64  `json:"hits" gorm:"column:hits"`
}

type StatusCodeStats struct {
	Status int   `json:"status" gorm:"column:status"`
	Count  int64 `json:"count" gorm:"column:count"`
}

type CountryStats struct {
	Country string `json:"country" gorm:"column:country"`
	Hits    int64  `json:"hits" gorm:"column:hits"`
}

// HeatmapCell counts requests for one weekday (0=Sunday) and hour, both UTC
type HeatmapCell struct {
	Day   int   `json:"day" gorm:"column:day"`
	Hour  int   `json:"hour" gorm:"column:hour"`
	Count int64 `json:"count" gorm:"column:count"`
}

// ErrorStats breaks down status >= 400 responses per host
type ErrorStats struct {
	Host         string `json:"host" gorm:"column:host"`
	Errors       int64  `json:"errors" gorm:"column:errors"`
	ClientErrors int64  `json:"client_errors" gorm:"column:client_errors"`
	ServerErrors int64  `json:"server_errors" gorm:"column:server_errors"`
}

type UserAgentStats struct {
	Family string `json:"family" gorm:"column:family"`
	Count  int64  `json:"count" gorm:"column:count"`
}

type PathStats struct {
	Path     string  `json:"path" gorm:"column:path"`
	Hits     int64   `json:"hits" gorm:"column:hits"`
	AvgBytes float64 `json:"avg_bytes" gorm:"column:avg_bytes"`
}

// StatsRepository runs the dashboard aggregations. Every method is a pure read;
// ties on the aggregate are broken by the grouping key ascending.
type StatsRepository interface {
	RequestsOverTime(ctx context.Context, tr TimeRange) ([]*TimeSeriesPoint, error)
	BandwidthOverTime(ctx context.Context, tr TimeRange) ([]*BandwidthPoint, error)
	TopHosts(ctx context.Context, tr TimeRange) ([]*HostStats, error)
	StatusCodes(ctx context.Context, tr TimeRange) ([]*StatusCodeStats, error)
	TopCountries(ctx context.Context, tr TimeRange) ([]*CountryStats, error)
	HourlyHeatmap(ctx context.Context, tr TimeRange) ([]*HeatmapCell, error)
	ErrorAnalysis(ctx context.Context, tr TimeRange) ([]*ErrorStats, error)
	UserAgents(ctx context.Context, tr TimeRange) ([]*UserAgentStats, error)
	TopPaths(ctx context.Context, tr TimeRange) ([]*PathStats, error)

	// Query dispatches by catalog name
	Query(ctx context.Context, kind Kind, tr TimeRange) (any, error)
}

type statsRepo struct {
	db     *gorm.DB
	logger *pterm.Logger
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *gorm.DB, logger *pterm.Logger) StatsRepository {
	return &statsRepo{
		db:     db,
		logger: logger,
	}
}

func (r *statsRepo) Query(ctx context.Context, kind Kind, tr TimeRange) (any, error) {
	switch kind {
	case KindRequestsOverTime:
		return r.RequestsOverTime(ctx, tr)
	case KindBandwidthOverTime:
		return r.BandwidthOverTime(ctx, tr)
	case KindTopHosts:
		return r.TopHosts(ctx, tr)
	case KindStatusCodes:
		return r.StatusCodes(ctx, tr)
	case KindTopCountries:
		return r.TopCountries(ctx, tr)
	case KindHourlyHeatmap:
		return r.HourlyHeatmap(ctx, tr)
	case KindErrorAnalysis:
		return r.ErrorAnalysis(ctx, tr)
	case KindUserAgents:
		return r.UserAgents(ctx, tr)
	case KindTopPaths:
		return r.TopPaths(ctx, tr)
	default:
		return nil, &QueryError{Kind: kind, Err: ErrUnknownQuery}
	}
}

// base starts a range-filtered query on requests
func (r *statsRepo) base(ctx context.Context, kind Kind, tr TimeRange) (*gorm.DB, error) {
	if err := tr.Validate(); err != nil {
		return nil, &QueryError{Kind: kind, Err: err}
	}
	return tr.apply(r.db.WithContext(ctx).Model(&models.Request{})), nil
}

func (r *statsRepo) fail(kind Kind, err error) error {
	r.logger.WithCaller().Error("Failed to run stats query", r.logger.Args("query", string(kind), "error", err))
	return &QueryError{Kind: kind, Err: err}
}

type bucketRow struct {
	Bucket string `gorm:"column:bucket"`
	Count  int64  `gorm:"column:count"`
	Bytes  int64  `gorm:"column:bytes"`
}

func parseBucket(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad hour bucket %q: %w", s, err)
	}
	return t, nil
}

// RequestsOverTime counts requests per UTC hour, oldest first
func (r *statsRepo) RequestsOverTime(ctx context.Context, tr TimeRange) ([]*TimeSeriesPoint, error) {
	query, err := r.base(ctx, KindRequestsOverTime, tr)
	if err != nil {
		return nil, err
	}

	var rows []bucketRow
	err = query.
		Select(hourBucket + " AS bucket, COUNT(*) AS count").
		Group("bucket").
		Order("bucket ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, r.fail(KindRequestsOverTime, err)
	}

	points := make([]*TimeSeriesPoint, 0, len(rows))
	for _, row := range rows {
		bucket, err := parseBucket(row.Bucket)
		if err != nil {
			return nil, r.fail(KindRequestsOverTime, err)
		}
		points = append(points, &TimeSeriesPoint{Bucket: bucket, Count: row.Count})
	}
	return points, nil
}

// BandwidthOverTime sums transferred bytes per UTC hour, oldest first
func (r *statsRepo) BandwidthOverTime(ctx context.Context, tr TimeRange) ([]*BandwidthPoint, error) {
	query, err := r.base(ctx, KindBandwidthOverTime, tr)
	if err != nil {
		return nil, err
	}

	var rows []bucketRow
	err = query.
		Select(hourBucket + " AS bucket, COALESCE(SUM(bytes), 0) AS bytes").
		Group("bucket").
		Order("bucket ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, r.fail(KindBandwidthOverTime, err)
	}

	points := make([]*BandwidthPoint, 0, len(rows))
	for _, row := range rows {
		bucket, err := parseBucket(row.Bucket)
		if err != nil {
			return nil, r.fail(KindBandwidthOverTime, err)
		}
		points = append(points, &BandwidthPoint{
			Bucket: bucket,
			Bytes:  row.Bytes,
			MB:     float64(row.Bytes) / 1e6,
		})
	}
	return points, nil
}

// TopHosts ranks hosts by request count
func (r *statsRepo) TopHosts(ctx context.Context, tr TimeRange) ([]*HostStats, error) {
	query, err := r.base(ctx, KindTopHosts, tr)
	if err != nil {
		return nil, err
	}

	var stats []*HostStats
	err = query.
		Select("host, COUNT(*) AS hits").
		Where("host <> ''").
		Group("host").
		Order("hits DESC, host ASC").
		Limit(TopHostsLimit).
		Scan(&stats).Error
	if err != nil {
		return nil, r.fail(KindTopHosts, err)
	}
	return stats, nil
}

// StatusCodes counts requests per status code, lowest code first
func (r *statsRepo) StatusCodes(ctx context.Context, tr TimeRange) ([]*StatusCodeStats, error) {
	query, err := r.base(ctx, KindStatusCodes, tr)
	if err != nil {
		return nil, err
	}

	var stats []*StatusCodeStats
	err = query.
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, r.fail(KindStatusCodes, err)
	}
	return stats, nil
}

// TopCountries ranks non-empty country codes by request count
func (r *statsRepo) TopCountries(ctx context.Context, tr TimeRange) ([]*CountryStats, error) {
	query, err := r.base(ctx, KindTopCountries, tr)
	if err != nil {
		return nil, err
	}

	var stats []*CountryStats
	err = query.
		Select("country, COUNT(*) AS hits").
		Where("country <> ''").
		Group("country").
		Order("hits DESC, country ASC").
		Limit(TopCountriesLimit).
		Scan(&stats).Error
	if err != nil {
		return nil, r.fail(KindTopCountries, err)
	}
	return stats, nil
}

// HourlyHeatmap returns all 168 (weekday, hour) cells in UTC, zero-filled,
// ordered by day then hour
func (r *statsRepo) HourlyHeatmap(ctx context.Context, tr TimeRange) ([]*HeatmapCell, error) {
	query, err := r.base(ctx, KindHourlyHeatmap, tr)
	if err != nil {
		return nil, err
	}

	var rows []HeatmapCell
	err = query.
		Select("CAST(strftime('%w', ts) AS INTEGER) AS day, CAST(strftime('%H', ts) AS INTEGER) AS hour, COUNT(*) AS count").
		Group("day, hour").
		Scan(&rows).Error
	if err != nil {
		return nil, r.fail(KindHourlyHeatmap, err)
	}

	cells := make([]*HeatmapCell, HeatmapCells)
	for i := range cells {
		cells[i] = &HeatmapCell{Day: i / 24, Hour: i % 24}
	}
	for _, row := range rows {
		if row.Day < 0 || row.Day > 6 || row.Hour < 0 || row.Hour > 23 {
			return nil, r.fail(KindHourlyHeatmap, fmt.Errorf("cell out of range: day=%d hour=%d", row.Day, row.Hour))
		}
		cells[row.Day*24+row.Hour].Count = row.Count
	}
	return cells, nil
}

// ErrorAnalysis ranks hosts by responses with status >= 400
func (r *statsRepo) ErrorAnalysis(ctx context.Context, tr TimeRange) ([]*ErrorStats, error) {
	query, err := r.base(ctx, KindErrorAnalysis, tr)
	if err != nil {
		return nil, err
	}

	var stats []*ErrorStats
	err = query.
		Select(`host,
			COUNT(*) AS errors,
			SUM(CASE WHEN status < 500 THEN 1 ELSE 0 END) AS client_errors,
			SUM(CASE WHEN status >= 500 THEN 1 ELSE 0 END) AS server_errors`).
		Where("status >= 400 AND host <> ''").
		Group("host").
		Order("errors DESC, host ASC").
		Limit(ErrorAnalysisLimit).
		Scan(&stats).Error
	if err != nil {
		return nil, r.fail(KindErrorAnalysis, err)
	}
	return stats, nil
}

// UserAgents counts requests per browser family
func (r *statsRepo) UserAgents(ctx context.Context, tr TimeRange) ([]*UserAgentStats, error) {
	query, err := r.base(ctx, KindUserAgents, tr)
	if err != nil {
		return nil, err
	}

	var stats []*UserAgentStats
	err = query.
		Select(useragent.SQLCase("user_agent") + " AS family, COUNT(*) AS count").
		Where("user_agent <> ''").
		Group("family").
		Order("count DESC, family ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, r.fail(KindUserAgents, err)
	}
	return stats, nil
}

// TopPaths ranks paths by request count with their average response size
func (r *statsRepo) TopPaths(ctx context.Context, tr TimeRange) ([]*PathStats, error) {
	query, err := r.base(ctx, KindTopPaths, tr)
	if err != nil {
		return nil, err
	}

	var stats []*PathStats
	err = query.
		Select("path, COUNT(*) AS hits, AVG(bytes) AS avg_bytes").
		Where("path <> ''").
		Group("path").
		Order("hits DESC, path ASC").
		Limit(TopPathsLimit).
		Scan(&stats).Error
	if err != nil {
		return nil, r.fail(KindTopPaths, err)
	}
	return stats, nil
}
