package ingestion

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"

	"ezvis/internal/database/models"
	"ezvis/internal/database/repositories"
	"ezvis/internal/parser/ezproxy"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
)

// Defaults applied when Options leaves a field at zero
const (
	DefaultBatchSize      = 1000
	DefaultProgressEvery  = 10000
	DefaultFailureSamples = 20
)

// StorageError is a failed batch append. The file import stops; batches flushed
// before it stay stored.
type StorageError struct {
	Source string
	Batch  int
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storing batch %d of %s: %v", e.Batch, e.Source, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// CountryResolver fills in a country code for a client address
type CountryResolver interface {
	CountryFor(addr string) (string, error)
}

// Options tunes an Importer
type Options struct {
	BatchSize      int
	ProgressEvery  int
	FailureSamples int

	// OnProgress, if set, is called every ProgressEvery lines
	OnProgress func(Progress)
}

// Progress is a snapshot of a running import
type Progress struct {
	Source   string
	Lines    int64
	Imported int64 // stored so far
	Pending  int   // parsed but not yet flushed
	Failed   int64
	Elapsed  time.Duration
}

// FailureSample keeps one rejected line for diagnostics. It is never stored.
type FailureSample struct {
	LineNumber int64
	Reason     ezproxy.Reason
	Line       string
}

// Summary is the outcome of importing one source
type Summary struct {
	RunID    string
	Source   string
	Lines    int64
	Imported int64
	Failed   int64
	Batches  int
	Failures []FailureSample
	Duration time.Duration
}

// Importer loads one source at a time into the requests table.
// It is sequential; callers must not run two imports into the same store at once.
type Importer struct {
	parser   *ezproxy.Parser
	requests repositories.RequestRepository
	runs     repositories.ImportRunRepository
	geoIP    CountryResolver
	logger   *pterm.Logger
	opts     Options
}

// NewImporter creates an importer. runs and geoIP may be nil.
func NewImporter(
	parser *ezproxy.Parser,
	requests repositories.RequestRepository,
	runs repositories.ImportRunRepository,
	geoIP CountryResolver,
	logger *pterm.Logger,
	opts Options,
) *Importer {
	// Apply defaults if not configured
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	if opts.FailureSamples < 0 {
		opts.FailureSamples = 0
	}

	return &Importer{
		parser:   parser,
		requests: requests,
		runs:     runs,
		geoIP:    geoIP,
		logger:   logger,
		opts:     opts,
	}
}

// ImportFile opens path and imports it
func (im *Importer) ImportFile(path string) (*Summary, error) {
	src, err := OpenSource(path)
	if err != nil {
		im.logger.WithCaller().Error("Failed to open log source", im.logger.Args("source", path, "error", err))
		return &Summary{Source: path}, err
	}
	defer src.Close()

	return im.Import(src, path)
}

// Import reads src line by line until EOF. Malformed lines are counted and skipped.
// On a StorageError or SourceError the partial summary is returned with the error.
func (im *Importer) Import(src io.Reader, name string) (*Summary, error) {
	startTime := time.Now()
	summary := &Summary{
		RunID:  uuid.New().String(),
		Source: name,
	}

	run := &models.ImportRun{
		ID:        summary.RunID,
		Source:    name,
		StartedAt: startTime.UTC(),
		Status:    models.ImportRunning,
	}
	if im.runs != nil {
		if err := im.runs.Create(run); err != nil {
			return summary, &StorageError{Source: name, Batch: 0, Err: err}
		}
	}

	im.logger.Info("Starting import", im.logger.Args("source", name, "run_id", summary.RunID, "batch_size", im.opts.BatchSize))

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)

	batch := make([]*models.Request, 0, im.opts.BatchSize)
	for scanner.Scan() {
		summary.Lines++
		line := scanner.Text()

		rec, err := im.parser.Parse(line)
		if err != nil {
			im.recordFailure(summary, err, line)
		} else {
			batch = append(batch, im.toRow(rec))
			if len(batch) >= im.opts.BatchSize {
				if err := im.flush(batch, summary); err != nil {
					return im.abort(run, summary, startTime, err)
				}
				batch = make([]*models.Request, 0, im.opts.BatchSize)
			}
		}

		if summary.Lines%int64(im.opts.ProgressEvery) == 0 {
			im.reportProgress(summary, len(batch), startTime)
		}
	}

	readErr := scanner.Err()

	// Lines parsed before a read failure are still valid records
	if len(batch) > 0 {
		if err := im.flush(batch, summary); err != nil {
			return im.abort(run, summary, startTime, err)
		}
	}

	if readErr != nil {
		if errors.Is(readErr, bufio.ErrTooLong) {
			readErr = fmt.Errorf("line %d exceeds %d bytes: %w", summary.Lines+1, MaxLineBytes, readErr)
		}
		return im.abort(run, summary, startTime, &SourceError{Source: name, Err: readErr})
	}

	summary.Duration = time.Since(startTime)
	im.finishRun(run, summary, models.ImportCompleted, nil)

	rate := float64(summary.Lines) / summary.Duration.Seconds()
	im.logger.Info("Import completed",
		im.logger.Args(
			"source", name,
			"imported", summary.Imported,
			"failed", summary.Failed,
			"batches", summary.Batches,
			"rate_per_sec", int(rate),
			"elapsed", summary.Duration.Round(time.Millisecond).String(),
		))

	return summary, nil
}

func (im *Importer) recordFailure(summary *Summary, err error, line string) {
	summary.Failed++

	var pf *ezproxy.ParseFailure
	if !errors.As(err, &pf) {
		pf = &ezproxy.ParseFailure{Line: line}
	}
	if len(summary.Failures) < im.opts.FailureSamples {
		summary.Failures = append(summary.Failures, FailureSample{
			LineNumber: summary.Lines,
			Reason:     pf.Reason,
			Line:       line,
		})
	}

	im.logger.Trace("Skipping malformed line",
		im.logger.Args("source", summary.Source, "line", summary.Lines, "reason", string(pf.Reason), "line_preview", truncate(line, 100)))
}

// flush appends one batch; Imported only counts rows that were committed
func (im *Importer) flush(batch []*models.Request, summary *Summary) error {
	flushStart := time.Now()

	if err := im.requests.AppendBatch(batch); err != nil {
		im.logger.WithCaller().Error("Failed to insert batch into database",
			im.logger.Args(
				"source", summary.Source,
				"count", len(batch),
				"error", err,
			))
		return &StorageError{Source: summary.Source, Batch: summary.Batches + 1, Err: err}
	}

	summary.Batches++
	summary.Imported += int64(len(batch))

	im.logger.Debug("Batch processed successfully",
		im.logger.Args(
			"source", summary.Source,
			"batch_count", len(batch),
			"batch_duration_ms", time.Since(flushStart).Milliseconds(),
			"total_imported", summary.Imported,
		))
	return nil
}

func (im *Importer) abort(run *models.ImportRun, summary *Summary, startTime time.Time, err error) (*Summary, error) {
	summary.Duration = time.Since(startTime)
	im.finishRun(run, summary, models.ImportAborted, err)

	im.logger.Warn("Import aborted",
		im.logger.Args("source", summary.Source, "imported", summary.Imported, "failed", summary.Failed, "error", err))
	return summary, err
}

func (im *Importer) finishRun(run *models.ImportRun, summary *Summary, status string, cause error) {
	if im.runs == nil {
		return
	}

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Imported = summary.Imported
	run.Failed = summary.Failed
	run.Batches = summary.Batches
	run.Status = status
	if cause != nil {
		run.Error = cause.Error()
	}

	if err := im.runs.Update(run); err != nil {
		im.logger.Warn("Failed to record import run", im.logger.Args("run_id", run.ID, "error", err))
	}
}

func (im *Importer) reportProgress(summary *Summary, pending int, startTime time.Time) {
	elapsed := time.Since(startTime)
	p := Progress{
		Source:   summary.Source,
		Lines:    summary.Lines,
		Imported: summary.Imported,
		Pending:  pending,
		Failed:   summary.Failed,
		Elapsed:  elapsed,
	}

	rate := float64(p.Lines) / elapsed.Seconds()
	im.logger.Info("Import progress",
		im.logger.Args(
			"source", p.Source,
			"lines", p.Lines,
			"imported", p.Imported,
			"failed", p.Failed,
			"rate_per_sec", int(rate),
		))

	if im.opts.OnProgress != nil {
		im.opts.OnProgress(p)
	}
}

// toRow converts a parsed record to its stored form. A missing country is
// looked up from the client address when a resolver is configured.
func (im *Importer) toRow(rec ezproxy.Record) *models.Request {
	row := &models.Request{
		Ts:            rec.TS,
		RemoteAddr:    rec.RemoteAddr,
		Identd:        rec.Identd,
		UserOrSession: rec.UserOrSession,
		Method:        rec.Method,
		URL:           rec.URL,
		Scheme:        rec.Scheme,
		Host:          rec.Host,
		Port:          rec.Port,
		Path:          rec.Path,
		Query:         rec.Query,
		HTTPVersion:   rec.HTTPVersion,
		Status:        rec.Status,
		Bytes:         rec.Bytes,
		Country:       rec.Country,
		UserAgent:     rec.UserAgent,
		Raw:           rec.Raw,
	}

	if row.Country == "" && im.geoIP != nil {
		country, err := im.geoIP.CountryFor(rec.RemoteAddr)
		if err != nil {
			im.logger.Debug("GeoIP enrichment failed",
				im.logger.Args("ip", rec.RemoteAddr, "error", err))
		} else {
			row.Country = country
		}
	}

	return row
}

// truncate truncates a string to maxLen characters for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
