package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pterm/pterm"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Path         string
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxLife  time.Duration

	// Queries slower than this are logged; zero uses 100ms
	SlowQueryThreshold time.Duration
}

// SlowQueryLogger logs slow database queries for performance monitoring
type SlowQueryLogger struct {
	logger            *pterm.Logger
	slowThreshold     time.Duration
	logLevel          logger.LogLevel
	ignoreNotFoundErr bool
}

func NewSlowQueryLogger(ptermLogger *pterm.Logger, slowThreshold time.Duration) *SlowQueryLogger {
	return &SlowQueryLogger{
		logger:            ptermLogger,
		slowThreshold:     slowThreshold,
		logLevel:          logger.Warn,
		ignoreNotFoundErr: true,
	}
}

func (l *SlowQueryLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

func (l *SlowQueryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.logger.Info(msg, l.logger.Args("data", data))
	}
}

func (l *SlowQueryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.logger.Warn(msg, l.logger.Args("data", data))
	}
}

func (l *SlowQueryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.logger.Error(msg, l.logger.Args("data", data))
	}
}

func (l *SlowQueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	// Slow queries go to debug to keep normal runs quiet
	if elapsed >= l.slowThreshold {
		l.logger.Debug("SLOW QUERY DETECTED",
			l.logger.Args(
				"duration_ms", elapsed.Milliseconds(),
				"rows", rows,
				"sql", sql,
			))
	} else if l.logLevel >= logger.Info {
		l.logger.Trace("Database query",
			l.logger.Args(
				"duration_ms", elapsed.Milliseconds(),
				"rows", rows,
				"sql", sql,
			))
	}

	if err != nil && (!l.ignoreNotFoundErr || !errors.Is(err, gorm.ErrRecordNotFound)) {
		l.logger.Error("Database query error",
			l.logger.Args(
				"error", err,
				"duration_ms", elapsed.Milliseconds(),
				"sql", sql,
			))
	}
}

// DSN builds the glebarez/sqlite data source name.
// Timestamps are written in SQLite's text format so strftime and range filters work on them.
func DSN(path string) string {
	return path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_time_format=sqlite"
}

// NewConnection opens the store at cfg.Path, creating the file if needed.
// The schema is not touched; call EnsureSchema before first use.
func NewConnection(cfg *Config, logger *pterm.Logger) (*gorm.DB, error) {
	if _, err := os.Stat(cfg.Path); errors.Is(err, os.ErrPermission) {
		logger.WithCaller().Error("Permission denied to access database file.", logger.Args("error", err))
		return nil, fmt.Errorf("accessing database file: %w", err)
	}

	logger.Debug("Opening database", logger.Args("path", cfg.Path))
	return open(DSN(cfg.Path), cfg, cfg.MaxOpenConns, cfg.MaxIdleConns, logger)
}

// NewReadOnlyConnection opens an existing store for analytics queries only
func NewReadOnlyConnection(cfg *Config, logger *pterm.Logger) (*gorm.DB, error) {
	_, err := os.Stat(cfg.Path)
	if errors.Is(err, os.ErrPermission) {
		logger.WithCaller().Error("Permission denied to access database file (read-only).", logger.Args("error", err))
		return nil, fmt.Errorf("accessing database file: %w", err)
	}
	if os.IsNotExist(err) {
		logger.WithCaller().Error("Database file does not exist (read-only connection).", logger.Args("path", cfg.Path))
		return nil, fmt.Errorf("database file %s does not exist", cfg.Path)
	}

	// mode=ro cannot open a WAL store whose -shm file is gone
	dsn := cfg.Path +
		"?_pragma=query_only(1)" +
		"&_pragma=busy_timeout(5000)" +
		"&_time_format=sqlite"

	logger.Debug("Opening read-only database for analytics queries", logger.Args("path", cfg.Path))
	// Read-only pools can be wider since readers never contend for the write lock
	return open(dsn, cfg, cfg.MaxOpenConns*2, cfg.MaxIdleConns*2, logger)
}

func open(dsn string, cfg *Config, maxOpen, maxIdle int, logger *pterm.Logger) (*gorm.DB, error) {
	threshold := cfg.SlowQueryThreshold
	if threshold <= 0 {
		threshold = 100 * time.Millisecond
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt: true,
		Logger:      NewSlowQueryLogger(logger, threshold),
	})
	if err != nil {
		logger.WithCaller().Error("Failed to connect to the database.", logger.Args("error", err))
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.WithCaller().Error("Failed to get database instance.", logger.Args("error", err))
		return nil, fmt.Errorf("getting database handle: %w", err)
	}

	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if cfg.ConnMaxLife > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLife)
	}

	logger.Debug("Connection pool configured",
		logger.Args(
			"max_open_conns", maxOpen,
			"max_idle_conns", maxIdle,
			"conn_max_life", cfg.ConnMaxLife,
		))

	logger.Info("Database connection established successfully.", logger.Args("path", cfg.Path))
	return db, nil
}

// Close releases the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
