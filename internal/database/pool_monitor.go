package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/pterm/pterm"
)

// PoolStats is one sample of the connection pool
type PoolStats struct {
	MaxOpenConns int           `json:"max_open_conns"`
	OpenConns    int           `json:"open_conns"`
	InUse        int           `json:"in_use"`
	Idle         int           `json:"idle"`
	WaitCount    int64         `json:"wait_count"`
	WaitDuration time.Duration `json:"wait_duration_ns"`
	Timestamp    time.Time     `json:"timestamp"`

	// Fraction of MaxOpenConns in use; zero when the pool is unbounded
	Utilization float64       `json:"utilization"`
	AvgWaitTime time.Duration `json:"avg_wait_ns"`
	IsSaturated bool          `json:"saturated"`
}

// PoolMonitor samples the query pool while the API server runs
type PoolMonitor struct {
	db        *sql.DB
	logger    *pterm.Logger
	interval  time.Duration
	threshold float64
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu           sync.RWMutex
	currentStats *PoolStats
	alertCount   int64
	lastAlert    time.Time
}

// NewPoolMonitor creates a new connection pool monitor. Utilization at or above
// threshold is logged as a warning, at most once a minute.
func NewPoolMonitor(db *sql.DB, logger *pterm.Logger, interval time.Duration, threshold float64) *PoolMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if threshold <= 0 || threshold > 1 {
		threshold = 0.8
	}
	return &PoolMonitor{
		db:        db,
		logger:    logger,
		interval:  interval,
		threshold: threshold,
	}
}

// Start begins monitoring the connection pool
func (pm *PoolMonitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	pm.cancel = cancel

	pm.wg.Add(1)
	go pm.monitorLoop(ctx)

	pm.logger.Debug("Connection pool monitoring started",
		pm.logger.Args("interval", pm.interval, "threshold", pm.threshold))
}

// Stop stops the pool monitor
func (pm *PoolMonitor) Stop() {
	if pm.cancel != nil {
		pm.cancel()
	}
	pm.wg.Wait()
	pm.logger.Debug("Connection pool monitoring stopped")
}

// CurrentStats returns the latest sample, taking one if none exists yet
func (pm *PoolMonitor) CurrentStats() *PoolStats {
	pm.mu.RLock()
	stats := pm.currentStats
	pm.mu.RUnlock()

	if stats == nil {
		stats = pm.collectAndAnalyze()
	}
	statsCopy := *stats
	return &statsCopy
}

// AlertCount returns how many samples crossed the utilization threshold
func (pm *PoolMonitor) AlertCount() int64 {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.alertCount
}

func (pm *PoolMonitor) monitorLoop(ctx context.Context) {
	defer pm.wg.Done()

	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	pm.collectAndAnalyze()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.collectAndAnalyze()
		}
	}
}

func (pm *PoolMonitor) collectAndAnalyze() *PoolStats {
	stats := pm.collectStats()

	pm.mu.Lock()
	pm.currentStats = stats
	alert := stats.Utilization >= pm.threshold
	logAlert := false
	if alert {
		pm.alertCount++
		if time.Since(pm.lastAlert) >= time.Minute {
			pm.lastAlert = stats.Timestamp
			logAlert = true
		}
	}
	pm.mu.Unlock()

	if logAlert {
		pm.logger.Warn("Connection pool utilization high",
			pm.logger.Args(
				"in_use", stats.InUse,
				"max_open_conns", stats.MaxOpenConns,
				"utilization", fmt.Sprintf("%.1f%%", stats.Utilization*100),
				"wait_count", stats.WaitCount,
			))
	}
	if stats.WaitCount > 0 {
		pm.logger.Trace("Connections waiting for availability",
			pm.logger.Args("wait_count", stats.WaitCount, "avg_wait_time", stats.AvgWaitTime))
	}
	return stats
}

func (pm *PoolMonitor) collectStats() *PoolStats {
	dbStats := pm.db.Stats()

	stats := &PoolStats{
		MaxOpenConns: dbStats.MaxOpenConnections,
		OpenConns:    dbStats.OpenConnections,
		InUse:        dbStats.InUse,
		Idle:         dbStats.Idle,
		WaitCount:    dbStats.WaitCount,
		WaitDuration: dbStats.WaitDuration,
		Timestamp:    time.Now(),
	}

	if stats.MaxOpenConns > 0 {
		stats.Utilization = float64(stats.InUse) / float64(stats.MaxOpenConns)
		stats.IsSaturated = stats.InUse >= stats.MaxOpenConns
	}
	if stats.WaitCount > 0 {
		stats.AvgWaitTime = stats.WaitDuration / time.Duration(stats.WaitCount)
	}
	return stats
}
