package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthStatus is a point-in-time view of the database connection.
type HealthStatus struct {
	Healthy       bool
	Latency       time.Duration
	TotalConns    int32
	IdleConns     int32
	AcquiredConns int32
	MaxConns      int32
	Error         error
}

// Check pings the pool and snapshots its statistics. Long-running commands
// (watch) call this at startup so a misconfigured database fails fast instead
// of surfacing mid-meeting.
func Check(ctx context.Context, pool *pgxpool.Pool) *HealthStatus {
	if pool == nil {
		return &HealthStatus{Error: fmt.Errorf("pool is nil")}
	}

	start := time.Now()
	if err := pool.Ping(ctx); err != nil {
		return &HealthStatus{
			Latency: time.Since(start),
			Error:   fmt.Errorf("ping failed: %w", err),
		}
	}

	stats := pool.Stat()
	return &HealthStatus{
		Healthy:       true,
		Latency:       time.Since(start),
		TotalConns:    stats.TotalConns(),
		IdleConns:     stats.IdleConns(),
		AcquiredConns: stats.AcquiredConns(),
		MaxConns:      stats.MaxConns(),
	}
}
