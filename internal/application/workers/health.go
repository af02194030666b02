package workers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PoolStatus is a point-in-time census of the workers.
type PoolStatus struct {
	Total   int
	Idle    int
	Busy    int
	Stopped int
}

// Healthy reports whether every started worker is still serving tasks.
func (s PoolStatus) Healthy() bool {
	return s.Total > 0 && s.Stopped == 0
}

// Saturated reports whether every worker is occupied, meaning cell
// throughput is bound by the pool size rather than by resolver latency.
func (s PoolStatus) Saturated() bool {
	return s.Total > 0 && s.Busy == s.Total
}

// Snapshot counts the workers by state.
func (p *Pool) Snapshot() PoolStatus {
	var s PoolStatus
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		w.mu.RLock()
		status := w.status
		w.mu.RUnlock()

		s.Total++
		switch status {
		case WorkerStatusIdle:
			s.Idle++
		case WorkerStatusBusy:
			s.Busy++
		case WorkerStatusStopped:
			s.Stopped++
		}
	}
	return s
}

// sample reports the worker census to the log and the pool gauges on an
// interval. It runs for the life of the pool alongside the workers.
func (p *Pool) sample(ctx context.Context, interval time.Duration) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.report()
		}
	}
}

func (p *Pool) report() {
	s := p.Snapshot()

	p.logger.Info("worker pool status",
		zap.Int("total", s.Total),
		zap.Int("idle", s.Idle),
		zap.Int("busy", s.Busy),
		zap.Int("stopped", s.Stopped))

	if p.metrics != nil {
		p.metrics.RecordWorkerPoolStatus(s.Idle, s.Busy, s.Stopped)
	}

	if !s.Healthy() {
		p.logger.Warn("worker pool lost workers",
			zap.Int("stopped", s.Stopped),
			zap.Int("total", s.Total))
	}
	if s.Saturated() {
		p.logger.Warn("all workers busy, cell throughput is pool-bound",
			zap.Int("total", s.Total))
	}
}
