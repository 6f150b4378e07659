package server

import (
	"context"
	"time"

	"github.com/tunonalves/sysprov/internal/logger"
	"github.com/tunonalves/sysprov/internal/sysreport"
)

// StartSampler runs the background report sampler until ctx is done.
// Interval and retention follow the persisted report settings and are
// re-read every tick, so settings changes apply without a restart.
func (s *Server) StartSampler(ctx context.Context) {
	if s.app == nil {
		return
	}
	go s.app.sampleLoop(ctx)
}

func (a *App) sampleLoop(ctx context.Context) {
	for {
		cfg := a.reportConfig()
		interval := time.Duration(cfg.IntervalSeconds) * time.Second

		if cfg.Enabled {
			a.sampleOnce(cfg)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (a *App) reportConfig() sysreport.Config {
	st, err := a.settings.Get()
	if err != nil {
		logger.Warn("read report settings: %v", err)
		return sysreport.DefaultConfig()
	}
	return st.Report.WithDefaults()
}

func (a *App) sampleOnce(cfg sysreport.Config) {
	m, users, err := a.coll.Collect(cfg)
	if err != nil {
		logger.Warn("collect sample: %v", err)
		return
	}
	sample := sysreport.Sample{Timestamp: m.Timestamp, Metrics: m, UserStats: users}
	if err := a.samples.Append(sample, cfg.RetentionDays); err != nil {
		logger.Error("store sample: %v", err)
	}
}
