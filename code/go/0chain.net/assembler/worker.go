package main

import (
	"context"
	"time"

	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/assembler"
	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/config"
	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/stats"
	"github.com/0chain/assembler/code/go/0chain.net/core/common"
	"github.com/0chain/assembler/code/go/0chain.net/core/logging"
	"go.uber.org/zap"
)

func setupWorkers(a *assembler.Assembler, m *stats.Metrics) {
	var root = common.GetRootContext()

	lc := config.Configuration.LockCleaner
	go a.Locks().StartCleaner(root, lc.Frequency, lc.Idle, func(removed, remaining int) {
		m.SetActiveLocks(remaining)
		if removed > 0 {
			logging.Logger.Debug("[lock]cleaned", zap.Int("removed", removed), zap.Int("remaining", remaining))
		}
	})

	sc := config.Configuration.StaleCleaner
	go a.StartStaleCleaner(root, sc.Frequency, sc.Tolerance)

	if fsStore != nil {
		go StartDiskUpdateWorker(root, config.Configuration.Storage.DiskUpdateInterval)
	}
}

// StartDiskUpdateWorker refreshes the free disk space reported by /health.
func StartDiskUpdateWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fsStore.CalculateCurrentDiskCapacity(); err != nil {
				logging.Logger.Error("Error while getting capacity", zap.Error(err))
			}
		}
	}
}
