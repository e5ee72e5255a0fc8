package assembler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/chunkstore"
	"github.com/0chain/assembler/code/go/0chain.net/core/logging"
	"github.com/remeh/sizedwaitgroup"
	"go.uber.org/zap"
)

// StaleCleanInterval default frequency of the stale chunk sweep
var StaleCleanInterval = 10 * time.Minute

// CleanupStaleChunks deletes the chunks of assemblies that received nothing for
// longer than tolerance. Merged files leave nothing behind, so only uploads that
// never completed are touched. It returns the number of assemblies reaped.
func (a *Assembler) CleanupStaleChunks(ctx context.Context, tolerance time.Duration) (int, error) {
	assemblies, err := a.store.ListAssemblies(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-tolerance)
	var reaped atomic.Int32

	swg := sizedwaitgroup.New(a.staleWorkers)
	for _, as := range assemblies {
		if as.LastModified.After(cutoff) {
			continue
		}
		swg.Add()
		go func(as chunkstore.Assembly) {
			defer swg.Done()
			if a.reap(ctx, as.FileID, cutoff) {
				reaped.Add(1)
			}
		}(as)
	}
	swg.Wait()

	n := int(reaped.Load())
	a.metrics.RecordStaleReaped(n)
	return n, nil
}

func (a *Assembler) reap(ctx context.Context, fileID string, cutoff time.Time) bool {
	mutex := a.locks.Acquire(fileID)
	defer mutex.Unlock()

	refs, err := a.store.ListChunks(ctx, fileID)
	if err != nil {
		logging.Logger.Error("[stale]list", zap.String("file_id", fileID), zap.Error(err))
		return false
	}
	for _, ref := range refs {
		// a chunk arrived since the listing
		if ref.ModTime.After(cutoff) {
			return false
		}
	}

	if err := a.store.DeleteChunks(ctx, fileID, refs); err != nil {
		logging.Logger.Warn("[stale]delete", zap.String("file_id", fileID), zap.Error(err))
		return false
	}
	a.locks.Remove(fileID)

	logging.Logger.Info("[stale]reaped", zap.String("file_id", fileID), zap.Int("chunks", len(refs)))
	return true
}

// StartStaleCleaner runs CleanupStaleChunks every frequency until ctx is done.
func (a *Assembler) StartStaleCleaner(ctx context.Context, frequency, tolerance time.Duration) {
	if frequency <= 0 {
		frequency = StaleCleanInterval
	}
	ticker := time.NewTicker(frequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.CleanupStaleChunks(ctx, tolerance)
			if err != nil {
				logging.Logger.Error("[stale]sweep", zap.Error(err))
				continue
			}
			if n > 0 {
				logging.Logger.Info("[stale]sweep", zap.Int("reaped", n))
			}
		}
	}
}
