//go:build !integration
// +build !integration

package assembler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/chunkstore"
	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupStaleChunks(t *testing.T) {
	store := chunkstore.NewMockStore()
	m := stats.InitMetrics(prometheus.NewRegistry())
	a := New(store, nil, WithMetrics(m), WithStaleWorkers(2))
	ctx := context.TODO()

	old := time.Now().Add(-48 * time.Hour)
	for _, id := range []string{"old1", "old2", "old3"} {
		store.PutRaw(id, "0.chunk", []byte("abc"), old)
		store.PutRaw(id, "1.chunk", []byte("def"), old)
	}

	_, err := a.ReceiveChunk(ctx, meta("fresh", 0, 100), strings.NewReader("abc"))
	require.NoError(t, err)

	n, err := a.CleanupStaleChunks(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.StaleReaped))

	for _, id := range []string{"old1", "old2", "old3"} {
		assert.Equal(t, 0, store.ChunkCount(id))
	}
	assert.Equal(t, 1, store.ChunkCount("fresh"))
	assert.Equal(t, 1, a.Locks().Len(), "only the live upload keeps a lock")

	// a reaped file id can start over
	res, err := a.ReceiveChunk(ctx, meta("old1", 0, 3), strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, StatusMerged, res.Status)
}

func TestCleanupStaleChunksSkipsRecentChunk(t *testing.T) {
	store := chunkstore.NewMockStore()
	a := New(store, nil)

	store.PutRaw("f1", "0.chunk", []byte("abc"), time.Now().Add(-48*time.Hour))
	store.PutRaw("f1", "1.chunk", []byte("def"), time.Now())

	n, err := a.CleanupStaleChunks(context.TODO(), 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, store.ChunkCount("f1"))
}

func TestCleanupStaleChunksListFailure(t *testing.T) {
	store := chunkstore.NewMockStore()
	store.FailList = errors.New("unreachable")
	a := New(store, nil)

	_, err := a.CleanupStaleChunks(context.TODO(), time.Hour)
	require.Error(t, err)
}

func TestStartStaleCleaner(t *testing.T) {
	store := chunkstore.NewMockStore()
	a := New(store, nil)

	store.PutRaw("f1", "0.chunk", []byte("abc"), time.Now().Add(-time.Hour))

	ctx, cancel := context.WithCancel(context.TODO())
	done := make(chan struct{})
	go func() {
		a.StartStaleCleaner(ctx, 10*time.Millisecond, time.Minute)
		close(done)
	}()

	require.Eventually(t, func() bool { return store.ChunkCount("f1") == 0 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}
