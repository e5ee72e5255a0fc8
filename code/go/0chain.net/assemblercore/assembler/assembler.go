package assembler

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/chunkstore"
	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/merge"
	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/stats"
	"github.com/0chain/assembler/code/go/0chain.net/core/lock"
	"github.com/0chain/assembler/code/go/0chain.net/core/logging"
	"github.com/0chain/errors"
	"go.uber.org/zap"
)

const (
	DefaultMaxFileSize     = 50 * 1024 * 1024
	DefaultMaxFileIDLength = 120
	DefaultRetiredSize     = 10000
	DefaultRetiredTTL      = 24 * time.Hour
	DefaultStaleWorkers    = 5
)

type Status string

const (
	StatusStored Status = "stored"
	StatusMerged Status = "merged"
)

// Result outcome of a received chunk
type Result struct {
	Status             Status `json:"status"`
	ChunkPath          string `json:"chunk_path,omitempty"`
	TotalBytesReceived int64  `json:"total_bytes_received"`
	Path               string `json:"path,omitempty"`
	Size               int64  `json:"size,omitempty"`
	Digest             string `json:"sha256,omitempty"`
}

// Assembler stores chunks as they arrive and merges a file exactly once,
// when the bytes received reach its declared size.
type Assembler struct {
	store   chunkstore.ChunkStore
	locks   *lock.Registry
	metrics *stats.Metrics

	limits       Limits
	retired      *retiredLedger
	retiredSize  int
	retiredTTL   time.Duration
	staleWorkers int
}

type Option func(a *Assembler)

func WithMaxFileSize(n int64) Option {
	return func(a *Assembler) { a.limits.MaxFileSize = n }
}

// WithAllowedFileTypes restricts fileName extensions; an empty list allows any.
func WithAllowedFileTypes(types []string) Option {
	return func(a *Assembler) { a.limits.AllowedFileTypes = fileTypes(types) }
}

func WithMaxFileIDLength(n int) Option {
	return func(a *Assembler) { a.limits.MaxFileIDLength = n }
}

// WithRetired bounds the ledger of merged file ids.
func WithRetired(size int, ttl time.Duration) Option {
	return func(a *Assembler) {
		a.retiredSize = size
		a.retiredTTL = ttl
	}
}

func WithMetrics(m *stats.Metrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

// WithStaleWorkers number of assemblies the stale cleaner reaps concurrently.
func WithStaleWorkers(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.staleWorkers = n
		}
	}
}

func New(store chunkstore.ChunkStore, locks *lock.Registry, opts ...Option) *Assembler {
	a := &Assembler{
		store: store,
		locks: locks,
		limits: Limits{
			MaxFileSize:     DefaultMaxFileSize,
			MaxFileIDLength: DefaultMaxFileIDLength,
		},
		retiredSize:  DefaultRetiredSize,
		retiredTTL:   DefaultRetiredTTL,
		staleWorkers: DefaultStaleWorkers,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.locks == nil {
		a.locks = lock.NewRegistry()
	}
	a.retired = newRetiredLedger(a.retiredSize, a.retiredTTL)
	return a
}

// Locks the registry the assembler serializes file ids on
func (a *Assembler) Locks() *lock.Registry {
	return a.locks
}

// Retired number of merged file ids currently remembered
func (a *Assembler) Retired() int {
	return a.retired.len()
}

// Limits in effect for inbound metadata
func (a *Assembler) Limits() Limits {
	return a.limits
}

// ReceiveChunk stores one chunk and merges the file once it is complete.
func (a *Assembler) ReceiveChunk(ctx context.Context, meta ChunkMetadata, r io.Reader) (*Result, error) {
	if err := meta.Validate(a.limits); err != nil {
		a.metrics.RecordChunk(stats.ChunkRejected, 0)
		return nil, err
	}

	if rf, ok := a.retired.get(meta.FileID); ok {
		// a retry of a merged chunk; its size is unknown until read, so the name decides
		if rf.includesName(chunkstore.ChunkName(meta.Order)) {
			a.metrics.RecordChunk(stats.ChunkMerged, 0)
			return mergedResult(&rf.Output), nil
		}
		a.metrics.RecordChunk(stats.ChunkRejected, 0)
		return nil, errors.Throw(ErrFileAlreadyMerged, meta.FileID)
	}

	body := r
	if a.limits.MaxFileSize > 0 {
		body = &capReader{r: r, limit: a.limits.MaxFileSize, remaining: a.limits.MaxFileSize}
	}

	ref, err := a.store.SaveChunk(ctx, meta.FileID, meta.Order, body)
	if err != nil {
		a.metrics.RecordChunk(stats.ChunkFailed, 0)
		logging.Logger.Error("save chunk",
			zap.String("file_id", meta.FileID),
			zap.Int("order", meta.Order),
			zap.Error(err))
		return nil, errors.Throw(ErrChunkWriteFailed, err.Error())
	}

	logging.Logger.Debug("chunk stored",
		zap.String("file_id", meta.FileID),
		zap.Int("order", meta.Order),
		zap.Int64("size", ref.Size))

	mutex := a.locks.Acquire(meta.FileID)
	defer func() {
		mutex.Unlock()
		a.metrics.SetActiveLocks(a.locks.Len())
	}()

	// merged while this chunk was being written
	if rf, ok := a.retired.get(meta.FileID); ok {
		if err := a.store.DeleteChunks(context.WithoutCancel(ctx), meta.FileID, []chunkstore.ChunkRef{*ref}); err != nil {
			logging.Logger.Warn("delete late chunk", zap.String("file_id", meta.FileID), zap.Error(err))
		}
		if rf.includes(ref) {
			a.metrics.RecordChunk(stats.ChunkMerged, ref.Size)
			return mergedResult(&rf.Output), nil
		}
		a.metrics.RecordChunk(stats.ChunkRejected, 0)
		return nil, errors.Throw(ErrFileAlreadyMerged, meta.FileID)
	}

	refs, err := a.store.ListChunks(ctx, meta.FileID)
	if err != nil {
		a.metrics.RecordChunk(stats.ChunkFailed, ref.Size)
		return nil, errors.Throw(ErrStoreUnavailable, err.Error())
	}

	decision := merge.Evaluate(refs, meta.FileSize, meta.Limit)
	if !decision.Merge {
		a.metrics.RecordChunk(stats.ChunkStored, ref.Size)
		return &Result{
			Status:             StatusStored,
			ChunkPath:          ref.Path,
			TotalBytesReceived: decision.Total,
		}, nil
	}

	out, err := a.mergeLocked(context.WithoutCancel(ctx), meta, refs, decision)
	if err != nil {
		a.metrics.RecordChunk(stats.ChunkFailed, ref.Size)
		return nil, err
	}

	a.metrics.RecordChunk(stats.ChunkMerged, ref.Size)
	return mergedResult(out), nil
}

func mergedResult(out *chunkstore.MergeOutput) *Result {
	return &Result{
		Status:             StatusMerged,
		TotalBytesReceived: out.Size,
		Path:               out.Path,
		Size:               out.Size,
		Digest:             out.Digest,
	}
}

// mergeLocked runs under the file id lock, with a context the request cannot cancel.
func (a *Assembler) mergeLocked(ctx context.Context, meta ChunkMetadata, refs []chunkstore.ChunkRef, decision merge.Decision) (*chunkstore.MergeOutput, error) {
	sorted := merge.Sort(refs)

	start := time.Now()
	out, err := a.store.MergeChunks(ctx, meta.FileID, meta.FileName, sorted)
	if err != nil {
		a.metrics.RecordMerge(stats.MergeFailed, time.Since(start))
		logging.Logger.Error("merge chunks",
			zap.String("file_id", meta.FileID),
			zap.Int("chunks", len(sorted)),
			zap.Error(err))
		return nil, errors.Throw(ErrMergeFailed, err.Error())
	}
	a.metrics.RecordMerge(stats.MergeOK, time.Since(start))

	logging.Logger.Info("file merged",
		zap.String("file_id", meta.FileID),
		zap.String("file_name", meta.FileName),
		zap.Int("chunks", len(sorted)),
		zap.Int64("total", decision.Total),
		zap.Int64("expected", decision.Expected),
		zap.String("path", out.Path))

	if err := a.store.DeleteChunks(ctx, meta.FileID, sorted); err != nil {
		a.metrics.RecordCleanupFailure()
		logging.Logger.Warn("cleanup chunks",
			zap.String("file_id", meta.FileID),
			zap.Error(errors.Throw(ErrCleanupFailed, err.Error())))
	}

	a.retired.add(meta.FileID, *out, sorted)
	a.locks.Remove(meta.FileID)

	return out, nil
}

// FileState lifecycle of a file id as derived from the store and the retired ledger.
type FileState string

const (
	StateUnknown        FileState = "unknown"
	StateAwaitingChunks FileState = "awaiting_chunks"
	StateRetired        FileState = "retired"
)

// FileStatus observed state of one file id
type FileStatus struct {
	FileID             string                  `json:"file_id"`
	State              FileState               `json:"state"`
	TotalBytesReceived int64                   `json:"total_bytes_received"`
	Chunks             int                     `json:"chunks"`
	Merged             *chunkstore.MergeOutput `json:"merged,omitempty"`
}

// State reports where fileID is in its lifecycle.
func (a *Assembler) State(ctx context.Context, fileID string) (*FileStatus, error) {
	st := &FileStatus{FileID: fileID, State: StateUnknown}

	if rf, ok := a.retired.get(fileID); ok {
		st.State = StateRetired
		st.Chunks = len(rf.Chunks)
		st.TotalBytesReceived = rf.Output.Size
		st.Merged = &rf.Output
		return st, nil
	}

	refs, err := a.store.ListChunks(ctx, fileID)
	if err != nil {
		return nil, errors.Throw(ErrStoreUnavailable, err.Error())
	}
	if len(refs) > 0 {
		st.State = StateAwaitingChunks
		st.Chunks = len(refs)
		st.TotalBytesReceived = merge.TotalSize(refs)
	}
	return st, nil
}

// capReader fails once more than remaining bytes are read.
type capReader struct {
	r         io.Reader
	limit     int64
	remaining int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return 0, errors.New("chunk_too_large", "chunk exceeds "+strconv.FormatInt(c.limit, 10)+" bytes")
	}
	return n, err
}
