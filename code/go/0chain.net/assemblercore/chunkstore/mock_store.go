package chunkstore

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/0chain/errors"
	"github.com/minio/sha256-simd"
)

type mockChunk struct {
	data    []byte
	modTime time.Time
}

// MockStore in-memory ChunkStore for tests. Failures and latency can be injected per call.
type MockStore struct {
	mu     sync.Mutex
	chunks map[string]map[string]mockChunk
	merged map[string][]byte

	// FailSave, FailMerge, FailDelete and FailList are returned, wrapped, by the matching call when set.
	FailSave   error
	FailMerge  error
	FailDelete error
	FailList   error

	latency    map[string]time.Duration
	mergeCalls map[string]int
}

func NewMockStore() *MockStore {
	return &MockStore{
		chunks:     make(map[string]map[string]mockChunk),
		merged:     make(map[string][]byte),
		latency:    make(map[string]time.Duration),
		mergeCalls: make(map[string]int),
	}
}

// SetLatency delays every SaveChunk and MergeChunks of fileID by d.
func (ms *MockStore) SetLatency(fileID string, d time.Duration) {
	ms.mu.Lock()
	ms.latency[fileID] = d
	ms.mu.Unlock()
}

// SetFailures replaces the injected failures.
func (ms *MockStore) SetFailures(save, merge, del error) {
	ms.mu.Lock()
	ms.FailSave, ms.FailMerge, ms.FailDelete = save, merge, del
	ms.mu.Unlock()
}

// PutRaw stores a chunk under an arbitrary name, bypassing ChunkName.
func (ms *MockStore) PutRaw(fileID, name string, data []byte, modTime time.Time) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.dir(fileID)[name] = mockChunk{data: append([]byte(nil), data...), modTime: modTime}
}

// Merged contents of the merged artifact for fileName.
func (ms *MockStore) Merged(fileName string) ([]byte, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	b, ok := ms.merged[fileName]
	return b, ok
}

// MergeCalls number of successful merges for fileID.
func (ms *MockStore) MergeCalls(fileID string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.mergeCalls[fileID]
}

// ChunkCount staged chunks of fileID.
func (ms *MockStore) ChunkCount(fileID string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.chunks[fileID])
}

func (ms *MockStore) dir(fileID string) map[string]mockChunk {
	d, ok := ms.chunks[fileID]
	if !ok {
		d = make(map[string]mockChunk)
		ms.chunks[fileID] = d
	}
	return d
}

func (ms *MockStore) wait(ctx context.Context, fileID string) error {
	ms.mu.Lock()
	d := ms.latency[fileID]
	ms.mu.Unlock()
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ms *MockStore) SaveChunk(ctx context.Context, fileID string, order int, r io.Reader) (*ChunkRef, error) {
	if err := ms.wait(ctx, fileID); err != nil {
		return nil, errors.Throw(ErrStorageWrite, err.Error())
	}

	data, err := io.ReadAll(withContext(ctx, r))
	if err != nil {
		return nil, errors.Throw(ErrStorageWrite, err.Error())
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.FailSave != nil {
		return nil, errors.Throw(ErrStorageWrite, ms.FailSave.Error())
	}

	name := ChunkName(order)
	now := timeNow()
	ms.dir(fileID)[name] = mockChunk{data: data, modTime: now}

	ref := newChunkRef(name, "mem://"+FileKey(fileID)+"/"+name, int64(len(data)), now)
	return &ref, nil
}

func (ms *MockStore) ListChunks(ctx context.Context, fileID string) ([]ChunkRef, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.FailList != nil {
		return nil, errors.Throw(ErrStorageRead, ms.FailList.Error())
	}

	d := ms.chunks[fileID]
	refs := make([]ChunkRef, 0, len(d))
	for name, c := range d {
		refs = append(refs, newChunkRef(name, "mem://"+FileKey(fileID)+"/"+name, int64(len(c.data)), c.modTime))
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

func (ms *MockStore) MergeChunks(ctx context.Context, fileID, fileName string, refs []ChunkRef) (*MergeOutput, error) {
	if err := ms.wait(ctx, fileID); err != nil {
		return nil, errors.Throw(ErrStorageMerge, err.Error())
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.FailMerge != nil {
		return nil, errors.Throw(ErrStorageMerge, ms.FailMerge.Error())
	}

	var buf bytes.Buffer
	d := ms.chunks[fileID]
	for _, ref := range refs {
		c, ok := d[ref.Name]
		if !ok {
			return nil, errors.Throw(ErrStorageMerge, ref.Name+": not found")
		}
		buf.Write(c.data)
	}

	ms.merged[fileName] = buf.Bytes()
	ms.mergeCalls[fileID]++

	sum := sha256.Sum256(buf.Bytes())
	return &MergeOutput{
		Path:   "mem://" + MergedName(fileName),
		Size:   int64(buf.Len()),
		Digest: hex.EncodeToString(sum[:]),
	}, nil
}

func (ms *MockStore) DeleteChunks(ctx context.Context, fileID string, refs []ChunkRef) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.FailDelete != nil {
		return errors.Throw(ErrStorageDelete, ms.FailDelete.Error())
	}

	d := ms.chunks[fileID]
	for _, ref := range refs {
		delete(d, ref.Name)
	}
	if len(d) == 0 {
		delete(ms.chunks, fileID)
	}
	return nil
}

func (ms *MockStore) ListAssemblies(ctx context.Context) ([]Assembly, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.FailList != nil {
		return nil, errors.Throw(ErrStorageRead, ms.FailList.Error())
	}

	assemblies := make([]Assembly, 0, len(ms.chunks))
	for fileID, d := range ms.chunks {
		a := Assembly{FileID: fileID}
		for name, c := range d {
			if IsChunkName(name) {
				a.Chunks++
			}
			if c.modTime.After(a.LastModified) {
				a.LastModified = c.modTime
			}
		}
		assemblies = append(assemblies, a)
	}
	sort.Slice(assemblies, func(i, j int) bool { return assemblies[i].FileID < assemblies[j].FileID })
	return assemblies, nil
}
