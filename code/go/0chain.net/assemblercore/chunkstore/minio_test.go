//go:build !integration
// +build !integration

package chunkstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	zerrors "github.com/0chain/errors"
	"github.com/minio/minio-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	data    []byte
	modTime time.Time
}

// fakeBucket objectClient backed by a map
type fakeBucket struct {
	mu        sync.Mutex
	objects   map[string]fakeObject
	failPut   map[string]error
	failGet   map[string]error
	failRm    map[string]error
	removeLog []string
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{
		objects: map[string]fakeObject{},
		failPut: map[string]error{},
		failGet: map[string]error{},
		failRm:  map[string]error{},
	}
}

func (b *fakeBucket) putObject(ctx context.Context, key string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failPut[key]; err != nil {
		return 0, err
	}
	b.objects[key] = fakeObject{data: data, modTime: time.Now()}
	return int64(len(data)), nil
}

func (b *fakeBucket) getObject(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failGet[key]; err != nil {
		return nil, err
	}
	o, ok := b.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return io.NopCloser(bytes.NewReader(o.data)), nil
}

func (b *fakeBucket) listObjects(ctx context.Context, prefix string) ([]minio.ObjectInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []minio.ObjectInfo
	for k, o := range b.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, minio.ObjectInfo{Key: k, Size: int64(len(o.data)), LastModified: o.modTime})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (b *fakeBucket) removeObject(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLog = append(b.removeLog, key)
	if err := b.failRm[key]; err != nil {
		return err
	}
	delete(b.objects, key)
	return nil
}

func (b *fakeBucket) location(key string) string {
	return "assembler/" + key
}

func TestMinioStoreRoundTrip(t *testing.T) {
	bucket := newFakeBucket()
	ms := newMinioStore(bucket, "")
	ctx := context.TODO()

	ref, err := ms.SaveChunk(ctx, "f1", 1, strings.NewReader("world"))
	require.NoError(t, err)
	assert.Equal(t, "assembler/temp/"+FileKey("f1")+"/1.chunk", ref.Path)

	_, err = ms.SaveChunk(ctx, "f1", 0, strings.NewReader("hello "))
	require.NoError(t, err)
	_, err = ms.SaveChunk(ctx, "f1_x", 0, strings.NewReader("other"))
	require.NoError(t, err)

	refs, err := ms.ListChunks(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "0.chunk", refs[0].Name)
	assert.Equal(t, "1.chunk", refs[1].Name)

	out, err := ms.MergeChunks(ctx, "f1", "doc.png", refs)
	require.NoError(t, err)
	assert.Equal(t, "assembler/merged_doc.png", out.Path)
	assert.EqualValues(t, 11, out.Size)
	assert.Equal(t, "hello world", string(bucket.objects["merged_doc.png"].data))
	assert.Len(t, out.Digest, 64)

	assemblies, err := ms.ListAssemblies(ctx)
	require.NoError(t, err)
	assert.Len(t, assemblies, 2)

	require.NoError(t, ms.DeleteChunks(ctx, "f1", refs))
	refs, err = ms.ListChunks(ctx, "f1")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestMinioStoreFailures(t *testing.T) {
	bucket := newFakeBucket()
	ms := newMinioStore(bucket, "staging/")
	ctx := context.TODO()

	bucket.failPut["staging/"+FileKey("f1")+"/0.chunk"] = errors.New("503 SlowDown")
	_, err := ms.SaveChunk(ctx, "f1", 0, strings.NewReader("abc"))
	require.Error(t, err)
	assert.True(t, zerrors.Is(err, ErrStorageWrite))

	_, err = ms.SaveChunk(ctx, "f1", 1, strings.NewReader("abc"))
	require.NoError(t, err)
	_, err = ms.SaveChunk(ctx, "f1", 2, strings.NewReader("def"))
	require.NoError(t, err)
	refs, err := ms.ListChunks(ctx, "f1")
	require.NoError(t, err)

	bucket.failGet["staging/"+FileKey("f1")+"/2.chunk"] = errors.New("timeout")
	_, err = ms.MergeChunks(ctx, "f1", "doc.png", refs)
	require.Error(t, err)
	assert.True(t, zerrors.Is(err, ErrStorageMerge))
	_, exists := bucket.objects["merged_doc.png"]
	assert.False(t, exists)

	bucket.failRm["staging/"+FileKey("f1")+"/1.chunk"] = errors.New("denied")
	err = ms.DeleteChunks(ctx, "f1", refs)
	require.Error(t, err)
	assert.True(t, zerrors.Is(err, ErrStorageDelete))
	assert.Contains(t, err.Error(), "1.chunk")
	assert.Len(t, bucket.removeLog, 2, "every ref is attempted")
}
