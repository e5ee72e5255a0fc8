//go:build !integration
// +build !integration

package chunkstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	zerrors "github.com/0chain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFSStore(t *testing.T) *FSStore {
	t.Helper()
	fs, err := SetupFSStore(t.TempDir(), "temp")
	require.NoError(t, err)
	return fs
}

func TestFSStoreSaveAndList(t *testing.T) {
	fs := setupFSStore(t)
	ctx := context.TODO()

	refs, err := fs.ListChunks(ctx, "f1")
	require.NoError(t, err)
	assert.Empty(t, refs, "missing staging area lists as empty")

	ref, err := fs.SaveChunk(ctx, "f1", 1, strings.NewReader("world"))
	require.NoError(t, err)
	assert.Equal(t, "1.chunk", ref.Name)
	assert.Equal(t, 1, ref.Order)
	assert.EqualValues(t, 5, ref.Size)
	assert.FileExists(t, ref.Path)

	_, err = fs.SaveChunk(ctx, "f1", 0, strings.NewReader("hello "))
	require.NoError(t, err)

	// chunks of another file id sharing a prefix are never listed
	_, err = fs.SaveChunk(ctx, "f1_x", 0, strings.NewReader("other"))
	require.NoError(t, err)

	refs, err = fs.ListChunks(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, refs, 2)

	var total int64
	for _, r := range refs {
		total += r.Size
	}
	assert.EqualValues(t, 11, total)
}

func TestFSStoreOverwrite(t *testing.T) {
	fs := setupFSStore(t)
	ctx := context.TODO()

	_, err := fs.SaveChunk(ctx, "f1", 0, strings.NewReader("first version"))
	require.NoError(t, err)
	ref, err := fs.SaveChunk(ctx, "f1", 0, strings.NewReader("second"))
	require.NoError(t, err)

	refs, err := fs.ListChunks(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.EqualValues(t, 6, refs[0].Size)

	b, err := os.ReadFile(ref.Path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(b))
}

type failingReader struct{ n int }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.n == 0 {
		return 0, errors.New("connection reset")
	}
	r.n--
	return copy(p, "xx"), nil
}

func TestFSStoreSaveFailureLeavesNothing(t *testing.T) {
	fs := setupFSStore(t)
	ctx := context.TODO()

	_, err := fs.SaveChunk(ctx, "f1", 0, &failingReader{n: 2})
	require.Error(t, err)
	assert.True(t, zerrors.Is(err, ErrStorageWrite))

	refs, err := fs.ListChunks(ctx, "f1")
	require.NoError(t, err)
	assert.Empty(t, refs)

	entries, err := os.ReadDir(fs.chunkDir("f1"))
	require.NoError(t, err)
	assert.Empty(t, entries, "partial artifact must be removed")
}

func TestFSStoreIgnoresPartFiles(t *testing.T) {
	fs := setupFSStore(t)
	ctx := context.TODO()

	_, err := fs.SaveChunk(ctx, "f1", 0, strings.NewReader("abc"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(fs.chunkDir("f1"), "1.chunk.abc"+PartExt), []byte("zz"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(fs.chunkDir("f1"), "x.chunk"), []byte("zz"), 0600))

	refs, err := fs.ListChunks(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, refs, 2)

	var malformed int
	for _, r := range refs {
		if r.Malformed {
			malformed++
			assert.Equal(t, "x.chunk", r.Name)
		}
	}
	assert.Equal(t, 1, malformed)
}

func TestFSStoreMergeAndDelete(t *testing.T) {
	fs := setupFSStore(t)
	ctx := context.TODO()

	a := bytes.Repeat([]byte("a"), 500)
	b := bytes.Repeat([]byte("b"), 500)

	_, err := fs.SaveChunk(ctx, "f1", 1, bytes.NewReader(b))
	require.NoError(t, err)
	_, err = fs.SaveChunk(ctx, "f1", 0, bytes.NewReader(a))
	require.NoError(t, err)

	refs := []ChunkRef{
		newChunkRef("0.chunk", "", 500, time.Time{}),
		newChunkRef("1.chunk", "", 500, time.Time{}),
	}

	out, err := fs.MergeChunks(ctx, "f1", "doc.png", refs)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fs.BaseDir(), "merged_doc.png"), out.Path)
	assert.EqualValues(t, 1000, out.Size)

	merged, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{}, a...), b...), merged)

	sum := sha256.Sum256(merged)
	assert.Equal(t, hex.EncodeToString(sum[:]), out.Digest)

	require.NoError(t, fs.DeleteChunks(ctx, "f1", refs))
	refs, err = fs.ListChunks(ctx, "f1")
	require.NoError(t, err)
	assert.Empty(t, refs)
	assert.NoDirExists(t, fs.chunkDir("f1"))
}

func TestFSStoreMergeMissingChunk(t *testing.T) {
	fs := setupFSStore(t)
	ctx := context.TODO()

	_, err := fs.SaveChunk(ctx, "f1", 0, strings.NewReader("abc"))
	require.NoError(t, err)

	refs := []ChunkRef{
		newChunkRef("0.chunk", "", 3, time.Time{}),
		newChunkRef("1.chunk", "", 3, time.Time{}),
	}
	_, err = fs.MergeChunks(ctx, "f1", "doc.png", refs)
	require.Error(t, err)
	assert.True(t, zerrors.Is(err, ErrStorageMerge))

	assert.NoFileExists(t, filepath.Join(fs.BaseDir(), "merged_doc.png"))

	entries, err := os.ReadDir(fs.BaseDir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), PartExt), "temp merge file left behind: %s", e.Name())
	}
}

func TestFSStoreMergeLongFileName(t *testing.T) {
	fs := setupFSStore(t)
	ctx := context.TODO()

	// merged_<name> is 255 bytes, the longest name the file system allows
	fileName := strings.Repeat("a", MaxNameLength-len(MergedPrefix)-len(".png")) + ".png"

	ref, err := fs.SaveChunk(ctx, "f1", 0, strings.NewReader("abcd"))
	require.NoError(t, err)

	out, err := fs.MergeChunks(ctx, "f1", fileName, []ChunkRef{*ref})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fs.BaseDir(), MergedName(fileName)), out.Path)
	assert.EqualValues(t, 4, out.Size)
	assert.FileExists(t, out.Path)
}

func TestFSStoreListAssemblies(t *testing.T) {
	fs := setupFSStore(t)
	ctx := context.TODO()

	_, err := fs.SaveChunk(ctx, "f1", 0, strings.NewReader("abc"))
	require.NoError(t, err)
	_, err = fs.SaveChunk(ctx, "f1", 1, strings.NewReader("def"))
	require.NoError(t, err)
	_, err = fs.SaveChunk(ctx, "f2", 0, strings.NewReader("ghi"))
	require.NoError(t, err)

	assemblies, err := fs.ListAssemblies(ctx)
	require.NoError(t, err)
	require.Len(t, assemblies, 2)

	byID := map[string]Assembly{}
	for _, a := range assemblies {
		byID[a.FileID] = a
	}
	assert.Equal(t, 2, byID["f1"].Chunks)
	assert.Equal(t, 1, byID["f2"].Chunks)
	assert.False(t, byID["f1"].LastModified.IsZero())
}

func TestFSStoreDiskCapacity(t *testing.T) {
	fs := setupFSStore(t)
	require.NoError(t, fs.CalculateCurrentDiskCapacity())
	assert.NotZero(t, fs.GetCurrentDiskCapacity())
}
