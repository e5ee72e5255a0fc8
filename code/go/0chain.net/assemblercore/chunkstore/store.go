package chunkstore

import (
	"context"
	"encoding/hex"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/0chain/errors"
)

const (
	// ChunkExt suffix of a fully written chunk
	ChunkExt = ".chunk"
	// PartExt suffix of an in-flight write; never listed
	PartExt = ".part"
	// MergedPrefix prefix of merged artifacts
	MergedPrefix = "merged_"
	// MergeTempPrefix prefix of a merge in progress
	MergeTempPrefix = ".merge."

	// MaxNameLength longest file name the disk store can create (NAME_MAX)
	MaxNameLength = 255

	// CopyBufferSize chunks and merges are streamed in 1MB slices
	CopyBufferSize = 1024 * 1024
)

var (
	ErrStorageWrite  = errors.New("storage_write_error", "could not persist chunk")
	ErrStorageMerge  = errors.New("storage_merge_error", "could not merge chunks")
	ErrStorageRead   = errors.New("storage_read_error", "could not list chunks")
	ErrStorageDelete = errors.New("storage_delete_error", "could not delete chunks")
)

var timeNow = time.Now

// ChunkRef a stored chunk of one file
type ChunkRef struct {
	// Name of the chunk inside its file's staging area, e.g. "3.chunk"
	Name string `json:"name"`
	// Path location of the chunk on the backing medium
	Path string `json:"path"`
	// Order parsed from Name; meaningless when Malformed
	Order int `json:"order"`
	// Malformed Name carries no valid non-negative order
	Malformed bool      `json:"malformed,omitempty"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
}

// MergeOutput the merged artifact of a file
type MergeOutput struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Digest string `json:"sha256"`
}

// Assembly a file that still has staged chunks
type Assembly struct {
	FileID       string
	Chunks       int
	LastModified time.Time
}

// ChunkStore persists chunks and merged artifacts. It does no locking of its own.
type ChunkStore interface {
	// SaveChunk stores the chunk for (fileID, order), replacing any previous one.
	// Readers never observe a partially written chunk.
	SaveChunk(ctx context.Context, fileID string, order int, r io.Reader) (*ChunkRef, error)
	// ListChunks returns the fully written chunks of fileID.
	ListChunks(ctx context.Context, fileID string) ([]ChunkRef, error)
	// MergeChunks concatenates refs, in the given order, into the merged artifact for fileName.
	MergeChunks(ctx context.Context, fileID, fileName string, refs []ChunkRef) (*MergeOutput, error)
	// DeleteChunks removes refs. Every ref is attempted; the error lists the ones left behind.
	DeleteChunks(ctx context.Context, fileID string, refs []ChunkRef) error
	// ListAssemblies enumerates files that have staged chunks.
	ListAssemblies(ctx context.Context) ([]Assembly, error)
}

// ChunkName name of the chunk stored for order
func ChunkName(order int) string {
	return strconv.Itoa(order) + ChunkExt
}

// ParseChunkName extracts the order from a chunk name.
func ParseChunkName(name string) (order int, ok bool) {
	token := strings.TrimSuffix(name, ChunkExt)
	n, err := strconv.Atoi(token)
	if err != nil || n < 0 || token != strconv.Itoa(n) {
		return 0, false
	}
	return n, true
}

// IsChunkName reports whether name is a committed chunk, well formed or not.
func IsChunkName(name string) bool {
	return strings.HasSuffix(name, ChunkExt) && !strings.HasPrefix(name, ".")
}

// MergedName name of the merged artifact for fileName
func MergedName(fileName string) string {
	return MergedPrefix + fileName
}

// FileKey path-safe, reversible encoding of a file id. Distinct ids never share a key.
func FileKey(fileID string) string {
	return hex.EncodeToString([]byte(fileID))
}

// ParseFileKey decodes a FileKey.
func ParseFileKey(key string) (string, bool) {
	b, err := hex.DecodeString(key)
	if err != nil || len(b) == 0 {
		return "", false
	}
	return string(b), true
}

func newChunkRef(name, path string, size int64, modTime time.Time) ChunkRef {
	order, ok := ParseChunkName(name)
	return ChunkRef{
		Name:      name,
		Path:      path,
		Order:     order,
		Malformed: !ok,
		Size:      size,
		ModTime:   modTime,
	}
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

func withContext(ctx context.Context, r io.Reader) io.Reader {
	if ctx == nil {
		return r
	}
	return &contextReader{ctx: ctx, r: r}
}
