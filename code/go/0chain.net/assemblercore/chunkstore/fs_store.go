package chunkstore

// Disk layout:
//
//	<base_dir>/<temp_dir>/<hex(fileId)>/<order>.chunk   staged chunks
//	<base_dir>/<temp_dir>/<hex(fileId)>/<order>.chunk.<id>.part   chunk being written
//	<base_dir>/merged_<fileName>   merged artifacts
//	<base_dir>/.merge.<id>.part   merge being written
//
// The file id is hex encoded, one directory per file id.

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/0chain/assembler/code/go/0chain.net/core/logging"
	zerrors "github.com/0chain/errors"
	"github.com/minio/sha256-simd"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

type FSStore struct {
	baseDir string
	tempDir string

	diskCapacity atomic.Uint64
}

// SetupFSStore creates the base and temp directories and returns a disk backed store.
func SetupFSStore(baseDir, tempDir string) (*FSStore, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, err
	}

	fs := &FSStore{
		baseDir: abs,
		tempDir: filepath.Join(abs, tempDir),
	}

	if err := createDirs(fs.tempDir); err != nil {
		return nil, err
	}

	return fs, nil
}

func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

func (fs *FSStore) chunkDir(fileID string) string {
	return filepath.Join(fs.tempDir, FileKey(fileID))
}

func (fs *FSStore) SaveChunk(ctx context.Context, fileID string, order int, r io.Reader) (*ChunkRef, error) {
	dir := fs.chunkDir(fileID)
	if err := createDirs(dir); err != nil {
		return nil, zerrors.Throw(ErrStorageWrite, err.Error())
	}

	chunkPath := filepath.Join(dir, ChunkName(order))

	w, err := NewChunkWriter(chunkPath)
	if errors.Is(err, os.ErrNotExist) {
		// dir removed by a concurrent DeleteChunks
		if err = createDirs(dir); err == nil {
			w, err = NewChunkWriter(chunkPath)
		}
	}
	if err != nil {
		return nil, zerrors.Throw(ErrStorageWrite, err.Error())
	}
	defer w.Close()

	if _, err := w.WriteChunk(ctx, r); err != nil {
		return nil, zerrors.Throw(ErrStorageWrite, err.Error())
	}

	if err := w.Commit(); err != nil {
		return nil, zerrors.Throw(ErrStorageWrite, err.Error())
	}

	finfo, err := os.Stat(chunkPath)
	if err != nil {
		return nil, zerrors.Throw(ErrStorageWrite, err.Error())
	}

	ref := newChunkRef(finfo.Name(), chunkPath, finfo.Size(), finfo.ModTime())
	return &ref, nil
}

func (fs *FSStore) ListChunks(ctx context.Context, fileID string) ([]ChunkRef, error) {
	dir := fs.chunkDir(fileID)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, zerrors.Throw(ErrStorageRead, err.Error())
	}

	refs := make([]ChunkRef, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsChunkName(e.Name()) {
			continue
		}
		finfo, err := e.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				// removed between ReadDir and Info
				continue
			}
			return nil, zerrors.Throw(ErrStorageRead, err.Error())
		}
		refs = append(refs, newChunkRef(e.Name(), filepath.Join(dir, e.Name()), finfo.Size(), finfo.ModTime()))
	}

	return refs, nil
}

func (fs *FSStore) MergeChunks(ctx context.Context, fileID, fileName string, refs []ChunkRef) (*MergeOutput, error) {
	dst := filepath.Join(fs.baseDir, MergedName(fileName))
	dir := fs.chunkDir(fileID)

	w, err := NewMergeWriter(dst)
	if err != nil {
		return nil, zerrors.Throw(ErrStorageMerge, err.Error())
	}
	defer w.Close()

	h := sha256.New()
	out := io.MultiWriter(w, h)
	buf := make([]byte, CopyBufferSize)

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, zerrors.Throw(ErrStorageMerge, err.Error())
		}
		if err := copyChunk(out, filepath.Join(dir, ref.Name), buf); err != nil {
			return nil, zerrors.Throw(ErrStorageMerge, ref.Name+": "+err.Error())
		}
	}

	size := w.Size()
	if err := w.Commit(); err != nil {
		return nil, zerrors.Throw(ErrStorageMerge, err.Error())
	}

	return &MergeOutput{
		Path:   dst,
		Size:   size,
		Digest: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

func copyChunk(dst io.Writer, chunkPath string, buf []byte) error {
	f, err := os.Open(chunkPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.CopyBuffer(dst, f, buf)
	return err
}

func (fs *FSStore) DeleteChunks(ctx context.Context, fileID string, refs []ChunkRef) error {
	dir := fs.chunkDir(fileID)

	var failed []string
	for _, ref := range refs {
		err := os.Remove(filepath.Join(dir, ref.Name))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.Logger.Warn("delete chunk",
				zap.String("file_id", fileID),
				zap.String("chunk", ref.Name),
				zap.Error(err))
			failed = append(failed, ref.Name)
		}
	}

	// fails while anything is left in it, e.g. a concurrent write
	if err := os.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Logger.Debug("keep chunk dir", zap.String("file_id", fileID), zap.Error(err))
	}

	if len(failed) > 0 {
		return zerrors.Throw(ErrStorageDelete, failed...)
	}
	return nil
}

func (fs *FSStore) ListAssemblies(ctx context.Context) ([]Assembly, error) {
	entries, err := os.ReadDir(fs.tempDir)
	if err != nil {
		return nil, zerrors.Throw(ErrStorageRead, err.Error())
	}

	var assemblies []Assembly
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		fileID, ok := ParseFileKey(e.Name())
		if !ok {
			continue
		}

		a := Assembly{FileID: fileID}
		files, err := os.ReadDir(filepath.Join(fs.tempDir, e.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			finfo, err := f.Info()
			if err != nil {
				continue
			}
			if IsChunkName(f.Name()) {
				a.Chunks++
			}
			if finfo.ModTime().After(a.LastModified) {
				a.LastModified = finfo.ModTime()
			}
		}
		if a.LastModified.IsZero() {
			if dinfo, err := e.Info(); err == nil {
				a.LastModified = dinfo.ModTime()
			}
		}
		assemblies = append(assemblies, a)
	}

	return assemblies, nil
}

// CalculateCurrentDiskCapacity refreshes the free space available under the base dir.
func (fs *FSStore) CalculateCurrentDiskCapacity() error {
	var volStat unix.Statfs_t
	err := unix.Statfs(fs.baseDir, &volStat)
	if err != nil {
		logging.Logger.Error("CalculateCurrentDiskCapacity: unix.Statfs", zap.String("dir", fs.baseDir), zap.Error(err))
		return err
	}

	fs.diskCapacity.Store(volStat.Bavail * uint64(volStat.Bsize))
	return nil
}

// GetCurrentDiskCapacity free bytes as of the last CalculateCurrentDiskCapacity
func (fs *FSStore) GetCurrentDiskCapacity() uint64 {
	return fs.diskCapacity.Load()
}

func createDirs(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		err = os.MkdirAll(dir, 0700)
		if err != nil {
			return err
		}
	}
	return nil
}
