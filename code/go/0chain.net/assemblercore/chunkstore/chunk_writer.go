package chunkstore

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/lithammer/shortuuid/v3"
)

// ChunkWriter writes a file under a unique temporary name next to its final
// path and moves it into place on Commit.
type ChunkWriter struct {
	file      string
	temp      string
	writer    *os.File
	size      int64
	committed bool
}

// NewChunkWriter create a ChunkWriter for the final path file
func NewChunkWriter(file string) (*ChunkWriter, error) {
	return newChunkWriter(file, file+"."+shortuuid.New()+PartExt)
}

// NewMergeWriter create a ChunkWriter with a fixed length temporary name next to file
func NewMergeWriter(file string) (*ChunkWriter, error) {
	return newChunkWriter(file, filepath.Join(filepath.Dir(file), MergeTempPrefix+shortuuid.New()+PartExt))
}

func newChunkWriter(file, temp string) (*ChunkWriter, error) {
	f, err := os.OpenFile(temp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	return &ChunkWriter{
		file:   file,
		temp:   temp,
		writer: f,
	}, nil
}

// Write implements io.Writer
func (w *ChunkWriter) Write(b []byte) (n int, err error) {
	if w == nil || w.writer == nil {
		return 0, os.ErrClosed
	}

	written, err := w.writer.Write(b)

	w.size += int64(written)

	return written, err
}

// WriteChunk copies src until EOF or until ctx is done
func (w *ChunkWriter) WriteChunk(ctx context.Context, src io.Reader) (int64, error) {
	if w == nil || w.writer == nil {
		return 0, os.ErrClosed
	}

	buf := make([]byte, CopyBufferSize)
	return io.CopyBuffer(w, withContext(ctx, src), buf)
}

// Size bytes written so far
func (w *ChunkWriter) Size() int64 {
	if w == nil {
		return 0
	}
	return w.size
}

// Commit flushes the temporary file and renames it onto the final path.
func (w *ChunkWriter) Commit() error {
	if w == nil || w.writer == nil {
		return os.ErrClosed
	}

	err := w.writer.Sync()
	if cerr := w.writer.Close(); err == nil {
		err = cerr
	}
	w.writer = nil

	if err == nil {
		err = os.Rename(w.temp, w.file)
	}
	if err != nil {
		os.Remove(w.temp) //nolint:errcheck
		return err
	}

	w.committed = true
	return nil
}

// Close discards the temporary file unless Commit succeeded
func (w *ChunkWriter) Close() {
	if w == nil || w.committed {
		return
	}

	if w.writer != nil {
		w.writer.Close()
		w.writer = nil
	}

	os.Remove(w.temp) //nolint:errcheck
}
