package assembler

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/chunkstore"
	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/merge"
	"github.com/0chain/errors"
)

// ChunkMetadata describes one inbound chunk.
type ChunkMetadata struct {
	Order    int    `json:"order"`
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
	Offset   int64  `json:"offset"`
	Limit    int64  `json:"limit"`
	FileSize int64  `json:"fileSize"`
}

// ExpectedSize total size the file is declared to have, 0 when unknown.
func (m *ChunkMetadata) ExpectedSize() int64 {
	return merge.ExpectedSize(m.FileSize, m.Limit)
}

// Limits bounds on acceptable metadata
type Limits struct {
	MaxFileSize     int64
	MaxFileIDLength int
	// AllowedFileTypes lower case extensions without the dot; empty allows any
	AllowedFileTypes map[string]struct{}
}

func fileTypes(types []string) map[string]struct{} {
	if len(types) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "."))
		if t != "" {
			m[t] = struct{}{}
		}
	}
	return m
}

// Validate rejects metadata before anything is written.
func (m *ChunkMetadata) Validate(l Limits) error {
	if m.FileID == "" {
		return errors.Throw(ErrInvalidMetadata, "fileId is required")
	}
	if l.MaxFileIDLength > 0 && len(m.FileID) > l.MaxFileIDLength {
		return errors.Throw(ErrInvalidMetadata, "fileId longer than "+strconv.Itoa(l.MaxFileIDLength))
	}
	if m.FileName == "" {
		return errors.Throw(ErrInvalidMetadata, "fileName is required")
	}
	if m.FileName == "." || m.FileName == ".." || strings.ContainsAny(m.FileName, `/\`) || filepath.Base(m.FileName) != m.FileName {
		return errors.Throw(ErrInvalidMetadata, "fileName must be a plain file name")
	}
	if len(chunkstore.MergedName(m.FileName)) > chunkstore.MaxNameLength {
		return errors.Throw(ErrInvalidMetadata, "fileName longer than "+strconv.Itoa(chunkstore.MaxNameLength-len(chunkstore.MergedPrefix))+" bytes")
	}
	if m.Order < 0 {
		return errors.Throw(ErrInvalidMetadata, "order must not be negative")
	}
	if m.Offset < 0 || m.Limit < 0 || m.FileSize < 0 {
		return errors.Throw(ErrInvalidMetadata, "offset, limit and fileSize must not be negative")
	}

	if len(l.AllowedFileTypes) > 0 {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(m.FileName), "."))
		if _, ok := l.AllowedFileTypes[ext]; !ok {
			return errors.Throw(ErrInvalidMetadata, "file type not allowed: "+ext)
		}
	}

	if l.MaxFileSize > 0 && m.ExpectedSize() > l.MaxFileSize {
		return errors.Throw(ErrInvalidMetadata, "file larger than "+strconv.FormatInt(l.MaxFileSize, 10)+" bytes")
	}
	return nil
}
