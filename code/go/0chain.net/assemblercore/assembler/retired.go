package assembler

import (
	"time"

	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/chunkstore"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// retiredFile a merged file id and the chunks that went into it
type retiredFile struct {
	Output chunkstore.MergeOutput
	// Chunks chunk name to size
	Chunks map[string]int64
}

// includes reports whether ref is one of the merged chunks.
func (f *retiredFile) includes(ref *chunkstore.ChunkRef) bool {
	size, ok := f.Chunks[ref.Name]
	return ok && size == ref.Size
}

func (f *retiredFile) includesName(name string) bool {
	_, ok := f.Chunks[name]
	return ok
}

// retiredLedger remembers merged file ids. It is bounded and entries expire,
// so a file id is only rejected for as long as it stays in the ledger.
type retiredLedger struct {
	lru *expirable.LRU[string, *retiredFile]
}

func newRetiredLedger(size int, ttl time.Duration) *retiredLedger {
	return &retiredLedger{lru: expirable.NewLRU[string, *retiredFile](size, nil, ttl)}
}

func (l *retiredLedger) add(fileID string, out chunkstore.MergeOutput, refs []chunkstore.ChunkRef) {
	chunks := make(map[string]int64, len(refs))
	for _, ref := range refs {
		chunks[ref.Name] = ref.Size
	}
	l.lru.Add(fileID, &retiredFile{Output: out, Chunks: chunks})
}

// get goes through Get, which honors expiry.
func (l *retiredLedger) get(fileID string) (*retiredFile, bool) {
	return l.lru.Get(fileID)
}

func (l *retiredLedger) len() int {
	return l.lru.Len()
}
