// Package merge decides when the chunks of a file are complete and in which
// order they are concatenated.
package merge

import (
	"sort"

	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/chunkstore"
)

// Decision outcome of evaluating the stored chunks of a file
type Decision struct {
	Total    int64 `json:"total"`
	Expected int64 `json:"expected"`
	Merge    bool  `json:"merge"`
}

// ExpectedSize the larger of the declared sizes; 0 when neither is declared.
func ExpectedSize(fileSize, limit int64) int64 {
	switch {
	case fileSize > 0 && limit > 0:
		if fileSize > limit {
			return fileSize
		}
		return limit
	case fileSize > 0:
		return fileSize
	case limit > 0:
		return limit
	}
	return 0
}

// TotalSize sum of chunk sizes
func TotalSize(refs []chunkstore.ChunkRef) int64 {
	var total int64
	for _, ref := range refs {
		total += ref.Size
	}
	return total
}

// ShouldMerge a file is complete once the received bytes reach a known expected size.
// Chunk count and order say nothing about completeness.
func ShouldMerge(refs []chunkstore.ChunkRef, expected int64) bool {
	return expected > 0 && TotalSize(refs) >= expected
}

// Sort returns a copy of refs ascending by order. Refs with malformed names go last, by name.
func Sort(refs []chunkstore.ChunkRef) []chunkstore.ChunkRef {
	sorted := make([]chunkstore.ChunkRef, len(refs))
	copy(sorted, refs)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Malformed != b.Malformed {
			return !a.Malformed
		}
		if a.Malformed {
			return a.Name < b.Name
		}
		return a.Order < b.Order
	})
	return sorted
}

// Evaluate applies the merge rule to refs with the sizes declared by the current chunk.
func Evaluate(refs []chunkstore.ChunkRef, fileSize, limit int64) Decision {
	d := Decision{
		Total:    TotalSize(refs),
		Expected: ExpectedSize(fileSize, limit),
	}
	d.Merge = ShouldMerge(refs, d.Expected)
	return d
}
