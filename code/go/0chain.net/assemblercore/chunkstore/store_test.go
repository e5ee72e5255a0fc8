//go:build !integration
// +build !integration

package chunkstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChunkName(t *testing.T) {
	tests := []struct {
		name  string
		order int
		ok    bool
	}{
		{name: "0.chunk", order: 0, ok: true},
		{name: "17.chunk", order: 17, ok: true},
		{name: "-1.chunk", ok: false},
		{name: "01.chunk", ok: false},
		{name: "+1.chunk", ok: false},
		{name: "abc.chunk", ok: false},
		{name: ".chunk", ok: false},
		{name: "1.5.chunk", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, ok := ParseChunkName(tt.name)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.order, order)
			}
		})
	}
}

func TestIsChunkName(t *testing.T) {
	assert.True(t, IsChunkName("3.chunk"))
	assert.True(t, IsChunkName("abc.chunk"))
	assert.False(t, IsChunkName("3.chunk.Xyz.part"))
	assert.False(t, IsChunkName(".chunk"))
	assert.False(t, IsChunkName("readme.txt"))
}

func TestFileKeyRoundTrip(t *testing.T) {
	for _, id := range []string{"f1", "f1_x", "../../etc", "файл"} {
		key := FileKey(id)
		assert.NotContains(t, key, "/")

		got, ok := ParseFileKey(key)
		require.True(t, ok)
		assert.Equal(t, id, got)
	}

	assert.NotEqual(t, FileKey("f1"), FileKey("f1_x"))

	_, ok := ParseFileKey("zz")
	assert.False(t, ok)
	_, ok = ParseFileKey("")
	assert.False(t, ok)
}

func TestNewChunkRefMalformed(t *testing.T) {
	ref := newChunkRef("x.chunk", "/tmp/x.chunk", 3, timeNow())
	assert.True(t, ref.Malformed)

	ref = newChunkRef("4.chunk", "/tmp/4.chunk", 3, timeNow())
	assert.False(t, ref.Malformed)
	assert.Equal(t, 4, ref.Order)
	assert.Equal(t, "merged_doc.png", MergedName("doc.png"))
}
