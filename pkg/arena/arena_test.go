// pkg/arena/arena_test.go
package arena

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCopyBytesIndependentOfSource(t *testing.T) {
	a := New(64)
	defer a.Close()

	src := []byte("hello")
	copied, err := a.CopyBytes(src)
	require.NoError(t, err)
	require.True(t, bytes.Equal(src, copied))

	src[0] = 'H'
	require.False(t, bytes.Equal(src, copied), "arena copy must not alias the source slice")
}

func TestAllocGrowsNewChunkWhenExhausted(t *testing.T) {
	a := New(16)
	defer a.Close()

	first, err := a.Alloc(10)
	require.NoError(t, err)
	second, err := a.Alloc(10) // does not fit in the remaining 6 bytes of chunk 0
	require.NoError(t, err)

	require.Len(t, first, 10)
	require.Len(t, second, 10)
	require.Len(t, a.chunks, 2)
}

func TestAllocOversizedRequestGetsDedicatedChunk(t *testing.T) {
	a := New(16)
	defer a.Close()

	big, err := a.Alloc(1024)
	require.NoError(t, err)
	require.Len(t, big, 1024)
}

func TestAllocSurfacesMmapFailureInsteadOfFallingBack(t *testing.T) {
	a := New(16)
	defer a.Close()

	_, err := a.Alloc(1 << 62) // larger than any real address space: mapChunk must fail, never silently fall back to heap
	require.Error(t, err)
}
