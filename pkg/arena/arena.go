// pkg/arena/arena.go
//
// Package arena is the Allocator collaborator spec.md §6 describes
// ("alloc(bytes), free(ptr) for node storage"). It is adapted from the
// teacher's pkg/pager mmap files, which map a *file* for durable page
// storage; since on-disk durability is an explicit Non-goal for this
// core (spec.md §1), arena instead bump-allocates byte slices out of
// anonymous, non-file-backed mmap'd chunks, growing by mapping a new
// chunk when the current one is exhausted. Individual allocations are
// never freed on their own (spec.md §3, "Lifecycle": nodes/slots are
// never shrunk); an entire chunk is released only when the arena
// itself is closed.
//
// pkg/masstree's own Node struct stays an ordinary Go-managed
// allocation, so the garbage collector can scan its pointer fields
// normally; arena is instead used by pkg/mtstore to back the key/value
// byte copies that layer makes for its own KV-store ergonomics.
//
// A failed mmap is the allocation-failure condition spec.md:197 names
// ("surfaced upward as a fatal condition for the current operation"):
// Alloc returns the error rather than silently substituting a heap
// allocation, so callers can propagate it as a failed put.
package arena

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"masstree/pkg/mtlog"
)

// DefaultChunkSize is the size of each mmap'd chunk. Chosen to amortize
// the mmap syscall over many small key copies without over-committing
// address space for short-lived trees.
const DefaultChunkSize = 1 << 20 // 1 MiB

// Arena is a bump allocator over a sequence of mmap'd chunks.
type Arena struct {
	mu         sync.Mutex
	chunkSize  int
	chunks     []chunk
	cur        int // index into chunks of the chunk currently being filled
	offset     int // bump offset within chunks[cur]
}

type chunk struct {
	data []byte
}

// New creates an arena that grows in chunks of the given size (or
// DefaultChunkSize if size <= 0).
func New(chunkSize int) *Arena {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Arena{chunkSize: chunkSize}
}

// Alloc returns n freshly-zeroed bytes backed by the arena, or an
// error if the backing mmap could not be made (spec.md §7, Allocation
// failure). Requests larger than the chunk size are satisfied by a
// dedicated chunk sized exactly to the request.
func (a *Arena) Alloc(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if n > a.chunkSize {
		c, err := mapChunk(n)
		if err != nil {
			mtlog.L().Warn("arena: mmap failed", zap.Int("bytes", n), zap.Error(err))
			return nil, errors.Wrap(err, "arena: mmap failed")
		}
		a.chunks = append(a.chunks, c)
		return c.data, nil
	}

	if len(a.chunks) == 0 || a.offset+n > len(a.chunks[a.cur].data) {
		c, err := mapChunk(a.chunkSize)
		if err != nil {
			mtlog.L().Warn("arena: mmap failed", zap.Int("bytes", n), zap.Error(err))
			return nil, errors.Wrap(err, "arena: mmap failed")
		}
		a.chunks = append(a.chunks, c)
		a.cur = len(a.chunks) - 1
		a.offset = 0
	}

	buf := a.chunks[a.cur].data[a.offset : a.offset+n : a.offset+n]
	a.offset += n
	return buf, nil
}

// CopyBytes allocates len(b) bytes from the arena and copies b into
// them, returning the arena-backed copy. Used by callers (pkg/mtstore)
// that want their own copy independent of the caller-supplied slice's
// lifetime.
func (a *Arena) CopyBytes(b []byte) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	dst, err := a.Alloc(len(b))
	if err != nil {
		return nil, err
	}
	copy(dst, b)
	return dst, nil
}

// Close releases every mapped chunk. Callers must guarantee no
// concurrent reader still holds slices into the arena; pkg/mtstore
// calls Close right after its tree's Destroy, which does not wait for
// readers to leave.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var firstErr error
	for _, c := range a.chunks {
		if err := unmapChunk(c); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.chunks = nil
	return firstErr
}
