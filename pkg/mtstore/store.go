// pkg/mtstore/store.go
//
// Package mtstore is a thin KV-store facade over pkg/masstree (spec §1
// treats "a public client API beyond put/get" as an external
// collaborator concern). It adds the byte-slice value codec the core
// deliberately omits (masstree.Tree.Put takes an unsafe.Pointer, since
// value-type semantics are out of scope per spec §1) and per-instance
// identity/stats, mirroring the teacher's CowBTree.Stats() convention
// (pkg/cowbtree/cowbtree.go).
//
// pkg/masstree.Tree.Put stores the key pointer a caller hands it
// without copying (spec.md:184); this facade's own callers (e.g. the
// masstreedb shell's line scanner) may reuse their buffers across
// calls, so Store makes its own arena-backed copy of both key and
// value before handing them to the core, and owns the Allocator
// collaborator spec §6 describes.
package mtstore

import (
	"sync/atomic"
	"unsafe"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"masstree/pkg/arena"
	"masstree/pkg/masstree"
)

// Store wraps a *masstree.Tree with a []byte value codec and identity.
type Store struct {
	id    uuid.UUID
	tree  *masstree.Tree
	arena *arena.Arena

	puts int64 // atomic
	gets int64 // atomic
	hits int64 // atomic
}

// Open creates a fresh, empty store (spec §6 "create"; the UUID tags
// this instance for logging/Stats, grounded in the pack's convention of
// tagging long-lived store instances with a UUID rather than a path,
// since on-disk durability is an explicit Non-goal here).
func Open(opts ...masstree.Option) *Store {
	return &Store{
		id:    uuid.New(),
		tree:  masstree.Create(opts...),
		arena: arena.New(arena.DefaultChunkSize),
	}
}

// ID returns this store's instance identifier.
func (s *Store) ID() uuid.UUID { return s.id }

// Put stores a copy of key and value. Both are copied out of the
// arena before being handed to masstree.Tree.Put, since the core
// retains the exact pointers it is given (spec §6: "key_bytes must
// remain valid for the lifetime of the entry... value is an opaque
// pointer whose lifetime the caller manages") and Store's own callers
// cannot make that guarantee about the slices they pass in. A failed
// arena allocation is surfaced as masstree.ErrAllocationFailed (spec
// §7, "Allocation failure"). If key is already present, its stored
// value is left unchanged and existed is true.
func (s *Store) Put(key, value []byte) (existed bool, err error) {
	atomic.AddInt64(&s.puts, 1)

	keyCopy, err := s.arena.CopyBytes(key)
	if err != nil {
		return false, errors.Wrap(masstree.ErrAllocationFailed, err.Error())
	}
	valCopy, err := s.arena.CopyBytes(value)
	if err != nil {
		return false, errors.Wrap(masstree.ErrAllocationFailed, err.Error())
	}
	boxed := &valCopy

	_, existed, err = s.tree.Put(keyCopy, unsafe.Pointer(boxed))
	return existed, err
}

// Get looks up key, returning a copy of the stored value.
func (s *Store) Get(key []byte) ([]byte, bool) {
	atomic.AddInt64(&s.gets, 1)
	ptr, ok := s.tree.Get(key)
	if !ok {
		return nil, false
	}
	atomic.AddInt64(&s.hits, 1)
	boxed := (*[]byte)(ptr)
	return append([]byte(nil), (*boxed)...), true
}

// Close calls the underlying tree's Destroy and then releases the
// store's own arena.
func (s *Store) Close() error {
	if err := s.tree.Destroy(); err != nil {
		return err
	}
	return s.arena.Close()
}

// Stats is a point-in-time snapshot of instance activity.
type Stats struct {
	ID    uuid.UUID
	Puts  int64
	Gets  int64
	Hits  int64
}

// Stats returns a snapshot of this store's put/get counters.
func (s *Store) Stats() Stats {
	return Stats{
		ID:   s.id,
		Puts: atomic.LoadInt64(&s.puts),
		Gets: atomic.LoadInt64(&s.gets),
		Hits: atomic.LoadInt64(&s.hits),
	}
}
