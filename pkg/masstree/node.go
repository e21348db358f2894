// pkg/masstree/node.go
package masstree

import (
	"bytes"
	"sync/atomic"
	"unsafe"
)

// linkMarker is the keylen sentinel that marks a border entry as a
// pointer to the next layer's root (spec §3, "keylen[0..14] ... LINK").
const linkMarker = -1

// Node is the common node primitive (spec §4.1). A single struct backs
// both variants, discriminated by isBorder: the interior-only and
// border-only fields below are simply unused by the other kind. This
// mirrors the teacher's CowNode, which carries both an isLeaf flag and
// the union of leaf/interior fields in one struct
// (pkg/cowbtree/node.go).
type Node struct {
	version uint32 // atomic, see version.go
	perm    uint64 // atomic, see perm.go

	keyslice [maxSlots]uint64

	parent atomic.Pointer[Node]
	isBorder bool

	// layerAnchor is set only while this node is the root of its
	// layer AND that layer is not layer 0: it points to the border
	// node of the shallower layer holding the LINK entry that reaches
	// this layer (spec §4.4's promote_split "p is a border node"
	// case). It is distinct from parent, which always means "interior
	// ancestor within the same layer, nil iff this layer's root" per
	// spec §3 — keeping the two separate avoids the ambiguity of a
	// layer root's cross-layer anchor being confused with an ordinary
	// same-layer parent across repeated promotions (see DESIGN.md).
	layerAnchor atomic.Pointer[Node]

	// interior-only
	child [maxSlots + 1]atomic.Pointer[Node]

	// border-only
	keylen   [maxSlots]int32  // 0..8, or linkMarker
	fullLen  [maxSlots]int32  // full key length, non-LINK entries only
	suffix   [maxSlots][]byte // full original key bytes, non-LINK entries only
	val      [maxSlots]unsafe.Pointer
	link     [maxSlots]atomic.Pointer[Node]
	prev     atomic.Pointer[Node]
	next     atomic.Pointer[Node]
	nremoved int32 // atomic, reclamation hint (spec §3); never consulted (spec §9)
}

// newNode allocates a fresh node of the given kind (spec §4.1, "new").
func newNode(isBorder, isRoot bool) *Node {
	n := &Node{isBorder: isBorder}
	storeVersion(n, newVersion(isBorder, isRoot))
	return n
}

func (n *Node) loadParent() *Node   { return n.parent.Load() }
func (n *Node) storeParent(p *Node) { n.parent.Store(p) }

func (n *Node) loadAnchor() *Node   { return n.layerAnchor.Load() }
func (n *Node) storeAnchor(b *Node) { n.layerAnchor.Store(b) }

// findLinkSlot returns the physical slot index of the LINK entry in
// border node b that points at child, or -1 if none does.
func (b *Node) findLinkSlot(child *Node) int {
	p := loadPermutation(b)
	for i := 0; i < p.count(); i++ {
		idx := p.nth(i)
		if b.keylen[idx] == linkMarker && b.link[idx].Load() == child {
			return idx
		}
	}
	return -1
}

func (n *Node) loadNext() *Node { return n.next.Load() }
func (n *Node) loadPrev() *Node { return n.prev.Load() }

// sliceAt packs the 8-byte window of key starting at offset into a
// big-endian uint64, zero-padding past the key's end, and returns as
// sliceLen the number of key bytes in that window, min(8, remaining).
// It does not move any offset; callers advance their own offset by 8
// when they cross into the next layer (spec §3, §4.1 "locate_child";
// slice packing resolved from original_source/mass/node.c).
func sliceAt(key []byte, offset int) (slice uint64, sliceLen int) {
	if offset >= len(key) {
		return 0, 0
	}
	remaining := len(key) - offset
	n := remaining
	if n > 8 {
		n = 8
	}
	var buf [8]byte
	copy(buf[:], key[offset:offset+n])
	for i := 0; i < 8; i++ {
		slice = (slice << 8) | uint64(buf[i])
	}
	return slice, n
}

// locateChild is interior-only (spec §4.1, "locate_child"). offset is
// the layer's fixed byte offset: every interior node in the same layer
// compares the same 8-byte window, so descent through a layer's
// interior nodes never advances it — only crossing a border LINK into
// the next layer does (spec §4.4,
// "offset += 8").
func (n *Node) locateChild(key []byte, offset int) *Node {
	slice, _ := sliceAt(key, offset)
	p := loadPermutation(n)
	i := locateChildLogical(n, p, slice)
	return n.child[i].Load()
}

type insertStatus int

const (
	statusOK insertStatus = iota
	statusExists
	statusKeyExists
	statusDuplicate
	statusFull
)

type insertResult struct {
	status insertStatus
	next   *Node // valid when status == statusExists
	slot   int   // physical slot written, valid when status == statusOK
}

// insert requires n to be locked (spec §4.1, "insert"). A non-nil
// linkChild becomes a LINK entry in a border node, or the new key's
// right child in an interior node. The core driver passes nil: it
// creates border links with replaceAtIndex and promote_split inserts
// fences with insertChildBySlice; the general form is kept per spec's
// signature.
func (n *Node) insert(key []byte, offset int, val unsafe.Pointer, linkChild *Node) insertResult {
	slice, sliceLen := sliceAt(key, offset)
	p := loadPermutation(n)

	logicalPos, found := findSlice(n, p, slice)
	if found {
		physIdx := p.nth(logicalPos)
		if n.isBorder {
			if n.keylen[physIdx] == linkMarker {
				return insertResult{status: statusExists, next: n.link[physIdx].Load()}
			}
			// A non-LINK entry with the same slice is either the exact
			// same key re-inserted (idempotent put, spec §8 "Law:
			// Idempotence") or a genuinely different key that merely
			// shares this layer's 8-byte window (spec §4.4 "duplicate").
			// The four-variant sketch in spec §9 doesn't name the first
			// case separately from "Collides"; distinguishing them here
			// by full-key comparison is required to satisfy both the
			// idempotence law and scenario 6 (spec §8) without
			// spuriously promoting a re-inserted key into a new layer.
			if int(n.fullLen[physIdx]) == len(key) && bytes.Equal(n.suffix[physIdx], key) {
				return insertResult{status: statusKeyExists, slot: physIdx}
			}
			return insertResult{status: statusDuplicate}
		}
		// Interior nodes never hold two keys with the same slice; this
		// is only reachable while inserting a fence during split
		// promotion at the wrong node, a programming error.
		panic("masstree: interior insert found duplicate slice")
	}

	if p.count() == maxSlots {
		return insertResult{status: statusFull}
	}

	physIdx := p.count()
	n.keyslice[physIdx] = slice

	setInserting(n)

	if n.isBorder {
		if linkChild != nil {
			n.keylen[physIdx] = linkMarker
			n.link[physIdx].Store(linkChild)
		} else {
			n.keylen[physIdx] = int32(sliceLen)
			n.fullLen[physIdx] = int32(len(key))
			n.suffix[physIdx] = key
			n.val[physIdx] = val
		}
	} else {
		// Interior: child[physIdx+1] is the right child of the newly
		// inserted fence; child[0] is never touched by insert (it is
		// set once at split/root-growth time).
		n.child[physIdx+1].Store(linkChild)
	}

	newPerm := p.inserted(logicalPos, physIdx)
	storePermutation(n, newPerm)

	return insertResult{status: statusOK, slot: physIdx}
}

// insertChildBySlice inserts a raw 8-byte fence slice and its right
// child into a locked interior node, bypassing the key-bytes-based
// slice derivation insert() uses — promote_split (spec §4.4) lifts a
// fence as a bare uint64, not as original key bytes.
func (n *Node) insertChildBySlice(slice uint64, rightChild *Node) insertResult {
	p := loadPermutation(n)
	logicalPos, found := findSlice(n, p, slice)
	invariant(!found, "promote_split: fence slice already present in parent")

	if p.count() == maxSlots {
		return insertResult{status: statusFull}
	}

	physIdx := p.count()
	n.keyslice[physIdx] = slice
	setInserting(n)
	n.child[physIdx+1].Store(rightChild)
	storePermutation(n, p.inserted(logicalPos, physIdx))
	return insertResult{status: statusOK, slot: physIdx}
}

// getConflictKeyIndex is border-only (spec §4.1). It returns the
// physical index of the existing non-LINK entry colliding with key at
// offset, plus that entry's full stored key bytes and value, matching
// original_source/mass/node.c's full-key extraction (see SPEC_FULL.md
// §4 "conflict-key extraction"). The returned key is the slice the
// entry holds, not a copy.
func (n *Node) getConflictKeyIndex(key []byte, offset int) (physIdx int, conflictKey []byte, conflictVal unsafe.Pointer, ok bool) {
	slice, _ := sliceAt(key, offset)
	p := loadPermutation(n)
	logicalPos, found := findSlice(n, p, slice)
	if !found {
		return 0, nil, nil, false
	}
	idx := p.nth(logicalPos)
	if n.keylen[idx] == linkMarker {
		return 0, nil, nil, false
	}
	return idx, n.suffix[idx], n.val[idx], true
}

// replaceAtIndex converts a non-LINK border entry into a LINK entry
// pointing at newChild (spec §4.1, "replace_at_index").
func (n *Node) replaceAtIndex(idx int, newChild *Node) {
	setInserting(n)
	n.suffix[idx] = nil
	n.fullLen[idx] = 0
	n.val[idx] = nil
	n.keylen[idx] = linkMarker
	n.link[idx].Store(newChild)
}

// includeKey is border-only: true iff key's current slice is >= this
// node's smallest key (spec §4.1, "include_key"), used while walking
// the sibling chain after a concurrent split.
func (n *Node) includeKey(key []byte, offset int) bool {
	p := loadPermutation(n)
	if p.count() == 0 {
		return false
	}
	slice, _ := sliceAt(key, offset)
	smallest := n.keyslice[p.nth(0)]
	return slice >= smallest
}

// search implements spec §4.5 step 4: binary search the permutation
// for slice; (a) no match, (b) LINK match, or (c) exact full-key match.
func (n *Node) search(key []byte, offset int) (val unsafe.Pointer, next *Node, found bool) {
	slice, _ := sliceAt(key, offset)
	p := loadPermutation(n)
	logicalPos, ok := findSlice(n, p, slice)
	if !ok {
		return nil, nil, false
	}
	idx := p.nth(logicalPos)
	if n.keylen[idx] == linkMarker {
		return nil, n.link[idx].Load(), false
	}
	stored := n.suffix[idx]
	if int(n.fullLen[idx]) == len(key) && bytes.Equal(stored, key) {
		return n.val[idx], nil, true
	}
	return nil, nil, false
}
