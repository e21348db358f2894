// pkg/masstree/split.go
package masstree

import "unsafe"

// borderSlot is a materialized border entry used while splitting, in
// logical (sorted) order.
type borderSlot struct {
	slice   uint64
	keylen  int32
	fullLen int32
	suffix  []byte
	val     unsafe.Pointer
	isLink  bool
	link    *Node
}

// splitBorder splits a full, locked border node n, returning the new
// right sibling n1 and the fence key (spec §4.4, "Border split").
// n must be locked and SPLITTING must already be raised on it.
func splitBorder(n *Node) (n1 *Node, fence uint64) {
	p := loadPermutation(n)
	count := p.count()

	ordered := make([]borderSlot, count)
	for i := 0; i < count; i++ {
		idx := p.nth(i)
		ordered[i] = borderSlot{
			slice:   n.keyslice[idx],
			keylen:  n.keylen[idx],
			fullLen: n.fullLen[idx],
			suffix:  n.suffix[idx],
			val:     n.val[idx],
			isLink:  n.keylen[idx] == linkMarker,
			link:    n.link[idx].Load(),
		}
	}

	// Lowest 7 stay in n, upper 8 move to n1 (spec §4.4: "lowest 7
	// remain in n, upper 8 move to n1").
	left, right := ordered[:7], ordered[7:]

	n1 = newNode(true, false)
	storeVersion(n1, loadVersion(n)) // "born locked and splitting"

	writeBorderSlots(n, left)
	writeBorderSlots(n1, right)

	n1.storeParent(n.loadParent())

	// Every LINK entry that moved to n1 points at a sub-layer root whose
	// layerAnchor still references n; repoint it at n1 now that n no
	// longer holds that LINK (spec §4.4's promote_split "p is a border
	// node" case relies on layerAnchor always naming the current holder).
	for _, s := range right {
		if s.isLink && s.link != nil {
			lock(s.link)
			s.link.storeAnchor(n1)
			unlock(s.link)
		}
	}

	// Splice n1 into the sibling list between n and n.next, publishing
	// n.next last with release (spec §4.4).
	oldNext := n.loadNext()
	n1.prev.Store(n)
	n1.next.Store(oldNext)
	if oldNext != nil {
		oldNext.prev.Store(n1)
	}
	n.next.Store(n1)

	fence = right[0].slice
	return n1, fence
}

func writeBorderSlots(n *Node, slots []borderSlot) {
	for i, s := range slots {
		n.keyslice[i] = s.slice
		n.keylen[i] = s.keylen
		n.fullLen[i] = s.fullLen
		n.suffix[i] = s.suffix
		n.val[i] = s.val
		if s.isLink {
			n.link[i].Store(s.link)
		}
	}
	storePermutation(n, identityPermutation(len(slots)))
}

func identityPermutation(count int) permutation {
	p := emptyPermutation().withCount(count)
	for i := 0; i < count; i++ {
		p = p.withNth(i, i)
	}
	return p
}

// interiorKey is a materialized interior (fence, right-child) pair
// used while splitting, in logical (sorted) order.
type interiorKey struct {
	slice uint64
	child *Node
}

// splitInterior splits a full, locked interior node n. The key at
// logical position 7 is lifted as the fence and is NOT stored in
// either half (spec §4.4, "Interior split").
func splitInterior(n *Node) (n1 *Node, fence uint64) {
	p := loadPermutation(n)
	count := p.count()

	// children[i+1] is the right child of keys[i]; children[0] is the
	// leftmost child, covering slices less than keys[0].
	ordered := make([]interiorKey, count)
	for i := 0; i < count; i++ {
		idx := p.nth(i)
		ordered[i] = interiorKey{slice: n.keyslice[idx], child: n.child[idx+1].Load()}
	}
	leftmostChild := n.child[0].Load()

	fence = ordered[7].slice

	left := ordered[:7]
	right := ordered[8:]

	n1 = newNode(false, false)
	storeVersion(n1, loadVersion(n))
	n1.storeParent(n.loadParent())

	// Left half keeps its own child[0] and gets keys/children [0..6].
	writeInteriorSlots(n, leftmostChild, left)
	// Right half's child[0] is the child that followed the lifted
	// fence key.
	writeInteriorSlots(n1, ordered[7].child, right)

	// Every child moved into n1 (including its child[0]) must now point
	// up at n1, not n.
	reparent(ordered[7].child, n1)
	for _, k := range right {
		reparent(k.child, n1)
	}

	return n1, fence
}

// reparent repoints a child's parent pointer at its new owner after a
// split moves it into a different node (spec §4.4, "Interior split").
func reparent(child, newParent *Node) {
	if child == nil {
		return
	}
	child.storeParent(newParent)
}

func writeInteriorSlots(n *Node, child0 *Node, keys []interiorKey) {
	n.child[0].Store(child0)
	for i, k := range keys {
		n.keyslice[i] = k.slice
		n.child[i+1].Store(k.child)
	}
	storePermutation(n, identityPermutation(len(keys)))
}
