// pkg/masstree/version.go
package masstree

import (
	"runtime"
	"sync/atomic"
)

// The version word packs the lock/structural-change bits and the two
// monotonic counters described by the node primitive (spec §3) and the
// version/lock protocol (spec §4.2). Layout, low bit first:
//
//	bit 0       LOCKED
//	bit 1       INSERTING
//	bit 2       SPLITTING
//	bit 3       IS_BORDER
//	bit 4       IS_ROOT
//	bit 5       DELETED
//	bits 6-18   VINSERT  (13-bit counter)
//	bits 19-31  VSPLIT   (13-bit counter)
type version uint32

const (
	vLocked    version = 1 << 0
	vInserting version = 1 << 1
	vSplitting version = 1 << 2
	vIsBorder  version = 1 << 3
	vIsRoot    version = 1 << 4
	vDeleted   version = 1 << 5

	vInsertShift = 6
	vInsertBits  = 13
	vInsertMask  = version((1<<vInsertBits)-1) << vInsertShift

	vSplitShift = vInsertShift + vInsertBits
	vSplitBits  = 13
	vSplitMask  = version((1<<vSplitBits)-1) << vSplitShift
)

func newVersion(isBorder, isRoot bool) version {
	var v version
	if isBorder {
		v |= vIsBorder
	}
	if isRoot {
		v |= vIsRoot
	}
	return v
}

func (v version) locked() bool     { return v&vLocked != 0 }
func (v version) inserting() bool  { return v&vInserting != 0 }
func (v version) splitting() bool  { return v&vSplitting != 0 }
func (v version) isBorder() bool   { return v&vIsBorder != 0 }
func (v version) isRoot() bool     { return v&vIsRoot != 0 }
func (v version) deleted() bool    { return v&vDeleted != 0 }
func (v version) vinsert() uint32  { return uint32((v & vInsertMask) >> vInsertShift) }
func (v version) vsplit() uint32   { return uint32((v & vSplitMask) >> vSplitShift) }

func (v version) withoutRoot() version    { return v &^ vIsRoot }
func (v version) withRoot() version       { return v | vIsRoot }
func (v version) withoutBorder() version  { return v &^ vIsBorder }
func (v version) withBorder() version     { return v | vIsBorder }

// loadVersion is an acquire load of a node's version word.
func loadVersion(n *Node) version {
	return version(atomic.LoadUint32(&n.version))
}

func storeVersion(n *Node, v version) {
	atomic.StoreUint32(&n.version, uint32(v))
}

func casVersion(n *Node, old, new version) bool {
	return atomic.CompareAndSwapUint32(&n.version, uint32(old), uint32(new))
}

// stableVersion spins until neither INSERTING nor SPLITTING is raised
// and returns that snapshot (spec §4.2, "stable_version").
func stableVersion(n *Node) version {
	spins := 0
	for {
		v := loadVersion(n)
		if !v.inserting() && !v.splitting() {
			return v
		}
		pause(&spins)
	}
}

// lock spin-waits until the LOCKED bit is clear, then CASes it set.
// Acquire semantics on success (spec §4.2, "lock").
func lock(n *Node) {
	spins := 0
	for {
		v := loadVersion(n)
		if v.locked() {
			pause(&spins)
			continue
		}
		if casVersion(n, v, v|vLocked) {
			return
		}
		pause(&spins)
	}
}

// unlock releases a locked node. If INSERTING (resp. SPLITTING) was
// raised during the critical section, its counter is bumped and the
// bit cleared before the lock is released, per spec §4.2 "unlock".
func unlock(n *Node) {
	for {
		v := loadVersion(n)
		if !v.locked() {
			panic("masstree: unlock of unlocked node")
		}
		next := v &^ vLocked
		if v.inserting() {
			next = next &^ vInserting
			next = (next &^ vInsertMask) | version(((v.vinsert()+1)<<vInsertShift)&uint32(vInsertMask))
		}
		if v.splitting() {
			next = next &^ vSplitting
			next = (next &^ vSplitMask) | version(((v.vsplit()+1)<<vSplitShift)&uint32(vSplitMask))
		}
		if casVersion(n, v, next) {
			return
		}
	}
}

// setInserting raises the INSERTING bit; caller must hold the lock.
func setInserting(n *Node) {
	v := loadVersion(n)
	storeVersion(n, v|vInserting)
}

// setSplitting raises the SPLITTING bit; caller must hold the lock.
func setSplitting(n *Node) {
	v := loadVersion(n)
	storeVersion(n, v|vSplitting)
}

func setDeleted(n *Node) {
	for {
		v := loadVersion(n)
		if casVersion(n, v, v|vDeleted) {
			return
		}
	}
}

// getLockedParent implements spec §4.2's "get_locked_parent": lock the
// parent, re-check it hasn't changed underneath us, retry otherwise.
func getLockedParent(n *Node) *Node {
	for {
		p := n.loadParent()
		if p == nil {
			return nil
		}
		lock(p)
		if n.loadParent() != p {
			unlock(p)
			continue
		}
		return p
	}
}

// pause implements the exponential-backoff spin wait used by lock()
// and the stable-version retry loops (spec §4.2, §5).
func pause(spins *int) {
	*spins++
	if *spins < 8 {
		for i := 0; i < 1<<uint(*spins); i++ {
			runtime.Gosched()
		}
		return
	}
	runtime.Gosched()
}
