// pkg/masstree/split_test.go
package masstree

import "testing"

func fullBorderKey(i int) []byte {
	return []byte{byte(i >> 8), byte(i), 0, 0, 0, 0, 0, 0, byte('a' + i%26)}
}

func TestSplitBorderMovesUpperHalf(t *testing.T) {
	n := newNode(true, true)
	for i := 0; i < maxSlots; i++ {
		if res := n.insert(fullBorderKey(i), 0, valPtr("v"), nil); res.status != statusOK {
			t.Fatalf("insert %d failed: %v", i, res.status)
		}
	}

	lock(n)
	setSplitting(n)
	n1, fence := splitBorder(n)

	if got := loadPermutation(n).count(); got != 7 {
		t.Errorf("left count = %d, want 7", got)
	}
	if got := loadPermutation(n1).count(); got != 8 {
		t.Errorf("right count = %d, want 8", got)
	}
	if fence != n1.keyslice[loadPermutation(n1).nth(0)] {
		t.Errorf("fence %d does not match n1's smallest slice", fence)
	}
	if n.loadNext() != n1 {
		t.Error("n.next must point at n1 after split")
	}
	if n1.loadPrev() != n {
		t.Error("n1.prev must point at n after split")
	}
}

func TestSplitInteriorLiftsFenceWithoutStoringIt(t *testing.T) {
	n := newNode(false, true)
	leftmost := newNode(true, false)
	n.child[0].Store(leftmost)

	var fences []uint64
	for i := 0; i < maxSlots; i++ {
		slice := uint64((i + 1) * 100)
		fences = append(fences, slice)
		child := newNode(true, false)
		res := n.insertChildBySlice(slice, child)
		if res.status != statusOK {
			t.Fatalf("insertChildBySlice %d failed: %v", i, res.status)
		}
	}

	lock(n)
	setSplitting(n)
	n1, fence := splitInterior(n)

	if fence != fences[7] {
		t.Errorf("fence = %d, want %d (lifted position 7)", fence, fences[7])
	}
	if got := loadPermutation(n).count(); got != 7 {
		t.Errorf("left count = %d, want 7", got)
	}
	if got := loadPermutation(n1).count(); got != 7 {
		t.Errorf("right count = %d, want 7 (15 - 1 lifted - 7 left)", got)
	}
	for i := 0; i < loadPermutation(n1).count(); i++ {
		child := n1.child[i+1].Load()
		if child.loadParent() != n1 {
			t.Errorf("child at right position %d was not reparented to n1", i)
		}
	}
}
