// pkg/masstree/node_test.go
package masstree

import (
	"bytes"
	"testing"
	"unsafe"
)

func valPtr(s string) unsafe.Pointer {
	b := []byte(s)
	return unsafe.Pointer(&b)
}

func TestInsertAndSearchRoundTrip(t *testing.T) {
	n := newNode(true, true)
	key := []byte("hello")
	v := valPtr("world")

	res := n.insert(key, 0, v, nil)
	if res.status != statusOK {
		t.Fatalf("insert status = %v, want statusOK", res.status)
	}

	got, next, found := n.search(key, 0)
	if !found || next != nil {
		t.Fatalf("search did not find inserted key")
	}
	if *(*[]byte)(got) == nil || !bytes.Equal(*(*[]byte)(got), []byte("world")) {
		t.Errorf("search returned wrong value")
	}
}

func TestInsertSameKeyTwiceIsKeyExists(t *testing.T) {
	n := newNode(true, true)
	key := []byte("dup")
	v := valPtr("v1")

	if res := n.insert(key, 0, v, nil); res.status != statusOK {
		t.Fatalf("first insert status = %v", res.status)
	}
	res := n.insert(key, 0, v, nil)
	if res.status != statusKeyExists {
		t.Fatalf("second insert status = %v, want statusKeyExists", res.status)
	}
}

func TestInsertDistinctKeysSameSliceIsDuplicate(t *testing.T) {
	n := newNode(true, true)
	a := []byte("prefix00suffixA")
	b := []byte("prefix00suffixB")

	if res := n.insert(a, 0, valPtr("A"), nil); res.status != statusOK {
		t.Fatalf("insert a status = %v", res.status)
	}
	res := n.insert(b, 0, valPtr("B"), nil)
	if res.status != statusDuplicate {
		t.Fatalf("insert b status = %v, want statusDuplicate", res.status)
	}

	physIdx, conflictKey, conflictVal, ok := n.getConflictKeyIndex(b, 0)
	if !ok {
		t.Fatal("getConflictKeyIndex did not find the colliding entry")
	}
	if !bytes.Equal(conflictKey, a) {
		t.Errorf("conflictKey = %q, want %q", conflictKey, a)
	}
	if !bytes.Equal(*(*[]byte)(conflictVal), []byte("A")) {
		t.Errorf("conflictVal = %q, want %q", *(*[]byte)(conflictVal), "A")
	}
	_ = physIdx
}

func TestInsertFullReturnsStatusFull(t *testing.T) {
	n := newNode(true, true)
	for i := 0; i < maxSlots; i++ {
		key := []byte{byte(i), 0, 0, 0, 0, 0, 0, 0, 1}
		if res := n.insert(key, 0, valPtr("x"), nil); res.status != statusOK {
			t.Fatalf("insert %d status = %v", i, res.status)
		}
	}
	key := []byte{99, 0, 0, 0, 0, 0, 0, 0, 1}
	res := n.insert(key, 0, valPtr("x"), nil)
	if res.status != statusFull {
		t.Fatalf("insert into full node status = %v, want statusFull", res.status)
	}
}

func TestReplaceAtIndexConvertsToLink(t *testing.T) {
	n := newNode(true, true)
	key := []byte("link-me")
	n.insert(key, 0, valPtr("v"), nil)

	slice, _ := sliceAt(key, 0)
	p := loadPermutation(n)
	logicalPos, found := findSlice(n, p, slice)
	if !found {
		t.Fatal("expected to find inserted slice")
	}
	idx := p.nth(logicalPos)

	child := newNode(true, true)
	n.replaceAtIndex(idx, child)

	if n.keylen[idx] != linkMarker {
		t.Errorf("keylen after replace = %d, want linkMarker", n.keylen[idx])
	}
	_, next, found := n.search(key, 0)
	if found || next != child {
		t.Errorf("search after replace = (found=%v, next=%v), want (false, child)", found, next)
	}
}

func TestIncludeKey(t *testing.T) {
	n := newNode(true, true)
	n.insert([]byte("mmm"), 0, valPtr("v"), nil)

	if !n.includeKey([]byte("zzz"), 0) {
		t.Error("expected zzz (larger slice) to be included")
	}
	if n.includeKey([]byte("aaa"), 0) {
		t.Error("expected aaa (smaller slice) to not be included")
	}
}
