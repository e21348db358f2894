// pkg/masstree/perm_test.go
package masstree

import "testing"

func TestPermutationInsertKeepsOrder(t *testing.T) {
	n := newNode(true, true)

	slices := []uint64{30, 10, 20}
	p := loadPermutation(n)
	for i, s := range slices {
		n.keyslice[i] = s
		logicalPos, found := findSlice(n, p, s)
		if found {
			t.Fatalf("unexpected duplicate for slice %d", s)
		}
		p = p.inserted(logicalPos, i)
	}
	storePermutation(n, p)

	if got := p.count(); got != 3 {
		t.Fatalf("count = %d, want 3", got)
	}

	want := []uint64{10, 20, 30}
	for i, w := range want {
		got := n.keyslice[p.nth(i)]
		if got != w {
			t.Errorf("logical position %d = %d, want %d", i, got, w)
		}
	}
}

func TestFindSliceExactAndMiss(t *testing.T) {
	n := newNode(true, true)
	p := emptyPermutation()
	for i, s := range []uint64{5, 15, 25} {
		n.keyslice[i] = s
		p = p.inserted(i, i)
	}
	storePermutation(n, p)

	if _, found := findSlice(n, p, 15); !found {
		t.Error("expected to find slice 15")
	}
	if _, found := findSlice(n, p, 16); found {
		t.Error("did not expect to find slice 16")
	}
}

func TestLocateChildLogical(t *testing.T) {
	n := newNode(false, true)
	p := emptyPermutation()
	for i, s := range []uint64{10, 20, 30} {
		n.keyslice[i] = s
		p = p.inserted(i, i)
	}
	storePermutation(n, p)

	cases := []struct {
		slice uint64
		want  int
	}{
		{5, 0},
		{10, 1},
		{15, 1},
		{30, 3},
		{100, 3},
	}
	for _, c := range cases {
		if got := locateChildLogical(n, p, c.slice); got != c.want {
			t.Errorf("locateChildLogical(%d) = %d, want %d", c.slice, got, c.want)
		}
	}
}
