package tests

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"masstree/pkg/mtstore"
)

// TestScenario1_BasicRoundTrip covers spec.md §8 scenario 1.
func TestScenario1_BasicRoundTrip(t *testing.T) {
	store := mtstore.Open()
	defer store.Close()

	existed, err := store.Put([]byte("a"), []byte("ptr1"))
	require.NoError(t, err)
	require.False(t, existed)

	val, found := store.Get([]byte("a"))
	require.True(t, found)
	require.Equal(t, []byte("ptr1"), val)

	_, found = store.Get([]byte("b"))
	require.False(t, found)
}

// TestScenario2_BorderSplit covers spec.md §8 scenario 2: 16 keys
// sharing a 3-byte slice prefix overflow the root border on the 16th
// insert, producing a two-child interior root.
func TestScenario2_BorderSplit(t *testing.T) {
	store := mtstore.Open()
	defer store.Close()

	for i := 0; i < 16; i++ {
		key := []byte(fmt.Sprintf("k%02d", i))
		_, err := store.Put(key, []byte(fmt.Sprintf("v%d", i)))
		require.NoError(t, err)
	}

	for i := 0; i < 16; i++ {
		key := []byte(fmt.Sprintf("k%02d", i))
		val, ok := store.Get(key)
		require.True(t, ok, "key %s must be retrievable", key)
		require.Equal(t, []byte(fmt.Sprintf("v%d", i)), val)
	}
}

// TestScenario3_MultiLayerPromotion covers spec.md §8 scenario 3: two
// keys sharing an 8-byte slice prefix promote into a second layer.
func TestScenario3_MultiLayerPromotion(t *testing.T) {
	store := mtstore.Open()
	defer store.Close()

	a := []byte("prefix00suffixA")
	b := []byte("prefix00suffixB")

	_, err := store.Put(a, []byte("valueA"))
	require.NoError(t, err)
	_, err = store.Put(b, []byte("valueB"))
	require.NoError(t, err)

	gotA, ok := store.Get(a)
	require.True(t, ok)
	require.Equal(t, []byte("valueA"), gotA)

	gotB, ok := store.Get(b)
	require.True(t, ok)
	require.Equal(t, []byte("valueB"), gotB)
}

// TestScenario4_AscendingInsertsAllRetrievable inserts 200 keys in
// ascending order and checks that every one is retrievable. The
// sibling chain and per-border key counts are not inspected here.
func TestScenario4_AscendingInsertsAllRetrievable(t *testing.T) {
	store := mtstore.Open()
	defer store.Close()

	const n = 200
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key%06d", i))
		_, err := store.Put(key, []byte(fmt.Sprintf("v%d", i)))
		require.NoError(t, err)
	}

	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key%06d", i))
		val, ok := store.Get(key)
		require.True(t, ok, "key %s must be retrievable", key)
		require.Equal(t, []byte(fmt.Sprintf("v%d", i)), val)
	}
}

// TestScenario5_ConcurrentDisjointInserts covers spec.md §8 scenario 5.
func TestScenario5_ConcurrentDisjointInserts(t *testing.T) {
	store := mtstore.Open()
	defer store.Close()

	const threads = 8
	const perThread = 1250 // 8 * 1250 = 10000

	var wg sync.WaitGroup
	for tID := 0; tID < threads; tID++ {
		wg.Add(1)
		go func(tID int) {
			defer wg.Done()
			for i := 0; i < perThread; i++ {
				idx := tID*perThread + i
				key := []byte(fmt.Sprintf("%06d", idx))
				if _, err := store.Put(key, []byte(fmt.Sprintf("v%d", idx))); err != nil {
					panic(err)
				}
			}
		}(tID)
	}
	wg.Wait()

	for idx := 0; idx < threads*perThread; idx++ {
		key := []byte(fmt.Sprintf("%06d", idx))
		val, ok := store.Get(key)
		require.True(t, ok, "key %s must be retrievable", key)
		require.Equal(t, []byte(fmt.Sprintf("v%d", idx)), val)
	}
}

// TestScenario6_IdempotentPut covers spec.md §8 scenario 6.
func TestScenario6_IdempotentPut(t *testing.T) {
	store := mtstore.Open()
	defer store.Close()

	key := []byte("repeated-key")
	existed, err := store.Put(key, []byte("v1"))
	require.NoError(t, err)
	require.False(t, existed)

	existed, err = store.Put(key, []byte("v1"))
	require.NoError(t, err)
	require.True(t, existed)

	val, ok := store.Get(key)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), val)
}
