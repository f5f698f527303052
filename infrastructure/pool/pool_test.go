package pool

import "testing"

func TestRootAcquireConstructsWhenEmpty(t *testing.T) {
	calls := 0
	r := NewRoot(func() *int {
		calls++
		v := 0
		return &v
	})
	v := r.Acquire()
	if v == nil || calls != 1 {
		t.Fatalf("expected one construction, got calls=%d", calls)
	}
}

func TestRootReleaseThenAcquireReusesItem(t *testing.T) {
	calls := 0
	r := NewRoot(func() *int {
		calls++
		v := 0
		return &v
	})
	v1 := r.Acquire()
	*v1 = 7
	r.Release(v1)
	v2 := r.Acquire()
	if v2 != v1 || *v2 != 7 {
		t.Fatalf("expected reused item with value 7, got %v", *v2)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one construction, got %d", calls)
	}
}

func TestRootAcquireBatchFillsFromFreeListThenConstructs(t *testing.T) {
	calls := 0
	r := NewRoot(func() *int {
		calls++
		v := 0
		return &v
	})
	a := r.Acquire()
	b := r.Acquire()
	r.ReleaseBatch([]*int{a, b})
	calls = 0

	batch := r.AcquireBatch(nil, 5)
	if len(batch) != 5 {
		t.Fatalf("expected 5 items, got %d", len(batch))
	}
	if calls != 3 {
		t.Fatalf("expected 3 new constructions (5-2 reused), got %d", calls)
	}
}

func TestCacheAcquireReleaseRoundTrip(t *testing.T) {
	r := NewRoot(func() *int { v := 0; return &v })
	c := NewCache(r)

	var acquired []*int
	for i := 0; i < 40; i++ {
		acquired = append(acquired, c.Acquire())
	}
	for _, v := range acquired {
		c.Release(v)
	}
	c.Flush()

	// Everything should now be reachable from root again.
	seen := map[*int]bool{}
	for i := 0; i < 40; i++ {
		seen[r.Acquire()] = true
	}
	if len(seen) != 40 {
		t.Fatalf("expected 40 distinct recovered items, got %d", len(seen))
	}
}
