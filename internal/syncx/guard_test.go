package syncx

import (
	"sync"
	"testing"
)

func TestLatestEmpty(t *testing.T) {
	var l Latest[int]

	if v, ok := l.Load(); ok || v != 0 {
		t.Errorf("Load() = (%d, %v), want (0, false)", v, ok)
	}
	if g := l.Generation(); g != 0 {
		t.Errorf("Generation() = %d, want 0", g)
	}
}

func TestLatestStoreLoad(t *testing.T) {
	var l Latest[string]

	l.Store("first")
	l.Store("second")

	if v, ok := l.Load(); !ok || v != "second" {
		t.Errorf("Load() = (%q, %v), want (second, true)", v, ok)
	}
	if g := l.Generation(); g != 2 {
		t.Errorf("Generation() = %d, want 2", g)
	}
}

func TestLatestConcurrentSafety(t *testing.T) {
	var l Latest[int]
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			l.Store(i)
		}()
		go func() {
			defer wg.Done()
			_, _ = l.Load()
		}()
	}
	wg.Wait()

	if g := l.Generation(); g != 100 {
		t.Errorf("Generation() = %d, want 100", g)
	}
}
