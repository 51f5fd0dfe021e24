package clock

import (
	"sync"
	"testing"
	"time"
)

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

func TestNonceGeneratorMonotonic(t *testing.T) {
	t.Parallel()

	fixed := fixedClock{t: time.UnixMilli(1_000_000)}
	gen := NewNonceGenerator(fixed)

	prev := gen.Next()
	for i := 0; i < 1000; i++ {
		next := gen.Next()
		if next <= prev {
			t.Fatalf("nonce did not strictly increase: prev=%d next=%d", prev, next)
		}
		prev = next
	}
}

func TestNonceGeneratorConcurrent(t *testing.T) {
	t.Parallel()

	fixed := fixedClock{t: time.UnixMilli(5_000_000)}
	gen := NewNonceGenerator(fixed)

	const n = 200
	results := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = gen.Next()
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool, n)
	for _, v := range results {
		if seen[v] {
			t.Fatalf("duplicate nonce %d produced under concurrency", v)
		}
		seen[v] = true
	}
}
