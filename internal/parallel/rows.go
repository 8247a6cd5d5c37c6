// Package parallel splits row-oriented image work across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Rows calls fn over [0, n) split into contiguous, disjoint bands, running at
// most workers bands at once. workers <= 0 means runtime.GOMAXPROCS(0).
// fn must only write to state owned by its own band.
func Rows(n, workers int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers == 1 {
		fn(0, n)
		return
	}

	band := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += band {
		end := start + band
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
}
