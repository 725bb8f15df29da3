package feather2d

import (
	"golang.org/x/sync/errgroup"
)

// task runs fn over data on at most workersCount goroutines, one chunk per
// worker, and returns once every item is processed. Items must not share
// mutable state.
func task[T any](workersCount int, data []T, fn func(data T)) {
	dataSize := len(data)
	if workersCount <= 1 || dataSize <= 1 {
		for _, d := range data {
			fn(d)
		}
		return
	}

	workersCount = min(workersCount, dataSize)
	chunkSize := (dataSize + workersCount - 1) / workersCount

	var g errgroup.Group
	for start := 0; start < dataSize; start += chunkSize {
		end := min(start+chunkSize, dataSize)
		g.Go(func() error {
			for i := start; i < end; i++ {
				fn(data[i])
			}
			return nil
		})
	}
	g.Wait()
}
