// Package parallel splits index ranges across CPU cores.
package parallel

import (
	"runtime"
	"sync"

	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

// Parallelize divides items into one contiguous range per CPU core and runs
// fn on each range concurrently. A panic inside fn is recovered and returned
// as an error. When several ranges fail, the error of the lowest range wins.
func Parallelize(items int, fn func(start, end int) error) error {
	if items <= 0 {
		return nil
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}
	chunkSize := (items + numWorkers - 1) / numWorkers

	errs := make([]error, numWorkers)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := min(start+chunkSize, items)
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(worker, s, e int) {
			defer wg.Done()
			errs[worker] = errors.SafeExecute("parallel.Parallelize", func() error {
				return fn(s, e)
			})
		}(i, start, end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
