// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package workerpool provides a persistent, reusable worker pool that runs
// the program instances of a kernel launch. A Pool is created once per
// device and reused across launches, so a launch costs a few channel sends
// instead of one goroutine per row.
//
// Usage:
//
//	pool := workerpool.New(runtime.GOMAXPROCS(0))
//	defer pool.Close()
//
//	err := pool.Dispatch(rows, func(programID int) {
//	    processRow(programID)
//	})
package workerpool

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ErrInstancePanic is returned by Dispatch when a program instance panicked.
var ErrInstancePanic = errors.New("program instance panicked")

// Pool is a persistent worker pool that can be reused across many parallel
// operations. Workers are spawned once at creation and reused.
type Pool struct {
	numWorkers int
	workC      chan workItem
	closeOnce  sync.Once
	closed     atomic.Bool
}

// workItem represents a single parallel operation to execute.
type workItem struct {
	fn      func()
	barrier *sync.WaitGroup
}

// New creates a new worker pool with the specified number of workers.
// Workers are spawned immediately and persist until Close is called.
// If numWorkers <= 0, uses GOMAXPROCS.
func New(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	p := &Pool{
		numWorkers: numWorkers,
		// Buffer enough for all workers to have pending work
		workC: make(chan workItem, numWorkers*2),
	}

	for range numWorkers {
		go p.worker()
	}

	return p
}

// worker is the main loop for each persistent worker goroutine.
func (p *Pool) worker() {
	for item := range p.workC {
		item.fn()
		item.barrier.Done()
	}
}

// NumWorkers returns the number of workers in the pool.
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// Close shuts down the worker pool. All pending work will complete.
// Calling Close multiple times is safe.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.workC)
	})
}

// Dispatch runs fn once for every program id in [0, grid) and blocks until
// all of them returned. Instances are independent and may run in any order
// on any worker.
//
// A panicking instance does not take the worker down: the remaining
// unstarted instances are skipped and the first panic is returned wrapped
// in ErrInstancePanic.
func (p *Pool) Dispatch(grid int, fn func(programID int)) error {
	if grid <= 0 {
		return nil
	}

	var (
		failed   atomic.Bool
		firstErr error
		errOnce  sync.Once
	)
	run := func(start, end int) {
		pid := start
		defer func() {
			if r := recover(); r != nil {
				failed.Store(true)
				errOnce.Do(func() {
					firstErr = errors.Wrapf(ErrInstancePanic, "program %d: %s", pid, fmt.Sprint(r))
				})
			}
		}()
		for ; pid < end; pid++ {
			if failed.Load() {
				return
			}
			fn(pid)
		}
	}

	p.ParallelForAtomicBatched(grid, p.batchSize(grid), run)
	return firstErr
}

// batchSize picks how many program ids a worker grabs at once: about eight
// grabs per worker, never less than one id.
func (p *Pool) batchSize(grid int) int {
	return max(1, grid/(p.numWorkers*8))
}

// ParallelForAtomicBatched executes fn for batches of indices using atomic
// work stealing. Combines the load balancing of atomic distribution with
// reduced atomic operation overhead by processing multiple items per grab.
//
// fn receives (start, end) indices where work should process [start, end).
// batchSize controls how many items are grabbed per atomic operation.
func (p *Pool) ParallelForAtomicBatched(n int, batchSize int, fn func(start, end int)) {
	if n <= 0 {
		return
	}

	if batchSize <= 0 {
		batchSize = 1
	}

	if p.closed.Load() {
		// Sequential fallback once closed.
		fn(0, n)
		return
	}

	numBatches := (n + batchSize - 1) / batchSize
	workers := min(p.numWorkers, numBatches)

	if workers == 1 {
		fn(0, n)
		return
	}

	var nextBatch atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		p.workC <- workItem{
			fn: func() {
				for {
					batch := int(nextBatch.Add(1)) - 1
					start := batch * batchSize
					if start >= n {
						return
					}
					end := min(start+batchSize, n)
					fn(start, end)
				}
			},
			barrier: &wg,
		}
	}

	wg.Wait()
}
