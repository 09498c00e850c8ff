// Package blockingpool implements the small blocking thread pool described
// in spec.md §5: the single-threaded cooperative core offloads genuinely
// blocking work — subprocess stdin writes, and template functions that must
// run synchronously rather than yield at an await point — onto a bounded
// pool of goroutines sized to the host's CPU count, grounded on the
// gopsutil/v4 dependency the teacher already carries (cmd/tcpo uses
// gopsutil/v4/net and /process for inspecting host state; this package uses
// gopsutil/v4/cpu for the same "ask the host about itself" purpose, sizing
// the pool instead of inspecting connections).
package blockingpool

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
)

// Pool runs blocking work on a fixed number of worker goroutines.
type Pool struct {
	tasks chan func()
	done  chan struct{}
}

// New starts a Pool sized to size workers. If size <= 0, the pool is sized
// to the host's logical CPU count (falling back to 1 if that can't be
// determined).
func New(size int) *Pool {
	if size <= 0 {
		size = detectSize()
	}
	p := &Pool{
		tasks: make(chan func()),
		done:  make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func detectSize() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

func (p *Pool) worker() {
	for {
		select {
		case fn, ok := <-p.tasks:
			if !ok {
				return
			}
			fn()
		case <-p.done:
			return
		}
	}
}

// Run submits fn and blocks until it completes, ctx is cancelled, or the
// pool is closed — whichever comes first.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	task := func() { result <- fn() }

	select {
	case p.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return fmt.Errorf("blockingpool: pool is closed")
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new work; workers finish their current task and
// exit. Safe to call once.
func (p *Pool) Close() {
	close(p.done)
}
