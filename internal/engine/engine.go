// Package engine implements the concurrent traversal over the
// dynamic-library dependency graph, the per-node Mach-O processor, the
// satisfiability and exclusion pass, and the report projection.
//
// The traversal is a cond-variable-guarded queue with a busy-worker
// counter: workers go idle when the queue is empty and the run
// terminates once every worker is idle at the same time, which is
// exactly the point where no further work can appear.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/smarttechnologies/macho-report/internal/cachekey"
	"github.com/smarttechnologies/macho-report/internal/node"
)

// Processor parses one Mach-O Node and returns the child Nodes its
// dependency references resolve to. Implementations must mutate n in
// place (exists/parsed/arch) and must not mutate any other Node.
type Processor interface {
	Process(ctx context.Context, n *node.Node) (children []*node.Node, err error)
}

// ErrCancelled is returned by Run when the context is cancelled before
// traversal quiesces naturally.
var ErrCancelled = errors.New("traversal cancelled")

// Run drains roots (and everything reachable from them) through
// processor, using parallelism workers, recording every distinct node
// (by cache key) into cache. It returns once the queue has emptied and
// every worker has gone idle, or as soon as any worker returns an error.
func Run(ctx context.Context, roots []*node.Node, parallelism int, cache *node.Cache, processor Processor) error {
	if parallelism < 1 {
		parallelism = 1
	}

	ts := &traverseState{}
	ts.cond.L = &ts.mu

	ts.mu.Lock()
	ts.enqueue(roots)
	ts.mu.Unlock()

	eg, ctx := errgroup.WithContext(ctx)

	done := ctx.Done()
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go watchForCancel(done, stopWatch, ts)

	for i := 0; i < parallelism; i++ {
		eg.Go(func() error {
			return worker(ctx, ts, cache, processor)
		})
	}

	return eg.Wait()
}

// traverseState is the state shared by every traversal worker.
type traverseState struct {
	mu sync.Mutex

	// toVisit holds candidate nodes not yet claimed, popped from the
	// front so roots drain in discovery order.
	//
	// GUARDED_BY(mu)
	toVisit []*node.Node

	// GUARDED_BY(mu)
	cancelled bool

	// The number of workers doing something besides waiting for work.
	// If this hits zero with toVisit empty, there is nothing left to do.
	//
	// GUARDED_BY(mu)
	busyWorkers int

	// Broadcast whenever toVisit, cancelled, or busyWorkers changes.
	//
	// GUARDED_BY(mu)
	cond sync.Cond
}

// LOCKS_REQUIRED(ts.mu)
func (ts *traverseState) shouldWake() bool {
	return len(ts.toVisit) != 0 || ts.cancelled || ts.busyWorkers == 0
}

// LOCKS_REQUIRED(ts.mu)
func (ts *traverseState) waitForSomethingToDo() {
	for !ts.shouldWake() {
		ts.cond.Wait()
	}
}

// LOCKS_REQUIRED(ts.mu)
func (ts *traverseState) enqueue(candidates []*node.Node) {
	ts.toVisit = append(ts.toVisit, candidates...)
	ts.cond.Broadcast()
}

// worker runs one traversal worker until the queue drains or the run
// is cancelled.
func worker(ctx context.Context, ts *traverseState, cache *node.Cache, processor Processor) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	for {
		ts.waitForSomethingToDo()

		switch {
		case ts.cancelled:
			return ErrCancelled

		case len(ts.toVisit) != 0:
			if err := visitOne(ctx, ts, cache, processor); err != nil {
				return err
			}

		case ts.busyWorkers == 0:
			return nil

		default:
			panic("unexpected wake-up in traversal worker")
		}
	}
}

// REQUIRES: len(ts.toVisit) > 0
// LOCKS_REQUIRED(ts.mu)
func visitOne(ctx context.Context, ts *traverseState, cache *node.Cache, processor Processor) error {
	ts.busyWorkers++
	ts.cond.Broadcast()
	defer func() {
		ts.busyWorkers--
		ts.cond.Broadcast()
	}()

	candidate := ts.toVisit[0]
	ts.toVisit = ts.toVisit[1:]
	ts.cond.Broadcast()

	ts.mu.Unlock()
	children, err := claimAndProcess(ctx, cache, processor, candidate)
	ts.mu.Lock()

	if err != nil {
		return err
	}

	ts.enqueue(children)
	return nil
}

// claimAndProcess derives the candidate's cache key, attempts to claim
// it, and processes the candidate only if this call won the claim; a
// lost claim means another worker already owns the node.
func claimAndProcess(ctx context.Context, cache *node.Cache, processor Processor, candidate *node.Node) ([]*node.Node, error) {
	path, restrictArch, executablePath, stack := candidate.CacheKeyIdentity()
	key := cachekey.Derive(cachekey.Identity{
		Path:             path,
		RestrictArch:     restrictArch,
		ExecutablePath:   executablePath,
		ParentRpathStack: stack,
	})

	_, isNew := cache.Claim(key, candidate)
	if !isNew {
		return nil, nil
	}

	children, err := processor.Process(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("processing %s: %w", candidate.Path, err)
	}

	cache.Finalize(key, candidate)
	return children, nil
}

func watchForCancel(done <-chan struct{}, stop <-chan struct{}, ts *traverseState) {
	select {
	case <-done:
	case <-stop:
		return
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.cancelled = true
	ts.cond.Broadcast()
}
