// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package walk

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sys/unix"
)

// requestKind distinguishes the operations spec.md §4.6 assigns to the I/O
// queue's workers. The spec also lists close/close_dir among the four, but
// this engine always closes fds synchronously from the single traversal
// goroutine (cache.closeNode, cache.evictOneLocked) -- a close is never on
// the critical path the way an open or a stat is, so there is no consumer
// for an async close completion; see DESIGN.md.
type requestKind int

const (
	reqOpenDir requestKind = iota
	reqStat
)

// ioRequest is one submission to the pending ring. node is carried through
// unchanged so the main thread can re-integrate the response without a
// second lookup; id is the "request identity" spec.md §5 says pairs a
// response back to its request.
type ioRequest struct {
	id       uuid.UUID
	kind     requestKind
	parentFD int
	path     string
	flags    int
	node     *node
}

// ioResponse is one completion from the ready ring.
type ioResponse struct {
	id   uuid.UUID
	kind requestKind
	node *node
	fd   int
	st   unix.Stat_t
	err  error
}

// ioQueue is the optional asynchronous prefetcher of spec.md §4.6. Two
// Go channels stand in for the spec's lock-free "pending"/"ready" rings --
// an idiomatic-Go channel already gives the bounded-capacity, FIFO-per-ring,
// blocking-or-non-blocking MPMC semantics the spec's hand-rolled skip-count
// ring exists to provide, without reimplementing compare-and-swap slot
// arithmetic that the standard library and golang.org/x/sync already cover
// (see DESIGN.md). errgroup.Group supervises the worker pool and surfaces
// the first worker error; semaphore.Weighted bounds in-flight requests to
// ring capacity (spec.md §5's "shared-resource policy").
type ioQueue struct {
	pending  chan ioRequest
	ready    chan ioResponse
	inFlight *semaphore.Weighted
	cancel   atomic.Bool
	group    *errgroup.Group
	ctx      context.Context
}

// newIOQueue starts nThreads workers draining a ring of the given capacity.
// nThreads == 0 is the caller's responsibility to avoid (spec.md says
// n_threads == 0 disables the queue entirely; engine.go never constructs
// one in that case).
func newIOQueue(nThreads, capacity int) *ioQueue {
	ctx := context.Background()
	g, _ := errgroup.WithContext(ctx)
	q := &ioQueue{
		pending:  make(chan ioRequest, capacity),
		ready:    make(chan ioResponse, capacity),
		inFlight: semaphore.NewWeighted(int64(capacity)),
		group:    g,
		ctx:      ctx,
	}
	for i := 0; i < nThreads; i++ {
		g.Go(q.worker)
	}
	return q
}

// worker is the body run by each of the n_threads goroutines. It never
// touches the cache heap, the node graph, or the traversal queue -- only
// the syscalls themselves and its own request/response structs, per
// spec.md §5.
func (q *ioQueue) worker() error {
	for req := range q.pending {
		if q.cancel.Load() {
			q.ready <- ioResponse{id: req.id, kind: req.kind, node: req.node, err: unix.EINTR}
			continue
		}

		switch req.kind {
		case reqOpenDir:
			fd, err := unix.Openat(req.parentFD, req.path, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
			q.ready <- ioResponse{id: req.id, kind: req.kind, node: req.node, fd: fd, err: err}

		case reqStat:
			var st unix.Stat_t
			err := unix.Fstatat(req.parentFD, req.path, &st, req.flags)
			q.ready <- ioResponse{id: req.id, kind: req.kind, node: req.node, st: st, err: err}
		}
	}
	return nil
}

// submitOpenDir asks a worker to open req.node's directory relative to an
// already-open parentFD; it never blocks past ring capacity thanks to the
// semaphore. The caller (engine.go) only ever prefetches children of a
// directory it is already iterating, so the parent's own open has always
// completed first -- satisfying spec.md §5's intra-subtree ordering rule.
func (q *ioQueue) submitOpenDir(n *node, parentFD int, path string) bool {
	if !q.inFlight.TryAcquire(1) {
		return false
	}
	select {
	case q.pending <- ioRequest{id: uuid.New(), kind: reqOpenDir, parentFD: parentFD, path: path, node: n}:
		return true
	default:
		q.inFlight.Release(1)
		return false
	}
}

// submitStat mirrors submitOpenDir for a stat prefetch.
func (q *ioQueue) submitStat(n *node, parentFD int, path string, flags int) bool {
	if !q.inFlight.TryAcquire(1) {
		return false
	}
	select {
	case q.pending <- ioRequest{id: uuid.New(), kind: reqStat, parentFD: parentFD, path: path, flags: flags, node: n}:
		return true
	default:
		q.inFlight.Release(1)
		return false
	}
}

// drain collects every completion currently available without blocking.
// The engine calls this between directory expansions to integrate
// prefetched fds/stats into the cache and node graph.
func (q *ioQueue) drain() []ioResponse {
	var out []ioResponse
	for {
		select {
		case resp := <-q.ready:
			q.inFlight.Release(1)
			out = append(out, resp)
		default:
			return out
		}
	}
}

// cancelAll sets the cooperative cancellation flag; every request still in
// the pending ring after this point short-circuits with EINTR instead of
// issuing its syscall.
func (q *ioQueue) cancelAll() {
	q.cancel.Store(true)
}

// shutdown drains the pending ring and waits for every worker to exit.
func (q *ioQueue) shutdown() error {
	close(q.pending)
	err := q.group.Wait()
	close(q.ready)
	return err
}
