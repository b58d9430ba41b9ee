// Copyright 2015 Google Inc. All Rights Reserved.
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
	"container/heap"
	"fmt"
	"strings"

	"github.com/jacobsa/syncutil"
	"golang.org/x/sys/unix"
)

// nodeHeap is the container/heap.Interface implementation backing the
// cache. Nodes order by ascending depth (a heap parent is never deeper than
// its heap children, so the heap root is the *shallowest* entry), and
// equal-depth nodes order by ascending refcount, so the root of the heap is
// always the cheapest eviction candidate.
type nodeHeap []*node

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	if h[i].depth != h[j].depth {
		return h[i].depth < h[j].depth
	}
	return h[i].refcount < h[j].refcount
}

func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *nodeHeap) Push(x any) {
	n := x.(*node)
	n.heapIndex = len(*h)
	*h = append(*h, n)
}

func (h *nodeHeap) Pop() any {
	old := *h
	last := len(old) - 1
	n := old[last]
	old[last] = nil
	n.heapIndex = notInHeap
	*h = old[:last]
	return n
}

// cache is the bounded, reference-count-aware open-fd priority heap of
// spec.md §4.1.
// Only the single traversal-engine goroutine ever touches it; the
// InvariantMutex is used the way the teacher uses it elsewhere in this
// codebase -- to make every exit path re-validate the heap's invariants,
// not because of real concurrent access (the I/O queue's worker threads
// never touch the cache; see spec.md §5).
type cache struct {
	mu       syncutil.InvariantMutex
	heap     nodeHeap
	capacity int
	metrics  *Metrics
}

func newCache(capacity int, m *Metrics) *cache {
	if capacity < 1 {
		capacity = 1
	}
	c := &cache{capacity: capacity, metrics: m}
	c.mu = syncutil.NewInvariantMutex(c.checkInvariants)
	return c
}

func (c *cache) checkInvariants() {
	if len(c.heap) > c.capacity {
		panic(fmt.Sprintf("cache holds %d fds, over capacity %d", len(c.heap), c.capacity))
	}
	for i, n := range c.heap {
		if n.heapIndex != i {
			panic(fmt.Sprintf("heapIndex mismatch: node at %d thinks it is at %d", i, n.heapIndex))
		}
		if !n.hasFD() {
			panic("cache holds a node with no fd")
		}
	}
}

// openUnder returns an open fd for n, opening it via openat from the
// nearest open ancestor (or the process's current working directory if no
// ancestor is open) per spec.md §4.1(a). The cache's own bookkeeping is
// updated; the caller does not close the returned fd itself -- ownership
// stays with the cache until a subsequent decref/eviction closes it.
func (c *cache) openUnder(n *node) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n.hasFD() {
		return n.fd, nil
	}

	if len(c.heap) >= c.capacity {
		if err := c.evictOneLocked(n); err != nil {
			return noFD, err
		}
	}

	// Pick the base only after evicting: the victim may be the ancestor
	// whose fd would otherwise have been used.
	base, baseNode := c.nearestOpenAncestor(n)
	rel := relativePath(baseNode, n)

	fd, err := unix.Openat(base, rel, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	switch err {
	case nil:
		n.fd = fd
		heap.Push(&c.heap, n)
		if c.metrics != nil {
			c.metrics.Opens.Add(1)
		}
		return fd, nil

	case unix.ENAMETOOLONG:
		return c.openByComponents(baseNode, base, n)

	case unix.EMFILE:
		return c.shrinkAndRetry(n)

	default:
		return noFD, err
	}
}

// nearestOpenAncestor walks n's parent chain looking for the first node
// that already holds an open fd. It returns the fd to use as an openat base
// (unix.AT_FDCWD if none is open) and the node that fd belongs to (nil for
// AT_FDCWD), matching spec.md §4.1(a).
func (c *cache) nearestOpenAncestor(n *node) (baseFD int, baseNode *node) {
	for p := n.parent; p != nil; p = p.parent {
		if p.hasFD() {
			return p.fd, p
		}
	}
	return unix.AT_FDCWD, nil
}

// relativePath reconstructs the path from baseNode (exclusive; nil means
// from the process working directory, i.e. from n's tree root) down to n,
// joining the intervening name segments.
func relativePath(baseNode, n *node) string {
	if baseNode == nil && n.parent == nil {
		// n is itself a root: its caller-supplied path is already complete.
		return n.rootPath
	}

	if baseNode == nil {
		// No open ancestor: resolve from the tree root's own path, stopping
		// the segment collection at (not including) the root itself, since
		// its rootPath already names it.
		var segs []string
		for p := n; p.parent != nil; p = p.parent {
			segs = append(segs, strings.TrimSuffix(p.nameSegment, "/"))
		}
		var b strings.Builder
		b.WriteString(n.root.rootPath)
		for i := len(segs) - 1; i >= 0; i-- {
			b.WriteByte('/')
			b.WriteString(segs[i])
		}
		return b.String()
	}

	var segs []string
	for p := n; p != baseNode; p = p.parent {
		segs = append(segs, strings.TrimSuffix(p.nameSegment, "/"))
	}

	var b strings.Builder
	for i := len(segs) - 1; i >= 0; i-- {
		if i != len(segs)-1 {
			b.WriteByte('/')
		}
		b.WriteString(segs[i])
	}
	return b.String()
}

// openByComponents re-drives an open that failed with ENAMETOOLONG one
// path component at a time, per spec.md §4.1(c): every node below baseNode
// down to and including n that is not already open gets its own openat call
// and is cached, so later opens under the same subtree amortize the cost.
func (c *cache) openByComponents(baseNode *node, base int, target *node) (int, error) {
	var chain []*node
	for p := target; p != baseNode; p = p.parent {
		chain = append(chain, p)
	}
	// chain is leaf-to-root; reverse to root-to-leaf for opening order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	prevFD := base
	var fd int
	for _, anc := range chain {
		if anc.hasFD() {
			prevFD = anc.fd
			continue
		}
		if len(c.heap) >= c.capacity {
			if err := c.evictOneLocked(anc); err != nil {
				return noFD, err
			}
		}
		component := strings.TrimSuffix(anc.nameSegment, "/")
		openFD, openPath := prevFD, component
		if anc.parent == nil {
			// anc is a tree root: open its full caller-supplied path rather
			// than treating it as a component relative to prevFD.
			openFD, openPath = unix.AT_FDCWD, anc.rootPath
		}
		var err error
		fd, err = unix.Openat(openFD, openPath, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
		if err != nil {
			return noFD, fmt.Errorf("component-walk openat(%q): %w", openPath, err)
		}
		anc.fd = fd
		heap.Push(&c.heap, anc)
		if c.metrics != nil {
			c.metrics.ComponentWalks.Add(1)
		}
		prevFD = fd
	}
	return fd, nil
}

// shrinkAndRetry implements spec.md §4.1(d): on EMFILE, evict one entry
// other than n, permanently reduce capacity to the resulting size, and
// retry the open exactly once.
func (c *cache) shrinkAndRetry(n *node) (int, error) {
	if err := c.evictOneLocked(n); err != nil {
		return noFD, err
	}
	c.capacity = len(c.heap)
	if c.metrics != nil {
		c.metrics.Shrinks.Add(1)
	}

	base, baseNode := c.nearestOpenAncestor(n)
	rel := relativePath(baseNode, n)
	fd, err := unix.Openat(base, rel, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return noFD, err
	}
	n.fd = fd
	heap.Push(&c.heap, n)
	return fd, nil
}

// evictOneLocked closes and removes the best eviction candidate other than
// except. The caller must hold c.mu.
func (c *cache) evictOneLocked(except *node) error {
	best := -1
	for i, n := range c.heap {
		if n == except {
			continue
		}
		if best == -1 || c.heap.Less(i, best) {
			best = i
		}
	}
	if best == -1 {
		return fmt.Errorf("cache exhausted: no entry available to evict")
	}

	victim := heap.Remove(&c.heap, best).(*node)
	err := unix.Close(victim.fd)
	victim.fd = noFD
	if c.metrics != nil {
		c.metrics.Evictions.Add(1)
	}
	return err
}

// evictOneForDup shrinks the cache by one entry and permanently lowers its
// capacity to match, for use by the reader when unix.Dup itself hits EMFILE
// (spec.md §4.4's "Implementation constraint").
func (c *cache) evictOneForDup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.evictOneLocked(nil); err != nil {
		return err
	}
	c.capacity = len(c.heap)
	if c.metrics != nil {
		c.metrics.Shrinks.Add(1)
	}
	return nil
}

// incref bumps n's reference count and, if n holds an open fd, re-sifts it
// in the heap: a higher refcount makes a node a worse eviction candidate,
// so it bubbles toward the back (spec.md §4.1 "Heap semantics").
func (c *cache) incref(n *node) {
	n.incref()
	if n.hasFD() {
		c.mu.Lock()
		heap.Fix(&c.heap, n.heapIndex)
		c.mu.Unlock()
	}
}

// decref drops n's reference count and re-sifts it the other way. Freeing
// destroyed nodes is the engine's responsibility (it needs to cascade to
// the parent and possibly emit a post-order visit), so decref only reports
// whether the count reached zero.
func (c *cache) decref(n *node) (destroyed bool) {
	destroyed = n.decref()
	if n.hasFD() && !destroyed {
		c.mu.Lock()
		heap.Fix(&c.heap, n.heapIndex)
		c.mu.Unlock()
	}
	return destroyed
}

// closeNode closes n's fd (if any) and removes it from the heap. Called by
// the engine once a node's refcount reaches zero.
func (c *cache) closeNode(n *node) error {
	if !n.hasFD() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	heap.Remove(&c.heap, n.heapIndex)
	err := unix.Close(n.fd)
	n.fd = noFD
	return err
}

// adoptPrefetched integrates an fd the I/O queue opened asynchronously
// (spec.md §4.6) into the heap, as if openUnder had opened it synchronously.
// If n already has an fd -- the synchronous path won the race -- the caller
// is told to close the now-redundant prefetched one instead.
func (c *cache) adoptPrefetched(n *node, fd int) (adopted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n.hasFD() {
		return false
	}
	if len(c.heap) >= c.capacity {
		if err := c.evictOneLocked(n); err != nil {
			return false
		}
	}
	n.fd = fd
	heap.Push(&c.heap, n)
	if c.metrics != nil {
		c.metrics.Opens.Add(1)
	}
	return true
}

// destroy closes every fd still held by the cache. Used for best-effort
// cleanup when the traversal aborts with still-queued nodes.
func (c *cache) destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	for len(c.heap) > 0 {
		n := heap.Pop(&c.heap).(*node)
		if closeErr := unix.Close(n.fd); closeErr != nil {
			err = closeErr
		}
		n.fd = noFD
	}
	return err
}

func (c *cache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.heap)
}
