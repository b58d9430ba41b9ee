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

import "fmt"

// noFD marks a node that holds no open file descriptor.
const noFD = -1

// notInHeap marks a node not currently tracked by the cache heap.
const notInHeap = -1

// node is one directory encountered during a traversal. Nodes form a forest:
// each holds a weak pointer to its parent and a reference count covering
// itself, its live descendants, and any reader currently iterating it.
//
// INVARIANT: fd >= 0 iff heapIndex >= 0 (I1 in the node-lifecycle design).
// INVARIANT: refcount >= 1 while reachable from the queue, a reader, or as
// an ancestor of either (I2).
// INVARIANT: nameSegment == "" || nameSegment[len(nameSegment)-1] == '/'
type node struct {
	// Immutable for the node's lifetime.
	parent      *node
	root        *node // the root node of this node's tree; root.root == root
	rootPath    string
	depth       int
	nameSegment string // this directory's own name, with a trailing '/'
	nameOffset  int    // byte offset of nameSegment within the full path

	// Mutable, guarded by the owning engine's single-threaded access or,
	// for the subset touched by the cache, by the cache's mutex.
	fd        int
	refcount  uint64
	heapIndex int

	haveIdentity bool
	deviceID     uint64
	inode        uint64

	// Linked-list slot used while this node sits in a traversal queue.
	next *node

	// Memoized stat results for this directory's own two (follow, nofollow)
	// slots; see statCache.
	selfStat statCache

	// pendingErr is set once, when this directory's own open/iterate/close
	// finishes (nil on success), and consumed later by engine.finishNode at
	// the moment this node's refcount reaches zero -- which may be several
	// stack frames and dequeues after the error was observed, once every
	// descendant has also finished (spec.md §3 "Lifecycle").
	pendingErr error
}

// newRootNode creates a root of a new tree for the given caller-supplied
// path. name must not contain a trailing slash; it is added here.
func newRootNode(rootPath, name string) *node {
	n := &node{
		rootPath:    rootPath,
		depth:       0,
		nameSegment: ensureTrailingSlash(name),
		nameOffset:  0,
		fd:          noFD,
		refcount:    0,
		heapIndex:   notInHeap,
	}
	n.root = n
	return n
}

// newChildNode creates a child of parent for entry name (no trailing slash
// in the argument; one is added since children are always directories).
func newChildNode(parent *node, name string) *node {
	n := &node{
		parent:      parent,
		root:        parent.root,
		rootPath:    parent.rootPath,
		depth:       parent.depth + 1,
		nameSegment: ensureTrailingSlash(name),
		nameOffset:  parent.nameOffset + len(parent.nameSegment),
		fd:          noFD,
		refcount:    0,
		heapIndex:   notInHeap,
	}
	return n
}

func ensureTrailingSlash(name string) string {
	if name == "" || name[len(name)-1] == '/' {
		return name
	}
	return name + "/"
}

// hasFD reports whether the node currently holds an open directory fd.
func (n *node) hasFD() bool { return n.fd != noFD }

// incref bumps the reference count. Used (through engine.pin) when the node
// itself or one of its descendants is pushed onto a queue; that reference is
// held until engine.release, after the node's reader has been closed.
func (n *node) incref() { n.refcount++ }

// decref drops the reference count by one and reports whether it reached
// zero. The caller is responsible for freeing the node (closing its fd,
// removing it from the cache, and cascading to the parent) when destroyed
// is true; see engine.release.
func (n *node) decref() (destroyed bool) {
	if n.refcount == 0 {
		panic(fmt.Sprintf("decref of already-zero node %q", n.nameSegment))
	}
	n.refcount--
	return n.refcount == 0
}

// identity reports the (device, inode) pair used for cycle detection, and
// whether it has been populated yet.
func (n *node) identity() (dev, ino uint64, ok bool) {
	return n.deviceID, n.inode, n.haveIdentity
}

func (n *node) setIdentity(dev, ino uint64) {
	n.deviceID, n.inode = dev, ino
	n.haveIdentity = true
}

// isAncestorLoop walks the parent chain of n looking for a node whose
// identity matches (dev, ino). Used to implement detect_cycles (spec.md
// §4.5 "Cycle detection").
func isAncestorLoop(parent *node, dev, ino uint64) bool {
	for p := parent; p != nil; p = p.parent {
		if pd, pi, ok := p.identity(); ok && pd == dev && pi == ino {
			return true
		}
	}
	return false
}
