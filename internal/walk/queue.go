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

// nodeQueue is the interface shared by the breadth-first and depth-first
// variants of the pending-directory queue (spec.md §4.3). Both share push/
// pop/empty; which node pop returns next is the only difference.
type nodeQueue interface {
	push(n *node)
	pop() *node
	isEmpty() bool
	len() int
}

// bfsQueue is a FIFO singly linked list of nodes. This mirrors
// common.linkedListQueue, generalized from a generic T to *node so
// the queue can carry the engine's own linked-list slot (node.next) instead
// of allocating a second wrapper node per entry.
type bfsQueue struct {
	start, end *node
	size       int
}

// newBFSQueue returns an empty FIFO queue, used by the bfs strategy.
func newBFSQueue() *bfsQueue { return &bfsQueue{} }

func (q *bfsQueue) isEmpty() bool { return q.size == 0 }

func (q *bfsQueue) len() int { return q.size }

func (q *bfsQueue) push(n *node) {
	n.next = nil
	if q.size == 0 {
		q.start = n
		q.end = n
	} else {
		q.end.next = n
		q.end = n
	}
	q.size++
}

func (q *bfsQueue) pop() *node {
	if q.size == 0 {
		panic("pop called on an empty bfsQueue")
	}
	n := q.start
	if q.size == 1 {
		q.start = nil
		q.end = nil
	} else {
		q.start = q.start.next
	}
	n.next = nil
	q.size--
	return n
}

// dfsQueue is a LIFO stack, used by the dfs strategy and by the
// iterative-deepening / exponential-deepening strategies (which re-enter
// the engine with a depth-first queue on each pass; see engine.go).
type dfsQueue struct {
	top  *node
	size int
}

func newDFSQueue() *dfsQueue { return &dfsQueue{} }

func (q *dfsQueue) isEmpty() bool { return q.size == 0 }

func (q *dfsQueue) len() int { return q.size }

func (q *dfsQueue) push(n *node) {
	n.next = q.top
	q.top = n
	q.size++
}

func (q *dfsQueue) pop() *node {
	if q.size == 0 {
		panic("pop called on an empty dfsQueue")
	}
	n := q.top
	q.top = n.next
	n.next = nil
	q.size--
	return n
}
