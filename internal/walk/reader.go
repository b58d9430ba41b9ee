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
	"io"
	"os"

	"github.com/jacobsa/syncutil"
	"golang.org/x/sys/unix"
)

// readBatchSize bounds how many dirents the reader buffers from a single
// Readdir call, so a directory with millions of entries doesn't force one
// giant slice allocation. Entries are streamed out in these batches.
const readBatchSize = 256

// reader owns exactly one open directory handle at a time: a dup of the
// node's own fd (spec.md §4.4). Duplicating lets the reader's handle be
// closed aggressively -- to reduce fd pressure -- while the node's own fd
// stays put as an openat base for children that are still being discovered.
type reader struct {
	mu syncutil.InvariantMutex

	n       *node
	dirFile *os.File
	entries []os.DirEntry
	idx     int
	eof     bool
	err     error // sticky: preserved across close() for a post-order error visit
}

func newReader() *reader {
	r := &reader{}
	r.mu = syncutil.NewInvariantMutex(r.checkInvariants)
	return r
}

func (r *reader) checkInvariants() {
	if r.idx < 0 || r.idx > len(r.entries) {
		panic("reader index out of range")
	}
}

// open dups n's fd (retrying once through the cache's shrink path on
// EMFILE, per spec.md §4.4's "Implementation constraint"), wraps it for
// buffered reading, and primes the first batch of entries.
func (r *reader) open(n *node, c *cache) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.n = n
	r.entries = nil
	r.idx = 0
	r.eof = false
	r.err = nil

	dupFD, err := unix.Dup(n.fd)
	if err == unix.EMFILE {
		if shrinkErr := c.evictOneForDup(); shrinkErr != nil {
			return shrinkErr
		}
		dupFD, err = unix.Dup(n.fd)
	}
	if err != nil {
		r.err = err
		return err
	}
	unix.CloseOnExec(dupFD)

	r.dirFile = os.NewFile(uintptr(dupFD), n.nameSegment)
	r.fill()
	return nil
}

// fill reads the next batch of entries. io.EOF marks the stream exhausted
// without being treated as a reader error.
func (r *reader) fill() {
	entries, err := r.dirFile.ReadDir(readBatchSize)
	r.entries = entries
	r.idx = 0
	switch err {
	case nil:
	case io.EOF:
		r.eof = true
	default:
		r.err = err
	}
}

// advance returns the next directory entry other than "." or "..", or
// (nil, false) at end of stream. A non-nil sticky error after advance
// returns false means the stream ended on an error rather than cleanly.
func (r *reader) advance() (os.DirEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		if r.idx < len(r.entries) {
			e := r.entries[r.idx]
			r.idx++
			if e.Name() == "." || e.Name() == ".." {
				continue
			}
			return e, true
		}
		if r.err != nil || r.eof {
			return nil, false
		}
		r.fill()
	}
}

// close releases the dup'd handle. Any sticky error survives close() so the
// engine can synthesize a post-order error visit for it (spec.md §4.5
// "Post").
func (r *reader) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dirFile == nil {
		return r.err
	}
	err := r.dirFile.Close()
	r.dirFile = nil
	if r.err == nil {
		r.err = err
	}
	return r.err
}
