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
	"io/fs"
	"os"
	"sort"

	"golang.org/x/sys/unix"
)

// Engine drives a single traversal: pre-root, expanding, iterating, and
// post states per spec.md §4.5. One Engine is single-use; construct a fresh
// one per Run.
type Engine struct {
	cfg Config

	cache  *cache
	reader *reader
	queue  nodeQueue
	ioq    *ioQueue

	metrics *Metrics
	logger  Logger

	hitLimit         bool // set mid-pass when a node was pruned only because of a deepening pass's depth ceiling
	postOrderAllowed bool // whether the current pass emits post-order visits at all (deepening passes suppress it until the final one)
	stopped          bool
	firstErr         firstError
}

// New constructs an Engine ready to Run. Capacity and thread-count
// defaulting mirrors spec.md §6's "Config" table.
func New(cfg Config) *Engine {
	capacity := cfg.MaxOpenFD
	if capacity < 1 {
		capacity = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	// follow_all makes directory loops reachable through symlinks the
	// caller never asked to watch for explicitly (spec.md §6: "follow_all
	// ... implies cycle detection"). Deriving it here, rather than only in
	// internal/cfg's loader, means every entry point -- including a direct
	// New/Walk call that bypasses that loader -- gets it.
	if cfg.Flags.FollowAll {
		cfg.Flags.DetectCycles = true
	}

	e := &Engine{
		cfg:     cfg,
		cache:   newCache(capacity, cfg.Metrics),
		reader:  newReader(),
		metrics: cfg.Metrics,
		logger:  logger,
	}
	if cfg.NThreads > 0 {
		e.ioq = newIOQueue(cfg.NThreads, capacity*2)
	}
	return e
}

// Run executes the traversal to completion, returning the first error
// encountered (nil on clean completion, including a callback-requested
// stop). Paths are visited in order; within each root's subtree, order
// follows the configured Strategy.
func (e *Engine) Run() error {
	defer func() {
		if e.ioq != nil {
			e.ioq.cancelAll()
			_ = e.ioq.shutdown()
		}
	}()

	switch e.cfg.Strategy {
	case StrategyIterativeDeepening:
		e.runDeepening(false)
	case StrategyExponentialDeepening:
		e.runDeepening(true)
	default:
		e.runPass(-1, true)
	}

	if e.firstErr.err != nil {
		// Best-effort: close whatever the cache still holds open so an
		// aborted traversal doesn't leak fds.
		_ = e.cache.destroy()
	}
	return e.firstErr.err
}

// runDeepening implements the iterative-deepening and exponential-deepening
// strategies of spec.md §4.3: re-enter the engine with an increasing depth
// ceiling, depth-first each time, until a pass completes without being cut
// off by the ceiling. Every pass before that one suppresses post-order
// visits; the converging pass re-runs once more with them enabled, since a
// pass that never hit the ceiling is, by definition, a complete depth-first
// traversal of everything reachable.
func (e *Engine) runDeepening(exponential bool) {
	depth := 1
	for !e.stopped {
		e.runPass(depth, false)
		if e.stopped {
			return
		}
		if !e.hitLimit {
			e.runPass(depth, true)
			return
		}
		if exponential {
			depth *= 2
		} else {
			depth++
		}
	}
}

// runPass walks every configured root once, to maxDepth (negative meaning
// unlimited), using a fresh queue of the strategy's shape.
func (e *Engine) runPass(maxDepth int, postOrderAllowed bool) {
	if e.cfg.Strategy == StrategyBFS {
		e.queue = newBFSQueue()
	} else {
		e.queue = newDFSQueue()
	}
	e.hitLimit = false
	e.postOrderAllowed = postOrderAllowed

	for _, p := range e.cfg.Paths {
		if e.stopped {
			break
		}
		e.visitRoot(p, maxDepth)
	}

	for !e.queue.isEmpty() && !e.stopped {
		n := e.queue.pop()
		e.expand(n, maxDepth)
	}
}

// visitRoot implements spec.md §4.5's "Pre-root" state for a single
// caller-supplied path: the three boundary behaviors (non-directory root,
// unresolvable root with follow_roots, ordinary directory root) plus the
// usual action dispatch.
func (e *Engine) visitRoot(rootPath string, maxDepth int) {
	root := newRootNode(rootPath, "")

	flags := unix.AT_SYMLINK_NOFOLLOW
	if e.cfg.Flags.FollowRoots {
		flags = 0
	}
	st, err := doStatat(unix.AT_FDCWD, rootPath, flags)
	if err != nil {
		e.emitRootError(root, err)
		return
	}
	root.setIdentity(uint64(st.Dev), uint64(st.Ino))
	root.selfStat.metrics = e.metrics

	payload := &Payload{
		FullPath: rootPath,
		RootPath: rootPath,
		Kind:     VisitPre,
		Type:     classifyStatType(st),
		stats:    &root.selfStat,
	}
	action := e.dispatchCallback(payload)

	switch action {
	case ActionContinue:
		// fall through to possible enqueue below
	case ActionPruneSubtree:
		return
	case ActionPruneSiblings:
		// "Siblings" has no sibling set at the root level; treated like
		// stop: the whole traversal ends, including roots already queued
		// (see DESIGN.md).
		e.stopped = true
		return
	case ActionStop:
		e.stopped = true
		return
	default:
		e.firstErr.set(ErrUnknownAction)
		e.stopped = true
		return
	}

	if payload.Type != TypeDirectory {
		return
	}
	if maxDepth >= 0 && 0 > maxDepth {
		e.hitLimit = true
		return
	}
	e.pin(root)
	e.queue.push(root)
}

// emitRootError handles both boundary cases that yield a lone error visit
// instead of a pre-visit: a broken root under follow_roots, and a root path
// that doesn't exist at all.
func (e *Engine) emitRootError(root *node, err error) {
	root.selfStat.metrics = e.metrics
	payload := &Payload{
		FullPath: root.rootPath,
		RootPath: root.rootPath,
		Kind:     VisitPre,
		Type:     TypeError,
		Err:      err,
		stats:    &root.selfStat,
	}
	if e.dispatchCallback(payload) == ActionStop {
		e.stopped = true
	}
}

// expand implements the "Expanding" and "Iterating" states for one
// dequeued directory node: open it, read its entries (streamed or buffered
// per the Buffer/Sort flags), dispatch each entry's visit, then close the
// reader and release n. n's own post-order visit does not necessarily
// happen here -- it fires from release's cascading decref-to-zero, once
// every descendant this expansion just pushed has also finished.
func (e *Engine) expand(n *node, maxDepth int) {
	if e.ioq != nil {
		e.integratePrefetches()
	}

	if _, err := e.cache.openUnder(n); err != nil {
		e.handleDirectoryError(n, err)
		e.release(n)
		return
	}
	if err := e.reader.open(n, e.cache); err != nil {
		e.handleDirectoryError(n, err)
		e.release(n)
		return
	}

	if (e.cfg.Flags.SkipMounts || e.cfg.Flags.PruneMounts) && !n.haveIdentity {
		var st unix.Stat_t
		if err := unix.Fstat(n.fd, &st); err == nil {
			n.setIdentity(uint64(st.Dev), uint64(st.Ino))
		}
	}

	base := nodeFullPath(n)
	baseLen := len(base)

	if e.cfg.Flags.Buffer || e.cfg.Flags.Sort {
		e.iterateBuffered(n, base, baseLen, maxDepth)
	} else {
		e.iterateStreamed(n, base, baseLen, maxDepth)
	}

	readerErr := e.reader.close()
	e.finishDirectory(n, readerErr)
	e.release(n)
}

func (e *Engine) iterateStreamed(n *node, base string, baseLen, maxDepth int) {
	for !e.stopped {
		de, ok := e.reader.advance()
		if !ok {
			return
		}
		if e.visitEntry(n, de, base, baseLen, maxDepth) == ActionPruneSiblings {
			return
		}
	}
}

func (e *Engine) iterateBuffered(n *node, base string, baseLen, maxDepth int) {
	var entries []os.DirEntry
	for {
		de, ok := e.reader.advance()
		if !ok {
			break
		}
		entries = append(entries, de)
	}
	if e.cfg.Flags.Sort {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	}
	for _, de := range entries {
		if e.stopped {
			return
		}
		if e.visitEntry(n, de, base, baseLen, maxDepth) == ActionPruneSiblings {
			return
		}
	}
}

// finishDirectory records the outcome of n's own iterate-then-close, to be
// consumed later by finishNode once n's refcount reaches zero. It does not
// emit any visit itself (spec.md §3 "Lifecycle" ties the post-order visit
// to the decref-to-zero point, not to the directory's own entries being
// drained -- see DESIGN.md).
func (e *Engine) finishDirectory(n *node, readerErr error) {
	n.pendingErr = readerErr
	if readerErr == nil {
		return
	}
	if !e.cfg.Flags.Recover {
		e.firstErr.set(readerErr)
		e.stopped = true
		return
	}
	if e.metrics != nil {
		e.metrics.ErrorsRecovered.Add(1)
	}
}

func (e *Engine) emitPostVisit(n *node, base string, err error) {
	typ := TypeDirectory
	if err != nil {
		typ = TypeError
	}
	n.selfStat.metrics = e.metrics
	payload := &Payload{
		FullPath:   base,
		NameOffset: n.nameOffset,
		RootPath:   n.root.rootPath,
		Depth:      n.depth,
		Kind:       VisitPost,
		Type:       typ,
		Err:        err,
		stats:      &n.selfStat,
	}
	if e.dispatchCallback(payload) == ActionStop {
		e.stopped = true
	}
}

// handleDirectoryError covers the two "can't even start this directory"
// failures: openUnder and the reader's dup both failed. Both are folded
// into a post-visit-shaped error visit, since no normal post-visit will
// ever happen for this node; like finishDirectory, it only records the
// error for finishNode to emit once release reaches this node (which, for
// an open failure, is immediately -- no child was ever pushed).
func (e *Engine) handleDirectoryError(n *node, err error) {
	n.pendingErr = err
	if !e.cfg.Flags.Recover {
		e.firstErr.set(err)
		e.stopped = true
		return
	}
	if e.metrics != nil {
		e.metrics.ErrorsRecovered.Add(1)
	}
}

// visitEntry implements one entry's worth of the "Iterating" state: type
// resolution, mount-transition handling, cycle detection, the callback
// itself, and pushing a child node when warranted.
func (e *Engine) visitEntry(parent *node, de os.DirEntry, base string, baseLen, maxDepth int) Action {
	name := de.Name()
	full := joinPath(base, name)
	sc := &statCache{metrics: e.metrics}
	payload := &Payload{
		FullPath:   full,
		NameOffset: baseLen + 1,
		RootPath:   parent.root.rootPath,
		Depth:      parent.depth + 1,
		Kind:       VisitPre,
		Type:       classifyDirEntryType(de),
		AtFD:       parent.fd,
		AtPath:     name,
		AtFlags:    unix.AT_SYMLINK_NOFOLLOW,
		stats:      sc,
	}

	tryFollow := e.cfg.Flags.FollowAll
	if payload.Type == TypeUnknown || e.cfg.Flags.StatEvery || (tryFollow && payload.Type == TypeSymlink) {
		st, err := payload.Stat(tryFollow)
		if err != nil {
			return e.handleEntryError(payload, err)
		}
		payload.Type = classifyStatType(st)
	}

	if payload.Type == TypeCharDevice && !e.cfg.Flags.Whiteouts {
		if st, err := payload.Stat(false); err == nil && isWhiteoutDevice(st) {
			return ActionContinue
		}
	}

	isMountPoint := false
	if payload.Type == TypeDirectory && (e.cfg.Flags.SkipMounts || e.cfg.Flags.PruneMounts) {
		if pdev, _, ok := parent.identity(); ok {
			if dev, ok2 := e.deviceOf(payload, tryFollow); ok2 && dev != pdev {
				isMountPoint = true
			}
		}
	}
	if isMountPoint && e.cfg.Flags.SkipMounts {
		return ActionContinue
	}

	if payload.Type == TypeDirectory && e.cfg.Flags.DetectCycles {
		st, err := payload.Stat(tryFollow)
		if err == nil && isAncestorLoop(parent, uint64(st.Dev), uint64(st.Ino)) {
			if e.metrics != nil {
				e.metrics.CyclesDetected.Add(1)
			}
			return e.handleEntryError(payload, ErrCycle)
		}
	}

	action := e.dispatchCallback(payload)
	switch action {
	case ActionContinue:
		if payload.Type == TypeDirectory && !isMountPoint {
			e.pushChild(parent, payload, name, tryFollow, maxDepth)
		}
	case ActionPruneSubtree, ActionPruneSiblings, ActionStop:
		// no descent
	default:
		e.firstErr.set(ErrUnknownAction)
		e.stopped = true
		return ActionStop
	}
	return action
}

// handleEntryError is the per-entry counterpart of handleDirectoryError:
// under recover, a recoverable errno (spec.md §7's category, which also
// covers the synthesized ELOOP cycle error) becomes a visit; anything else
// aborts the whole traversal regardless of recover.
func (e *Engine) handleEntryError(payload *Payload, err error) Action {
	if !e.cfg.Flags.Recover || !recoverableEntryError(err) {
		e.firstErr.set(err)
		e.stopped = true
		return ActionStop
	}

	payload.Err = err
	payload.Type = TypeError
	action := e.dispatchCallback(payload)
	if e.metrics != nil {
		e.metrics.ErrorsRecovered.Add(1)
	}
	switch action {
	case ActionContinue, ActionPruneSubtree, ActionPruneSiblings:
		return action
	case ActionStop:
		e.stopped = true
		return action
	default:
		e.firstErr.set(ErrUnknownAction)
		e.stopped = true
		return ActionStop
	}
}

// pushChild creates and enqueues the node for a directory entry the
// callback chose to descend into, honoring a deepening pass's depth
// ceiling.
func (e *Engine) pushChild(parent *node, payload *Payload, name string, tryFollow bool, maxDepth int) {
	if maxDepth >= 0 && parent.depth+1 > maxDepth {
		e.hitLimit = true
		return
	}

	child := newChildNode(parent, name)
	if st, err, ok := payload.CachedStat(tryFollow); ok && err == nil {
		child.setIdentity(uint64(st.Dev), uint64(st.Ino))
	}

	e.pin(child)
	e.queue.push(child)

	if e.ioq != nil && parent.hasFD() {
		e.ioq.submitOpenDir(child, parent.fd, name)
		// Prefetch the child's own identity alongside its open when a later
		// mount check will otherwise need a blocking Fstat once the child is
		// dequeued and expanded (spec.md §4.6 "stats run in parallel").
		// The mount and cycle checks in visitEntry normally stat the entry
		// synchronously, so child.haveIdentity is usually already true and
		// this is skipped; it runs only when that stat failed or a
		// MountTable answered the mount check without one.
		if !child.haveIdentity && (e.cfg.Flags.SkipMounts || e.cfg.Flags.PruneMounts || e.cfg.Flags.DetectCycles) {
			e.ioq.submitStat(child, parent.fd, name, unix.AT_SYMLINK_NOFOLLOW)
		}
	}
}

// deviceOf resolves a dev identifier for a directory entry, preferring an
// injected MountTable (spec.md §6) over a stat syscall when one is
// configured.
func (e *Engine) deviceOf(payload *Payload, tryFollow bool) (uint64, bool) {
	if e.cfg.MountTable != nil {
		if dev, err := e.cfg.MountTable.DeviceID(payload.FullPath); err == nil {
			return dev, true
		}
	}
	st, err, ok := payload.CachedStat(tryFollow)
	if !ok {
		st, err = payload.Stat(tryFollow)
	}
	if err != nil {
		return 0, false
	}
	return uint64(st.Dev), true
}

// integratePrefetches folds completed async opens and stats into the cache
// heap and node graph so that a subsequent openUnder/identity check for the
// same node is a free hit instead of a syscall (spec.md §4.6).
func (e *Engine) integratePrefetches() {
	for _, resp := range e.ioq.drain() {
		if resp.err != nil {
			continue
		}
		switch resp.kind {
		case reqOpenDir:
			if !e.cache.adoptPrefetched(resp.node, resp.fd) {
				_ = unix.Close(resp.fd)
			}
		case reqStat:
			if !resp.node.haveIdentity {
				resp.node.setIdentity(uint64(resp.st.Dev), uint64(resp.st.Ino))
			}
		}
	}
}

// pin increments the reference count of n and every ancestor up to its
// tree root, matching node.go's invariant that a node's refcount counts
// every queue- or reader-reachable node for which it is an ancestor or
// itself.
func (e *Engine) pin(n *node) {
	for cur := n; cur != nil; cur = cur.parent {
		e.cache.incref(cur)
	}
}

// release is pin's inverse, called exactly once per dequeued node once its
// own processing (successful or not) has finished. A node whose count
// reaches zero gets its post-order visit (if any is due), then has its fd
// closed and is dropped from the heap; its parent's count is decremented in
// the same pass, cascading cleanup -- and, crucially, post-order emission --
// up an entire now-finished subtree in one call when siblings have also
// finished. This is the only place spec.md §3's "a decref that yields zero
// triggers post-order visit ... then recurses to the parent" is honored: an
// ancestor's post-visit routinely fires from inside some descendant's
// release call, not from the ancestor's own expand.
func (e *Engine) release(n *node) {
	for cur := n; cur != nil; cur = cur.parent {
		if !e.cache.decref(cur) {
			continue
		}
		e.finishNode(cur)
		if err := e.cache.closeNode(cur); err != nil {
			e.logger.Warningf("closing directory %q: %v", nodeFullPath(cur), err)
		}
	}
}

// finishNode emits cur's post-order or error visit, if either is due, at
// the exact moment cur's refcount reaches zero -- the only point at which
// every one of cur's descendants is also known to have finished. A stop
// requested anywhere up to this point suppresses every further visit,
// including this one (spec.md §8: "unless the traversal terminated with
// stop first").
func (e *Engine) finishNode(n *node) {
	if e.stopped {
		return
	}
	if n.pendingErr == nil {
		if e.postOrderAllowed && e.cfg.Flags.PostOrder {
			e.emitPostVisit(n, nodeFullPath(n), nil)
		}
		return
	}
	e.emitPostVisit(n, nodeFullPath(n), n.pendingErr)
}

func (e *Engine) dispatchCallback(p *Payload) Action {
	action := e.cfg.Callback(p)
	if e.metrics != nil {
		e.metrics.VisitsEmitted.Add(1)
	}
	return action
}

// nodeFullPath reconstructs n's absolute path by walking its ancestor
// chain; this is the same computation cache.go's relativePath(nil, n)
// performs for an unopened ancestor, reused here for display purposes.
func nodeFullPath(n *node) string {
	return relativePath(nil, n)
}

func joinPath(base, name string) string {
	if base == "/" {
		return base + name
	}
	return base + "/" + name
}

// classifyDirEntryType maps a DirEntry's cheap d_type-derived mode bits to
// a FileType, leaving genuinely ambiguous entries as TypeUnknown so the
// caller knows to fall back to stat.
func classifyDirEntryType(de os.DirEntry) FileType {
	t := de.Type()
	switch {
	case t.IsRegular():
		return TypeRegular
	case t.IsDir():
		return TypeDirectory
	case t&fs.ModeSymlink != 0:
		return TypeSymlink
	case t&fs.ModeNamedPipe != 0:
		return TypeFIFO
	case t&fs.ModeSocket != 0:
		return TypeSocket
	case t&fs.ModeDevice != 0:
		if t&fs.ModeCharDevice != 0 {
			return TypeCharDevice
		}
		return TypeBlockDevice
	default:
		return TypeUnknown
	}
}

// isWhiteoutDevice reports whether a character-special entry is the
// classic BSD whiteout marker: major and minor device numbers both zero.
// whiteouts is off by default, matching find(1)'s behavior of hiding them.
func isWhiteoutDevice(st unix.Stat_t) bool {
	return unix.Major(uint64(st.Rdev)) == 0 && unix.Minor(uint64(st.Rdev)) == 0
}

// classifyStatType maps a raw stat mode to a FileType; used whenever
// d_type was insufficient or stat_every forces an authoritative answer.
func classifyStatType(st unix.Stat_t) FileType {
	switch st.Mode & unix.S_IFMT {
	case unix.S_IFREG:
		return TypeRegular
	case unix.S_IFDIR:
		return TypeDirectory
	case unix.S_IFLNK:
		return TypeSymlink
	case unix.S_IFBLK:
		return TypeBlockDevice
	case unix.S_IFCHR:
		return TypeCharDevice
	case unix.S_IFIFO:
		return TypeFIFO
	case unix.S_IFSOCK:
		return TypeSocket
	default:
		return TypeUnknown
	}
}
