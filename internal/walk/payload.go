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

import "golang.org/x/sys/unix"

// Action is what a Callback asks the engine to do after a visit, per
// spec.md §4.5 "Iterating".
type Action int

const (
	ActionContinue Action = iota
	ActionPruneSubtree
	ActionPruneSiblings
	ActionStop
)

func (a Action) String() string {
	switch a {
	case ActionContinue:
		return "continue"
	case ActionPruneSubtree:
		return "prune-subtree"
	case ActionPruneSiblings:
		return "prune-siblings"
	case ActionStop:
		return "stop"
	default:
		return "unknown"
	}
}

// VisitKind distinguishes a pre-order visit (before a directory's children
// are processed) from a post-order one.
type VisitKind int

const (
	VisitPre VisitKind = iota
	VisitPost
)

// FileType is the entry's type, filled from d_type when available and only
// upgraded to a stat-derived value when stat_every is set, d_type was
// DT_UNKNOWN, or follow_all is set and d_type says symlink.
type FileType int

const (
	TypeUnknown FileType = iota
	TypeRegular
	TypeDirectory
	TypeSymlink
	TypeBlockDevice
	TypeCharDevice
	TypeFIFO
	TypeSocket
	TypeError // only set on an error-visit payload
)

// Payload is the immutable per-visit record handed to Callback, exactly
// spec.md §3's "Callback payload".
type Payload struct {
	FullPath   string
	NameOffset int
	RootPath   string
	Depth      int
	Kind       VisitKind
	Type       FileType
	AtFD       int
	AtPath     string
	AtFlags    int
	Err        error // non-nil only for an error visit

	stats *statCache
}

// Stat returns (and memoizes) the stat result for this entry under the
// requested follow policy. tryFollow asks for the follow slot, falling back
// transparently to nofollow for a broken symlink per spec.md §4.2.
func (p *Payload) Stat(tryFollow bool) (unix.Stat_t, error) {
	return p.stats.stat(p.AtFD, p.AtPath, tryFollow)
}

// CachedStat returns a previously computed stat result without issuing a
// syscall, reporting false if none is cached yet.
func (p *Payload) CachedStat(tryFollow bool) (unix.Stat_t, error, bool) {
	return p.stats.cached(tryFollow)
}

// Callback is the consumer's per-visit hook; callback_data is whatever the
// closure captures, matching idiomatic Go in place of the void* the spec
// describes.
type Callback func(p *Payload) Action
