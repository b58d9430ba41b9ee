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
	"golang.org/x/sys/unix"
)

// statSlot memoizes one (follow or nofollow) stat attempt.
type statSlot struct {
	filled bool
	info   unix.Stat_t
	err    error
}

// statCache holds the two independent memoization slots spec.md §4.2
// describes: one for a follow (AT_SYMLINK_FOLLOW-equivalent, i.e. plain
// fstatat) attempt, one for a nofollow (AT_SYMLINK_NOFOLLOW) attempt. It is
// owned by a single callback payload; cross-entry reuse is deliberately not
// attempted.
type statCache struct {
	follow   statSlot
	nofollow statSlot
	metrics  *Metrics
}

// brokenSymlinkErrno reports whether err indicates the target of a followed
// symlink is unreachable rather than that the symlink itself is bad, per
// spec.md §4.2's "transparently retries with nofollow" rule.
func brokenSymlinkErrno(err error) bool {
	switch err {
	case unix.ENOENT, unix.ENOTDIR, unix.ELOOP:
		return true
	default:
		return false
	}
}

func doStatat(atFD int, atPath string, flags int) (unix.Stat_t, error) {
	var st unix.Stat_t
	err := unix.Fstatat(atFD, atPath, &st, flags)
	return st, err
}

// stat returns the stat result for (atFD, atPath) under the requested
// follow policy, computing and memoizing it on first use. When tryFollow is
// true and the follow attempt fails with a broken-symlink errno, the
// nofollow result is computed (and memoized) and returned instead, exactly
// as spec.md §4.2 prescribes.
func (c *statCache) stat(atFD int, atPath string, tryFollow bool) (unix.Stat_t, error) {
	if tryFollow {
		if !c.follow.filled {
			c.follow.info, c.follow.err = doStatat(atFD, atPath, 0)
			c.follow.filled = true
			c.countMiss()
		} else {
			c.countHit()
		}
		if c.follow.err == nil {
			return c.follow.info, nil
		}
		if !brokenSymlinkErrno(c.follow.err) {
			return c.follow.info, c.follow.err
		}
		// Fall through: the symlink itself is broken, so nofollow.
	}

	if !c.nofollow.filled {
		c.nofollow.info, c.nofollow.err = doStatat(atFD, atPath, unix.AT_SYMLINK_NOFOLLOW)
		c.nofollow.filled = true
		c.countMiss()
	} else {
		c.countHit()
	}
	return c.nofollow.info, c.nofollow.err
}

func (c *statCache) countHit() {
	if c.metrics != nil {
		c.metrics.CacheHits.Add(1)
	}
}

func (c *statCache) countMiss() {
	if c.metrics != nil {
		c.metrics.CacheMisses.Add(1)
	}
}

// cached returns a previously computed result without issuing a syscall, if
// one exists for the requested policy.
func (c *statCache) cached(tryFollow bool) (unix.Stat_t, error, bool) {
	if tryFollow {
		if !c.follow.filled {
			return unix.Stat_t{}, nil, false
		}
		if c.follow.err == nil || !brokenSymlinkErrno(c.follow.err) {
			return c.follow.info, c.follow.err, true
		}
	}
	if c.nofollow.filled {
		return c.nofollow.info, c.nofollow.err, true
	}
	return unix.Stat_t{}, nil, false
}
