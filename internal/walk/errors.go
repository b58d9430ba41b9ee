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
	"errors"

	"golang.org/x/sys/unix"
)

// ErrUnknownAction is returned when a Callback returns an Action value the
// engine doesn't recognize (spec.md §7 "Callback returns unknown action").
var ErrUnknownAction = unix.EINVAL

// ErrCycle is the error attached to a synthesized cycle-detection visit
// (spec.md §4.5 "Cycle detection").
var ErrCycle = unix.ELOOP

// recoverableEntryError reports whether err belongs to the "permission and
// I/O errors on an entry" category of spec.md §7, which -- under recover --
// is delivered as an error visit instead of aborting the traversal.
func recoverableEntryError(err error) bool {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case unix.EACCES, unix.EIO, unix.ENOENT, unix.ENOTDIR, unix.ELOOP, unix.EPERM:
		return true
	default:
		return false
	}
}

// firstError remembers the first non-nil error handed to it; later calls
// are no-ops. It backs spec.md §7's "the engine never swallows an error
// silently -- at minimum, the first error's errno is preserved".
type firstError struct {
	err error
}

func (f *firstError) set(err error) {
	if err != nil && f.err == nil {
		f.err = err
	}
}
