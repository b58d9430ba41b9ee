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

// Strategy selects the order in which pending directories are expanded.
type Strategy int

const (
	StrategyBFS Strategy = iota
	StrategyDFS
	StrategyIterativeDeepening
	StrategyExponentialDeepening
)

// Flags is the set of boolean switches spec.md §6 lists.
type Flags struct {
	StatEvery    bool // call stat on every entry even when d_type is definitive
	Recover      bool // deliver errors as visits rather than abort
	PostOrder    bool // emit directory post-visits
	FollowRoots  bool // dereference symlinked root paths
	FollowAll    bool // follow every symlink; implies DetectCycles
	DetectCycles bool // cycle detection without general follow
	SkipMounts   bool // do not descend into nor visit mount points
	PruneMounts  bool // visit but do not descend
	Sort         bool // entry order within a directory is byte-lexicographic
	Buffer       bool // read all entries before invoking the callback on any
	Whiteouts    bool // include BSD whiteouts
}

// MountTable resolves a path's device ID for the mount-aware flags. The
// production implementation lives outside this module's scope (spec.md's
// "mount-table reader" external collaborator); engine only ever calls
// DeviceID.
type MountTable interface {
	DeviceID(path string) (uint64, error)
}

// Config is the engine's entry point configuration, spec.md §6.
type Config struct {
	Paths      []string
	Callback   Callback
	MaxOpenFD  int
	NThreads   int
	Flags      Flags
	Strategy   Strategy
	MountTable MountTable
	Metrics    *Metrics
	Logger     Logger
}

// Logger is the minimal logging surface the engine needs; internal/logger
// implements it. A nil Logger means log nothing.
type Logger interface {
	Debugf(format string, args ...any)
	Warningf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)   {}
func (nopLogger) Warningf(string, ...any) {}
