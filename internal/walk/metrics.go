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

import "sync/atomic"

// Metrics is the set of engine-internal counters exposed to callers, e.g.
// for wiring into Prometheus (see internal/metrics). A nil *Metrics may be
// passed anywhere one is accepted; every increment site checks for nil.
type Metrics struct {
	Opens           atomic.Int64 // successful openat calls issued by the cache
	ComponentWalks  atomic.Int64 // ancestors opened one component at a time after ENAMETOOLONG
	Shrinks         atomic.Int64 // permanent capacity reductions after EMFILE
	Evictions       atomic.Int64 // cache entries closed to make room
	CacheHits       atomic.Int64 // stat calls served from statCache
	CacheMisses     atomic.Int64 // stat calls that issued a syscall
	CyclesDetected  atomic.Int64 // symlink/bind-mount loops caught by detect_cycles
	VisitsEmitted   atomic.Int64 // callback invocations, pre + post + error
	ErrorsRecovered atomic.Int64 // per-entry or per-directory errors turned into error visits under recover
}

// Snapshot is a point-in-time copy of Metrics suitable for logging or
// exporting without holding references into the live counters.
type Snapshot struct {
	Opens, ComponentWalks, Shrinks, Evictions      int64
	CacheHits, CacheMisses                         int64
	CyclesDetected, VisitsEmitted, ErrorsRecovered int64
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		Opens:           m.Opens.Load(),
		ComponentWalks:  m.ComponentWalks.Load(),
		Shrinks:         m.Shrinks.Load(),
		Evictions:       m.Evictions.Load(),
		CacheHits:       m.CacheHits.Load(),
		CacheMisses:     m.CacheMisses.Load(),
		CyclesDetected:  m.CyclesDetected.Load(),
		VisitsEmitted:   m.VisitsEmitted.Load(),
		ErrorsRecovered: m.ErrorsRecovered.Load(),
	}
}
