// Copyright 2024 Google Inc. All Rights Reserved.
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

package cfg

import "strings"

// Rationalize updates fields based on the values of other fields, the way
// gcsfuse's cfg.Rationalize derives Logging.Severity from the debug flags.
func Rationalize(c *FileConfig) error {
	if c.Strategy == "" {
		c.Strategy = "bfs"
	}
	c.Strategy = strings.ToLower(c.Strategy)

	// follow_all's symlink-following makes directory loops reachable even
	// when the caller never asked for cycle detection explicitly.
	if c.Flags.FollowAll {
		c.Flags.DetectCycles = true
	}

	// skip_mounts already keeps mount points from being visited at all, so
	// it overrides prune_mounts (visit but do not descend) when both are set,
	// matching gcsfuse's pattern of letting one flag win over another rather
	// than erroring.
	if c.Flags.SkipMounts {
		c.Flags.PruneMounts = false
	}

	if c.MaxOpenFD == 0 {
		c.MaxOpenFD = GetDefaultConfig().MaxOpenFD
	}

	return nil
}
