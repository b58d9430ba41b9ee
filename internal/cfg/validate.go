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

import "fmt"

var validStrategies = map[string]bool{
	"bfs":                   true,
	"dfs":                   true,
	"iterative-deepening":   true,
	"exponential-deepening": true,
}

// Validate checks a fully rationalized FileConfig for self-consistency,
// the way gcsfuse's cfg.Validate checks a fully decoded Config.
func Validate(c *FileConfig) error {
	if len(c.Paths) == 0 {
		return fmt.Errorf("at least one path is required")
	}
	if c.MaxOpenFD < 2 {
		return fmt.Errorf("max-open-fd must be at least 2, got %d", c.MaxOpenFD)
	}
	if c.Threads < 0 {
		return fmt.Errorf("threads can't be negative, got %d", c.Threads)
	}
	if !validStrategies[c.Strategy] {
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
	if err := isValidLogRotateConfig(&c.Logging.LogRotate); err != nil {
		return err
	}
	if !isValidSeverity(c.Logging.Severity) {
		return fmt.Errorf("unknown logging severity %q", c.Logging.Severity)
	}
	return nil
}

func isValidLogRotateConfig(r *LogRotateConfig) error {
	if r.MaxFileSizeMb <= 0 {
		return fmt.Errorf("log-rotate.max-file-size-mb should be at least 1")
	}
	if r.BackupFileCount < 0 {
		return fmt.Errorf("log-rotate.backup-file-count should be 0 (retain all) or positive")
	}
	return nil
}

func isValidSeverity(s string) bool {
	switch s {
	case "TRACE", "DEBUG", "INFO", "WARNING", "ERROR", "OFF":
		return true
	default:
		return false
	}
}
