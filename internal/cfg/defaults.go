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

// GetDefaultConfig returns the configuration used when no file or
// environment override is present for a given field.
func GetDefaultConfig() FileConfig {
	return FileConfig{
		MaxOpenFD: 1024,
		Threads:   0,
		Strategy:  "bfs",
		Flags: FlagsConfig{
			Recover:   true,
			PostOrder: false,
		},
		Logging: GetDefaultLoggingConfig(),
	}
}

// GetDefaultLoggingConfig returns the default logging configuration, used
// during startup before any config file has been parsed.
func GetDefaultLoggingConfig() LogConfig {
	return LogConfig{
		Severity: "INFO",
		Format:   "text",
		LogRotate: LogRotateConfig{
			BackupFileCount: 10,
			Compress:        true,
			MaxFileSizeMb:   512,
		},
	}
}
