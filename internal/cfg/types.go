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

// Package cfg loads and validates the file/environment configuration for a
// traversal, the way gcsfuse's own cfg package decodes flags and a YAML
// mount config into a single struct before handing it to the filesystem.
package cfg

// FileConfig is the on-disk/environment shape of a traversal's
// configuration; Load decodes into this, then ToWalkConfig projects it onto
// internal/walk.Config.
type FileConfig struct {
	Paths     []string    `mapstructure:"paths"`
	MaxOpenFD int         `mapstructure:"max-open-fd"`
	Threads   int         `mapstructure:"threads"`
	Strategy  string      `mapstructure:"strategy"`
	Flags     FlagsConfig `mapstructure:"flags"`
	Logging   LogConfig   `mapstructure:"logging"`
}

// FlagsConfig mirrors internal/walk.Flags one-for-one with stable,
// hyphenated on-disk names.
type FlagsConfig struct {
	StatEvery    bool `mapstructure:"stat-every"`
	Recover      bool `mapstructure:"recover"`
	PostOrder    bool `mapstructure:"post-order"`
	FollowRoots  bool `mapstructure:"follow-roots"`
	FollowAll    bool `mapstructure:"follow-all"`
	DetectCycles bool `mapstructure:"detect-cycles"`
	SkipMounts   bool `mapstructure:"skip-mounts"`
	PruneMounts  bool `mapstructure:"prune-mounts"`
	Sort         bool `mapstructure:"sort"`
	Buffer       bool `mapstructure:"buffer"`
	Whiteouts    bool `mapstructure:"whiteouts"`
}

// LogConfig configures internal/logger, matching gcsfuse's LoggingConfig
// shape (severity plus a lumberjack-backed rotation policy).
type LogConfig struct {
	Severity  string          `mapstructure:"severity"`
	FilePath  string          `mapstructure:"file-path"`
	Format    string          `mapstructure:"format"`
	LogRotate LogRotateConfig `mapstructure:"log-rotate"`
}

// LogRotateConfig is gcsfuse's LogRotateLoggingConfig, field for field.
type LogRotateConfig struct {
	MaxFileSizeMb   int  `mapstructure:"max-file-size-mb"`
	BackupFileCount int  `mapstructure:"backup-file-count"`
	Compress        bool `mapstructure:"compress"`
}
