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

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/bfswalk/bfswalk/internal/walk"
)

// Load reads a config file (explicitPath if non-empty, otherwise the usual
// search path) layered under "BFSWALK_"-prefixed environment overrides,
// decodes it into a FileConfig seeded with defaults, and rationalizes and
// validates the result -- mirroring the cfg.Load... sequence gcsfuse runs
// at startup (decode, then Rationalize, then Validate).
func Load(explicitPath string) (FileConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.SetConfigName("bfswalk")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.bfswalk")
		v.AddConfigPath("/etc/bfswalk")
	}

	v.SetEnvPrefix("BFSWALK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	cfg := GetDefaultConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || explicitPath != "" {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg, viper.DecodeHook(DecodeHook())); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}

	strategy, err := normalizeStrategy(cfg.Strategy)
	if err != nil {
		return cfg, err
	}
	cfg.Strategy = strategy

	if err := Rationalize(&cfg); err != nil {
		return cfg, fmt.Errorf("rationalizing config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return cfg, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

var strategyByName = map[string]walk.Strategy{
	"bfs":                   walk.StrategyBFS,
	"dfs":                   walk.StrategyDFS,
	"iterative-deepening":   walk.StrategyIterativeDeepening,
	"exponential-deepening": walk.StrategyExponentialDeepening,
}

// ToWalkConfig projects a decoded FileConfig onto internal/walk.Config,
// filling in the collaborators (callback, mount table, metrics, logger)
// that have no on-disk representation.
func ToWalkConfig(c FileConfig, callback walk.Callback, mountTable walk.MountTable, metrics *walk.Metrics, logger walk.Logger) walk.Config {
	return walk.Config{
		Paths:      c.Paths,
		Callback:   callback,
		MaxOpenFD:  c.MaxOpenFD,
		NThreads:   c.Threads,
		Strategy:   strategyByName[c.Strategy],
		MountTable: mountTable,
		Metrics:    metrics,
		Logger:     logger,
		Flags: walk.Flags{
			StatEvery:    c.Flags.StatEvery,
			Recover:      c.Flags.Recover,
			PostOrder:    c.Flags.PostOrder,
			FollowRoots:  c.Flags.FollowRoots,
			FollowAll:    c.Flags.FollowAll,
			DetectCycles: c.Flags.DetectCycles,
			SkipMounts:   c.Flags.SkipMounts,
			PruneMounts:  c.Flags.PruneMounts,
			Sort:         c.Flags.Sort,
			Buffer:       c.Flags.Buffer,
			Whiteouts:    c.Flags.Whiteouts,
		},
	}
}
