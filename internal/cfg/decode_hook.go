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

	"github.com/mitchellh/mapstructure"
)

// strategyAliases lets a config file spell iterative-deepening with the
// shorthand people actually type.
var strategyAliases = map[string]string{
	"id":  "iterative-deepening",
	"ed":  "exponential-deepening",
	"bfs": "bfs",
	"dfs": "dfs",
}

// normalizeStrategy resolves a strategy alias to its canonical name;
// Load calls this after decoding, since mapstructure has no field-aware
// hook for a plain string field without a distinct Go type to key off of.
func normalizeStrategy(s string) (string, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if canon, ok := strategyAliases[norm]; ok {
		return canon, nil
	}
	if validStrategies[norm] {
		return norm, nil
	}
	return "", fmt.Errorf("unrecognized strategy %q", s)
}

// DecodeHook is the mapstructure decode hook chain used when unmarshalling
// viper's merged config map into a FileConfig, matching gcsfuse's
// cfg.DecodeHook composition style.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}
