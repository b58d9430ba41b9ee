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

package bfswalk

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWalkVisitsEveryEntry(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "f"), nil, 0o644))

	var visited []string
	err := Walk(Config{
		Paths:     []string{root},
		MaxOpenFD: 4,
		Strategy:  StrategyBFS,
		Callback: func(p *Payload) Action {
			if p.Kind == VisitPre {
				visited = append(visited, p.FullPath)
			}
			return ActionContinue
		},
	})
	require.NoError(t, err)

	want := []string{root, filepath.Join(root, "a"), filepath.Join(root, "a", "f")}
	sort.Strings(visited)
	sort.Strings(want)
	require.Equal(t, want, visited)
}

func TestWalkStopReturnsNilError(t *testing.T) {
	root := t.TempDir()
	err := Walk(Config{
		Paths:     []string{root},
		MaxOpenFD: 4,
		Callback: func(p *Payload) Action {
			return ActionStop
		},
	})
	require.NoError(t, err)
}

func TestWalkUnknownActionReturnsErrUnknownAction(t *testing.T) {
	root := t.TempDir()
	err := Walk(Config{
		Paths:     []string{root},
		MaxOpenFD: 4,
		Callback: func(p *Payload) Action {
			return Action(99)
		},
	})
	require.ErrorIs(t, err, ErrUnknownAction)
}
