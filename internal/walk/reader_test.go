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
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReaderAdvanceSkipsDotEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), nil, 0o644))

	c := newCache(4, nil)
	n := newRootNode(dir, "")
	_, err := c.openUnder(n)
	require.NoError(t, err)

	r := newReader()
	require.NoError(t, r.open(n, c))

	var names []string
	for {
		e, ok := r.advance()
		if !ok {
			break
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	require.Equal(t, []string{"a", "b"}, names)
	require.NoError(t, r.close())
}

func TestReaderAdvanceEmptyDir(t *testing.T) {
	dir := t.TempDir()
	c := newCache(4, nil)
	n := newRootNode(dir, "")
	_, err := c.openUnder(n)
	require.NoError(t, err)

	r := newReader()
	require.NoError(t, r.open(n, c))

	_, ok := r.advance()
	require.False(t, ok)
	require.NoError(t, r.close())
}

func TestReaderCloseKeepsStickyErrorAfterOpenFailure(t *testing.T) {
	r := newReader()
	n := newRootNode("/does/not/exist", "")
	n.fd = 12345 // bogus fd, Dup should fail
	c := newCache(4, nil)

	err := r.open(n, c)
	require.Error(t, err)
	require.Error(t, r.close(), "sticky error should survive close")
}
