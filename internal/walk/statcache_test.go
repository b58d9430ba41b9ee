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
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func openDirFD(t *testing.T, path string) int {
	t.Helper()
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unix.Close(fd) })
	return fd
}

func TestStatCacheMemoizesFollow(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644))
	dfd := openDirFD(t, dir)

	m := &Metrics{}
	c := &statCache{metrics: m}

	st1, err := c.stat(dfd, "f", true)
	require.NoError(t, err)
	st2, err := c.stat(dfd, "f", true)
	require.NoError(t, err)

	require.Equal(t, st1, st2)
	require.EqualValues(t, 1, m.CacheMisses.Load())
	require.EqualValues(t, 1, m.CacheHits.Load())
}

func TestStatCacheFollowAndNofollowAreIndependentSlots(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))
	dfd := openDirFD(t, dir)

	c := &statCache{}
	followed, err := c.stat(dfd, "link", true)
	require.NoError(t, err)
	require.EqualValues(t, unix.S_IFREG, followed.Mode&unix.S_IFMT)

	unfollowed, err := c.stat(dfd, "link", false)
	require.NoError(t, err)
	require.EqualValues(t, unix.S_IFLNK, unfollowed.Mode&unix.S_IFMT)
}

func TestStatCacheFallsBackOnBrokenSymlink(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "dangling")
	require.NoError(t, os.Symlink(filepath.Join(dir, "nowhere"), link))
	dfd := openDirFD(t, dir)

	c := &statCache{}
	st, err := c.stat(dfd, "dangling", true)
	require.NoError(t, err)
	require.EqualValues(t, unix.S_IFLNK, st.Mode&unix.S_IFMT)
}

func TestStatCacheCachedReportsOnlyMemoized(t *testing.T) {
	c := &statCache{}
	_, _, ok := c.cached(true)
	require.False(t, ok)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644))
	dfd := openDirFD(t, dir)

	_, err := c.stat(dfd, "f", true)
	require.NoError(t, err)

	_, _, ok = c.cached(true)
	require.True(t, ok)
}
