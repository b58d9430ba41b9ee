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

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sys/unix"
)

func waitForResponses(t *testing.T, q *ioQueue, n int) []ioResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var got []ioResponse
	for len(got) < n && time.Now().Before(deadline) {
		got = append(got, q.drain()...)
		if len(got) < n {
			time.Sleep(time.Millisecond)
		}
	}
	require.Len(t, got, n)
	return got
}

func TestIOQueueSubmitOpenDirSucceeds(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	parentFD, err := unix.Open(root, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	require.NoError(t, err)
	defer unix.Close(parentFD)

	q := newIOQueue(2, 4)
	defer q.shutdown()

	n := newRootNode(root, "")
	require.True(t, q.submitOpenDir(n, parentFD, "sub"))

	got := waitForResponses(t, q, 1)
	require.NoError(t, got[0].err)
	require.Equal(t, reqOpenDir, got[0].kind)
	require.NotEqual(t, noFD, got[0].fd)
	unix.Close(got[0].fd)
}

func TestIOQueueSubmitOpenDirReportsError(t *testing.T) {
	root := t.TempDir()
	parentFD, err := unix.Open(root, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	require.NoError(t, err)
	defer unix.Close(parentFD)

	q := newIOQueue(1, 4)
	defer q.shutdown()

	n := newRootNode(root, "")
	require.True(t, q.submitOpenDir(n, parentFD, "does-not-exist"))

	got := waitForResponses(t, q, 1)
	require.Error(t, got[0].err)
}

func TestIOQueueSubmitStatSucceeds(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	parentFD, err := unix.Open(root, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	require.NoError(t, err)
	defer unix.Close(parentFD)

	q := newIOQueue(2, 4)
	defer q.shutdown()

	n := newRootNode(root, "")
	require.True(t, q.submitStat(n, parentFD, "sub", unix.AT_SYMLINK_NOFOLLOW))

	got := waitForResponses(t, q, 1)
	require.NoError(t, got[0].err)
	require.Equal(t, reqStat, got[0].kind)
	require.NotZero(t, got[0].st.Ino)
}

func TestIOQueueSubmitStatReportsError(t *testing.T) {
	root := t.TempDir()
	parentFD, err := unix.Open(root, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	require.NoError(t, err)
	defer unix.Close(parentFD)

	q := newIOQueue(1, 4)
	defer q.shutdown()

	n := newRootNode(root, "")
	require.True(t, q.submitStat(n, parentFD, "does-not-exist", unix.AT_SYMLINK_NOFOLLOW))

	got := waitForResponses(t, q, 1)
	require.Error(t, got[0].err)
}

func TestIOQueueCancelAllShortCircuitsPendingOpens(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	parentFD, err := unix.Open(root, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	require.NoError(t, err)
	defer unix.Close(parentFD)

	q := newIOQueue(1, 4)
	q.cancelAll()

	n := newRootNode(root, "")
	require.True(t, q.submitOpenDir(n, parentFD, "sub"))

	got := waitForResponses(t, q, 1)
	require.ErrorIs(t, got[0].err, unix.EINTR)
	require.NoError(t, q.shutdown())
}

func TestIOQueueInFlightBoundsSubmissions(t *testing.T) {
	root := t.TempDir()
	parentFD, err := unix.Open(root, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	require.NoError(t, err)
	defer unix.Close(parentFD)

	// No workers draining, so the ring fills up after capacity submissions.
	q := &ioQueue{
		pending:  make(chan ioRequest, 1),
		ready:    make(chan ioResponse, 1),
		inFlight: semaphore.NewWeighted(1),
	}
	n := newRootNode(root, "")
	require.True(t, q.submitOpenDir(n, parentFD, "a"))
	require.False(t, q.submitOpenDir(n, parentFD, "b"))
}
