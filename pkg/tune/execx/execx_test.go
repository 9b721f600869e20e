package execx

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shellPath locates a POSIX shell for subprocess tests, skipping when the
// platform has none.
func shellPath(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no sh available")
	}
	return sh
}

func TestRunner_Run_CapturesBothStreams(t *testing.T) {
	t.Parallel()

	sh := shellPath(t)
	r := NewRunner(nil)

	var mu sync.Mutex
	seen := map[Stream][]string{}
	sink := func(stream Stream, line string) {
		mu.Lock()
		defer mu.Unlock()
		seen[stream] = append(seen[stream], line)
	}

	res, err := r.Run(context.Background(), Command{
		Path: sh,
		Args: []string{"-c", "echo one; echo two; echo oops >&2"},
	}, sink)
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.TimedOut)
	assert.Equal(t, []string{"one", "two"}, res.Stdout)
	assert.Equal(t, []string{"oops"}, res.Stderr)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"one", "two"}, seen[Stdout])
	assert.Equal(t, []string{"oops"}, seen[Stderr])
}

func TestRunner_Run_HighVolumeOutputIsNeverDropped(t *testing.T) {
	t.Parallel()

	sh := shellPath(t)
	r := NewRunner(nil)

	const lines = 2000
	// A single run can win the race by luck; repeat to make a regression
	// in the drain/wait ordering show up reliably.
	for i := 0; i < 10; i++ {
		res, err := r.Run(context.Background(), Command{
			Path: sh,
			Args: []string{"-c", "i=0; while [ $i -lt 2000 ]; do echo line-$i; i=$((i+1)); done"},
		}, nil)
		require.NoError(t, err)
		require.Equal(t, 0, res.ExitCode)
		require.Len(t, res.Stdout, lines, "run %d lost output", i)
		assert.Equal(t, "line-0", res.Stdout[0])
		assert.Equal(t, "line-1999", res.Stdout[lines-1])
	}
}

func TestRunner_Run_NonZeroExitIsNotAnError(t *testing.T) {
	t.Parallel()

	sh := shellPath(t)
	r := NewRunner(nil)

	res, err := r.Run(context.Background(), Command{
		Path: sh,
		Args: []string{"-c", "exit 3"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.TimedOut)
}

func TestRunner_Run_TimeoutKillsProcess(t *testing.T) {
	t.Parallel()

	sh := shellPath(t)
	r := NewRunner(nil)

	start := time.Now()
	res, err := r.Run(context.Background(), Command{
		Path:    sh,
		Args:    []string{"-c", "sleep 30"},
		Timeout: 200 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	assert.True(t, res.TimedOut)
	assert.Equal(t, -1, res.ExitCode)
	assert.Less(t, time.Since(start), 5*time.Second, "runner must not wait out the sleep")
}

func TestRunner_Run_ContextCancellation(t *testing.T) {
	t.Parallel()

	sh := shellPath(t)
	r := NewRunner(nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	res, err := r.Run(ctx, Command{
		Path: sh,
		Args: []string{"-c", "sleep 30"},
	}, nil)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
}

func TestRunner_Run_EmptyPath(t *testing.T) {
	t.Parallel()

	r := NewRunner(nil)
	_, err := r.Run(context.Background(), Command{}, nil)
	require.Error(t, err)
}

func TestRunner_Run_MissingBinary(t *testing.T) {
	t.Parallel()

	r := NewRunner(nil)
	_, err := r.Run(context.Background(), Command{
		Path: filepath.Join(t.TempDir(), "does-not-exist"),
	}, nil)
	require.Error(t, err)
}

func TestResolve_PrefersEarlierCandidates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	preferred := filepath.Join(dir, "preferred-tool")
	require.NoError(t, os.WriteFile(preferred, []byte("#!/bin/sh\n"), 0o755))

	got, err := Resolve(preferred, "sh")
	require.NoError(t, err)
	assert.Equal(t, preferred, got)
}

func TestResolve_FallsBackPastMissingCandidates(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "gone")
	got, err := Resolve(missing, "definitely-not-a-real-binary-name", "sh")
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestResolve_AllMissing(t *testing.T) {
	t.Parallel()

	_, err := Resolve(filepath.Join(t.TempDir(), "gone"), "definitely-not-a-real-binary-name")
	require.ErrorIs(t, err, ErrNoCandidate)
}

func TestResolve_SkipsEmptyCandidates(t *testing.T) {
	t.Parallel()

	got, err := Resolve("", "sh")
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestSafePath_PlainPathUnchanged(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "plain", "file.txt")
	assert.Equal(t, p, SafePath(p))
}

func TestSafePath_UnresolvableHostilePathReturnsOriginal(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "a&b", "missing.txt")
	assert.Equal(t, p, SafePath(p))
}

func TestSafePath_ResolvesSymlinkedHostilePath(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	real := filepath.Join(base, "real")
	require.NoError(t, os.MkdirAll(real, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(real, "f.txt"), []byte("x"), 0o644))

	link := filepath.Join(base, "one&two")
	if err := os.Symlink(real, link); err != nil {
		t.Skip("symlinks not supported")
	}

	got := SafePath(filepath.Join(link, "f.txt"))
	resolved, err := filepath.EvalSymlinks(filepath.Join(real, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, resolved, got)
}

func TestSafePath_SyncManagedDirectory(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	real := filepath.Join(base, "cloud")
	require.NoError(t, os.MkdirAll(real, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(real, "f.txt"), []byte("x"), 0o644))

	link := filepath.Join(base, "OneDrive")
	if err := os.Symlink(real, link); err != nil {
		t.Skip("symlinks not supported")
	}

	got := SafePath(filepath.Join(link, "f.txt"))
	resolved, err := filepath.EvalSymlinks(filepath.Join(real, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, resolved, got)
}
