package file

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/robofw/pkg/target"
)

func TestFileTargetCommit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ft := New(filepath.Join(dir, "slot"))
	require.NoError(t, ft.Open(ctx, 6))
	for _, piece := range [][]byte{[]byte("abc"), []byte("def")} {
		n, err := ft.Write(piece)
		require.NoError(t, err)
		require.Equal(t, len(piece), n)
	}
	_, err := ft.Write([]byte("x"))
	require.ErrorIs(t, err, target.ErrOverflow)
	require.NoError(t, ft.Commit(ctx))

	content, err := os.ReadFile(ft.Path())
	require.NoError(t, err)
	require.Equal(t, "abcdef", string(content))
	_, err = os.Stat(ft.tmpPath())
	require.True(t, os.IsNotExist(err))
}

func TestFileTargetAbortKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	ft := New(t.TempDir())
	require.NoError(t, os.WriteFile(ft.Path(), []byte("good"), 0644))

	require.NoError(t, ft.Open(ctx, 10))
	_, err := ft.Write([]byte("bad"))
	require.NoError(t, err)
	require.NoError(t, ft.Abort(ctx))
	require.NoError(t, ft.Abort(ctx))

	content, err := os.ReadFile(ft.Path())
	require.NoError(t, err)
	require.Equal(t, "good", string(content))
	_, err = os.Stat(ft.tmpPath())
	require.True(t, os.IsNotExist(err))
}

func TestFileTargetIncomplete(t *testing.T) {
	ctx := context.Background()
	ft := New(t.TempDir())
	require.NoError(t, ft.Open(ctx, 10))
	_, err := ft.Write([]byte("short"))
	require.NoError(t, err)
	require.ErrorIs(t, ft.Commit(ctx), target.ErrSizeMismatch)
	_, err = os.Stat(ft.Path())
	require.True(t, os.IsNotExist(err))
	require.ErrorIs(t, ft.Commit(ctx), target.ErrNotOpen)
}

func TestFileTargetNoSpace(t *testing.T) {
	ft := New(t.TempDir())
	ft.Reserve = math.MaxUint64 / 2
	require.ErrorIs(t, ft.Open(context.Background(), math.MaxInt64/2), target.ErrNoSpace)
	_, err := ft.Write([]byte("x"))
	require.ErrorIs(t, err, target.ErrNotOpen)
}

func TestFreeSpace(t *testing.T) {
	free, err := freeSpace(t.TempDir())
	require.NoError(t, err)
	require.Greater(t, free, uint64(0))

	if _, err := freeSpace(filepath.Join(t.TempDir(), "missing")); err == nil {
		// platforms without statfs report unlimited space.
		require.Equal(t, uint64(math.MaxUint64), free)
	}
}
