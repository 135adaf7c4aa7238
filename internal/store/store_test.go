package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateBuildRootIsFreshAndEmpty(t *testing.T) {
	dir, err := CreateBuildRoot("widget")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	require.Contains(t, dir, "widget-build")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCreateBuildRootCollisionPropagatesEEXIST(t *testing.T) {
	dir := filepath.Join(os.TempDir(), "widget-build")
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.Mkdir(dir, 0o755))
	defer os.RemoveAll(dir)

	_, err := CreateBuildRoot("widget")
	require.Error(t, err)
	require.True(t, errors.Is(err, fs.ErrExist))
}

func TestCreateShellRootNamesByTime(t *testing.T) {
	now := time.Unix(1700000000, 0)
	dir, err := CreateShellRoot(now)
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	require.Contains(t, dir, "shell-1700000000-build")
}

func TestCreateOutputSlotFreshSucceeds(t *testing.T) {
	storeDir := t.TempDir()
	dir, err := CreateOutputSlot(storeDir, "pkg-1.0.0-ABC")
	require.NoError(t, err)
	require.DirExists(t, dir)
}

func TestCreateOutputSlotExistingReturnsSentinel(t *testing.T) {
	storeDir := t.TempDir()
	ident := "pkg-1.0.0-ABC"
	require.NoError(t, os.Mkdir(filepath.Join(storeDir, ident), 0o755))

	dir, err := CreateOutputSlot(storeDir, ident)
	require.True(t, errors.Is(err, ErrMaybeAlreadyInstalled))
	require.Equal(t, filepath.Join(storeDir, ident), dir)
}

func TestSetReadonlyRecursiveStripsWriteBitThroughoutTree(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	file := filepath.Join(sub, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	require.NoError(t, SetReadonlyRecursive(dir, true))

	info, err := os.Stat(file)
	require.NoError(t, err)
	require.Zero(t, info.Mode().Perm()&0o222)

	subInfo, err := os.Stat(sub)
	require.NoError(t, err)
	require.Zero(t, subInfo.Mode().Perm()&0o222)

	// restore so t.TempDir() cleanup can remove it
	require.NoError(t, SetReadonlyRecursive(dir, false))
}

func TestRemoveBuildRootRemovesEverything(t *testing.T) {
	dir, err := CreateBuildRoot("throwaway")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644))

	require.NoError(t, RemoveBuildRoot(dir))
	_, statErr := os.Stat(dir)
	require.True(t, os.IsNotExist(statErr))
}
