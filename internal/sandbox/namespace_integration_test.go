//go:build integration

package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iohannesarnold/yafpm/internal/pkg"
)

// These tests require CAP_SYS_ADMIN-equivalent unprivileged user namespace
// support (present on most modern Linux kernels with unprivileged user
// namespaces enabled) and so are gated behind the integration build tag,
// matching how namespace-touching tests are separated from the default
// unit test run elsewhere in this tree.

func TestEnterAndMountDepsRoundTrip(t *testing.T) {
	storeDir := t.TempDir()
	buildDir := t.TempDir()

	dep := pkg.Package{Name: "libc", Version: "1.0.0"}
	depDir := filepath.Join(storeDir, dep.Ident())
	require.NoError(t, os.MkdirAll(depDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(depDir, "marker"), []byte("x"), 0o644))

	require.NoError(t, Enter())
	require.NoError(t, MountDeps(storeDir, buildDir, []pkg.Package{dep}))
	defer UnmountDeps(storeDir, buildDir, []pkg.Package{dep})

	marker := filepath.Join(depBindTarget(buildDir, depDir), "marker")
	_, err := os.Stat(marker)
	require.NoError(t, err)
}
