// Package buildctx implements the build pipeline: stage a build's
// resources and dependencies, enter an isolated namespace, run the build
// command chrooted into its own root, verify the result's content hash,
// and seal the output into the package store.
package buildctx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/iohannesarnold/yafpm/internal/dirhash"
	"github.com/iohannesarnold/yafpm/internal/errchain"
	"github.com/iohannesarnold/yafpm/internal/log"
	"github.com/iohannesarnold/yafpm/internal/pkg"
	"github.com/iohannesarnold/yafpm/internal/pkghash"
	"github.com/iohannesarnold/yafpm/internal/resource"
	"github.com/iohannesarnold/yafpm/internal/sandbox"
	"github.com/iohannesarnold/yafpm/internal/store"
)

// CanonicalizeError reports that the package store directory path could
// not be resolved to an absolute path.
type CanonicalizeError struct {
	Path string
	Err  error
}

func (e *CanonicalizeError) Error() string {
	return fmt.Sprintf("unable to determine canonical path of %s", e.Path)
}
func (e *CanonicalizeError) Unwrap() error { return e.Err }

// SetupError reports a failure while staging the build environment:
// creating directories, fetching resources, or entering the sandbox.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string { return "error while setting up build environment" }
func (e *SetupError) Unwrap() error { return e.Err }

// ExecBuildCmdError reports that the build command itself could not be
// started (as opposed to having run and failed).
type ExecBuildCmdError struct {
	Err error
}

func (e *ExecBuildCmdError) Error() string { return "unable to execute build command" }
func (e *ExecBuildCmdError) Unwrap() error { return e.Err }

// BuildCmdError reports that the build command ran but exited non-zero.
type BuildCmdError struct {
	ExitCode int
}

func (e *BuildCmdError) Error() string {
	return fmt.Sprintf("build process error: exit status %d", e.ExitCode)
}

// HashError reports that the build's output did not match its declared
// hash. TeardownErr, if non-nil, is a secondary failure that occurred
// while trying to remove the corrupted output directory; it is attached
// rather than replacing Err so both failures are visible to the caller.
type HashError struct {
	Err         error
	TeardownErr error
}

func (e *HashError) Error() string { return "error while hashing build result" }
func (e *HashError) Unwrap() error { return e.Err }

// TeardownError reports a failure unmounting or removing the build root
// after an otherwise-successful build.
type TeardownError struct {
	Err error
}

func (e *TeardownError) Error() string { return "error while tearing down build environment" }
func (e *TeardownError) Unwrap() error { return e.Err }

// BuildCtx describes everything needed to produce one package's output
// deterministically.
type BuildCtx struct {
	Pkg          pkg.Package
	Resources    []resource.Resource
	BuildDeps    []pkg.Package
	BuildCmd     string
	BuildCmdArgs []string
	BuildEnvVars map[string]string

	// Logger receives the reuse-vs-build narration (an Info message when
	// an existing output slot is verified in place). A nil Logger behaves
	// like log.NewNoop().
	Logger log.Logger
}

func (b *BuildCtx) logger() log.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return log.NewNoop()
}

// allDeps returns the package's own dependencies followed by its
// build-only dependencies, in that order, without deduplication.
func (b *BuildCtx) allDeps() []pkg.Package {
	all := make([]pkg.Package, 0, len(b.Pkg.Deps)+len(b.BuildDeps))
	all = append(all, b.Pkg.Deps...)
	all = append(all, b.BuildDeps...)
	return all
}

// Exec runs the full build pipeline and returns the completed package
// descriptor, or an error identifying exactly which stage failed.
//
// pkgStoreDir is canonicalized to an absolute path first; every
// subsequent path computation depends on it being absolute, since bind
// mount destinations are derived by joining the store path (stripped of
// its leading separator) onto the build root.
func (b *BuildCtx) Exec(pkgStoreDir string) (pkg.Package, error) {
	absStoreDir := pkgStoreDir
	if !filepath.IsAbs(pkgStoreDir) {
		resolved, err := filepath.Abs(pkgStoreDir)
		if err != nil {
			return pkg.Package{}, &CanonicalizeError{Path: pkgStoreDir, Err: err}
		}
		absStoreDir = resolved
	}

	logger := b.logger()
	ident := b.Pkg.Ident()

	buildDir, outDir, reused, err := b.setupBuildEnv(absStoreDir)
	if err != nil {
		return pkg.Package{}, &SetupError{Err: err}
	}
	if reused {
		logger.Info("output already present, verifying in place", "ident", ident, "dir", outDir)
		if err := b.verifyHash(outDir); err != nil {
			return pkg.Package{}, err
		}
		return b.Pkg, nil
	}

	if err := b.execBuildCmd(buildDir, outDir); err != nil {
		return pkg.Package{}, err
	}
	if err := b.verifyHash(outDir); err != nil {
		return pkg.Package{}, err
	}
	if err := b.cleanupPostBuild(absStoreDir, buildDir, outDir); err != nil {
		return pkg.Package{}, &TeardownError{Err: err}
	}
	return b.Pkg, nil
}

// setupBuildEnv creates the build root and output slot, fetches the
// declared resources into the build root, and enters the sandbox with
// every dependency bind-mounted. If the output slot already exists, it
// returns reused=true without entering the sandbox or fetching resources
// — the caller is responsible for only trusting the slot after verifying
// its hash.
func (b *BuildCtx) setupBuildEnv(pkgStoreDir string) (buildDir, outDir string, reused bool, err error) {
	buildDir, err = store.CreateBuildRoot(b.Pkg.Name)
	if err != nil {
		return "", "", false, err
	}

	ident := b.Pkg.Ident()
	outDir, err = store.CreateOutputSlot(pkgStoreDir, ident)
	if err != nil {
		if err == store.ErrMaybeAlreadyInstalled {
			return buildDir, outDir, true, nil
		}
		return "", "", false, err
	}

	for _, res := range b.Resources {
		if err := resource.Fetch(res, buildDir); err != nil {
			return "", "", false, err
		}
	}

	if err := sandbox.Enter(); err != nil {
		return "", "", false, err
	}
	if err := sandbox.MountDeps(pkgStoreDir, buildDir, b.allDeps()); err != nil {
		return "", "", false, err
	}
	if _, err := sandbox.MountOutput(buildDir, outDir); err != nil {
		return "", "", false, err
	}
	return buildDir, outDir, false, nil
}

// execBuildCmd runs the build command chrooted into buildDir, with a
// cleared environment, OUT pointing at the bound output directory, and
// the declared build_env_vars layered on top.
func (b *BuildCtx) execBuildCmd(buildDir, outDir string) error {
	cmd := exec.Command(b.BuildCmd, b.BuildCmdArgs...)
	// cmd.Dir is resolved after the chroot syscall, so "/" names buildDir
	// itself rather than buildDir's path on the host.
	cmd.Dir = "/"
	cmd.Env = []string{"OUT=" + outDir}
	for k, v := range b.BuildEnvVars {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = chrootAttr(buildDir)

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &BuildCmdError{ExitCode: exitErr.ExitCode()}
		}
		return &ExecBuildCmdError{Err: err}
	}
	return nil
}

func (b *BuildCtx) verifyHash(outDir string) error {
	_, err := pkghash.Verify(b.Pkg.Hash, dirhash.Calculate, outDir)
	if err != nil {
		teardownErr := os.RemoveAll(outDir)
		return &HashError{Err: err, TeardownErr: teardownErr}
	}
	return nil
}

func (b *BuildCtx) cleanupPostBuild(pkgStoreDir, buildDir, outDir string) error {
	if err := store.SetReadonlyRecursive(outDir, true); err != nil {
		return err
	}
	if err := sandbox.UnmountOutput(buildDir, outDir); err != nil {
		return err
	}
	if err := sandbox.UnmountDeps(pkgStoreDir, buildDir, b.allDeps()); err != nil {
		return err
	}
	if err := store.RemoveBuildRoot(buildDir); err != nil {
		return err
	}
	return nil
}

// PrintError writes err's full cause chain via errchain, and appends the
// secondary teardown failure banner when err is a *HashError carrying
// one. Kept in this package because only buildctx produces HashError's
// teardown field; cmd/yafpm-build simply delegates to this for its
// printed diagnostics.
func PrintError(out io.Writer, pkgName string, err error) {
	fmt.Fprintf(out, "Error building %s:\n", pkgName)
	errchain.Print(out, err)
	var hashErr *HashError
	if errors.As(err, &hashErr) && hashErr.TeardownErr != nil {
		errchain.PrintTeardownFailure(out, hashErr.TeardownErr)
	}
}
