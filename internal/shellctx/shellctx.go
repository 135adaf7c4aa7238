// Package shellctx stages the same kind of isolated environment as
// internal/buildctx, but for an interactive shell: dependencies are
// mounted and the command is chrooted and exec'd, but there is no output
// slot, no hash, and the command's exit status is never treated as an
// error.
package shellctx

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/term"

	"github.com/iohannesarnold/yafpm/internal/log"
	"github.com/iohannesarnold/yafpm/internal/pkg"
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

// SetupError reports a failure while staging the shell environment.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string { return "error while setting up shell environment" }
func (e *SetupError) Unwrap() error { return e.Err }

// ExecCmdError reports that the shell command could not be started.
type ExecCmdError struct {
	Err error
}

func (e *ExecCmdError) Error() string { return "unable to execute shell command" }
func (e *ExecCmdError) Unwrap() error { return e.Err }

// TeardownError reports a failure tearing down the shell environment
// after the command exited.
type TeardownError struct {
	Err error
}

func (e *TeardownError) Error() string { return "error while tearing down shell environment" }
func (e *TeardownError) Unwrap() error { return e.Err }

// ShellCtx describes an interactive shell environment.
type ShellCtx struct {
	Resources    []resource.Resource
	Dependencies []pkg.Package
	ShellCmd     string

	Logger log.Logger

	// Now supplies the current time for naming the shell's ephemeral
	// build root; defaults to time.Now when nil.
	Now func() time.Time
}

func (s *ShellCtx) logger() log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.NewNoop()
}

func (s *ShellCtx) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// makePathString builds the PATH value exposed inside the chroot: each
// dependency's bin/ directory under the store, in dependency order, each
// followed by ":" (so a non-empty result ends in ":").
func makePathString(pkgStoreDir string, deps []pkg.Package) string {
	path := ""
	for _, dep := range deps {
		path += filepath.Join(pkgStoreDir, dep.Ident(), "bin") + ":"
	}
	return path
}

// Enter runs the full shell pipeline: stage the environment, exec the
// shell command (any exit status is accepted), and tear down.
func (s *ShellCtx) Enter(pkgStoreDir string) error {
	absStoreDir := pkgStoreDir
	if !filepath.IsAbs(pkgStoreDir) {
		resolved, err := filepath.Abs(pkgStoreDir)
		if err != nil {
			return &CanonicalizeError{Path: pkgStoreDir, Err: err}
		}
		absStoreDir = resolved
	}

	logger := s.logger()
	buildDir, err := s.prepareContextDir(absStoreDir)
	if err != nil {
		return &SetupError{Err: err}
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		logger.Warn("stdin is not a terminal, shell command will run non-interactively", "cmd", s.ShellCmd)
	}
	logger.Info("entering shell", "cmd", s.ShellCmd, "dir", buildDir)
	if err := s.execShellCmd(absStoreDir, buildDir); err != nil {
		return err
	}

	if err := s.teardown(absStoreDir, buildDir); err != nil {
		return &TeardownError{Err: err}
	}
	return nil
}

func (s *ShellCtx) prepareContextDir(pkgStoreDir string) (string, error) {
	buildDir, err := store.CreateShellRoot(s.now())
	if err != nil {
		return "", err
	}
	for _, res := range s.Resources {
		if err := resource.Fetch(res, buildDir); err != nil {
			return "", err
		}
	}
	if err := sandbox.Enter(); err != nil {
		return "", err
	}
	if err := sandbox.MountDeps(pkgStoreDir, buildDir, s.Dependencies); err != nil {
		return "", err
	}
	return buildDir, nil
}

func (s *ShellCtx) execShellCmd(pkgStoreDir, buildDir string) error {
	cmd := exec.Command(s.ShellCmd)
	// cmd.Dir is resolved after the chroot syscall, so "/" names buildDir
	// itself rather than buildDir's path on the host.
	cmd.Dir = "/"
	cmd.Env = []string{"PATH=" + makePathString(pkgStoreDir, s.Dependencies)}
	for _, dep := range s.Dependencies {
		cmd.Env = append(cmd.Env, dep.Name+"="+filepath.Join(pkgStoreDir, dep.Ident()))
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = chrootAttr(buildDir)

	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			// Any exit status from an interactive shell is acceptable.
			return nil
		}
		return &ExecCmdError{Err: err}
	}
	return nil
}

func (s *ShellCtx) teardown(pkgStoreDir, buildDir string) error {
	if err := sandbox.UnmountDeps(pkgStoreDir, buildDir, s.Dependencies); err != nil {
		return err
	}
	return store.RemoveBuildRoot(buildDir)
}
