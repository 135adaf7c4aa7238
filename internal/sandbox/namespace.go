// Package sandbox isolates a build or shell command inside a fresh Linux
// user, mount, network, and PID namespace, and binds the dependencies and
// output directory it is allowed to see into a chroot.
//
// The mechanics here mirror how distri and similar hermetic builders
// bootstrap a single-use namespace before re-executing into a chroot:
// unshare into a fresh set of namespaces, become root inside it via the
// uid_map trick, bind-mount the directories the build needs, then chroot
// and exec.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/iohannesarnold/yafpm/internal/pkg"
)

// NamespaceError wraps a failure from a namespace syscall (unshare,
// writing uid_map) as opposed to a mount/unmount failure.
type NamespaceError struct {
	Op  string
	Err error
}

func (e *NamespaceError) Error() string {
	return fmt.Sprintf("sandbox: %s: %v", e.Op, e.Err)
}

func (e *NamespaceError) Unwrap() error { return e.Err }

// MountError wraps a failure binding or unbinding a directory into the
// build root.
type MountError struct {
	Source string
	Target string
	Err    error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("sandbox: mount %s -> %s: %v", e.Source, e.Target, e.Err)
}

func (e *MountError) Unwrap() error { return e.Err }

// Enter unshares the calling process into a new user, mount, network, and
// PID namespace, then maps the caller's effective UID to root (UID 0)
// inside it. This must run before any bind mount, since creating bind
// mounts as an unprivileged user requires owning the mount namespace.
func Enter() error {
	if err := unix.Unshare(unix.CLONE_NEWUSER | unix.CLONE_NEWNS | unix.CLONE_NEWNET | unix.CLONE_NEWPID); err != nil {
		return &NamespaceError{Op: "unshare", Err: err}
	}

	uidMap := fmt.Sprintf("0 %d 1\n", os.Geteuid())
	if err := os.WriteFile("/proc/self/uid_map", []byte(uidMap), 0o644); err != nil {
		return &NamespaceError{Op: "write uid_map", Err: err}
	}
	return nil
}

// bindMount bind-mounts src onto dst, creating dst first if needed.
func bindMount(src, dst string, readonly bool) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return &MountError{Source: src, Target: dst, Err: err}
	}
	flags := uintptr(unix.MS_BIND)
	if err := unix.Mount(src, dst, "", flags, ""); err != nil {
		return &MountError{Source: src, Target: dst, Err: err}
	}
	if readonly {
		flags |= unix.MS_BIND | unix.MS_REMOUNT | unix.MS_RDONLY
		if err := unix.Mount(src, dst, "", flags, ""); err != nil {
			return &MountError{Source: src, Target: dst, Err: err}
		}
	}
	return nil
}

func unmount(dst string) error {
	if err := unix.Unmount(dst, 0); err != nil {
		return &MountError{Source: "", Target: dst, Err: err}
	}
	return nil
}

// depBindTarget returns where a dependency's store directory should be
// bound inside buildDir: the store path with its leading "/" stripped,
// joined under buildDir, so that a chrooted process sees the dependency
// at the same absolute path it has in the store.
func depBindTarget(buildDir, depDir string) string {
	return filepath.Join(buildDir, strings.TrimPrefix(depDir, string(filepath.Separator)))
}

// MountDeps bind-mounts every package in deps (read-only) from
// pkgStoreDir into buildDir, preserving the dependency's store path.
// Dependencies are not deduplicated: a package listed twice is bound
// twice onto the same destination path, and the second bind stacks on
// top of the first.
func MountDeps(pkgStoreDir, buildDir string, deps []pkg.Package) error {
	for _, dep := range deps {
		depDir := filepath.Join(pkgStoreDir, dep.Ident())
		target := depBindTarget(buildDir, depDir)
		if err := bindMount(depDir, target, true); err != nil {
			return err
		}
	}
	return nil
}

// UnmountDeps reverses MountDeps, in reverse order, with one unmount call
// per list entry, so a destination bound twice (two stacked mounts) is
// unmounted twice and ends up fully unmounted.
func UnmountDeps(pkgStoreDir, buildDir string, deps []pkg.Package) error {
	for i := len(deps) - 1; i >= 0; i-- {
		depDir := filepath.Join(pkgStoreDir, deps[i].Ident())
		target := depBindTarget(buildDir, depDir)
		if err := unmount(target); err != nil {
			return err
		}
	}
	return nil
}

// MountOutput bind-mounts outDir (read-write) onto buildDir/OUT-relative
// location so the build command can write its result at the path exposed
// via the OUT environment variable. The output is mounted writable since
// the build command must populate it; it is only sealed read-only after
// the build completes (internal/store.SetReadonlyRecursive), not at mount
// time.
func MountOutput(buildDir, outDir string) (string, error) {
	target := depBindTarget(buildDir, outDir)
	if err := bindMount(outDir, target, false); err != nil {
		return "", err
	}
	return target, nil
}

// UnmountOutput reverses MountOutput.
func UnmountOutput(buildDir, outDir string) error {
	target := depBindTarget(buildDir, outDir)
	return unmount(target)
}
