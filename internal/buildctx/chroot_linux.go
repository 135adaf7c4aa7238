//go:build linux

package buildctx

import "syscall"

// chrootAttr returns the SysProcAttr that chroots the build command into
// dir before it execs. This relies on the namespace controller having
// already unshared a fresh mount namespace (internal/sandbox.Enter), so
// the chroot is confined to this build's own view of the filesystem.
func chrootAttr(dir string) *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Chroot: dir}
}
