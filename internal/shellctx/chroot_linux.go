//go:build linux

package shellctx

import "syscall"

func chrootAttr(dir string) *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Chroot: dir}
}
