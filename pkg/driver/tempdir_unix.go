//go:build unix

package driver

import "golang.org/x/sys/unix"

func usableDir(dir string) bool {
	return unix.Access(dir, unix.R_OK|unix.W_OK|unix.X_OK) == nil
}
