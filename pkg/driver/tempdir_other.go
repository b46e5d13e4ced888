//go:build !unix

package driver

import "os"

func usableDir(dir string) bool {
	fi, err := os.Stat(dir)
	return err == nil && fi.IsDir()
}
