// file: internal/scanner/inode_unix.go
// version: 2.0.0
// guid: 218fb252-0d2e-422d-a94d-a97e50d54400

//go:build !windows

package scanner

import (
	"os"
	"syscall"
)

// fileIdentity returns the device and inode pair for info so hard links to
// one file can be recognized. ok is false when the platform data is missing.
func fileIdentity(info os.FileInfo) (id fileKey, ok bool) {
	sys, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return fileKey{}, false
	}
	return fileKey{dev: uint64(sys.Dev), ino: uint64(sys.Ino)}, true
}
