// file: internal/scanner/inode_windows.go
// version: 2.0.0
// guid: b2c3d4e5-f6a7-8901-bcde-f12345678901

//go:build windows

package scanner

import "os"

// fileIdentity is unavailable on Windows; hard links are listed per path.
func fileIdentity(_ os.FileInfo) (fileKey, bool) {
	return fileKey{}, false
}
