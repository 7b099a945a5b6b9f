// file: internal/scanner/scanner.go
// version: 2.0.0
// guid: 3c4d5e6f-7a8b-9c0d-1e2f-3a4b5c6d7e8f

// Package scanner discovers the MP3 files under a music directory.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

type fileKey struct {
	dev, ino uint64
}

// IsMP3 reports whether name looks like a processable MP3 file. Hidden
// files, which include AppleDouble "._" companions and write backups, are
// excluded.
func IsMP3(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".mp3")
}

// ScanDirectory returns every MP3 under rootDir in lexical path order.
func ScanDirectory(rootDir string) ([]string, error) {
	return ScanDirectoryParallel(rootDir, 1)
}

// ScanDirectoryParallel lists directories with parallel workers. The result
// is sorted lexically and hard links to the same file appear once.
func ScanDirectoryParallel(rootDir string, workers int) ([]string, error) {
	if workers < 1 {
		workers = 1
	}

	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("music directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("music directory %s is not a directory", rootDir)
	}

	// Collect all directories first
	var dirs []string
	err = filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != rootDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	type found struct {
		path string
		id   fileKey
		ok   bool
	}

	var mu sync.Mutex
	var all []found
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, workers)

	for _, dir := range dirs {
		wg.Add(1)
		go func(scanDir string) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			entries, err := os.ReadDir(scanDir)
			if err != nil {
				return
			}

			var local []found
			for _, entry := range entries {
				if entry.IsDir() || !IsMP3(entry.Name()) {
					continue
				}
				f := found{path: filepath.Join(scanDir, entry.Name())}
				if fi, err := entry.Info(); err == nil {
					f.id, f.ok = fileIdentity(fi)
				}
				local = append(local, f)
			}

			// Merge results
			if len(local) > 0 {
				mu.Lock()
				all = append(all, local...)
				mu.Unlock()
			}
		}(dir)
	}

	wg.Wait()

	sort.Slice(all, func(i, j int) bool { return all[i].path < all[j].path })
	seen := make(map[fileKey]bool)
	files := make([]string, 0, len(all))
	for _, f := range all {
		if f.ok {
			if seen[f.id] {
				continue
			}
			seen[f.id] = true
		}
		files = append(files, f.path)
	}
	return files, nil
}
