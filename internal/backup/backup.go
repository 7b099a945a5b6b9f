// file: internal/backup/backup.go
// version: 2.0.0
// guid: 8f9e0a1b-2c3d-4e5f-6a7b-8c9d0e1f2a3b

// Package backup snapshots the processed-file ledger into gzip-compressed
// tar archives and restores it from them.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

const archiveSuffix = ".tar.gz"

// Info describes one archive on disk.
type Info struct {
	Filename  string    `json:"filename" yaml:"filename"`
	Path      string    `json:"path" yaml:"path"`
	Size      int64     `json:"size" yaml:"size"`
	Checksum  string    `json:"checksum" yaml:"checksum"`
	StoreType string    `json:"store_type" yaml:"store_type"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Config holds backup configuration
type Config struct {
	Dir              string
	MaxBackups       int
	CompressionLevel int
}

// DefaultDir returns the archive directory under the XDG data home.
func DefaultDir() string {
	return filepath.Join(xdg.DataHome, "musicmetadatafetcher", "backups")
}

// DefaultConfig returns default backup configuration
func DefaultConfig() Config {
	return Config{
		Dir:              DefaultDir(),
		MaxBackups:       10,
		CompressionLevel: gzip.BestCompression,
	}
}

// Create archives the ledger store at storePath. A Pebble store is a
// directory, a SQLite store a single file. The store must be closed. Once
// more than MaxBackups archives exist the oldest are removed.
func Create(storePath, storeType string, cfg Config) (*Info, error) {
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir()
	}
	if cfg.CompressionLevel == 0 {
		cfg.CompressionLevel = gzip.DefaultCompression
	}
	if _, err := os.Stat(storePath); err != nil {
		return nil, fmt.Errorf("failed to stat ledger store: %w", err)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	now := time.Now()
	filename := fmt.Sprintf("ledger_%s_%s%s", storeType, now.Format("20060102_150405.000"), archiveSuffix)
	archivePath := filepath.Join(cfg.Dir, filename)

	if err := writeArchive(archivePath, storePath, cfg.CompressionLevel); err != nil {
		_ = os.Remove(archivePath)
		return nil, err
	}

	fileInfo, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup file: %w", err)
	}
	checksum, err := fileChecksum(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate checksum: %w", err)
	}

	info := &Info{
		Filename:  filename,
		Path:      archivePath,
		Size:      fileInfo.Size(),
		Checksum:  checksum,
		StoreType: storeType,
		CreatedAt: now,
	}

	if cfg.MaxBackups > 0 {
		if err := prune(cfg.Dir, cfg.MaxBackups); err != nil {
			return info, fmt.Errorf("backup created but pruning failed: %w", err)
		}
	}
	return info, nil
}

func writeArchive(archivePath, storePath string, level int) error {
	f, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewWriterLevel(f, level)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}
	tw := tar.NewWriter(gz)

	if err := addToArchive(tw, storePath); err != nil {
		return fmt.Errorf("failed to add files to archive: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to close tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return f.Close()
}

// addToArchive stores path under its base name, recursing into directories.
func addToArchive(tw *tar.Writer, path string) error {
	parent := filepath.Dir(path)
	return filepath.Walk(path, func(file string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(parent, file)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		src, err := os.Open(file)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
}

// Restore replaces the store at storePath with the archive's content. The
// store must be closed. The previous store is kept until extraction
// succeeds.
func Restore(archivePath, storePath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	staging, err := os.MkdirTemp(filepath.Dir(storePath), ".restore-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	root, err := extract(tar.NewReader(gz), staging)
	if err != nil {
		return err
	}
	if root == "" {
		return errors.New("backup archive is empty")
	}

	old := storePath + ".old"
	_ = os.RemoveAll(old)
	if err := os.Rename(storePath, old); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to move current store aside: %w", err)
	}
	if err := os.Rename(filepath.Join(staging, root), storePath); err != nil {
		_ = os.Rename(old, storePath)
		return fmt.Errorf("failed to install restored store: %w", err)
	}
	return os.RemoveAll(old)
}

// extract unpacks every entry under dir and returns the top-level name.
func extract(tr *tar.Reader, dir string) (string, error) {
	root := ""
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return root, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to read tar header: %w", err)
		}

		name := filepath.Clean(filepath.FromSlash(header.Name))
		if name == "." || filepath.IsAbs(name) || strings.HasPrefix(name, ".."+string(filepath.Separator)) || name == ".." {
			return "", fmt.Errorf("unsafe path %q in backup archive", header.Name)
		}
		top := strings.SplitN(name, string(filepath.Separator), 2)[0]
		if root == "" {
			root = top
		} else if top != root {
			return "", fmt.Errorf("backup archive holds more than one store (%s, %s)", root, top)
		}

		target := filepath.Join(dir, name)
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return "", fmt.Errorf("failed to create directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return "", fmt.Errorf("failed to create parent directory for %s: %w", target, err)
			}
			if err := writeFile(target, tr, os.FileMode(header.Mode).Perm()); err != nil {
				return "", err
			}
		default:
			return "", fmt.Errorf("unsupported entry type %d for %s", header.Typeflag, header.Name)
		}
	}
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode|0o600)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to write file %s: %w", target, err)
	}
	return out.Close()
}

// List returns the archives in dir, newest first. A missing directory has
// no archives.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []Info
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), archiveSuffix) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		checksum, _ := fileChecksum(path)

		storeType := "unknown"
		switch {
		case strings.HasPrefix(entry.Name(), "ledger_pebble_"):
			storeType = "pebble"
		case strings.HasPrefix(entry.Name(), "ledger_sqlite_"):
			storeType = "sqlite"
		}

		backups = append(backups, Info{
			Filename:  entry.Name(),
			Path:      path,
			Size:      fi.Size(),
			Checksum:  checksum,
			StoreType: storeType,
			CreatedAt: fi.ModTime(),
		})
	}

	// Timestamped names sort chronologically.
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Filename > backups[j].Filename
	})
	return backups, nil
}

// prune keeps the newest max archives.
func prune(dir string, max int) error {
	backups, err := List(dir)
	if err != nil {
		return err
	}
	var errs []error
	for i := max; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil {
			errs = append(errs, fmt.Errorf("delete old backup %s: %w", backups[i].Filename, err))
		}
	}
	return errors.Join(errs...)
}

// fileChecksum returns the hex SHA-256 of a file.
func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
