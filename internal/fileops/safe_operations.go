// file: internal/fileops/safe_operations.go
// version: 2.0.0
// guid: 8f7e6d5c-4b3a-2918-7f6e-5d4c3b2a1908

package fileops

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// OperationConfig configures how in-place edits are protected
type OperationConfig struct {
	// BackupDir is where backups are written. Empty means next to the file.
	BackupDir string
	// VerifyChecksums checks a restored file against the original hash
	VerifyChecksums bool
	// KeepBackup leaves the backup on disk after a successful commit
	KeepBackup bool
}

// DefaultConfig returns the default safe operation configuration
func DefaultConfig() OperationConfig {
	return OperationConfig{
		VerifyChecksums: true,
	}
}

// FileOperation guards an in-place modification of a single file with a
// backup copy that can be restored if the modification fails.
type FileOperation struct {
	config       OperationConfig
	targetPath   string
	backupPath   string
	originalHash string
	done         bool
}

// Begin copies path to a backup and returns the operation guarding it.
func Begin(path string, config OperationConfig) (*FileOperation, error) {
	backupDir := config.BackupDir
	if backupDir == "" {
		backupDir = filepath.Dir(path)
	} else if !filepath.IsAbs(backupDir) {
		backupDir = filepath.Join(filepath.Dir(path), backupDir)
	}
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	tmp, err := os.CreateTemp(backupDir, "."+filepath.Base(path)+".*.bak")
	if err != nil {
		return nil, fmt.Errorf("failed to create backup file: %w", err)
	}
	backupPath := tmp.Name()
	tmp.Close()

	op := &FileOperation{
		config:     config,
		targetPath: path,
		backupPath: backupPath,
	}

	if err := copyFile(path, backupPath); err != nil {
		_ = os.Remove(backupPath)
		return nil, fmt.Errorf("failed to backup %s: %w", path, err)
	}

	if config.VerifyChecksums {
		hash, err := calculateChecksum(path)
		if err != nil {
			_ = os.Remove(backupPath)
			return nil, fmt.Errorf("failed to calculate checksum: %w", err)
		}
		op.originalHash = hash
	}

	return op, nil
}

// BackupPath returns where the backup copy lives.
func (op *FileOperation) BackupPath() string {
	return op.backupPath
}

// Rollback restores the original file from the backup and removes it.
func (op *FileOperation) Rollback() error {
	if op.done {
		return fmt.Errorf("operation already finished")
	}
	if err := copyFile(op.backupPath, op.targetPath); err != nil {
		return fmt.Errorf("failed to restore from backup: %w", err)
	}
	if op.config.VerifyChecksums {
		ok, err := VerifyFileIntegrity(op.targetPath, op.originalHash)
		if err != nil {
			return fmt.Errorf("failed to verify restored file: %w", err)
		}
		if !ok {
			return fmt.Errorf("checksum mismatch: restored file differs from backup, backup kept at %s", op.backupPath)
		}
	}
	op.done = true
	return os.Remove(op.backupPath)
}

// Commit finalizes the operation and removes the backup unless it is kept.
func (op *FileOperation) Commit() error {
	if op.done {
		return fmt.Errorf("operation already finished")
	}
	op.done = true
	if op.config.KeepBackup {
		return nil
	}
	if err := os.Remove(op.backupPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove backup: %w", err)
	}
	return nil
}

// SafeModify runs modify against path. If modify fails the file is restored
// from a backup taken beforehand and the modify error is returned, joined
// with any restore error.
func SafeModify(path string, config OperationConfig, modify func() error) error {
	op, err := Begin(path, config)
	if err != nil {
		return err
	}

	if err := modify(); err != nil {
		if rbErr := op.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}

	return op.Commit()
}

// Helper functions

// copyFile copies a file from src to dst with verification
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	// Ensure destination directory exists
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	destFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	// Sync to ensure data is written to disk
	if err := destFile.Sync(); err != nil {
		return err
	}

	// Copy file permissions
	sourceInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, sourceInfo.Mode())
}

// calculateChecksum computes SHA256 hash of a file
func calculateChecksum(path string) (string, error) {
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

// VerifyFileIntegrity checks if a file matches its expected checksum
func VerifyFileIntegrity(path, expectedHash string) (bool, error) {
	actualHash, err := calculateChecksum(path)
	if err != nil {
		return false, err
	}
	return actualHash == expectedHash, nil
}
