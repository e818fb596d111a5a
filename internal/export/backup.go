package export

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const backupTimeLayout = "20060102_150405"

// backup copies path to <stem>_backup_<timestamp><ext> beside it and prunes
// old copies beyond MaxBackups.
func (x *ExcelWriter) backup(path string) (string, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	name := fmt.Sprintf("%s_backup_%s%s", stem, x.now().Format(backupTimeLayout), ext)
	dst := filepath.Join(filepath.Dir(path), name)

	if err := copyFile(path, dst); err != nil {
		return "", fmt.Errorf("backing up workbook: %w", err)
	}
	slog.Info("Backup created", "original", path, "backup", dst)

	x.pruneBackups(path)
	return dst, nil
}

func (x *ExcelWriter) pruneBackups(path string) {
	if x.MaxBackups <= 0 {
		return
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	pattern := filepath.Join(filepath.Dir(path), stem+"_backup_*"+ext)
	backups, err := filepath.Glob(pattern)
	if err != nil || len(backups) <= x.MaxBackups {
		return
	}

	// Timestamped names sort chronologically.
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	for _, old := range backups[x.MaxBackups:] {
		if err := os.Remove(old); err != nil {
			slog.Warn("Failed to delete old backup", "file", old, "error", err)
			continue
		}
		slog.Debug("Old backup deleted", "file", old)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
