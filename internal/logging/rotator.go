package logging

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// rotatingFile appends to path and, once it would grow past maxBytes,
// shifts it into numbered backups: path.1 is the newest, path.N the
// oldest. Compressed backups carry a .gz suffix.
type rotatingFile struct {
	path     string
	maxBytes int64
	backups  int
	compress bool

	mu   sync.Mutex
	f    *os.File
	size int64
}

func openRotating(cfg *Config) (*rotatingFile, error) {
	r := &rotatingFile{
		path:     cfg.FilePath,
		maxBytes: cfg.MaxSizeMB << 20,
		backups:  cfg.MaxBackups,
		compress: cfg.Compress,
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rotatingFile) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.f, r.size = f, info.Size()
	return nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	// A record larger than the limit still goes into a fresh file.
	if r.maxBytes > 0 && r.size > 0 && r.size+int64(len(p)) > r.maxBytes {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}

	n, err := r.f.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *rotatingFile) backup(i int) string {
	name := fmt.Sprintf("%s.%d", r.path, i)
	if r.compress {
		name += ".gz"
	}
	return name
}

func (r *rotatingFile) rotate() error {
	if err := r.f.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	r.f = nil

	if r.backups <= 0 {
		if err := removeIfExists(r.path); err != nil {
			return err
		}
		return r.open()
	}

	if err := removeIfExists(r.backup(r.backups)); err != nil {
		return err
	}
	for i := r.backups - 1; i >= 1; i-- {
		if err := os.Rename(r.backup(i), r.backup(i+1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	first := r.path + ".1"
	if err := os.Rename(r.path, first); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if r.compress {
		if err := gzipFile(first); err != nil {
			return err
		}
	}
	return r.open()
}

// backupFiles lists the backups that exist, newest first.
func (r *rotatingFile) backupFiles() []string {
	var out []string
	for i := 1; i <= r.backups; i++ {
		if _, err := os.Stat(r.backup(i)); err == nil {
			out = append(out, r.backup(i))
		}
	}
	return out
}

// gzipFile replaces path with path.gz.
func gzipFile(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(out)
	gz.Name = filepath.Base(path)
	if _, err := io.Copy(gz, in); err != nil {
		out.Close()
		os.Remove(path + ".gz")
		return fmt.Errorf("compress %s: %w", path, err)
	}
	if err := gz.Close(); err != nil {
		out.Close()
		os.Remove(path + ".gz")
		return fmt.Errorf("compress %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}
