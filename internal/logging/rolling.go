package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// RollingConfig configures rolling log behavior
type RollingConfig struct {
	MaxSize     int64  // Max bytes per file before rotation
	MaxAge      int    // Days to keep rotated files
	MaxBackups  int    // Rotated files to keep
	Compress    bool   // Gzip rotated files
	BaseName    string // File name prefix
	LogDir      string
	TimePattern string // Date layout that triggers daily rotation
}

// DefaultRollingConfig returns sensible defaults
func DefaultRollingConfig() RollingConfig {
	return RollingConfig{
		MaxSize:     10 * 1024 * 1024,
		MaxAge:      7,
		MaxBackups:  5,
		Compress:    true,
		BaseName:    "fodder-analyzer",
		LogDir:      "logs",
		TimePattern: "2006-01-02",
	}
}

// RollingWriter is an io.Writer that rotates its file by date and size
type RollingWriter struct {
	mu      sync.Mutex
	cfg     RollingConfig
	ext     string
	file    *os.File
	size    int64
	date    string
	seq     int
	now     func() time.Time
	pending sync.WaitGroup
}

// NewRollingWriter creates the log directory and opens today's file.
// JSON writers use the .jsonl extension.
func NewRollingWriter(cfg RollingConfig, isJSON bool) (*RollingWriter, error) {
	if cfg.TimePattern == "" {
		cfg.TimePattern = "2006-01-02"
	}
	if cfg.BaseName == "" {
		cfg.BaseName = "fodder-analyzer"
	}
	rw := &RollingWriter{cfg: cfg, ext: ".log", now: time.Now}
	if isJSON {
		rw.ext = ".jsonl"
	}

	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := rw.open(); err != nil {
		return nil, err
	}

	rw.pending.Add(1)
	go func() {
		defer rw.pending.Done()
		rw.prune()
	}()
	return rw, nil
}

// Write implements io.Writer
func (rw *RollingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.needsRotation(len(p)) {
		if err := rw.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

// Close closes the current file and waits for background compression
func (rw *RollingWriter) Close() error {
	rw.mu.Lock()
	var err error
	if rw.file != nil {
		err = rw.file.Close()
		rw.file = nil
	}
	rw.mu.Unlock()

	rw.pending.Wait()
	return err
}

// Path returns the file currently written to
func (rw *RollingWriter) Path() string {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.path()
}

func (rw *RollingWriter) needsRotation(incoming int) bool {
	if rw.now().Format(rw.cfg.TimePattern) != rw.date {
		return true
	}
	return rw.cfg.MaxSize > 0 && rw.size+int64(incoming) > rw.cfg.MaxSize
}

func (rw *RollingWriter) rotate() error {
	if rw.file != nil {
		old := rw.path()
		rw.file.Close()

		// Size rotation within the same day moves the full file aside
		date := rw.now().Format(rw.cfg.TimePattern)
		if date == rw.date {
			rw.seq++
			rotated := strings.TrimSuffix(old, rw.ext) + fmt.Sprintf(".%d%s", rw.seq, rw.ext)
			if err := os.Rename(old, rotated); err == nil {
				old = rotated
			}
		} else {
			rw.seq = 0
		}

		if rw.cfg.Compress {
			rw.pending.Add(1)
			go func(path string) {
				defer rw.pending.Done()
				compress(path)
			}(old)
		}
	}
	return rw.open()
}

func (rw *RollingWriter) open() error {
	rw.date = rw.now().Format(rw.cfg.TimePattern)
	path := rw.path()

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	rw.file = f
	rw.size = size
	return nil
}

func (rw *RollingWriter) path() string {
	return filepath.Join(rw.cfg.LogDir, fmt.Sprintf("%s-%s%s", rw.cfg.BaseName, rw.date, rw.ext))
}

// compress gzips path and removes the original
func compress(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	gzPath := path + ".gz"
	dst, err := os.Create(gzPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	gzw := gzip.NewWriter(dst)
	gzw.Name = filepath.Base(path)
	gzw.ModTime = time.Now()

	if _, err := io.Copy(gzw, src); err != nil {
		os.Remove(gzPath)
		return err
	}
	if err := gzw.Close(); err != nil {
		os.Remove(gzPath)
		return err
	}
	return os.Remove(path)
}

// prune removes rotated files older than MaxAge or beyond MaxBackups
func (rw *RollingWriter) prune() {
	rw.mu.Lock()
	current := rw.path()
	cutoff := rw.now().AddDate(0, 0, -rw.cfg.MaxAge)
	rw.mu.Unlock()

	files := listLogFiles(rw.cfg.LogDir, rw.cfg.BaseName)

	kept := 0
	for _, f := range files {
		if f.Path == current {
			continue
		}
		if rw.cfg.MaxAge > 0 && f.Modified.Before(cutoff) {
			os.Remove(f.Path)
			continue
		}
		kept++
		if rw.cfg.MaxBackups > 0 && kept > rw.cfg.MaxBackups {
			os.Remove(f.Path)
		}
	}
}

// LogFileInfo describes a log file on disk
type LogFileInfo struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// GetLogFiles lists the analyzer's log files, newest first
func GetLogFiles(logDir string) []LogFileInfo {
	return listLogFiles(logDir, DefaultRollingConfig().BaseName)
}

func listLogFiles(logDir, baseName string) []LogFileInfo {
	matches, err := filepath.Glob(filepath.Join(logDir, baseName+"-*"))
	if err != nil {
		return nil
	}

	files := make([]LogFileInfo, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		files = append(files, LogFileInfo{
			Name:     filepath.Base(path),
			Path:     path,
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}

	slices.SortFunc(files, func(a, b LogFileInfo) int {
		return b.Modified.Compare(a.Modified)
	})
	return files
}

// FormatSize formats bytes to human-readable size
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// IsLambda returns true if running in AWS Lambda
func IsLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}
