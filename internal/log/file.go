package log

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"
)

// FileWriter appends JSON log lines to a dated file in a debug
// directory, one file per day, with a "latest" symlink pointing at the
// current file.
type FileWriter struct {
	dir string

	mu   sync.Mutex
	file *os.File
	day  string
}

// NewFileWriter creates a FileWriter rooted at dir. The directory is
// created if needed.
func NewFileWriter(dir string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating debug log dir: %w", err)
	}
	fw := &FileWriter{dir: dir}

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if err := fw.openToday(); err != nil {
		return nil, err
	}
	return fw, nil
}

// Write implements io.Writer, rolling over to a new file when the date
// changes between writes.
func (fw *FileWriter) Write(p []byte) (int, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if today := time.Now().Format("2006-01-02"); today != fw.day {
		if err := fw.openToday(); err != nil {
			return 0, err
		}
	}
	return fw.file.Write(p)
}

// Close closes the current log file.
func (fw *FileWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.file == nil {
		return nil
	}
	return fw.file.Close()
}

// openToday opens (or creates) today's log file and repoints the
// "latest" symlink. Callers hold fw.mu.
func (fw *FileWriter) openToday() error {
	if fw.file != nil {
		fw.file.Close()
	}

	day := time.Now().Format("2006-01-02")
	name := day + ".jsonl"
	f, err := os.OpenFile(filepath.Join(fw.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	fw.file = f
	fw.day = day

	// Symlink update is best effort; some filesystems refuse symlinks.
	link := filepath.Join(fw.dir, "latest")
	tmp := link + ".tmp"
	os.Remove(tmp)
	if err := os.Symlink(name, tmp); err == nil {
		_ = os.Rename(tmp, link)
	}
	return nil
}

// logFileName matches the dated files FileWriter produces.
var logFileName = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\.jsonl$`)

// Cleanup deletes debug log files older than retentionDays. Files that
// do not look like dated logs are left alone.
func Cleanup(dir string, retentionDays int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !logFileName.MatchString(name) {
			continue
		}
		day, err := time.Parse("2006-01-02", name[:len("2006-01-02")])
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			os.Remove(filepath.Join(dir, name))
		}
	}
}
