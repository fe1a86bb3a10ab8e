package delivery

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sink receives (bytes, output name) pairs for successfully converted
// files. The pipeline never imports this package; the driver feeds it
// completed outputs only.
type Sink interface {
	Deliver(name string, data []byte) error
	Close() error
}

// DirSink writes each result as an individual file in one directory.
type DirSink struct {
	dir  string
	seen map[string]bool
}

func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &DirSink{dir: dir, seen: make(map[string]bool)}, nil
}

func (s *DirSink) Deliver(name string, data []byte) error {
	name = uniqueName(s.seen, filepath.Base(name))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (s *DirSink) Close() error { return nil }

// ZipSink streams results into a single zip archive.
type ZipSink struct {
	file *os.File
	zw   *zip.Writer
	seen map[string]bool
}

func NewZipSink(path string) (*ZipSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	return &ZipSink{
		file: file,
		zw:   zip.NewWriter(file),
		seen: make(map[string]bool),
	}, nil
}

func (s *ZipSink) Deliver(name string, data []byte) error {
	name = uniqueName(s.seen, filepath.Base(name))
	w, err := s.zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s to archive: %w", name, err)
	}
	return nil
}

func (s *ZipSink) Close() error {
	if err := s.zw.Close(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// uniqueName deduplicates colliding output names (a.png and a.jpg both
// converted to jpeg must not overwrite each other): name.ext, name-1.ext,
// name-2.ext, ...
func uniqueName(seen map[string]bool, name string) string {
	if !seen[name] {
		seen[name] = true
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if !seen[candidate] {
			seen[candidate] = true
			return candidate
		}
	}
}
