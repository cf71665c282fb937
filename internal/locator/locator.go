package locator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrInvalidRoot marks roots that are missing or hold no chart files.
var ErrInvalidRoot = errors.New("invalid root directory")

// InvalidRootError reports a root that cannot be used for a run.
type InvalidRootError struct {
	Root   string
	Reason string
	Err    error
}

func (e *InvalidRootError) Error() string {
	msg := fmt.Sprintf("invalid root directory %q: %s", e.Root, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidRootError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidRoot, e.Err}
	}
	return []error{ErrInvalidRoot}
}

// SongFile identifies one chart file. Song is the parent directory name and
// Pack the grandparent's; Pack is empty for files sitting directly in the root,
// whose Song is the root's own name.
type SongFile struct {
	Pack string
	Song string
	File string
	Path string
}

// Grouped reports whether the file belongs to a named pack.
func (f SongFile) Grouped() bool {
	return f.Pack != ""
}

// Locate walks root and returns every file whose extension matches one of
// extensions (compared case-insensitively, without the leading dot).
func Locate(root string, extensions []string) ([]SongFile, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &InvalidRootError{Root: root, Reason: "resolve path", Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &InvalidRootError{Root: root, Reason: "stat", Err: err}
	}
	if !info.IsDir() {
		return nil, &InvalidRootError{Root: root, Reason: "not a directory"}
	}

	wanted := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			wanted[ext] = struct{}{}
		}
	}

	w := walker{root: abs, wanted: wanted}
	if err := w.walk(abs); err != nil {
		return nil, err
	}
	if len(w.files) == 0 {
		return nil, &InvalidRootError{Root: root, Reason: "no chart files found"}
	}
	return w.files, nil
}

type walker struct {
	root   string
	wanted map[string]struct{}
	files  []SongFile
}

func (w *walker) walk(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", dir, err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := strings.ToLower(entries[i].Name()), strings.ToLower(entries[j].Name())
		if a != b {
			return a < b
		}
		return entries[i].Name() < entries[j].Name()
	})

	var subdirs []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			subdirs = append(subdirs, path)
			continue
		}
		if !w.matches(entry.Name()) {
			continue
		}
		if !entry.Type().IsRegular() {
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		}
		w.files = append(w.files, w.songFile(dir, entry.Name(), path))
	}

	for _, sub := range subdirs {
		if err := w.walk(sub); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) matches(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" || len(name) == len(ext)+1 {
		return false
	}
	_, ok := w.wanted[ext]
	return ok
}

func (w *walker) songFile(dir, name, path string) SongFile {
	file := SongFile{File: name, Path: path, Song: filepath.Base(dir)}
	if dir == w.root {
		return file
	}
	parent := filepath.Dir(dir)
	if pack := filepath.Base(parent); parent != dir && pack != string(filepath.Separator) && pack != "." {
		file.Pack = pack
	}
	return file
}
