package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"offsettweak/internal/fileutil"
	"offsettweak/internal/logging"
)

// DefaultFileName is the sidecar name used by earlier releases of the tool.
const DefaultFileName = "offset_tweak.csv"

const (
	columnPack     = "pack"
	columnSong     = "song"
	columnFile     = "file"
	columnBaseline = "initial_offset"
)

var header = []string{columnPack, columnSong, columnFile, columnBaseline}

// Key identifies one chart within a pack.
type Key struct {
	Pack string
	Song string
	File string
}

// Entry is one ledger row.
type Entry struct {
	Key
	Baseline  float64
	Precision int
}

// Store reads and writes ledgers named name inside pack directories.
type Store struct {
	name   string
	logger *slog.Logger
}

// NewStore returns a ledger store. An empty name uses DefaultFileName.
func NewStore(name string, logger *slog.Logger) *Store {
	if strings.TrimSpace(name) == "" {
		name = DefaultFileName
	}
	return &Store{name: name, logger: logging.NewComponentLogger(logger, "ledger")}
}

// Path returns the ledger location for a pack directory.
func (s *Store) Path(dir string) string {
	return filepath.Join(dir, s.name)
}

// Load reads the ledger in dir. A missing ledger yields an empty map.
func (s *Store) Load(dir string) (map[Key]Entry, error) {
	path := s.Path(dir)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[Key]Entry{}, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	entries, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", path, err)
	}
	s.logger.Debug("loaded ledger",
		logging.String(logging.FieldPath, path),
		logging.Int("entry_count", len(entries)))
	return entries, nil
}

// Save writes entries to the ledger in dir, replacing any previous content.
// Every baseline is formatted with the largest precision among entries.
func (s *Store) Save(dir string, entries []Entry) error {
	data, err := encode(entries)
	if err != nil {
		return err
	}
	path := s.Path(dir)
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	s.logger.Debug("saved ledger",
		logging.String(logging.FieldPath, path),
		logging.Int("entry_count", len(entries)),
		logging.Int("precision", SharedPrecision(entries)))
	return nil
}

// Clear deletes the ledger in dir and reports whether one existed.
func (s *Store) Clear(dir string) (bool, error) {
	path := s.Path(dir)
	removed, err := fileutil.RemoveIfExists(path)
	if err != nil {
		return false, fmt.Errorf("remove ledger: %w", err)
	}
	if removed {
		s.logger.Debug("removed ledger", logging.String(logging.FieldPath, path))
	}
	return removed, nil
}

// Exists reports whether dir holds a ledger.
func (s *Store) Exists(dir string) (bool, error) {
	return fileutil.Exists(s.Path(dir))
}

// SharedPrecision is the largest precision among entries.
func SharedPrecision(entries []Entry) int {
	precision := 0
	for _, e := range entries {
		if e.Precision > precision {
			precision = e.Precision
		}
	}
	return precision
}

func encode(entries []Entry) ([]byte, error) {
	precision := SharedPrecision(entries)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("encode ledger header: %w", err)
	}
	for _, e := range entries {
		row := []string{e.Pack, e.Song, e.File, strconv.FormatFloat(e.Baseline, 'f', precision, 64)}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("encode ledger row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return buf.Bytes(), nil
}

// decode locates columns by header name so ledgers carrying extra columns
// (modification, final_offset) still load.
func decode(r io.Reader) (map[Key]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	head, err := reader.Read()
	if err == io.EOF {
		return map[Key]Entry{}, nil
	}
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(head))
	for i, name := range head {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range header {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	entries := make(map[Key]Entry)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		field := func(name string) string {
			if i := index[name]; i < len(record) {
				return record[i]
			}
			return ""
		}
		text := strings.TrimSpace(field(columnBaseline))
		if text == "" {
			continue
		}
		baseline, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: initial_offset %q: %w", lineOf(reader), text, err)
		}
		key := Key{Pack: field(columnPack), Song: field(columnSong), File: field(columnFile)}
		entries[key] = Entry{Key: key, Baseline: baseline, Precision: fractionDigits(text)}
	}
	return entries, nil
}

func lineOf(r *csv.Reader) int {
	line, _ := r.FieldPos(0)
	return line
}

func fractionDigits(text string) int {
	dot := strings.IndexByte(text, '.')
	if dot < 0 {
		return 0
	}
	digits := 0
	for _, c := range text[dot+1:] {
		if c < '0' || c > '9' {
			break
		}
		digits++
	}
	return digits
}
