package tweak

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"offsettweak/internal/chart"
	"offsettweak/internal/ledger"
	"offsettweak/internal/locator"
	"offsettweak/internal/logging"
)

// Tolerances for deciding that the on-disk value already equals the final value.
const (
	absTolerance = 1e-8
	relTolerance = 1e-5
)

// Close reports whether a and b are equal within the planner's tolerance.
func Close(a, b float64) bool {
	return math.Abs(a-b) <= absTolerance+relTolerance*math.Abs(b)
}

// Record is the planned change for one chart.
type Record struct {
	File         locator.SongFile
	Baseline     float64
	Current      float64
	Precision    int
	Modification float64
	Final        float64
	// FromLedger is set when Baseline and Precision came from the ledger
	// rather than from the chart itself.
	FromLedger bool
}

// Changed reports whether the chart must be rewritten.
func (r Record) Changed() bool {
	return !Close(r.Current, r.Final)
}

// Key returns the ledger key for the record.
func (r Record) Key() ledger.Key {
	return ledger.Key{Pack: r.File.Pack, Song: r.File.Song, File: r.File.File}
}

// Batch is the pending change set for one pack.
type Batch struct {
	Pack  string
	Label string
	// Dir is the lowest common ancestor of the pack's song directories and
	// holds the pack's ledger.
	Dir          string
	Delta        float64
	Records      []Record
	LedgerExists bool
}

// Changes returns the records whose chart must be rewritten.
func (b *Batch) Changes() []Record {
	var out []Record
	for _, r := range b.Records {
		if r.Changed() {
			out = append(out, r)
		}
	}
	return out
}

// Precision is the widest precision among the pack's records. It is used for
// every patched field and every ledger row of the pack.
func (b *Batch) Precision() int {
	precision := 0
	for _, r := range b.Records {
		if r.Precision > precision {
			precision = r.Precision
		}
	}
	return precision
}

// Entries returns the ledger rows to persist after the pack's charts were
// patched: changed charts record their final offset, unchanged ones keep
// their baseline.
func (b *Batch) Entries() []ledger.Entry {
	entries := make([]ledger.Entry, 0, len(b.Records))
	for _, r := range b.Records {
		baseline := r.Baseline
		if r.Changed() {
			baseline = r.Final
		}
		entries = append(entries, ledger.Entry{Key: r.Key(), Baseline: baseline, Precision: r.Precision})
	}
	return entries
}

// Planner builds batches from located charts and their ledgers.
type Planner struct {
	ledgers *ledger.Store
	logger  *slog.Logger
}

// NewPlanner returns a planner reading ledgers through store.
func NewPlanner(store *ledger.Store, logger *slog.Logger) *Planner {
	return &Planner{ledgers: store, logger: logging.NewComponentLogger(logger, "planner")}
}

// Plan groups files into packs and computes every record for delta. A chart
// without an #OFFSET field aborts planning.
func (p *Planner) Plan(files []locator.SongFile, delta float64) ([]*Batch, error) {
	batches := group(files)
	for _, batch := range batches {
		batch.Delta = delta

		entries, err := p.ledgers.Load(batch.Dir)
		if err != nil {
			return nil, fmt.Errorf("load ledger for %q: %w", batch.Label, err)
		}
		batch.LedgerExists, err = p.ledgers.Exists(batch.Dir)
		if err != nil {
			return nil, fmt.Errorf("stat ledger for %q: %w", batch.Label, err)
		}

		for i := range batch.Records {
			rec := &batch.Records[i]
			offset, err := chart.ReadOffset(rec.File.Path)
			if err != nil {
				return nil, err
			}
			rec.Current = offset.Value
			if entry, ok := entries[rec.Key()]; ok {
				rec.Baseline = entry.Baseline
				rec.Precision = entry.Precision
				rec.FromLedger = true
			} else {
				rec.Baseline = offset.Value
				rec.Precision = offset.Precision
			}
			rec.Modification = delta
			rec.Final = rec.Baseline + delta
		}

		p.logger.Debug("planned pack",
			logging.String(logging.FieldPack, batch.Label),
			logging.String(logging.FieldPath, batch.Dir),
			logging.Int("chart_count", len(batch.Records)),
			logging.Int("ledger_entries", len(entries)),
			logging.Int("change_count", len(batch.Changes())))
	}
	return batches, nil
}

// group keeps the locator's order. Packs are keyed by their directory so two
// packs sharing a name in different places stay apart.
func group(files []locator.SongFile) []*Batch {
	var batches []*Batch
	index := make(map[string]*Batch)
	songDirs := make(map[*Batch][]string)

	for _, f := range files {
		songDir := filepath.Dir(f.Path)
		key := songDir
		if f.Grouped() {
			key = filepath.Dir(songDir)
		}
		batch, ok := index[key]
		if !ok {
			label := f.Pack
			if !f.Grouped() {
				label = f.Song
			}
			batch = &Batch{Pack: f.Pack, Label: label}
			index[key] = batch
			batches = append(batches, batch)
		}
		batch.Records = append(batch.Records, Record{File: f})
		songDirs[batch] = append(songDirs[batch], songDir)
	}

	for _, batch := range batches {
		batch.Dir = commonDir(songDirs[batch])
	}

	// Nested chart folders can give two groups the same ledger directory.
	// They share one ledger file, so they are planned and approved together.
	merged := batches[:0]
	byDir := make(map[string]*Batch, len(batches))
	for _, batch := range batches {
		if first, ok := byDir[batch.Dir]; ok {
			first.Records = append(first.Records, batch.Records...)
			continue
		}
		byDir[batch.Dir] = batch
		merged = append(merged, batch)
	}
	return merged
}

func commonDir(dirs []string) string {
	if len(dirs) == 0 {
		return ""
	}
	common := filepath.Clean(dirs[0])
	for _, dir := range dirs[1:] {
		dir = filepath.Clean(dir)
		for !within(dir, common) {
			parent := filepath.Dir(common)
			if parent == common {
				break
			}
			common = parent
		}
	}
	return common
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
