package history

import (
	"context"

	"offsettweak/internal/tweak"
)

// Recorder journals engine commits into a Store.
type Recorder struct {
	store *Store
}

// NewRecorder returns a tweak.Recorder backed by store.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

// Record appends commit to the journal.
func (r *Recorder) Record(ctx context.Context, commit tweak.Commit) error {
	if r == nil || r.store == nil {
		return nil
	}
	_, err := r.store.Append(ctx, fromTweak(commit))
	return err
}

func fromTweak(commit tweak.Commit) Commit {
	out := Commit{
		RunID:        commit.RunID,
		Root:         commit.Root,
		LedgerAction: string(commit.Ledger),
	}
	if commit.Batch == nil {
		return out
	}
	out.Pack = commit.Batch.Label
	out.LedgerDir = commit.Batch.Dir
	out.Delta = commit.Batch.Delta
	out.Precision = commit.Batch.Precision()

	songs := make(map[string]tweak.Record, len(commit.Batch.Records))
	for _, rec := range commit.Batch.Records {
		songs[rec.File.Path] = rec
	}
	for _, patched := range commit.Patched {
		change := Change{
			Path:      patched.Path,
			Previous:  patched.Previous,
			Current:   patched.Current,
			Encoding:  patched.Encoding,
			Reencoded: patched.Reencoded,
		}
		if rec, ok := songs[patched.Path]; ok {
			change.Song = rec.File.Song
			change.File = rec.File.File
		}
		out.Changes = append(out.Changes, change)
	}
	return out
}

var _ tweak.Recorder = (*Recorder)(nil)
