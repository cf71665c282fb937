package chart

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"offsettweak/internal/fileutil"
	"offsettweak/internal/logging"
)

// offsetField matches the first line-anchored #OFFSET field, keeping an
// optional leading byte order mark in group 1.
var offsetField = regexp.MustCompile(`(?m)^(\x{FEFF}?)#OFFSET:[-+]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+);`)

// PatchResult describes one rewritten chart.
type PatchResult struct {
	Path     string
	Encoding string
	// Reencoded is set when the file was decoded by a fallback codec and
	// written back as UTF-8.
	Reencoded bool
	Previous  string
	Current   string
	Changed   bool
}

// Patcher rewrites the #OFFSET field of chart files.
type Patcher struct {
	codecs []Codec
	logger *slog.Logger
}

// NewPatcher builds a patcher that tries codecs in order. An empty list uses
// DefaultCodecs.
func NewPatcher(codecs []Codec, logger *slog.Logger) *Patcher {
	if len(codecs) == 0 {
		codecs = DefaultCodecs()
	}
	return &Patcher{
		codecs: append([]Codec(nil), codecs...),
		logger: logging.NewComponentLogger(logger, "patch"),
	}
}

// Patch replaces the first #OFFSET field of path with value formatted to
// precision fractional digits. All other text is reproduced verbatim and the
// result is written as UTF-8 bytes.
func (p *Patcher) Patch(path string, value float64, precision int) (PatchResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PatchResult{}, fmt.Errorf("read chart: %w", err)
	}

	text, codec, err := p.decode(path, data)
	if err != nil {
		return PatchResult{}, err
	}

	loc := offsetField.FindStringSubmatchIndex(text)
	if loc == nil {
		return PatchResult{}, &MissingFieldError{Path: path}
	}
	bom := text[loc[2]:loc[3]]
	previous := text[loc[3]:loc[1]]
	field := FormatField(value, precision)
	patched := text[:loc[0]] + bom + field + text[loc[1]:]

	result := PatchResult{
		Path:      path,
		Encoding:  codec.Name,
		Reencoded: !codec.IsUTF8(),
		Previous:  previous,
		Current:   field,
	}
	out := []byte(patched)
	if string(out) == string(data) {
		return result, nil
	}
	if err := fileutil.WriteFileAtomic(path, out, 0o644); err != nil {
		return PatchResult{}, fmt.Errorf("write chart %s: %w", path, err)
	}
	result.Changed = true

	if result.Reencoded {
		p.logger.Info("chart re-encoded as UTF-8",
			logging.String(logging.FieldEventType, "chart_reencoded"),
			logging.String(logging.FieldPath, path),
			logging.String("detected_encoding", codec.Name))
	}
	p.logger.Debug("patched offset field",
		logging.String(logging.FieldPath, path),
		logging.String("previous", previous),
		logging.String("current", field))
	return result, nil
}

func (p *Patcher) decode(path string, data []byte) (string, Codec, error) {
	tried := make([]string, 0, len(p.codecs))
	var lastErr error
	for _, codec := range p.codecs {
		text, err := codec.Decode(data)
		if err == nil {
			return text, codec, nil
		}
		tried = append(tried, codec.Name)
		lastErr = err
		p.logger.Debug("codec rejected chart",
			logging.String(logging.FieldPath, path),
			logging.String("encoding", codec.Name),
			logging.Error(err))
	}
	return "", Codec{}, &EncodingError{Path: path, Tried: tried, Err: lastErr}
}
