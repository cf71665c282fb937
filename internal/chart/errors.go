package chart

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingField marks chart files that carry no #OFFSET field.
	ErrMissingField = errors.New("offset field not found")
	// ErrEncoding marks chart files that none of the configured codecs could decode.
	ErrEncoding = errors.New("unsupported text encoding")
)

// MissingFieldError identifies a chart file without an #OFFSET field.
type MissingFieldError struct {
	Path string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("no #OFFSET field in %s", e.Path)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// EncodingError reports a chart file that failed to decode with every codec.
type EncodingError struct {
	Path  string
	Tried []string
	Err   error
}

func (e *EncodingError) Error() string {
	msg := fmt.Sprintf("decode %s: tried %s", e.Path, strings.Join(e.Tried, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EncodingError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrEncoding, e.Err}
	}
	return []error{ErrEncoding}
}
