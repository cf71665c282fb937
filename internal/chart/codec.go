package chart

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

var errInvalidUTF8 = errors.New("invalid UTF-8 byte sequence")

// Codec decodes raw chart bytes into UTF-8 text.
type Codec struct {
	Name   string
	decode func([]byte) (string, error)
}

// Decode converts data to UTF-8 text or fails if data is not valid in this encoding.
func (c Codec) Decode(data []byte) (string, error) {
	return c.decode(data)
}

// IsUTF8 reports whether the codec passes bytes through unchanged.
func (c Codec) IsUTF8() bool {
	return c.Name == "UTF-8"
}

// UTF8 is a strict UTF-8 codec; any invalid sequence is an error.
func UTF8() Codec {
	return Codec{
		Name: "UTF-8",
		decode: func(data []byte) (string, error) {
			if !utf8.Valid(data) {
				return "", errInvalidUTF8
			}
			return string(data), nil
		},
	}
}

// Latin1 decodes ISO-8859-1, which maps every byte and never fails.
func Latin1() Codec {
	return fromEncoding("ISO-8859-1", charmap.ISO8859_1)
}

// DefaultCodecs is the UTF-8 then ISO-8859-1 order used when nothing is configured.
func DefaultCodecs() []Codec {
	return []Codec{UTF8(), Latin1()}
}

// LookupCodec resolves an encoding name. UTF-8 and ISO-8859-1 aliases map to
// the built-in codecs; other names are resolved through the IANA registry.
func LookupCodec(name string) (Codec, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "utf-8", "utf8":
		return UTF8(), nil
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return Latin1(), nil
	}
	enc, err := ianaindex.IANA.Encoding(key)
	if err != nil {
		return Codec{}, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return Codec{}, fmt.Errorf("encoding %q is not supported", name)
	}
	return fromEncoding(strings.ToUpper(key), enc), nil
}

// ErrCodecOrder is returned for codec lists that do not start with UTF-8.
// Single-byte codecs decode any input and would shadow it.
var ErrCodecOrder = errors.New("codec list must start with UTF-8")

// LookupCodecs resolves an ordered list of encoding names. The first name
// must resolve to UTF-8.
func LookupCodecs(names []string) ([]Codec, error) {
	codecs := make([]Codec, 0, len(names))
	for _, name := range names {
		codec, err := LookupCodec(name)
		if err != nil {
			return nil, err
		}
		codecs = append(codecs, codec)
	}
	if len(codecs) == 0 {
		return DefaultCodecs(), nil
	}
	if !codecs[0].IsUTF8() {
		return nil, fmt.Errorf("%w, got %s", ErrCodecOrder, codecs[0].Name)
	}
	return codecs, nil
}

func fromEncoding(name string, enc encoding.Encoding) Codec {
	return Codec{
		Name: name,
		decode: func(data []byte) (string, error) {
			out, err := enc.NewDecoder().Bytes(data)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}
