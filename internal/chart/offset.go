package chart

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

const (
	fieldPrefix   = "#OFFSET:"
	byteOrderMark = "\ufeff"
)

// offsetLine matches the field at the start of a line. The fraction is
// optional so "#OFFSET:0;" reads as precision 0.
var offsetLine = regexp.MustCompile(`^#OFFSET:([-+]?(?:[0-9]+(?:\.([0-9]*))?|\.([0-9]+)));`)

// Offset is an #OFFSET value with the number of fractional digits it was
// written with.
type Offset struct {
	Value     float64
	Precision int
}

// ParseLine extracts the offset from a single line. Trailing text after the
// terminating semicolon is ignored.
func ParseLine(line string) (Offset, bool) {
	m := offsetLine.FindStringSubmatch(line)
	if m == nil {
		return Offset{}, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Offset{}, false
	}
	return Offset{Value: value, Precision: len(m[2]) + len(m[3])}, true
}

// ReadOffset scans path line by line and returns the first #OFFSET field.
// Undecodable bytes are substituted rather than rejected since the file is
// only read here.
func ReadOffset(path string) (Offset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Offset{}, fmt.Errorf("open chart: %w", err)
	}
	defer f.Close()

	offset, err := scanOffset(f)
	if err != nil {
		if errors.Is(err, ErrMissingField) {
			return Offset{}, &MissingFieldError{Path: path}
		}
		return Offset{}, fmt.Errorf("read chart %s: %w", path, err)
	}
	return offset, nil
}

func scanOffset(r io.Reader) (Offset, error) {
	reader := bufio.NewReader(r)
	first := true
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			line = strings.ToValidUTF8(line, "\uFFFD")
			if first {
				line = strings.TrimPrefix(line, byteOrderMark)
				first = false
			}
			if offset, ok := ParseLine(line); ok {
				return offset, nil
			}
		}
		if err == io.EOF {
			return Offset{}, ErrMissingField
		}
		if err != nil {
			return Offset{}, err
		}
	}
}

// FormatOffset renders value with exactly precision fractional digits.
func FormatOffset(value float64, precision int) string {
	if precision < 0 {
		precision = 0
	}
	return strconv.FormatFloat(value, 'f', precision, 64)
}

// FormatField renders a complete "#OFFSET:<value>;" field.
func FormatField(value float64, precision int) string {
	return fieldPrefix + FormatOffset(value, precision) + ";"
}
