package approval

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"offsettweak/internal/chart"
	"offsettweak/internal/tweak"
)

// ErrNoResponse is returned when input ends before the operator answered.
var ErrNoResponse = errors.New("no response from operator")

// Mode selects how the console answers.
type Mode int

const (
	// ModePrompt asks the operator for every pack with changes.
	ModePrompt Mode = iota
	// ModeApprove shows the changes and approves without asking.
	ModeApprove
	// ModePreview shows the changes and never approves.
	ModePreview
)

const (
	ansiReset = "\x1b[0m"
	ansiBold  = "\x1b[1m"
)

// Console renders pending changes to out and reads answers from in.
type Console struct {
	in       *bufio.Reader
	out      io.Writer
	mode     Mode
	colorize bool
}

// NewConsole returns a console confirmer.
func NewConsole(in io.Reader, out io.Writer, mode Mode) *Console {
	return &Console{
		in:       bufio.NewReader(in),
		out:      out,
		mode:     mode,
		colorize: shouldColorize(out),
	}
}

var _ tweak.Confirmer = (*Console)(nil)

// Confirm shows the pack's changed charts and returns the operator's answer.
// Any input other than y/yes/n/no repeats the prompt.
func (c *Console) Confirm(ctx context.Context, batch *tweak.Batch) (bool, error) {
	changes := batch.Changes()
	if len(changes) == 0 {
		return false, nil
	}

	title := fmt.Sprintf("Tweaking offsets for %q", batch.Label)
	if c.colorize {
		title = ansiBold + title + ansiReset
	}
	fmt.Fprintln(c.out, title)
	fmt.Fprintln(c.out, RenderChanges(changes, batch.Precision()))

	switch c.mode {
	case ModeApprove:
		fmt.Fprintf(c.out, "Applying changes to %q\n", batch.Label)
		return true, nil
	case ModePreview:
		fmt.Fprintf(c.out, "Dry run: %d change(s) to %q not applied\n", len(changes), batch.Label)
		return false, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "Apply changes to %q? [y/n] ", batch.Label)
		line, err := c.readLine(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			fmt.Fprintln(c.out)
			return false, ctxErr
		}
		if answer, ok := parseAnswer(line); ok {
			return answer, nil
		}
		if err != nil {
			fmt.Fprintln(c.out)
			if errors.Is(err, io.EOF) {
				return false, fmt.Errorf("approve %q: %w", batch.Label, ErrNoResponse)
			}
			return false, fmt.Errorf("read answer: %w", err)
		}
	}
}

type lineResult struct {
	line string
	err  error
}

// readLine returns the next input line, or the context error as soon as ctx
// is done. An interrupted read is abandoned; the answer it may still deliver
// is never used.
func (c *Console) readLine(ctx context.Context) (string, error) {
	done := make(chan lineResult, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		done <- lineResult{line: line, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.line, res.err
	}
}

func parseAnswer(line string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	default:
		return false, false
	}
}

// RenderChanges formats changed records as a table with values written to
// precision fractional digits.
func RenderChanges(changes []tweak.Record, precision int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Song", "File", "Current", "Modification", "Final"})
	for _, r := range changes {
		tw.AppendRow(table.Row{
			r.File.Song,
			r.File.File,
			chart.FormatOffset(r.Current, precision),
			formatSigned(r.Modification, precision),
			chart.FormatOffset(r.Final, precision),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func formatSigned(value float64, precision int) string {
	s := chart.FormatOffset(value, precision)
	if value >= 0 {
		return "+" + s
	}
	return s
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Interactive reports whether r is a terminal, so callers can refuse to prompt
// when no operator can answer.
func Interactive(r io.Reader) bool {
	file, ok := r.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
