package jobs

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

const (
	// DefaultWidth is the width of the boxed listing, borders included.
	DefaultWidth = 60

	labelWidth = 18
	minWidth   = labelWidth + 4
)

// Field is an extra label/value row in a listing.
type Field struct {
	Label string
	Value string
}

// Annotator supplies extra rows for a record in verbose listings.
type Annotator func(p *Process) []Field

// RenderOptions controls how a registry listing looks.
type RenderOptions struct {
	// Width of each box; DefaultWidth if zero.
	Width int
	// Color highlights the Active/Inactive status.
	Color bool
	// Verbose adds descriptor rows and any Annotator rows.
	Verbose bool
	// Annotate is consulted for Running records in verbose listings.
	Annotate Annotator
}

// Render writes a boxed listing of every record to w.
func (r *Registry) Render(w io.Writer, opts RenderOptions) error {
	if opts.Width == 0 {
		opts.Width = DefaultWidth
	}
	if opts.Width < minWidth {
		opts.Width = minWidth
	}

	active := color.New(color.FgGreen, color.Bold)
	inactive := color.New(color.FgRed)
	if opts.Color {
		active.EnableColor()
		inactive.EnableColor()
	} else {
		active.DisableColor()
		inactive.DisableColor()
	}

	bw := &boxWriter{w: w, width: opts.Width}
	for i, p := range r.Processes() {
		// One load per record so the rows agree with each other.
		st := p.State()

		status, painter := "Active", active
		if st != Running {
			status, painter = "Inactive", inactive
		}

		bw.border()
		bw.styledLine(fmt.Sprintf("|Process number %2d (", i), status, ")", painter)
		bw.divider()
		bw.row("PID:", fmt.Sprint(p.PID))
		if opts.Verbose {
			bw.row("Stdin:", fmt.Sprint(p.Stdin))
			bw.row("Stdout:", fmt.Sprint(p.Stdout))
			bw.row("Stderr:", fmt.Sprint(p.Stderr))
		}
		bw.row("Completed:", yesNo(st == Completed))
		bw.row("Stopped:", yesNo(st == Stopped))
		bw.row("Background:", yesNo(p.Background))
		bw.row("Arguments:", fmt.Sprint(p.Argc()))
		for k, arg := range p.Argv {
			bw.row(fmt.Sprintf("Arg number [%d]:", k), arg)
		}
		if opts.Verbose && opts.Annotate != nil && st == Running {
			for _, f := range opts.Annotate(p) {
				bw.row(f.Label+":", f.Value)
			}
		}
		bw.divider()
		bw.blank()
	}

	return bw.err
}

func yesNo(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

// boxWriter draws fixed-width table lines, remembering the first write error.
type boxWriter struct {
	w     io.Writer
	width int
	err   error
}

func (b *boxWriter) printf(format string, a ...interface{}) {
	if b.err != nil {
		return
	}
	_, b.err = fmt.Fprintf(b.w, format, a...)
}

func (b *boxWriter) border() {
	b.printf("|%s|\n", strings.Repeat("-", b.width-2))
}

func (b *boxWriter) divider() {
	b.printf("|%s+%s|\n", strings.Repeat("-", labelWidth), strings.Repeat("-", b.width-labelWidth-3))
}

func (b *boxWriter) blank() {
	b.printf("\n")
}

func (b *boxWriter) row(label, value string) {
	b.styledLine(fmt.Sprintf("|%-*s| %s", labelWidth, label, value), "", "", nil)
}

// styledLine writes prefix+styled+suffix, padded so the closing border lands
// on the last column. Padding is computed on the unstyled text.
func (b *boxWriter) styledLine(prefix, styled, suffix string, painter *color.Color) {
	printed := utf8.RuneCountInString(prefix + styled + suffix)
	fill := b.width - printed - 1
	if fill < 0 {
		fill = 0
	}

	if painter != nil {
		styled = painter.Sprint(styled)
	}
	b.printf("%s%s%s%s|\n", prefix, styled, suffix, strings.Repeat(" ", fill))
}
