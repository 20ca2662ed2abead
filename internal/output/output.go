// Package output renders CLI results. Styling switches off
// automatically when stdout is not a terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette, lime accent.
const (
	colorLime   = "154"
	colorGray   = "245"
	colorDim    = "238"
	colorRed    = "196"
	colorYellow = "220"
)

// Writer provides formatted output for the CLI.
type Writer struct {
	out      io.Writer
	useColor bool

	header   lipgloss.Style
	success  lipgloss.Style
	warning  lipgloss.Style
	errStyle lipgloss.Style
	dim      lipgloss.Style
	score    lipgloss.Style
}

// New creates a Writer. Color is enabled only when out is a terminal.
func New(out io.Writer) *Writer {
	useColor := false
	if f, ok := out.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return newWriter(out, useColor)
}

// NewPlain creates a Writer with styling disabled, for tests and
// piped output.
func NewPlain(out io.Writer) *Writer {
	return newWriter(out, false)
}

func newWriter(out io.Writer, useColor bool) *Writer {
	w := &Writer{out: out, useColor: useColor}
	if useColor {
		w.header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorLime))
		w.success = lipgloss.NewStyle().Foreground(lipgloss.Color(colorLime))
		w.warning = lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow))
		w.errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed))
		w.dim = lipgloss.NewStyle().Foreground(lipgloss.Color(colorDim))
		w.score = lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray))
	} else {
		plain := lipgloss.NewStyle()
		w.header, w.success, w.warning = plain, plain, plain
		w.errStyle, w.dim, w.score = plain, plain, plain
	}
	return w
}

// Println writes a plain line.
func (w *Writer) Println(msg string) {
	_, _ = fmt.Fprintln(w.out, msg)
}

// Printf writes formatted text.
func (w *Writer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format, args...)
}

// Header writes an emphasized line.
func (w *Writer) Header(msg string) {
	_, _ = fmt.Fprintln(w.out, w.header.Render(msg))
}

// Success writes a success line.
func (w *Writer) Success(msg string) {
	_, _ = fmt.Fprintln(w.out, w.success.Render("✓ "+msg))
}

// Successf writes a formatted success line.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning writes a warning line.
func (w *Writer) Warning(msg string) {
	_, _ = fmt.Fprintln(w.out, w.warning.Render("! "+msg))
}

// Warningf writes a formatted warning line.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error writes an error line.
func (w *Writer) Error(msg string) {
	_, _ = fmt.Fprintln(w.out, w.errStyle.Render("✗ "+msg))
}

// Errorf writes a formatted error line.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Dim writes a secondary line.
func (w *Writer) Dim(msg string) {
	_, _ = fmt.Fprintln(w.out, w.dim.Render(msg))
}

// Newline writes an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// SearchHit renders one ranked result: path, score, optional heading,
// and a content snippet.
func (w *Writer) SearchHit(rank int, path string, score float64, heading, content string) {
	title := fmt.Sprintf("%d. %s", rank, path)
	_, _ = fmt.Fprintf(w.out, "%s %s\n",
		w.header.Render(title),
		w.score.Render(fmt.Sprintf("(%.3f)", score)))
	if heading != "" {
		_, _ = fmt.Fprintf(w.out, "   %s\n", w.dim.Render(heading))
	}
	_, _ = fmt.Fprintf(w.out, "   %s\n\n", Snippet(content, 200))
}

// Snippet collapses whitespace and truncates content to at most max runes.
func Snippet(content string, max int) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "…"
}
