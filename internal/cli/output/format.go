package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// FormatHeader returns a markdown header.
func FormatHeader(level int, title string) string {
	if level < 1 {
		level = 1
	}
	return strings.Repeat("#", level) + " " + title
}

// FormatKeyValue returns a markdown list item with a bold key.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s**: %s", key, value)
}

// FormatCodeBlock returns a fenced markdown code block.
func FormatCodeBlock(lang, code string) string {
	return "```" + lang + "\n" + strings.TrimRight(code, "\n") + "\n```"
}

// Rows renders query results in the current mode.
func (r *Renderer) Rows(cols []string, rows []map[string]any) error {
	switch r.EffectiveMode() {
	case ModeJSON:
		return r.JSON(rows)
	case ModeMarkdown:
		writeMarkdownRows(r.out, cols, rows)
	default:
		writeTableRows(r.out, cols, rows)
	}
	return nil
}

// Code renders a code snippet in the current mode.
func (r *Renderer) Code(lang, code string) {
	switch r.EffectiveMode() {
	case ModeText:
		r.Println(r.styles.Code.Render(code))
	default:
		r.Println(FormatCodeBlock(lang, code))
	}
}

func writeTableRows(w io.Writer, cols []string, rows []map[string]any) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, row := range rows {
		tr := make(table.Row, len(cols))
		for i, col := range cols {
			tr[i] = FormatValue(row[col])
		}
		t.AppendRow(tr)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
}

func writeMarkdownRows(w io.Writer, cols []string, rows []map[string]any) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cols, " | "))
	seps := make([]string, len(cols))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, row := range rows {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = strings.ReplaceAll(FormatValue(row[col]), "|", `\|`)
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
}

// FormatValue renders a scanned value for display.
func FormatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
