package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = map[statusKind]struct {
	tag   string
	color text.Colors
}{
	statusInfo:  {"INFO", text.Colors{text.FgBlue}},
	statusOK:    {"OK", text.Colors{text.FgGreen}},
	statusWarn:  {"WARN", text.Colors{text.FgYellow}},
	statusError: {"ERROR", text.Colors{text.FgRed, text.Bold}},
}

const statusLabelWidth = 22

// printer writes human-oriented command output, coloring it only when the
// destination is a terminal.
type printer struct {
	out   io.Writer
	color bool
}

func newPrinter(cmd *cobra.Command) *printer {
	out := cmd.OutOrStdout()
	return &printer{out: out, color: isTerminal(out)}
}

func (p *printer) paint(colors text.Colors, s string) string {
	if !p.color || len(colors) == 0 {
		return s
	}
	return colors.Sprint(s)
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) blank() {
	fmt.Fprintln(p.out)
}

// section prints a title underlined to its width.
func (p *printer) section(title string) {
	title = "== " + strings.TrimSpace(title) + " =="
	p.line("%s", p.paint(text.Colors{text.FgCyan, text.Bold}, title))
	p.line("%s", p.paint(text.Colors{text.FgCyan}, strings.Repeat("-", len(title))))
}

// status prints "  Label:  [TAG] detail" with the label padded to a fixed width.
func (p *printer) status(label string, kind statusKind, detail string) {
	p.line("%s", p.paint(statusStyles[kind].color, statusText(label, kind, detail)))
}

func statusText(label string, kind statusKind, detail string) string {
	tag := "[" + statusStyles[kind].tag + "]"
	if detail != "" {
		tag += " " + detail
	}
	return fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", tag)
}

// table renders rows under headers. Columns listed in numeric are
// right-aligned.
func (p *printer) table(headers []string, rows [][]string, numeric ...int) {
	if len(headers) == 0 {
		return
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if p.color {
		tw.Style().Color.Header = text.Colors{text.Bold}
	}

	tw.AppendHeader(toRow(headers, len(headers)))
	for _, r := range rows {
		tw.AppendRow(toRow(r, len(headers)))
	}
	configs := make([]table.ColumnConfig, 0, len(numeric))
	for _, col := range numeric {
		configs = append(configs, table.ColumnConfig{Number: col + 1, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	p.line("%s", tw.Render())
}

func toRow(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		row[i] = ""
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	return row
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// isInteractive reports whether r is a terminal a prompt can be answered on.
func isInteractive(r io.Reader) bool {
	return isTerminal(r)
}

// formatElapsed renders a duration as H:MM:SS.
func formatElapsed(d time.Duration) string {
	d = max(d, 0).Round(time.Second)
	return fmt.Sprintf("%d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// formatTimestamp shows local wall time plus a relative hint for recent times.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	stamp := t.Local().Format("2006-01-02 15:04:05")
	if since := time.Since(t); since >= 0 && since < 24*time.Hour {
		stamp += " (" + humanize.Time(t) + ")"
	}
	return stamp
}

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
