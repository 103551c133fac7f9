package output

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/theOGognf/finagg/internal/ratelimit"
	"github.com/theOGognf/finagg/internal/store"
)

func renderTable(format Format, tab Tabular) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)

	header := make(table.Row, 0, len(tab.Header()))
	for _, h := range tab.Header() {
		header = append(header, h)
	}
	t.AppendHeader(header)
	for _, row := range tab.Rows() {
		t.AppendRow(table.Row(row))
	}

	if format == FormatMarkdown {
		return t.RenderMarkdown()
	}
	return t.Render()
}

// Snapshots lays out guard snapshots one limiter per row.
type Snapshots []ratelimit.GuardSnapshot

func (s Snapshots) Header() []string {
	return []string{"Guard", "Kind", "Total", "Ceiling", "Window", "Entries", "Pending wait", "State"}
}

func (s Snapshots) Rows() [][]any {
	var rows [][]any
	for _, guard := range s {
		for _, l := range guard.Limiters {
			state := text.FgGreen.Sprint("ok")
			if l.Saturated {
				state = text.FgYellow.Sprint("saturated")
			}
			rows = append(rows, []any{
				guard.Name,
				string(l.Kind),
				formatNumber(l.Total),
				formatNumber(l.Ceiling),
				l.Window.String(),
				l.Entries,
				l.PendingWait.Round(time.Millisecond).String(),
				state,
			})
		}
	}
	return rows
}

// Limits lays out the configured specs of every family.
type Limits map[string][]ratelimit.Spec

func (l Limits) Header() []string {
	return []string{"Guard", "Kind", "Ceiling", "Window", "Buffer", "Effective"}
}

func (l Limits) Rows() [][]any {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)

	var rows [][]any
	for _, name := range names {
		for _, spec := range l[name] {
			rows = append(rows, []any{
				name,
				string(spec.Kind),
				formatNumber(spec.Ceiling),
				spec.Window.String(),
				fmt.Sprintf("%.0f%%", spec.Buffer*100),
				formatNumber(spec.EffectiveCeiling()),
			})
		}
	}
	return rows
}

// CacheStats lays out HTTP cache statistics.
type CacheStats store.CacheStats

func (c CacheStats) Header() []string {
	return []string{"Entries", "Expired", "Bytes", "Hits"}
}

func (c CacheStats) Rows() [][]any {
	return [][]any{{c.Entries, c.Expired, c.Bytes, c.Hits}}
}

// Records lays out rows of named columns. Columns not listed are dropped;
// an empty list uses the sorted union of every record's keys.
type Records struct {
	Columns []string
	Items   []map[string]any
}

func (r Records) Header() []string {
	if len(r.Columns) > 0 {
		return r.Columns
	}
	seen := map[string]bool{}
	var columns []string
	for _, item := range r.Items {
		for key := range item {
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
		}
	}
	sort.Strings(columns)
	return columns
}

func (r Records) Rows() [][]any {
	columns := r.Header()
	rows := make([][]any, 0, len(r.Items))
	for _, item := range r.Items {
		row := make([]any, len(columns))
		for i, column := range columns {
			if value, ok := item[column]; ok && value != nil {
				row[i] = truncate(fmt.Sprint(value), 60)
			} else {
				row[i] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func formatNumber(value float64) string {
	if value == float64(int64(value)) {
		return fmt.Sprintf("%d", int64(value))
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", value), "0"), ".")
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-1]) + "…"
}
