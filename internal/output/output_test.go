package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theOGognf/finagg/internal/ratelimit"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("yml")
	require.NoError(t, err)
	require.Equal(t, FormatYAML, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func testSnapshots() Snapshots {
	return Snapshots{
		{
			Name: "bea",
			Limiters: []ratelimit.LimiterSnapshot{
				{Kind: ratelimit.KindRequests, Ceiling: 90, Window: time.Minute, Total: 90, Entries: 90, PendingWait: 1500 * time.Millisecond, Saturated: true},
				{Kind: ratelimit.KindBytes, Ceiling: 9e7, Window: time.Minute, Total: 1234.5, Entries: 90},
			},
		},
	}
}

func TestRenderSnapshots(t *testing.T) {
	snapshots := testSnapshots()

	rendered, err := Render(FormatTable, snapshots, snapshots)
	require.NoError(t, err)
	assert.Contains(t, rendered, "bea")
	assert.Contains(t, rendered, "90000000")
	assert.Contains(t, rendered, "1234.5")
	assert.Contains(t, rendered, "1.5s")
	assert.Contains(t, rendered, "saturated")

	rendered, err = Render(FormatJSON, snapshots, snapshots)
	require.NoError(t, err)
	assert.Contains(t, rendered, `"name": "bea"`)
	assert.Contains(t, rendered, `"saturated": true`)

	rendered, err = Render(FormatYAML, snapshots, snapshots)
	require.NoError(t, err)
	assert.Contains(t, rendered, "name: bea")
	assert.Contains(t, rendered, "window: 1m0s")

	rendered, err = Render(FormatMarkdown, snapshots, snapshots)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rendered, "| Guard"))
}

func TestRenderLimits(t *testing.T) {
	limits := Limits{
		"sec": {ratelimit.Requests(9, time.Second)},
		"bea": {ratelimit.Requests(100, time.Minute).WithBuffer(0.1)},
	}

	rendered, err := Render(FormatTable, limits, limits)
	require.NoError(t, err)
	assert.Less(t, strings.Index(rendered, "bea"), strings.Index(rendered, "sec"))
	assert.Contains(t, rendered, "10%")
	assert.Contains(t, rendered, "90")
}

func TestRecords(t *testing.T) {
	type row struct {
		Ticker string  `json:"ticker"`
		Close  float64 `json:"close"`
		Note   string  `json:"note,omitempty"`
	}

	records, err := ToRecords([]row{{Ticker: "AAPL", Close: 190.5}, {Ticker: "MSFT", Close: 410, Note: strings.Repeat("x", 100)}})
	require.NoError(t, err)
	assert.Equal(t, []string{"close", "note", "ticker"}, records.Header())

	rows := records.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"190.5", "", "AAPL"}, rows[0])
	assert.Len(t, []rune(rows[1][1].(string)), 60)

	records.Columns = []string{"ticker"}
	assert.Equal(t, [][]any{{"AAPL"}, {"MSFT"}}, records.Rows())
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	stats := CacheStats{Entries: 3, Expired: 1, Bytes: 7, Hits: 1}
	require.NoError(t, Write(&buf, FormatJSON, stats, stats))
	assert.Contains(t, buf.String(), `"entries": 3`)

	buf.Reset()
	require.NoError(t, Write(&buf, FormatTable, map[string]int{"a": 1}, nil))
	assert.Contains(t, buf.String(), `"a": 1`)
}
