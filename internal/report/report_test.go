package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/banshee-data/barn.report/internal/livestock"
)

func testSnapshot() livestock.Snapshot {
	return livestock.Snapshot{
		"10": {livestock.Moving: {LastTimestamp: 100, TotalSeconds: 59.994}},
		"2": {
			livestock.Feeding: {LastTimestamp: 50, TotalSeconds: 3725},
			livestock.Moving:  {LastTimestamp: 60, TotalSeconds: 12.5},
		},
	}
}

func TestHeaders(t *testing.T) {
	assert.Equal(t, []string{"Animal", "feeding (s)", "feeding", "moving (s)", "moving"}, Headers())
}

func TestRows(t *testing.T) {
	want := [][]interface{}{
		{"2", 3725.0, "1h 2m 5s", 12.5, "0h 0m 12s"},
		{"10", nil, nil, 59.99, "0h 0m 59s"},
	}
	if diff := cmp.Diff(want, Rows(testSnapshot())); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	generated := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, WriteXLSX(&buf, testSnapshot(), generated))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, Headers(), rows[0])
	assert.Equal(t, []string{"2", "3725", "1h 2m 5s", "12.5", "0h 0m 12s"}, rows[1])
	assert.Equal(t, "10", rows[2][0])
	assert.Equal(t, "0h 0m 59s", rows[2][4])
	assert.Equal(t, "Generated 2024-03-01T08:00:00Z", rows[4][0])
}

func TestWriteXLSX_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, livestock.Snapshot{}, time.Unix(0, 0)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Equal(t, Headers(), rows[0])
}

func TestRenderChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderChart(&buf, testSnapshot(), "as of now"))

	html := buf.String()
	assert.True(t, strings.Contains(html, "Accumulated time per animal"))
	assert.True(t, strings.Contains(html, "as of now"))
	assert.True(t, strings.Contains(html, `"feeding"`))
	assert.True(t, strings.Contains(html, `"moving"`))
}
