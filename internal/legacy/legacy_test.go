package legacy

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/barn.report/internal/db"
	"github.com/banshee-data/barn.report/internal/livestock"
	"github.com/banshee-data/barn.report/internal/testutil"
)

const historyCSV = `timestamp,pos_x,pos_y,angle,state,camera_idx,displacement_px,displacement_cm,tempo_total_estado_segundos
2024-03-01 08:00:00,100.0,1150.0,10.0,comendo,-1,0,0.0,0
2024-03-01 08:00:05,101.0,1151.0,12.5,comendo,-1,1.41,0.44,5.0
garbage,row
2024-03-01 08:00:10,300.0,900.0,45.0,andando,-1,320.16,100.05,0
`

func TestReadHistory(t *testing.T) {
	logs := testutil.CaptureLogs(t)

	records, skipped, err := ReadHistory(strings.NewReader(historyCSV), "7", "UTC")
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 1, logs.Count("line 4"))
	require.Len(t, records, 3)

	second := records[1]
	assert.Equal(t, livestock.AnimalID("7"), second.AnimalID)
	assert.Equal(t, float64(1709280005), second.Timestamp)
	assert.Equal(t, "2024-03-01 08:00:05", second.TimestampFormatted)
	assert.Equal(t, livestock.Position{X: 101, Y: 1151}, second.Position)
	assert.Equal(t, 12.5, second.Angle)
	assert.Equal(t, livestock.Feeding, second.State)
	assert.Equal(t, -1, second.CameraIdx)
	assert.Equal(t, 1.41, second.DisplacementPx)
	assert.Equal(t, 0.44, second.DisplacementCm)
	assert.Equal(t, 5.0, second.CumulativeStateSeconds)

	assert.Equal(t, livestock.Moving, records[2].State)
	assert.NotEqual(t, records[0].RecordID, records[1].RecordID)

	// Record IDs are stable across reads of the same file.
	again, _, err := ReadHistory(strings.NewReader(historyCSV), "7", "UTC")
	require.NoError(t, err)
	assert.Equal(t, records[2].RecordID, again[2].RecordID)
}

func TestReadHistory_ShortRowsWithoutOptionalColumns(t *testing.T) {
	in := "timestamp,pos_x,pos_y,angle,state,camera_idx,displacement_px\n" +
		"2024-03-01 08:00:00,1,2,3,andando,0,4\n"
	records, skipped, err := ReadHistory(strings.NewReader(in), "1", "UTC")
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, records, 1)
	assert.Zero(t, records[0].DisplacementCm)
	assert.Zero(t, records[0].CumulativeStateSeconds)
}

func TestReadHistory_Timezone(t *testing.T) {
	in := "timestamp,pos_x,pos_y,angle,state,camera_idx,displacement_px\n" +
		"2024-03-01 05:00:00,1,2,3,andando,0,4\n"
	records, _, err := ReadHistory(strings.NewReader(in), "1", "America/Sao_Paulo")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, float64(1709280000), records[0].Timestamp)
}

func TestReadHistory_EmptyAndBadHeader(t *testing.T) {
	records, skipped, err := ReadHistory(strings.NewReader(""), "1", "UTC")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, skipped)

	_, _, err = ReadHistory(strings.NewReader("a,b,c\n1,2,3\n"), "1", "UTC")
	assert.Error(t, err)
}

func TestReadAccumulators(t *testing.T) {
	logs := testutil.CaptureLogs(t)

	in := `{
		"7": {
			"comendo": {"ultimo_timestamp": 1709280005.0, "tempo_total": 3725.5},
			"andando": {"ultimo_timestamp": 1709280010.0, "tempo_total": 0}
		},
		"8": {
			"dormindo": {"ultimo_timestamp": 1, "tempo_total": 1},
			"andando": {"ultimo_timestamp": 1}
		}
	}`
	snap, err := ReadAccumulators(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, livestock.Snapshot{
		"7": {
			livestock.Feeding: {LastTimestamp: 1709280005, TotalSeconds: 3725.5},
			livestock.Moving:  {LastTimestamp: 1709280010, TotalSeconds: 0},
		},
	}, snap)
	assert.Equal(t, 2, logs.Count("[data-quality]"))

	_, err = ReadAccumulators(strings.NewReader("not json"))
	assert.Error(t, err)
}

func TestImportDir(t *testing.T) {
	logs := testutil.CaptureLogs(t)
	store, err := db.NewDB(testutil.TempDBPath(t))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	dir := t.TempDir()
	testutil.WriteFile(t, dir, "animal_7.csv", historyCSV)
	testutil.WriteFile(t, dir, "animal_8.csv", "timestamp,pos_x,pos_y,angle,state,camera_idx,displacement_px\n"+
		"2024-03-01 08:00:00,1,2,3,andando,0,4\n")
	testutil.WriteFile(t, dir, "notes.txt", "ignored")
	testutil.WriteFile(t, dir, AccumulatorFile, `{
		"7": {"comendo": {"ultimo_timestamp": 1709280005.0, "tempo_total": 5.0}},
		"8": {"andando": {"ultimo_timestamp": 1709280000.0, "tempo_total": 0}}
	}`)

	// Animal 8 already has a live moving accumulator; it must not be overwritten.
	_, _, err = store.UpdateAccumulator(ctx, "8", livestock.Moving, 1709290000)
	require.NoError(t, err)

	im := &Importer{History: store, Accumulators: store, Timezone: "UTC"}
	sum, err := im.ImportDir(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, Summary{
		Animals:            2,
		Records:            4,
		SkippedRows:        1,
		AccumulatorEntries: 1,
		KeptEntries:        1,
		NoCameraRows:       3,
	}, sum)
	assert.Equal(t, 1, logs.Count("3 of 3 rows have no camera index"))

	// Rows without a camera index are history, not a previous position.
	last, err := store.LastRecord(ctx, "7")
	require.NoError(t, err)
	assert.Nil(t, last)
	last, err = store.LastRecord(ctx, "8")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, livestock.Position{X: 1, Y: 2}, last.Position)

	snap, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	acc, ok := snap.Get("7", livestock.Feeding)
	require.True(t, ok)
	assert.Equal(t, 5.0, acc.TotalSeconds)
	acc, _ = snap.Get("8", livestock.Moving)
	assert.Equal(t, float64(1709290000), acc.LastTimestamp)

	// A second import is a no-op for histories.
	sum, err = im.ImportDir(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.SkippedAnimals)
	assert.Zero(t, sum.Records)
	assert.Zero(t, sum.AccumulatorEntries)

	records, err := store.Records(ctx, "7", 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, livestock.Moving, records[2].State)
	assert.Equal(t, -1, records[2].CameraIdx)
}

func TestImportDir_NoAccumulatorFile(t *testing.T) {
	store, err := db.NewDB(testutil.TempDBPath(t))
	require.NoError(t, err)
	defer store.Close()

	dir := t.TempDir()
	im := &Importer{History: store, Accumulators: store, Timezone: "UTC"}
	sum, err := im.ImportDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
}
