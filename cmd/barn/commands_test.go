package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/banshee-data/barn.report/internal/legacy"
	"github.com/banshee-data/barn.report/internal/livestock"
	"github.com/banshee-data/barn.report/internal/pipeline"
	"github.com/banshee-data/barn.report/internal/report"
	"github.com/banshee-data/barn.report/internal/testutil"
)

func testOptions(t *testing.T) options {
	t.Helper()
	testutil.CaptureLogs(t)
	return options{dbPath: testutil.TempDBPath(t), listen: ":0", units: "cm"}
}

func legacyDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "animal_7.csv", "timestamp,pos_x,pos_y,angle,state,camera_idx,displacement_px\n"+
		"2024-03-01 08:00:00,100,1150,10,comendo,0,0\n"+
		"2024-03-01 08:00:05,101,1151,12,comendo,0,1.41\n")
	testutil.WriteFile(t, dir, legacy.AccumulatorFile,
		`{"7": {"comendo": {"ultimo_timestamp": 1709280005, "tempo_total": 3725}}}`)
	return dir
}

func TestRunImportThenReport(t *testing.T) {
	opts := testOptions(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runImport(ctx, opts, []string{"-dir", legacyDir(t)}, &out))
	assert.Contains(t, out.String(), "Imported 1 animals (2 records, 0 rows skipped)")
	assert.Contains(t, out.String(), "1 entries imported")

	out.Reset()
	require.NoError(t, runReport(ctx, opts, &out))
	var rep map[string]map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &rep))
	assert.Equal(t, map[string]map[string]string{"7": {"feeding": "1h 2m 5s"}}, rep)
}

func TestLiveObservationAfterImportWithoutCamera(t *testing.T) {
	opts := testOptions(t)
	ctx := context.Background()

	// The first deployment wrote -1 for every camera index.
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "animal_7.csv", "timestamp,pos_x,pos_y,angle,state,camera_idx,displacement_px\n"+
		"2024-03-01 08:00:00,100,1150,10,comendo,-1,0\n"+
		"2024-03-01 08:00:05,300,900,45,andando,-1,320.16\n")
	testutil.WriteFile(t, dir, legacy.AccumulatorFile,
		`{"7": {"comendo": {"ultimo_timestamp": 1709280005, "tempo_total": 5}}}`)
	require.NoError(t, runImport(ctx, opts, []string{dir}, &bytes.Buffer{}))

	cfg, err := loadConfig(opts)
	require.NoError(t, err)
	st, err := openStores(ctx, cfg, opts.dbPath)
	require.NoError(t, err)
	defer st.Close()

	res, err := pipeline.New(cfg, st.history, st.accumulators).Submit(ctx, livestock.Observation{
		ID:        "7",
		Position:  livestock.Position{X: 100, Y: 1150},
		Angle:     10,
		Timestamp: 1709280010,
		CameraIdx: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, livestock.Feeding, res.State)
	assert.Zero(t, res.DisplacementPx)
	assert.Equal(t, 10.0, res.CumulativeStateSeconds)
}

func TestRunImport_PositionalDirAndErrors(t *testing.T) {
	opts := testOptions(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runImport(ctx, opts, []string{legacyDir(t)}, &out))

	assert.ErrorIs(t, runImport(ctx, opts, nil, &out), flag.ErrHelp)
	assert.Error(t, runImport(ctx, opts, []string{"-dir", filepath.Join(t.TempDir(), "missing")}, &out))

	bad := opts
	bad.units = "furlongs"
	assert.Error(t, runImport(ctx, bad, []string{legacyDir(t)}, &out))
}

func TestRunExport(t *testing.T) {
	opts := testOptions(t)
	ctx := context.Background()
	require.NoError(t, runImport(ctx, opts, []string{legacyDir(t)}, &bytes.Buffer{}))

	path := filepath.Join(t.TempDir(), "report.xlsx")
	var out bytes.Buffer
	require.NoError(t, runExport(ctx, opts, []string{"-out", path}, &out))
	assert.Contains(t, out.String(), "Wrote 1 animals")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(report.SheetName)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 2)
	assert.Equal(t, "7", rows[1][0])

	err = runExport(ctx, opts, []string{"-out", "/etc/barn_report.xlsx"}, &out)
	assert.Error(t, err)
}

func TestRedisBackend(t *testing.T) {
	opts := testOptions(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)

	opts.configPath = testutil.WriteFile(t, t.TempDir(), "barn.json", fmt.Sprintf(
		`{"accumulator_backend": "redis", "redis_addr": %q, "redis_key_prefix": "test:"}`, mr.Addr()))

	require.NoError(t, runImport(ctx, opts, []string{legacyDir(t)}, &bytes.Buffer{}))
	assert.True(t, mr.Exists("test:7"))

	var out bytes.Buffer
	require.NoError(t, runReport(ctx, opts, &out))
	assert.Contains(t, out.String(), `"feeding": "1h 2m 5s"`)

	mr.Close()
	assert.Error(t, runReport(ctx, opts, &out))
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(options{units: "cm"})
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.GetTimezone())

	_, err = loadConfig(options{units: "cm", configPath: "missing.json"})
	assert.Error(t, err)

	path := testutil.WriteFile(t, t.TempDir(), "bad.json", `{"accumulator_backend": "redis"}`)
	_, err = loadConfig(options{units: "cm", configPath: path})
	assert.Error(t, err)
}

func TestRunServe_RequiresListen(t *testing.T) {
	opts := testOptions(t)
	opts.listen = ""
	assert.Error(t, runServe(context.Background(), opts))
}

func TestRunServe_StopsOnCancel(t *testing.T) {
	opts := testOptions(t)
	opts.listen = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, runServe(ctx, opts))
}
