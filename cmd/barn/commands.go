package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/banshee-data/barn.report/internal/legacy"
	"github.com/banshee-data/barn.report/internal/livestock"
	"github.com/banshee-data/barn.report/internal/pipeline"
	"github.com/banshee-data/barn.report/internal/report"
	"github.com/banshee-data/barn.report/internal/security"
)

// runImport copies a legacy data folder into the configured stores.
func runImport(ctx context.Context, opts options, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(out)
	dir := fs.String("dir", "", "Folder holding animal_<id>.csv files and "+legacy.AccumulatorFile)
	tz := fs.String("timezone", "", "Zone the legacy timestamps were written in (defaults to the config timezone)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" && fs.NArg() > 0 {
		*dir = fs.Arg(0)
	}
	if *dir == "" {
		fs.Usage()
		return flag.ErrHelp
	}
	if err := security.ValidateImportDir(*dir); err != nil {
		return err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if *tz == "" {
		*tz = cfg.GetTimezone()
	}
	st, err := openStores(ctx, cfg, opts.dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	im := &legacy.Importer{History: st.history, Accumulators: st.accumulators, Timezone: *tz}
	sum, err := im.ImportDir(ctx, *dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Imported %d animals (%d records, %d rows skipped); %d animals already had history\n",
		sum.Animals, sum.Records, sum.SkippedRows, sum.SkippedAnimals)
	if sum.NoCameraRows > 0 {
		fmt.Fprintf(out, "%d imported rows have no camera index and will not seed displacement\n", sum.NoCameraRows)
	}
	fmt.Fprintf(out, "Accumulator: %d entries imported, %d kept from the store\n",
		sum.AccumulatorEntries, sum.KeptEntries)
	return nil
}

// runExport writes the report workbook.
func runExport(ctx context.Context, opts options, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(out)
	path := fs.String("out", fmt.Sprintf("barn_report_%s.xlsx", time.Now().Format("20060102_150405")), "Output .xlsx path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := security.ValidateExportPath(*path); err != nil {
		return err
	}

	snap, err := loadSnapshot(ctx, opts)
	if err != nil {
		return err
	}

	f, err := os.Create(*path)
	if err != nil {
		return fmt.Errorf("create %s: %w", *path, err)
	}
	if err := report.WriteXLSX(f, snap, time.Now().UTC()); err != nil {
		f.Close()
		os.Remove(*path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", *path, err)
	}
	fmt.Fprintf(out, "Wrote %d animals to %s\n", len(snap), *path)
	return nil
}

// runReport prints the formatted report.
func runReport(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	st, err := openStores(ctx, cfg, opts.dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	rep, err := pipeline.New(cfg, st.history, st.accumulators).Report(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func loadSnapshot(ctx context.Context, opts options) (livestock.Snapshot, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	st, err := openStores(ctx, cfg, opts.dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	snap, err := st.accumulators.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load accumulators: %w", err)
	}
	return snap, nil
}
