package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/barn.report/internal/db"
	"github.com/banshee-data/barn.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "Barn config JSON file (built-in defaults when empty)")
	dbPath      = flag.String("db", "barn.db", "SQLite database path")
	listen      = flag.String("listen", ":8080", "Listen address")
	unitsFlag   = flag.String("units", "cm", "Default displacement units for record listings (cm, m, in)")
	devMode     = flag.Bool("dev", false, "Run in dev mode (read migrations from internal/db/migrations)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// options carries the global flags into the subcommands.
type options struct {
	configPath string
	dbPath     string
	listen     string
	units      string
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: barn [flags] <command> [args]\n\n")
	fmt.Fprintf(out, "Commands:\n")
	fmt.Fprintf(out, "  serve     Run the HTTP API and optional MQTT ingest (default)\n")
	fmt.Fprintf(out, "  migrate   Manage database schema migrations\n")
	fmt.Fprintf(out, "  import    Import a legacy CSV/JSON data folder\n")
	fmt.Fprintf(out, "  export    Write the accumulated-time report to an XLSX file\n")
	fmt.Fprintf(out, "  report    Print the accumulated-time report as JSON\n\n")
	fmt.Fprintf(out, "Flags:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Current())
		return
	}
	db.DevMode = *devMode

	opts := options{
		configPath: *configPath,
		dbPath:     *dbPath,
		listen:     *listen,
		units:      *unitsFlag,
	}

	cmd, args := "serve", flag.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx, opts)
	case "migrate":
		err = db.RunMigrateCommand(args, opts.dbPath, os.Stdout)
	case "import":
		err = runImport(ctx, opts, args, os.Stdout)
	case "export":
		err = runExport(ctx, opts, args, os.Stdout)
	case "report":
		err = runReport(ctx, opts, os.Stdout)
	case "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}

	if errors.Is(err, db.ErrUsage) || errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}
