package db

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"strconv"
)

// ErrUsage is returned by RunMigrateCommand when its arguments are wrong.
// Help has already been printed.
var ErrUsage = errors.New("invalid migrate usage")

// RunMigrateCommand handles the 'migrate' subcommand. Output for the
// operator goes to out.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return ErrUsage
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(out)
		return nil
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		return err
	}

	// The migrate command owns the schema, so open without migrating.
	database, err := OpenDB(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	switch action {
	case "up":
		return migrateUp(database, migrationsFS, out)
	case "down":
		return migrateDown(database, migrationsFS, out)
	case "status":
		return migrateStatus(database, migrationsFS, out)
	case "version":
		if len(args) < 2 {
			fmt.Fprintln(out, "Usage: barn migrate version <version_number>")
			return ErrUsage
		}
		return migrateToVersion(database, migrationsFS, args[1], out)
	case "force":
		if len(args) < 2 {
			fmt.Fprintln(out, "Usage: barn migrate force <version_number>")
			return ErrUsage
		}
		return migrateForce(database, migrationsFS, args[1], out)
	default:
		fmt.Fprintf(out, "Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp(out)
		return ErrUsage
	}
}

func migrateUp(database *DB, migrationsFS fs.FS, out io.Writer) error {
	log.Printf("Running migrations...")
	if err := database.MigrateUp(migrationsFS); err != nil {
		return err
	}
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ All migrations applied. Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func migrateDown(database *DB, migrationsFS fs.FS, out io.Writer) error {
	log.Printf("Rolling back one migration...")
	if err := database.MigrateDown(migrationsFS); err != nil {
		return err
	}
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Migration rolled back. Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func migrateStatus(database *DB, migrationsFS fs.FS, out io.Writer) error {
	status, err := database.GetMigrationStatus(migrationsFS)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== Migration Status ===")
	fmt.Fprintf(out, "Current version: %d\n", status.CurrentVersion)
	fmt.Fprintf(out, "Latest available: %d\n", status.LatestVersion)
	fmt.Fprintf(out, "Dirty: %v\n", status.Dirty)
	fmt.Fprintf(out, "Schema migrations table exists: %v\n", status.SchemaMigrationsExists)

	switch {
	case status.Dirty:
		fmt.Fprintln(out, "\n⚠️  WARNING: Database is in a dirty state!")
		fmt.Fprintln(out, "A migration failed mid-execution. Inspect the database, fix it, then run:")
		fmt.Fprintln(out, "  barn migrate force <version>")
	case status.Pending() > 0:
		fmt.Fprintf(out, "\n⚠️  %d migration(s) pending. Run 'barn migrate up'.\n", status.Pending())
	default:
		fmt.Fprintln(out, "\n✓ Database is up to date!")
	}
	return nil
}

func migrateToVersion(database *DB, migrationsFS fs.FS, versionStr string, out io.Writer) error {
	target, err := strconv.ParseUint(versionStr, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid version number %q: %w", versionStr, err)
	}
	log.Printf("Migrating to version %d...", target)
	if err := database.MigrateTo(migrationsFS, uint(target)); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Migrated to version %d\n", target)
	return nil
}

func migrateForce(database *DB, migrationsFS fs.FS, versionStr string, out io.Writer) error {
	version, err := strconv.Atoi(versionStr)
	if err != nil {
		return fmt.Errorf("invalid version number %q: %w", versionStr, err)
	}
	if err := database.MigrateForce(migrationsFS, version); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Migration version forced to %d\n", version)
	return nil
}

// PrintMigrateHelp writes the help text for the migrate command.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Database Migration Commands

Usage: barn migrate <command> [options]

Commands:
  up              Apply all pending migrations
  down            Rollback one migration
  status          Show current migration status and version
  version <N>     Migrate to specific version N
  force <N>       Force migration version to N (recovery only)
  help            Show this help message

Examples:
  barn migrate up
  barn migrate status
  barn migrate version 1

Options:
  -db <path>      Path to database file (default: barn.db)
`)
}
