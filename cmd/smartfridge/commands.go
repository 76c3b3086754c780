package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/smart-fridge/internal/history"
	"github.com/nerrad567/smart-fridge/internal/infrastructure/config"
	"github.com/nerrad567/smart-fridge/internal/infrastructure/database"
)

// newMigrateCmd applies the embedded event log migrations and exits.
func newMigrateCmd(configPath *string) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the event log schema migrations.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase(cmd.Context(), resolveConfigPath(*configPath))
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // Process exits right after

			return migrate(cmd.Context(), db, down, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration instead")

	return cmd
}

// newHistoryCmd prints the most recent controller events.
func newHistoryCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent controller events from the local event log.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase(cmd.Context(), resolveConfigPath(*configPath))
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // Process exits right after

			if _, err := db.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}

			entries, err := history.NewStore(db.DB).List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to print (max 200)")

	return cmd
}

// openDatabase loads the configuration and opens the event log it names.
func openDatabase(ctx context.Context, configPath string) (*database.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func migrate(ctx context.Context, db *database.DB, down bool, out io.Writer) error {
	if down {
		if err := db.MigrateDown(ctx); err != nil {
			return fmt.Errorf("rolling back migration: %w", err)
		}
		fmt.Fprintln(out, "rolled back the most recent migration")
		return nil
	}

	applied, err := db.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	records, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	fmt.Fprintf(out, "applied %d migration(s); %d recorded, %d pending\n", applied, len(records), len(pending))
	return nil
}

func printHistory(out io.Writer, entries []history.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "no events recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tLOCK\tALARM\tTEMP\tHUMIDITY\tDETAIL")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.At.Local().Format(time.DateTime),
			e.Kind, e.Lock, e.Alarm,
			formatValue(e.TemperatureC, "°C"),
			formatValue(e.HumidityPct, "%"),
			e.Detail,
		)
	}
	return tw.Flush()
}

func formatValue(v *float64, unit string) string {
	if v == nil {
		return "--"
	}
	return fmt.Sprintf("%.1f%s", *v, unit)
}
