package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/overlay-core/internal/infrastructure/database"
	"github.com/nerrad567/overlay-core/migrations"
)

// NewMigrateCommand manages the database schema.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withDatabase(cmd, func(db *database.DB) error {
				_, pending, err := db.MigrationStatus(cmd.Context(), migrations.FS)
				if err != nil {
					return WrapExitError(ExitCommandError, "reading migrations", err)
				}
				if err := db.Migrate(cmd.Context(), migrations.FS); err != nil {
					return WrapExitError(ExitCommandError, "migrating", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations\n", len(pending))
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withDatabase(cmd, func(db *database.DB) error {
				applied, pending, err := db.MigrationStatus(cmd.Context(), migrations.FS)
				if err != nil {
					return WrapExitError(ExitCommandError, "reading migrations", err)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tSTATE")
				for _, r := range applied {
					fmt.Fprintf(tw, "%s\tapplied %s\n", r.Version, r.AppliedAt.Format("2006-01-02 15:04"))
				}
				for _, m := range pending {
					fmt.Fprintf(tw, "%s\tpending (%s)\n", m.Version, m.Name)
				}
				return tw.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withDatabase(cmd, func(db *database.DB) error {
				if err := db.MigrateDown(cmd.Context(), migrations.FS); err != nil {
					return WrapExitError(ExitCommandError, "rolling back", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "rolled back one migration")
				return nil
			})
		},
	})

	return cmd
}

// withDatabase opens the configured database without migrating it.
func (o *RootOptions) withDatabase(cmd *cobra.Command, fn func(db *database.DB) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	db, err := database.Open(cmd.Context(), database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "opening database", err)
	}
	defer db.Close()
	return fn(db)
}
