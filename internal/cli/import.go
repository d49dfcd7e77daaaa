package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/overlay-core/internal/app"
	"github.com/nerrad567/overlay-core/internal/schedule"
)

// NewImportCommand loads an event and its running order from YAML.
func NewImportCommand(opts *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <schedule.yaml>",
		Short: "Create an event from a schedule file",
		Long: `Create an event, its people and its runs from a YAML schedule, then plan
the running order. The import is all or nothing.

Example:
  runctl import schedules/marathon2024.yaml
  runctl import --dry-run schedules/marathon2024.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "opening schedule", err)
			}
			defer file.Close()

			sched, err := schedule.Read(file)
			if err != nil {
				return WrapExitError(ExitCommandError, "reading schedule", err)
			}

			p := opts.printer(cmd)
			if dryRun {
				fmt.Fprintf(p.w, "%s: %d runs, %d people listed, valid\n",
					sched.Event.Name, len(sched.Runs), len(sched.People))
				return nil
			}

			return opts.withStore(cmd, func(a *app.App) error {
				event, runs, err := sched.Import(cmd.Context(), a.Store)
				if err != nil {
					return timelineError(err)
				}
				a.Logger.Info("schedule imported", "event", event.Name, "runs", len(runs), "actor", opts.Actor)

				if p.format == "json" {
					return p.json(map[string]any{"event": event, "runs": runs})
				}
				last := runs[len(runs)-1]
				fmt.Fprintf(p.w, "imported %s: %d runs, planned to finish %s\n",
					event.Name, len(runs),
					last.PlanningEnd.In(siteLocation(a)).Format("2006-01-02 15:04"))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing anything")
	return cmd
}
