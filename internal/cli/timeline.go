package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/overlay-core/internal/app"
	"github.com/nerrad567/overlay-core/internal/director"
	"github.com/nerrad567/overlay-core/internal/progression"
	"github.com/nerrad567/overlay-core/internal/schedule"
	"github.com/nerrad567/overlay-core/internal/timeline"
)

// resolveEvent returns the named event, or the default one when no name
// was given.
func resolveEvent(ctx context.Context, a *app.App, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	e, err := a.Director.DefaultEvent(ctx)
	if err != nil {
		return "", WrapExitError(ExitFailure, "no event given and none scheduled", err)
	}
	return e.Name, nil
}

// siteLocation is the zone times are shown in.
func siteLocation(a *app.App) *time.Location {
	loc, err := time.LoadLocation(a.Config.Site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NewEventsCommand lists every event.
func NewEventsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStore(cmd, func(a *app.App) error {
				events, err := a.Store.Repository().ListEvents(cmd.Context())
				if err != nil {
					return WrapExitError(ExitFailure, "listing events", err)
				}

				p := opts.printer(cmd)
				if p.format == "json" {
					return p.json(events)
				}

				loc := siteLocation(a)
				tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tSTART\tEND\tLATENESS")
				for _, e := range events {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name,
						e.StartAt.In(loc).Format("2006-01-02 15:04"),
						e.EndAt.In(loc).Format("2006-01-02 15:04"),
						orDash(timeline.FormatLateness(e.Shift)))
				}
				return tw.Flush()
			})
		},
	}
}

// NewStatusCommand prints the running order of an event.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status [event]",
		Short: "Show the running order and what is live",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(a *app.App) error {
				name, err := resolveEvent(cmd.Context(), a, args)
				if err != nil {
					return err
				}
				t, err := a.Director.State(cmd.Context(), name)
				if err != nil {
					return timelineError(err)
				}

				p := opts.printer(cmd)
				if p.format == "json" {
					return p.json(director.NewStatePayload(&director.Outcome{Transition: t}))
				}
				return writeStatus(p, t, siteLocation(a))
			})
		},
	}
}

func writeStatus(p printer, t *progression.Transition, loc *time.Location) error {
	fmt.Fprintf(p.w, "%s: %s, %s\n\n", t.Event.Name, describeCurrent(t), behind(t.Event.Shift))

	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\t#\tSTART\tRUN\tESTIMATE\tRUNNERS\t")
	for _, run := range t.Runs {
		mark := ""
		switch {
		case t.Event.IsCurrent(run):
			mark = ">"
		case run.IsFinished:
			mark = "x"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t\n",
			mark,
			run.Index,
			run.EffectiveStart(t.Event.Shift).In(loc).Format("15:04"),
			displayName(run),
			timeline.FormatEstimate(run.Estimated),
			personNames(run.Runners),
		)
	}
	return tw.Flush()
}

type outcomeFunc func(ctx context.Context, a *app.App, event string, actor director.Actor) (*director.Outcome, error)

// transitionCommand builds a command that applies one transition to an
// optional event argument.
func transitionCommand(opts *RootOptions, use, short string, fn outcomeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [event]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				name, err := resolveEvent(cmd.Context(), a, args)
				if err != nil {
					return err
				}
				o, err := fn(cmd.Context(), a, name, opts.actor())
				if err != nil {
					return timelineError(err)
				}
				return opts.printer(cmd).outcome(o)
			})
		},
	}
}

// NewAdvanceCommand finishes the live run and starts the next one.
func NewAdvanceCommand(opts *RootOptions) *cobra.Command {
	return transitionCommand(opts, "advance", "Finish the live run and start the next",
		func(ctx context.Context, a *app.App, event string, actor director.Actor) (*director.Outcome, error) {
			return a.Director.Advance(ctx, event, actor)
		})
}

// NewRevertCommand reopens the previous run.
func NewRevertCommand(opts *RootOptions) *cobra.Command {
	return transitionCommand(opts, "revert", "Reopen the previous run",
		func(ctx context.Context, a *app.App, event string, actor director.Actor) (*director.Outcome, error) {
			return a.Director.Revert(ctx, event, actor)
		})
}

// NewSyncCommand pushes the current state to OBS again.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return transitionCommand(opts, "sync", "Push the current state to the overlay again",
		func(ctx context.Context, a *app.App, event string, actor director.Actor) (*director.Outcome, error) {
			return a.Director.Refresh(ctx, event, actor)
		})
}

// NewMoveCommand swaps a run with its neighbour. use is move-up or
// move-down.
func NewMoveCommand(opts *RootOptions, use string) *cobra.Command {
	dir, short := progression.Up, "Swap a run with the one before it"
	if use == "move-down" {
		dir, short = progression.Down, "Swap a run with the one after it"
	}

	return &cobra.Command{
		Use:   use + " <event> <run-index>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "run index must be an integer", err)
			}
			return opts.withApp(cmd, func(a *app.App) error {
				o, err := a.Director.MoveIndex(cmd.Context(), args[0], index, dir, opts.actor())
				if err != nil {
					return timelineError(err)
				}
				return opts.printer(cmd).outcome(o)
			})
		},
	}
}

// editFlags are the event fields runctl edit can change.
type editFlags struct {
	name         string
	start        string
	end          string
	shift        string
	current      int
	clearCurrent bool
}

// NewEditCommand changes event metadata and replans the running order.
func NewEditCommand(opts *RootOptions) *cobra.Command {
	f := &editFlags{}

	cmd := &cobra.Command{
		Use:   "edit <event>",
		Short: "Change event name, times, shift or live run",
		Long: `Change event metadata. Only the flags given are applied.

Example:
  runctl edit Marathon2024 --shift 0:12:00
  runctl edit Marathon2024 --current 4
  runctl edit Marathon2024 --start 2024-06-01T13:00:00Z`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			edit, err := f.edit(cmd)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid flags", err)
			}

			return opts.withApp(cmd, func(a *app.App) error {
				ctx := cmd.Context()
				if cmd.Flags().Changed("current") {
					event, err := a.Director.Event(ctx, args[0])
					if err != nil {
						return timelineError(err)
					}
					run, err := a.Store.Repository().GetRunByIndex(ctx, event.ID, f.current)
					if err != nil {
						return timelineError(err)
					}
					edit.CurrentRunID = &run.ID
				}

				o, err := a.Director.Edit(ctx, args[0], edit, opts.actor())
				if err != nil {
					return timelineError(err)
				}
				return opts.printer(cmd).outcome(o)
			})
		},
	}

	cmd.Flags().StringVar(&f.name, "name", "", "new event name")
	cmd.Flags().StringVar(&f.start, "start", "", "new start time (RFC 3339)")
	cmd.Flags().StringVar(&f.end, "end", "", "new end time (RFC 3339)")
	cmd.Flags().StringVar(&f.shift, "shift", "", "lateness, as H:MM:SS or a duration such as 12m")
	cmd.Flags().IntVar(&f.current, "current", 0, "make the run with this index live")
	cmd.Flags().BoolVar(&f.clearCurrent, "clear-current", false, "leave no run live")
	cmd.MarkFlagsMutuallyExclusive("current", "clear-current")

	return cmd
}

func (f *editFlags) edit(cmd *cobra.Command) (progression.EventEdit, error) {
	edit := progression.EventEdit{ClearCurrent: f.clearCurrent}
	flags := cmd.Flags()

	if flags.Changed("name") {
		if f.name == "" {
			return edit, fmt.Errorf("--name cannot be empty")
		}
		edit.Name = &f.name
	}
	if flags.Changed("start") {
		t, err := time.Parse(time.RFC3339, f.start)
		if err != nil {
			return edit, fmt.Errorf("--start: %w", err)
		}
		edit.StartAt = &t
	}
	if flags.Changed("end") {
		t, err := time.Parse(time.RFC3339, f.end)
		if err != nil {
			return edit, fmt.Errorf("--end: %w", err)
		}
		edit.EndAt = &t
	}
	if flags.Changed("shift") {
		d, err := schedule.ParseEstimate(f.shift)
		if err != nil {
			return edit, fmt.Errorf("--shift: %w", err)
		}
		edit.Shift = &d
	}
	return edit, nil
}

// timelineError exits with ExitFailure when the timeline refused the
// command and ExitCommandError for anything else.
func timelineError(err error) error {
	for _, refused := range []error{
		timeline.ErrEventNotFound,
		timeline.ErrRunNotFound,
		timeline.ErrRunNotInEvent,
		timeline.ErrRunIndexConflict,
		timeline.ErrNameExists,
		timeline.ErrInvalidEvent,
		timeline.ErrInvalidRun,
	} {
		if errors.Is(err, refused) {
			return WrapExitError(ExitFailure, "refused", err)
		}
	}
	return WrapExitError(ExitCommandError, "failed", err)
}
