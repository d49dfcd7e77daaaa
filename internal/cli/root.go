// Package cli implements runctl, the operator's command line for the
// running order. Commands act on the same database as the service and,
// unless --offline is given, push the overlay and publish to MQTT exactly
// as the HTTP API does.
package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/nerrad567/overlay-core/internal/app"
	"github.com/nerrad567/overlay-core/internal/director"
	"github.com/nerrad567/overlay-core/internal/infrastructure/config"
	"github.com/nerrad567/overlay-core/internal/infrastructure/logging"
)

// DefaultConfigPath is used when neither --config nor OVERLAY_CONFIG is set.
const DefaultConfigPath = "configs/config.yaml"

// ValidFormats are the accepted --format values.
var ValidFormats = []string{"text", "json"}

// Version is reported in log lines. Set by the runctl main package.
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Actor      string
	Format     string
	Offline    bool
	Verbose    bool
}

// NewRootCommand creates the runctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "runctl",
		Short: "Drive the event running order",
		Long: `runctl advances, reverts and reorders runs of a marathon event.

Commands use the service's config.yaml. Transitions update OBS and the MQTT
state topics unless --offline is given, and every change is written to the
audit log under --actor.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return WrapExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", defaultConfigPath(), "path to config.yaml")
	cmd.PersistentFlags().StringVar(&opts.Actor, "actor", defaultActor(), "name recorded in the audit log")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().BoolVar(&opts.Offline, "offline", false, "do not contact OBS, MQTT or InfluxDB")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log to stderr at debug level")

	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewAdvanceCommand(opts))
	cmd.AddCommand(NewRevertCommand(opts))
	cmd.AddCommand(NewMoveCommand(opts, "move-up"))
	cmd.AddCommand(NewMoveCommand(opts, "move-down"))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewEditCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewPrintCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

func defaultConfigPath() string {
	if path := os.Getenv("OVERLAY_CONFIG"); path != "" {
		return path
	}
	return DefaultConfigPath
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "runctl"
}

func (o *RootOptions) actor() director.Actor {
	return director.Actor{Name: o.Actor, Source: director.SourceCLI}
}

func (o *RootOptions) printer(cmd *cobra.Command) printer {
	return printer{format: o.Format, w: cmd.OutOrStdout()}
}

func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading config", err)
	}
	return cfg, nil
}

func (o *RootOptions) logger(cmd *cobra.Command) *logging.Logger {
	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	return logging.NewWithWriter(config.LoggingConfig{Level: level, Format: "text"}, Version, cmd.ErrOrStderr())
}

// open loads the config and assembles the services. The caller closes the
// returned App.
func (o *RootOptions) open(cmd *cobra.Command, offline bool) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.Open(cmd.Context(), cfg, o.logger(cmd), app.Options{Offline: offline})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "starting", err)
	}
	return a, nil
}

// withApp runs fn against an open App and closes it afterwards.
func (o *RootOptions) withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := o.open(cmd, o.Offline)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// withStore is withApp for commands that only read or write the database.
func (o *RootOptions) withStore(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := o.open(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
