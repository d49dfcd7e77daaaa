// Package app assembles the timeline services described by config.yaml.
//
// Both binaries build on it. overlaycore adds the HTTP API and the MQTT
// command listener on top; runctl drives the director directly.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/overlay-core/internal/audit"
	"github.com/nerrad567/overlay-core/internal/auth"
	"github.com/nerrad567/overlay-core/internal/director"
	"github.com/nerrad567/overlay-core/internal/infrastructure/config"
	"github.com/nerrad567/overlay-core/internal/infrastructure/database"
	"github.com/nerrad567/overlay-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/overlay-core/internal/infrastructure/logging"
	"github.com/nerrad567/overlay-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/overlay-core/internal/obs"
	"github.com/nerrad567/overlay-core/internal/overlay"
	"github.com/nerrad567/overlay-core/internal/progression"
	"github.com/nerrad567/overlay-core/internal/rtmp"
	"github.com/nerrad567/overlay-core/internal/timeline"
	"github.com/nerrad567/overlay-core/migrations"
)

// auditDrainTimeout bounds how long Close waits for queued audit entries.
const auditDrainTimeout = 5 * time.Second

// Options changes what Open connects to.
type Options struct {
	// Offline skips OBS, MQTT and InfluxDB. Transitions are still stored
	// and audited.
	Offline bool

	// Clock replaces time.Now for the state machine and director.
	Clock func() time.Time
}

// App holds the assembled services. Optional clients are nil when their
// section of the config is disabled.
type App struct {
	Config      *config.Config
	Logger      *logging.Logger
	DB          *database.DB
	Store       *timeline.Store
	Director    *director.Director
	Operators   *auth.SQLiteOperatorRepository
	Audit       *audit.SQLiteRepository
	AuditWriter *audit.Writer

	OBS     *obs.Client
	Overlay *overlay.Adapter
	MQTT    *mqtt.Client
	Influx  *influxdb.Client

	stopAudit context.CancelFunc
	closers   []closer
}

type closer struct {
	name string
	fn   func() error
}

// Open connects to everything cfg enables and migrates the database. On
// error, whatever was already opened is closed again.
func Open(ctx context.Context, cfg *config.Config, log *logging.Logger, opts Options) (_ *App, err error) {
	a := &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.DB, err = database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.closers = append(a.closers, closer{"database", a.DB.Close})
	log.Info("database connected", "path", cfg.Database.Path)

	if err = a.DB.Migrate(ctx, migrations.FS); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	a.Store = timeline.NewStore(a.DB.DB)
	a.Operators = auth.NewOperatorRepository(a.DB.DB)
	a.Audit = audit.NewSQLiteRepository(a.DB.DB)
	a.AuditWriter = audit.NewWriter(a.Audit, log.With("component", "audit"))

	auditCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	a.stopAudit = stop
	go a.AuditWriter.Run(auditCtx)

	machineOpts := []progression.Option{progression.WithLogger(log.With("component", "progression"))}
	directorOpts := []director.Option{
		director.WithLogger(log.With("component", "director")),
		director.WithPublisher(director.NewAuditPublisher(a.AuditWriter)),
	}
	if opts.Clock != nil {
		machineOpts = append(machineOpts, progression.WithClock(opts.Clock))
		directorOpts = append(directorOpts, director.WithClock(opts.Clock))
	}

	if !opts.Offline {
		more, connErr := a.connect(cfg, log)
		if connErr != nil {
			return nil, connErr
		}
		directorOpts = append(directorOpts, more...)
	}

	a.Director = director.New(progression.New(a.Store, machineOpts...), directorOpts...)
	return a, nil
}

// connect opens the optional clients and returns the director options that
// wire them in.
func (a *App) connect(cfg *config.Config, log *logging.Logger) ([]director.Option, error) {
	var opts []director.Option

	if cfg.OBS.Enabled {
		a.OBS = obs.NewFromConfig(cfg.OBS, obs.WithLogger(log.With("component", "obs")))
		a.closers = append(a.closers, closer{"obs", a.OBS.Close})

		adapterOpts := []overlay.AdapterOption{
			overlay.WithCallTimeout(time.Duration(cfg.OBS.RequestTimeout) * time.Second),
			overlay.WithLogger(log.With("component", "overlay")),
		}
		if cfg.RTMP.StatsURI != "" {
			source := rtmp.NewSource(cfg.RTMP.StatsURI, cfg.RTMP.BaseURI, a.Store.Repository(),
				time.Duration(cfg.RTMP.Timeout)*time.Second)
			adapterOpts = append(adapterOpts, overlay.WithStreams(source))
		}
		a.Overlay = overlay.NewAdapter(a.OBS, cfg.Overlay, adapterOpts...)
		opts = append(opts, director.WithSyncer(a.Overlay))
		log.Info("overlay sync enabled", "obs_host", cfg.OBS.Host, "obs_port", cfg.OBS.Port)
	} else {
		log.Info("OBS disabled, transitions will not touch the overlay")
	}

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("connecting to MQTT: %w", err)
		}
		client.SetLogger(log.With("component", "mqtt"))
		a.MQTT = client
		a.closers = append(a.closers, closer{"mqtt", client.Close})
		opts = append(opts, director.WithPublisher(director.NewMQTTPublisher(client, log.With("component", "mqtt"))))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	if cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		client.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		a.Influx = client
		a.closers = append(a.closers, closer{"influxdb", client.Close})
		opts = append(opts, director.WithPublisher(director.NewInfluxPublisher(client)))
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	return opts, nil
}

// Close drains the audit queue, then closes every client in reverse order
// of opening.
func (a *App) Close() {
	if a.stopAudit != nil {
		a.stopAudit()
		select {
		case <-a.AuditWriter.Done():
		case <-time.After(auditDrainTimeout):
			a.Logger.Warn("audit queue not drained before shutdown")
		}
		a.stopAudit = nil
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.Logger.Error("error closing "+c.name, "error", err)
		}
	}
	a.closers = nil
}
