// Command notifyd delivers real-time events to recipients over Server-Sent
// Events. Internal services publish over HTTP; events fan out through the
// broker to whichever replica holds the recipient's stream.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/kbukum/notify/api"
	"github.com/kbukum/notify/auth"
	"github.com/kbukum/notify/bootstrap"
	"github.com/kbukum/notify/broker"
	"github.com/kbukum/notify/config"
	"github.com/kbukum/notify/database"
	"github.com/kbukum/notify/envelope"
	"github.com/kbukum/notify/gateway"
	"github.com/kbukum/notify/kafka"
	"github.com/kbukum/notify/logger"
	"github.com/kbukum/notify/observability"
	"github.com/kbukum/notify/presence"
	"github.com/kbukum/notify/push"
	"github.com/kbukum/notify/redis"
	"github.com/kbukum/notify/resilience"
	"github.com/kbukum/notify/server"
	"github.com/kbukum/notify/server/middleware"
	"github.com/kbukum/notify/store"
	"github.com/kbukum/notify/stream"
	"github.com/kbukum/notify/version"
)

func main() {
	var cfg Config
	if err := config.LoadConfig(serviceName, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Version == "" {
		cfg.Version = version.Get()
	}

	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if err := wire(app); err != nil {
		app.Logger.Fatal("wiring failed", logger.ErrorFields("wire", err))
	}
	if err := app.Run(context.Background()); err != nil {
		app.Logger.Fatal("application stopped with error", logger.ErrorFields("run", err))
	}
}

// wire builds every component and registers them in start order. Stop runs
// in reverse, so the HTTP server drains before the gateway, database and
// broker go away.
func wire(app *bootstrap.App[*Config]) error {
	cfg := app.Cfg
	log := app.Logger

	if err := app.RegisterComponent(observability.NewTelemetry(cfg.Telemetry, app.Name, app.Version, cfg.Environment, log)); err != nil {
		return err
	}
	// Instruments created now are bound to the exporter once telemetry starts.
	metrics, err := observability.NewMetrics(observability.Meter())
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	b, tracker, err := newBroker(app)
	if err != nil {
		return err
	}

	gwOpts := []gateway.Option{
		gateway.WithRetry(cfg.Resilience.RetryPolicy()),
		gateway.WithSideEffectTimeout(cfg.Gateway.SideEffectTimeout()),
		gateway.WithMetrics(metrics),
		gateway.WithLogger(log),
	}

	var history api.History
	if cfg.Database.Enabled {
		db := database.NewComponent(cfg.Database, log).WithAutoMigrate(&store.EventRecord{})
		if err := app.RegisterComponent(db); err != nil {
			return err
		}
		events := newLazyStore(db)
		gwOpts = append(gwOpts, gateway.WithStore(events))
		history = events
	}

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka, log)
		if err != nil {
			return err
		}
		if err := app.RegisterComponent(producer); err != nil {
			return err
		}
		notifier := push.NewNotifier(tracker, producer,
			push.WithTopic(cfg.Push.Topic),
			push.WithBreaker(resilience.NewCircuitBreaker(cfg.Resilience.BreakerConfig("push"))),
			push.WithLogger(log),
		)
		gwOpts = append(gwOpts, gateway.WithNotifier(notifier))
	}

	gw := gateway.New(b, gwOpts...)
	if err := app.RegisterComponent(gw); err != nil {
		return err
	}

	streamer := stream.NewStreamer(b, cfg.Stream.Settings(),
		stream.WithPresence(tracker),
		stream.WithMetrics(metrics),
		stream.WithLogger(log),
	)
	if err := app.RegisterComponent(streamer); err != nil {
		return err
	}

	authn, err := auth.NewAuthenticator(cfg.Auth)
	if err != nil {
		return err
	}
	admission, err := middleware.Admission(cfg.Server.Admission, log)
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server, log)
	api.NewHandler(api.Deps{
		Publisher:     gw,
		Streamer:      streamer,
		Authenticator: authn,
		History:       history,
		Admission:     admission,
		Health:        app.Components.HealthAll,
		AppContext:    app.Context(),
		ServiceName:   app.Name,
		Version:       app.Version,
		Logger:        log,
	}).Register(srv.GinEngine())
	srv.TrackRoutes(app.Summary)

	log.Info("auth configured", logger.Fields("auth", cfg.Auth.Describe()))
	return app.RegisterComponent(server.NewComponent(srv))
}

// newBroker registers the configured broker and returns it with the
// presence tracker that matches its reach.
func newBroker(app *bootstrap.App[*Config]) (broker.Broker, presence.Tracker, error) {
	cfg := app.Cfg
	if cfg.Broker.Driver == DriverMemory {
		mem := broker.NewMemory(app.Logger)
		return mem, presence.NewMemory(), app.RegisterComponent(mem)
	}

	client, err := redis.New(cfg.Redis, app.Logger)
	if err != nil {
		return nil, nil, err
	}
	if err := app.RegisterComponent(redis.NewComponent(client)); err != nil {
		return nil, nil, err
	}
	return redis.NewBroker(client), redis.NewPresence(client), nil
}

// lazyStore opens the event store on first use. The database component
// starts before the HTTP server, so no request reaches it earlier.
type lazyStore struct {
	get func() *store.Store
}

var (
	_ gateway.Store = (*lazyStore)(nil)
	_ api.History   = (*lazyStore)(nil)
)

func newLazyStore(db *database.Component) *lazyStore {
	return &lazyStore{get: sync.OnceValue(func() *store.Store { return store.New(db.DB()) })}
}

func (s *lazyStore) Save(ctx context.Context, env envelope.Envelope) error {
	return s.get().Save(ctx, env)
}

func (s *lazyStore) Recent(ctx context.Context, recipientID string, limit int) ([]envelope.Envelope, error) {
	return s.get().Recent(ctx, recipientID, limit)
}
