// Command regionwatch classifies robot positions into named map regions and
// publishes the current region plus periodic region markers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/regionwatch/core"
	"github.com/signalsfoundry/regionwatch/internal/config"
	"github.com/signalsfoundry/regionwatch/internal/hub"
	"github.com/signalsfoundry/regionwatch/internal/logging"
	"github.com/signalsfoundry/regionwatch/internal/observability"
	"github.com/signalsfoundry/regionwatch/internal/regionsource"
	"github.com/signalsfoundry/regionwatch/internal/transport/grpcapi"
	"github.com/signalsfoundry/regionwatch/internal/transport/redisbus"
	"github.com/signalsfoundry/regionwatch/timectrl"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		config.Exitf("regionwatch: %v", err)
	}
	cfg, err := config.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("regionwatch: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		config.Exitf("regionwatch: %v", err)
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, AddSource: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}

	a, err := newApp(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		log.Error(ctx, "failed to start regionwatch", logging.Err(err))
		observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
		os.Exit(1)
	}

	runErr := a.run(ctx)
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
	if runErr != nil {
		log.Error(ctx, "regionwatch exited", logging.Err(runErr))
		os.Exit(1)
	}
}

// app is one wired regionwatch process.
type app struct {
	cfg        config.Config
	log        logging.Logger
	collector  *observability.Collector
	membership *core.MembershipService
	hubs       *hub.Publisher
	bus        *redisbus.Bus
	redis      *redis.Client
	server     *grpcapi.Server
	clock      *timectrl.TimeController
}

// newApp loads the regions source and builds every component. Nothing runs
// until run is called, except the gRPC listener which is bound here.
func newApp(ctx context.Context, cfg config.Config, log logging.Logger, reg prometheus.Registerer) (*app, error) {
	collector, err := observability.NewCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("metrics collector: %w", err)
	}

	doc, err := regionsource.Load(ctx, cfg.Regions, regionsource.Options{ShapeNameField: cfg.ShapeNameField})
	if err != nil {
		return nil, fmt.Errorf("load regions from %s: %w", cfg.Regions, err)
	}
	var storeOpts []core.StoreOption
	if cfg.AllowEmpty {
		storeOpts = append(storeOpts, core.AllowEmpty())
	}
	store, err := core.NewRegionStore(doc.Regions, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("build region store: %w", err)
	}
	collector.SetRegionCount(store.Count())

	poseCh, regionCh, markerCh := cfg.Channels(doc.Topics.Pose, doc.Topics.Region)
	log = log.With(logging.String("node", firstNonEmpty(doc.NodeName, "regionwatch")))
	log.Info(ctx, "loaded regions",
		logging.String("source", cfg.Regions),
		logging.Int("count", store.Count()),
	)

	a := &app{
		cfg:       cfg,
		log:       log,
		collector: collector,
		hubs:      hub.NewPublisher(),
		clock:     timectrl.NewTimeController(cfg.BroadcastInterval),
	}
	pubs := []core.Publisher{a.hubs}

	if client := redisbus.OpenRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); client != nil {
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		bus, err := redisbus.New(client, redisbus.Channels{Pose: poseCh, Region: regionCh, Marker: markerCh},
			redisbus.WithLogger(log),
			redisbus.WithDropRecorder(collector),
		)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		a.redis, a.bus = client, bus
		pubs = append(pubs, bus)
	}

	a.membership, err = core.NewMembershipService(store, core.Publishers(pubs...),
		core.WithLogger(log),
		core.WithMetricsRecorder(collector),
	)
	if err != nil {
		a.close()
		return nil, err
	}

	svc := grpcapi.NewService(a.membership, a.hubs, log, grpcapi.WithDropRecorder(collector))
	a.server, err = grpcapi.NewServer(cfg.GRPCAddr, svc, collector, log)
	if err != nil {
		a.close()
		return nil, err
	}

	a.clock.AddListener(func(ctx context.Context, _ time.Time) {
		if err := a.membership.BroadcastAllVisuals(ctx); err != nil {
			log.Warn(ctx, "region broadcast incomplete", logging.Err(err))
		}
	})
	return a, nil
}

// run broadcasts once immediately, then serves until ctx is cancelled or a
// component fails.
func (a *app) run(ctx context.Context) error {
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)

	a.clock.Fire(gctx, time.Now())
	g.Go(func() error { return a.clock.Run(gctx) })
	g.Go(func() error { return a.server.Serve(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		// Ends open watch streams so the gRPC server can stop gracefully.
		a.hubs.Close()
		return nil
	})
	if a.bus != nil {
		g.Go(func() error { return a.bus.Run(gctx, a.membership) })
	}
	if a.cfg.MetricsAddr != "" {
		g.Go(func() error { return serveMetrics(gctx, a.cfg.MetricsAddr, a.collector, a.log) })
	}

	a.log.Info(ctx, "regionwatch running",
		logging.String("grpc_addr", a.server.Addr()),
		logging.String("broadcast_interval", a.cfg.BroadcastInterval.String()),
		logging.Bool("redis", a.bus != nil),
	)
	err := g.Wait()
	a.log.Info(context.Background(), "regionwatch stopped")
	return err
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func serveMetrics(ctx context.Context, addr string, collector *observability.Collector, log logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info(ctx, "serving Prometheus metrics", logging.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
