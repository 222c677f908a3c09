package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"trafficviewer/internal/api"
	"trafficviewer/pkg/cache"
	"trafficviewer/pkg/config"
	"trafficviewer/pkg/core"
	"trafficviewer/pkg/logging"
	"trafficviewer/pkg/probe"
	"trafficviewer/pkg/relay"
	"trafficviewer/pkg/request"
	"trafficviewer/pkg/sim"
	"trafficviewer/pkg/tracker"
	"trafficviewer/pkg/version"
	"trafficviewer/pkg/worker"
)

const defaultConfigPath = "configs/trafficviewer.yaml"

// maxStatusConns caps concurrent status API connections, streams included.
const maxStatusConns = 32

type options struct {
	configPath  string
	initConfig  bool
	simProvider string
	showVersion bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("trafficviewer", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to the config file")
	fs.BoolVar(&opts.initConfig, "init-config", false, "generate default config file and exit")
	fs.StringVar(&opts.simProvider, "sim", "", "override sim.provider (fsuipc, mock)")
	fs.BoolVar(&opts.showVersion, "version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	if opts.showVersion {
		fmt.Println("trafficviewer", version.Version)
		return
	}

	if opts.initConfig {
		if err := config.GenerateDefault(opts.configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", opts.configPath)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	appCfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.simProvider != "" {
		appCfg.Sim.Provider = opts.simProvider
		if err := appCfg.Validate(); err != nil {
			return fmt.Errorf("invalid --sim: %w", err)
		}
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Traffic Viewer Started", "version", version.Version, "sim", appCfg.Sim.Provider)

	// Startup Probes
	probes := []probe.Probe{
		{Name: "Relay Listener", Check: probe.Bindable(appCfg.Relay.Listen), Critical: true},
		{Name: "Network Data Feed", Check: probe.Reachable(appCfg.Feeds.DataURL)},
		{Name: "METAR Feed", Check: probe.Reachable(appCfg.Feeds.MetarURL)},
	}
	if appCfg.API.Address != "" {
		probes = append(probes, probe.Probe{Name: "Status API", Check: probe.Bindable(appCfg.API.Address), Critical: true})
	}
	if err := probe.AnalyzeResults(probe.Run(ctx, probes)); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	src, err := newSimSource(appCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize sim client: %w", err)
	}
	defer src.Close()

	simInfo, err := sim.ConnectWithRetry(ctx, src, retryPolicy(appCfg))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	tr := tracker.New()
	reqClient := request.New(tr, request.ClientConfig{
		Retries:   appCfg.Request.Retries,
		Timeout:   appCfg.Request.Timeout.Std(),
		BaseDelay: appCfg.Request.Backoff.BaseDelay.Std(),
		MaxDelay:  appCfg.Request.Backoff.MaxDelay.Std(),
		UserAgent: "trafficviewer/" + version.Version,
	})

	data := cache.New()
	w := worker.Start(ctx, worker.Config{
		DataURL:       appCfg.Feeds.DataURL,
		MetarURL:      appCfg.Feeds.MetarURL,
		DataInterval:  appCfg.Feeds.DataInterval.Std(),
		MetarInterval: appCfg.Feeds.MetarInterval.Std(),
	}, reqClient, data)
	defer w.Close()

	statusH := api.NewStatusHandler(tr)
	statusH.SetSimulator(simInfo)
	statusH.SetWorker(w)
	trafficH := api.NewTrafficHandler()

	g, gctx := errgroup.WithContext(ctx)
	if appCfg.API.Address != "" {
		srv := api.NewServer(appCfg.API.Address, statusH, trafficH)
		g.Go(func() error {
			return runServerLifecycle(gctx, srv)
		})
	}

	g.Go(func() error {
		return runSession(gctx, appCfg, src, w, data, statusH, trafficH)
	})

	err = g.Wait()
	if errors.Is(err, core.ErrClientGone) || ctx.Err() != nil {
		slog.Info("Traffic Viewer stopped")
		return nil
	}
	return err
}

// runSession serves one controller connection until it ends.
func runSession(ctx context.Context, cfg *config.Config, src sim.Source, w *worker.Worker, data *cache.Cache, statusH *api.StatusHandler, sink core.TrafficSink) error {
	conn, err := relay.Listen(ctx, cfg.Relay.Listen)
	if err != nil {
		return err
	}
	r := relay.New(conn, relay.Options{WriteTimeout: cfg.Relay.WriteTimeout.Std()})
	defer r.Close()

	// A fresh controller gets current weather and plans right away.
	w.RequestWeatherRefresh()
	w.RequestDataRefresh()

	orch := core.New(core.Config{
		Interval:        cfg.Ticker.Interval.Std(),
		SyncEvery:       cfg.Ticker.SyncEvery,
		MaxSendFailures: cfg.Relay.MaxSendFailures,
		Welcome:         cfg.Relay.Welcome,
	}, r, w, src, data)
	orch.SetSink(sink)
	statusH.SetOrchestrator(orch)

	return orch.Run(ctx)
}

func runServerLifecycle(ctx context.Context, srv *http.Server) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("status server: %w", err)
	}
	slog.Info("Starting status server", "addr", ln.Addr().String())
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.Serve(netutil.LimitListener(ln, maxStatusConns)); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-ctx.Done():
		slog.Info("Shutting down status server...")
	case err := <-serverErrors:
		return fmt.Errorf("status server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
