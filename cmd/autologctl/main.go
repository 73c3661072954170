// Command autologctl runs the auto-logging pipeline controller: it polls
// the record store for footage and frames sitting in a non-terminal
// status, advances each through its registered step chain, and serves
// Prometheus metrics until its poll duration elapses or it is signaled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3"

	"github.com/ffbk-dev/autolog-controller/config"
	"github.com/ffbk-dev/autolog-controller/engine"
	"github.com/ffbk-dev/autolog-controller/executor"
	"github.com/ffbk-dev/autolog-controller/log"
	"github.com/ffbk-dev/autolog-controller/metrics"
	"github.com/ffbk-dev/autolog-controller/metricssink"

	"github.com/ffbk-dev/autolog-controller/batchcheck"
	"github.com/ffbk-dev/autolog-controller/pprof"
	"github.com/ffbk-dev/autolog-controller/registry"
	"github.com/ffbk-dev/autolog-controller/statuscache"
	"github.com/ffbk-dev/autolog-controller/store"
)

func main() {
	fs := flag.NewFlagSet("autologctl", flag.ExitOnError)
	cli := config.Cli{}

	version := fs.Bool("version", false, "print application version")

	fs.StringVar(&cli.StoreBaseURL, "store-base-url", "", "base URL of the record store's Data API")
	fs.StringVar(&cli.StoreUsername, "store-username", "", "username for the record store session login")
	fs.StringVar(&cli.StorePassword, "store-password", "", "password for the record store session login")
	fs.StringVar(&cli.StoreLayoutFtg, "store-layout-footage", "FOOTAGE", "store layout name for footage records")
	fs.StringVar(&cli.StoreLayoutFr, "store-layout-frames", "FRAMES", "store layout name for frame records")

	fs.DurationVar(&cli.PollDuration, "poll-duration", config.DefaultPollDuration*time.Second, "total wall-clock time to keep polling before exiting")
	fs.DurationVar(&cli.PollInterval, "poll-interval", config.DefaultPollInterval*time.Second, "sleep between cycles when the fleet is not yet quiescent")
	fs.IntVar(&cli.WorkerPoolSize, "worker-pool-size", config.DefaultWorkerPoolSize, "maximum number of records processed concurrently per cycle")
	fs.DurationVar(&cli.CycleSoftTimeout, "cycle-soft-timeout", config.DefaultCycleSoftTimeout*time.Second, "soft deadline for one cycle's dispatch before remaining tasks detach to the background")
	fs.DurationVar(&cli.StatusCacheTTL, "status-cache-ttl", 10*time.Minute, "TTL for cached footage/frame status entries")

	fs.StringVar(&cli.StepScriptDir, "step-script-dir", "./scripts", "directory containing the step executable scripts")

	fs.DurationVar(&cli.RequestTimeout, "request-timeout", config.DefaultRequestTimeout*time.Second, "HTTP timeout for a single store request")
	fs.DurationVar(&cli.StepTimeout, "step-timeout", config.DefaultStepTimeout*time.Second, "timeout for one step process invocation")
	fs.DurationVar(&cli.FrameTimeout, "frame-step-timeout", config.DefaultFrameStepTimeout*time.Second, "timeout for the audio-transcription step, which runs long")

	fs.StringVar(&cli.MetricsAddr, "metrics-addr", "127.0.0.1:9090", "address to bind the /metrics endpoint")
	fs.IntVar(&cli.PprofPort, "pprof-port", 6061, "port to serve pprof debug profiles on")
	fs.StringVar(&cli.MetricsDBConnectionString, "metrics-db-connection-string", "", "optional Postgres connection string for the per-cycle metrics sink; disabled when empty")

	err := ff.Parse(fs, os.Args[1:],
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("AUTOLOGCTL"),
	)
	if err != nil {
		log.LogNoRecordID("error parsing cli", "err", err.Error())
		os.Exit(1)
	}

	if *version {
		fmt.Printf("autologctl version: %s\n", config.Version)
		return
	}

	if cli.StoreBaseURL == "" || cli.StoreUsername == "" || cli.StorePassword == "" {
		log.LogNoRecordID("store-base-url, store-username and store-password are required")
		os.Exit(1)
	}

	// The metrics and pprof listeners run for the life of the process;
	// they are not waited on, since the controller itself is expected to
	// exit once its poll duration elapses or the fleet goes quiescent.
	go func() {
		log.LogNoRecordID("metrics server stopped", "err", metrics.ListenAndServe(cli.MetricsAddr))
	}()
	go func() {
		log.LogNoRecordID("pprof server stopped", "err", pprof.ListenAndServe(cli.PprofPort))
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := handleSignals(ctx); err != nil {
			log.LogNoRecordID("shutting down on signal", "err", err.Error())
		}
		cancel()
	}()

	if err := runController(ctx, cli); err != nil {
		log.LogNoRecordID("autologctl exiting", "err", err.Error())
		os.Exit(1)
	}
}

func runController(ctx context.Context, cli config.Cli) error {
	m := metrics.NewControllerMetrics()
	clientMetrics := metrics.NewClientMetrics("store_client")

	// Apply the configured step timeouts to the registry tables; the
	// audio-transcription frame step takes the longer frame timeout.
	for status, step := range registry.Footage {
		step.Timeout = cli.StepTimeout
		registry.Footage[status] = step
	}
	for status, step := range registry.Frame {
		step.Timeout = cli.StepTimeout
		if step.Script == "audio" {
			step.Timeout = cli.FrameTimeout
		}
		registry.Frame[status] = step
	}

	auth := &store.BasicAuthenticator{
		BaseURL:  cli.StoreBaseURL,
		Layout:   cli.StoreLayoutFtg,
		Username: cli.StoreUsername,
		Password: cli.StorePassword,
	}

	storeClient := store.NewClient(cli.StoreBaseURL, cli.StoreLayoutFtg, cli.StoreLayoutFr, cli.RequestTimeout, auth, clientMetrics)

	cache := statuscache.New(cli.StatusCacheTTL)
	checker := batchcheck.New(storeClient, cli.StoreLayoutFtg)
	exec := executor.New(cli.StepScriptDir, storeClient, executor.ProcessRunner{})
	exec.StepDuration = m.StepDurationSec

	metricsSink, err := metricssink.Open(cli.MetricsDBConnectionString)
	if err != nil {
		return fmt.Errorf("opening metrics db: %w", err)
	}
	defer metricsSink.Close()

	e := engine.New(engine.Engine{
		Store:            storeClient,
		Cache:            cache,
		BatchChecker:     checker,
		Executor:         exec,
		Metrics:          m,
		MetricsSink:      metricsSink,
		LayoutFootage:    cli.StoreLayoutFtg,
		LayoutFrame:      cli.StoreLayoutFr,
		PollDuration:     cli.PollDuration,
		PollInterval:     cli.PollInterval,
		CycleSoftTimeout: cli.CycleSoftTimeout,
		WorkerPoolSize:   cli.WorkerPoolSize,
	})

	return e.Run(ctx)
}

func handleSignals(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	for {
		select {
		case s := <-c:
			log.LogNoRecordID("caught signal, attempting clean shutdown", "signal", s.String())
			return fmt.Errorf("caught signal=%v", s)
		case <-ctx.Done():
			return nil
		}
	}
}
