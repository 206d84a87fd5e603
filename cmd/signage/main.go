package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bluele/gcache"

	lib "github.com/Retexc/ETSignage"
	"github.com/Retexc/ETSignage/config"
	"github.com/Retexc/ETSignage/formatter"
	"github.com/Retexc/ETSignage/gtfs"
	"github.com/Retexc/ETSignage/internal/logging"
	"github.com/Retexc/ETSignage/internal/metrics"
	"github.com/Retexc/ETSignage/internal/publisher"
	"github.com/Retexc/ETSignage/weather"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml (default: ./config.yml)")
	envFiles := flag.String("env", ".env", "comma-separated .env files to load")
	once := flag.Bool("once", false, "print one board as JSON and exit")
	addr := flag.String("addr", "", "listen address (overrides server.port)")
	flag.Parse()

	if err := config.LoadEnv(splitList(*envFiles)...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.Init(os.Stderr, cfg.Logging.Level)

	mcol := metrics.NewCollector()
	feeds, err := lib.NewFeedPipelines(cfg, gcache.NewRealClock(), mcol, logger)
	if err != nil {
		if errors.Is(err, gtfs.ErrMissingRequiredFile) {
			logging.LogError(logger, "Static schedule incomplete", err)
		} else {
			logging.LogError(logger, "Failed to build feeds", err)
		}
		os.Exit(1)
	}

	opts := lib.Options{
		Logger:     logger,
		MetroFeed:  cfg.Metro.Feed,
		MetroLines: cfg.Metro.Lines,
		Locale:     cfg.Locale,
		Metrics:    mcol,
	}
	if cfg.Weather.Enabled {
		opts.Weather = weather.NewProvider(cfg.Weather, nil, logger)
	}

	if *once {
		svc := lib.NewService(feeds, opts)
		snap, err := svc.Snapshot(context.Background())
		if err != nil {
			logging.LogError(logger, "Snapshot failed", err)
			os.Exit(1)
		}
		buf, err := formatter.NewResponseBuilder().BuildJSON(snap.Board)
		if err != nil {
			logging.LogError(logger, "Failed to encode board", err)
			os.Exit(1)
		}
		fmt.Println(string(buf))
		return
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var pub *publisher.NATSPublisher
	if url := natsURL(cfg.NATS); url != "" {
		pub, err = publisher.NewNATSPublisher(url, cfg.NATS.Subject, mcol, logger)
		if err != nil {
			logging.LogWarn(logger, "NATS publishing disabled", err)
		} else {
			opts.Publisher = pub
			defer pub.Close()
		}
	}

	svc := lib.NewService(feeds, opts)
	if opts.Publisher != nil {
		interval := time.Duration(cfg.NATS.PollSeconds) * time.Second
		logger.Info("Publishing boards", slog.String("subject", cfg.NATS.Subject), slog.Duration("interval", interval))
		go svc.Run(ctx, interval)
	}

	listen := *addr
	if listen == "" {
		listen = fmt.Sprintf(":%d", cfg.Server.Port)
	}
	metricsHandler := mcol.Handler()
	if !cfg.Server.MetricsEnabled {
		metricsHandler = nil
	}
	srv := lib.NewServer(listen, svc, metricsHandler, logger)
	srv.Start()
	srv.HandleGracefulShutdown(stop)
}

func natsURL(c config.NATSConfig) string {
	if c.URLEnv == "" {
		return ""
	}
	return os.Getenv(c.URLEnv)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
