package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"farmviz/internal/api"
	"farmviz/internal/config"
	"farmviz/internal/engine"
	"farmviz/internal/source"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, errs := config.Load(*configPath)
	if cfg == nil {
		slog.Error("config", "error", errs[0])
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	metrics := engine.NewMetrics()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("register metrics", "error", err)
		os.Exit(1)
	}

	// 1. Echo starts before the data is there
	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = api.JSONSerializer{}
	e.Use(middleware.CORS())
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// 2. Session routes answer 503 until SetData
	h := api.NewHandler(nil)
	h.RegisterRoutes(e)

	// 3. Load in the background
	go func() {
		logger.Info("loading dataset", "source", cfg.Source)
		t0 := time.Now()

		src, closeSrc, err := openSource(cfg)
		if err != nil {
			logger.Error("open source", "error", err)
			return
		}
		defer closeSrc()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		collections, report, err := src.Load(ctx)
		if err != nil {
			logger.Error("load source", "error", err)
			return
		}
		metrics.RecordSkipped(report)
		for _, re := range report.Skipped {
			logger.Warn("record skipped", "collection", re.Collection, "key", re.Key, "field", re.Field, "error", re.Err)
		}

		ds := engine.NewDataset(collections,
			engine.WithBreakpoints(cfg.AreaBreakpoints),
			engine.WithChoroplethDomain(cfg.ChoroplethDomain),
			engine.WithLogger(logger),
			engine.WithMetrics(metrics),
		)
		h.SetData(ds)

		logger.Info("dataset loaded, API fully ready", "duration", time.Since(t0))
	}()

	// 4. Serve
	addr := ":" + strconv.Itoa(cfg.Port)
	logger.Info("server ready (data loading in background)", "addr", addr)
	e.Logger.Fatal(e.Start(addr))
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func openSource(cfg *config.Config) (source.Source, func(), error) {
	if cfg.Source == config.SourceSQLite {
		db, err := source.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	}
	return source.NewJSONDir(cfg.DataDir), func() {}, nil
}
