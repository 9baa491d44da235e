package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jacksonlee411/orgchart/internal/server"
	"github.com/jacksonlee411/orgchart/modules/orgchart/services"
	"github.com/jacksonlee411/orgchart/pkg/hierarchy"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Fatal("load .env")
	}

	cfg := server.ConfigFromEnv()
	cfg.BindFlags(pflag.CommandLine)
	pflag.Parse()
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	logger, err := server.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("configure logger")
	}
	logger.WithFields(logrus.Fields{
		"addr":     cfg.Addr,
		"source":   cfg.Source,
		"data_dir": cfg.DataDir,
	}).Info("starting orgchart server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, closeSource, err := server.OpenSource(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("open source")
	}
	defer closeSource()

	store := hierarchy.NewStore()
	if _, err := services.NewLoader(source, logger).Load(ctx, store); err != nil {
		logger.WithError(err).Fatal("load hierarchy")
	}

	expr, err := services.NewExprFilter()
	if err != nil {
		logger.WithError(err).Fatal("expression filter")
	}
	h, err := server.NewHandlerWithOptions(server.HandlerOptions{
		Service:       services.NewOrgChartService(store, expr),
		Logger:        logger,
		AllowlistPath: cfg.AllowlistPath,
	})
	if err != nil {
		logger.WithError(err).Fatal("build handler")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("serve")
	}
}
