package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/02loveslollipop/printer-page-counter/internal/logging"
	"github.com/02loveslollipop/printer-page-counter/internal/series"
	"github.com/02loveslollipop/printer-page-counter/services/api/config"
	"github.com/02loveslollipop/printer-page-counter/services/api/db"
	httpserver "github.com/02loveslollipop/printer-page-counter/services/api/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := series.Open(ctx, series.Options{
		Driver:      cfg.StoreDriver,
		DataDir:     cfg.DataDir,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		logger.WithError(err).Fatal("store open error")
	}
	defer closeStore()

	srv := httpserver.New(cfg, db.New(store), logger)
	logger.WithFields(logrus.Fields{
		"addr":  cfg.ListenAddr(),
		"store": cfg.StoreDriver,
	}).Info("REST API listening")

	if err := srv.Run(ctx); err != nil {
		logger.WithError(err).Error("server error")
		os.Exit(1)
	}
}
