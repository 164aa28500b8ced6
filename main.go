package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"vqtlbrowser/app"
	"vqtlbrowser/internal/config"
	"vqtlbrowser/internal/logging"
	"vqtlbrowser/internal/metrics"
	"vqtlbrowser/ui"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("Could not load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logging.Setup(os.Stderr, cfg.LogLevel, cfg.Server.Debug)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	snap, err := app.NewBrowserServiceFromConfig(cfg, m).BuildSnapshot(context.Background())
	if err != nil {
		log.Fatalf("Failed to build snapshot: %v", err)
	}

	browser, err := ui.NewApp(snap, ui.Config{
		Addr:        cfg.Server.Addr(),
		Debug:       cfg.Server.Debug,
		TemplateDir: cfg.Server.TemplateDir,
		NotesPath:   cfg.Data.NotesPath,
	}, m, reg)
	if err != nil {
		log.Fatalf("Failed to create UI app: %v", err)
	}

	log.Fatal(browser.Start())
}
