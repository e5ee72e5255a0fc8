package main

import (
	"context"
	"fmt"
	"os"

	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/assembler"
	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/config"
	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/handler"
	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/stats"
	"github.com/0chain/assembler/code/go/0chain.net/core/common"
	"github.com/0chain/assembler/code/go/0chain.net/core/lock"
	"github.com/0chain/assembler/code/go/0chain.net/core/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	parseFlags()

	setupConfig(configDir, deploymentMode)

	setupLogging()

	common.SetupRootContext(context.Background())

	store, disk, err := setupStore()
	if err != nil {
		logging.Logger.Error("Error setting up chunk store", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Print("> init metrics")
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := stats.InitMetrics(registry)
	fmt.Print("		[OK]\n")

	cfg := config.Configuration
	a := assembler.New(store, lock.NewRegistry(),
		assembler.WithMaxFileSize(cfg.Upload.MaxFileSize),
		assembler.WithAllowedFileTypes(cfg.Upload.AllowedFileTypes),
		assembler.WithMaxFileIDLength(cfg.Upload.MaxFileIDLength),
		assembler.WithRetired(cfg.Retired.Size, cfg.Retired.TTL),
		assembler.WithStaleWorkers(cfg.StaleCleaner.NumWorkers),
		assembler.WithMetrics(metrics),
	)

	setupWorkers(a, metrics)

	startHttpServer(handler.New(a, registry, disk))
}
