package main

import (
	"fmt"
	"log"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/config"
	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/handler"
	"github.com/0chain/assembler/code/go/0chain.net/core/common"
	"github.com/0chain/assembler/code/go/0chain.net/core/logging"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func startHttpServer(h *handler.Handler) {
	mode := "main net"
	if config.Development() {
		mode = "development"
	} else if config.TestNet() {
		mode = "test net"
	}

	r := mux.NewRouter()
	initHandlers(r, h)

	port := config.Configuration.Port
	logging.Logger.Info("Starting assembler",
		zap.Int("available_cpus", runtime.NumCPU()),
		zap.Int("port", port),
		zap.String("storage", config.Configuration.Storage.Backend),
		zap.String("mode", mode))

	address := ":" + strconv.Itoa(port)
	var server *http.Server

	if config.Development() {
		// No WriteTimeout setup to enable pprof
		server = &http.Server{
			Addr:              address,
			ReadHeaderTimeout: 30 * time.Second,
			ReadTimeout:       config.Configuration.Server.ReadTimeout,
			MaxHeaderBytes:    1 << 20,
			Handler:           r,
		}
	} else {
		server = &http.Server{
			Addr:              address,
			ReadHeaderTimeout: 30 * time.Second,
			ReadTimeout:       config.Configuration.Server.ReadTimeout,
			WriteTimeout:      config.Configuration.Server.ReadTimeout + 30*time.Second,
			IdleTimeout:       30 * time.Second,
			MaxHeaderBytes:    1 << 20,
			Handler:           r,
		}
	}
	common.HandleShutdown(server)

	logging.Logger.Info("Ready to listen to the requests")
	fmt.Print("> start http server	[OK]\n")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

func initHandlers(r *mux.Router, h *handler.Handler) {
	handler.SetupHandlers(r, h)
	common.SetAdminCredentials()
}
