package main

import (
	"flag"
	"fmt"
)

var (
	deploymentMode int
	configDir      string
	logDir         string
	filesDir       string
	httpPort       int
)

func init() {
	flag.IntVar(&deploymentMode, "deployment_mode", 2, "deployment mode: 0=dev,1=test, 2=mainnet")
	flag.StringVar(&configDir, "config_dir", "./config", "config_dir")
	flag.StringVar(&logDir, "log_dir", "", "log_dir")
	flag.StringVar(&filesDir, "files_dir", "", "files_dir, overrides storage.base_dir")
	flag.IntVar(&httpPort, "port", 0, "port, overrides port from the config file")
}

func parseFlags() {
	fmt.Print("> load flags")
	flag.Parse()

	if logDir == "" {
		panic("Please specify --log_dir absolute folder name option where logs can be stored")
	}
	fmt.Print("		[OK]\n")
}
