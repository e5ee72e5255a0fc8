package main

import (
	"fmt"

	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/config"
	"github.com/spf13/viper"
)

func setupConfig(configDir string, deploymentMode int) {
	fmt.Print("> load config")
	// setup default
	config.SetupDefaultConfig()

	// setup config file
	config.SetupConfig(configDir)

	if filesDir != "" {
		viper.Set("storage.base_dir", filesDir)
	}
	if httpPort > 0 {
		viper.Set("port", httpPort)
	}

	if err := config.ReadConfig(deploymentMode); err != nil {
		panic(err)
	}

	if config.Configuration.Port <= 0 {
		panic("Please specify --port which is the port on which requests are accepted")
	}

	fmt.Print("		[OK]\n")
}
