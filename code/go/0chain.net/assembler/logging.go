package main

import (
	"fmt"

	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/config"
	"github.com/0chain/assembler/code/go/0chain.net/core/logging"
)

const logFile = "0chainAssembler.log"

func setupLogging() {
	fmt.Print("> init logging")

	if config.Development() {
		logging.InitLogging("development", logDir, logFile)
	} else {
		logging.InitLogging("production", logDir, logFile)
	}

	fmt.Print("		[OK]\n")
}
