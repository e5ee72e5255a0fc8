package main

import (
	"fmt"
	"os"

	"github.com/0chain/assembler/code/go/0chain.net/core/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "uploader",
		Usage: "Upload files to the chunk assembler",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Value:   "http://localhost:5000",
				Usage:   "Base url of the assembler",
				EnvVars: []string{"ASSEMBLER_URL"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log requests and retries to stderr",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				l, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				logging.Logger = l
			}
			return nil
		},
		Commands: []*cli.Command{
			uploadCmd,
			statusCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
