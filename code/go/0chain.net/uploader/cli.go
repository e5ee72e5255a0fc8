package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/0chain/assembler/code/go/0chain.net/assemblercore/client"
	"github.com/urfave/cli/v2"
)

var uploadCmd = &cli.Command{
	Name:  "upload",
	Usage: "Split a file into chunks and upload them concurrently",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "file",
			Required: true,
			Usage:    "Path of the file to upload",
		},
		&cli.StringFlag{
			Name:  "file-id",
			Usage: "File id to upload under; a random uuid when empty",
		},
		&cli.StringFlag{
			Name:  "file-name",
			Usage: "Name of the merged file; the base name of --file when empty",
		},
		&cli.Int64Flag{
			Name:  "chunk-size",
			Value: client.DefaultChunkSize,
			Usage: "Bytes per chunk",
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Value: client.DefaultConcurrency,
			Usage: "Chunks in flight",
		},
		&cli.IntFlag{
			Name:  "retries",
			Value: client.DefaultRetryMax,
			Usage: "Retries per chunk on server errors",
		},
	},
	Action: func(ctx *cli.Context) error {
		c := client.New(ctx.String("server"), client.WithRetryMax(ctx.Int("retries")))

		res, err := c.UploadFile(ctx.Context, ctx.String("file"), client.Options{
			ChunkSize:   ctx.Int64("chunk-size"),
			Concurrency: ctx.Int("concurrency"),
			FileID:      ctx.String("file-id"),
			FileName:    ctx.String("file-name"),
		})
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var statusCmd = &cli.Command{
	Name:  "status",
	Usage: "Show the state of a file id",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "file-id",
			Required: true,
			Usage:    "File id to look up",
		},
	},
	Action: func(ctx *cli.Context) error {
		c := client.New(ctx.String("server"))

		st, err := c.FileStatus(ctx.Context, ctx.String("file-id"))
		if err != nil {
			return err
		}
		return printJSON(st)
	},
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
