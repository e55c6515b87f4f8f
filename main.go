package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cli.Command{
		Name:  "docsearch",
		Usage: "client for the document indexing and search service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "config file (json or yaml)",
				Sources: cli.EnvVars("DOCSEARCH_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "api",
				Usage: "service base URL, overrides api_base_url",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the local console API with background sync",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "listen address, overrides server_address",
					},
					&cli.StringFlag{
						Name:  "watch",
						Usage: "also upload files dropped into this directory",
					},
				},
				Action: serveAction,
			},
			{
				Name:      "upload",
				Usage:     "upload a file and wait for it to be indexed",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "sync",
						Usage: "ask the service to index inline",
					},
					&cli.BoolFlag{
						Name:  "no-wait",
						Usage: "return once the job is queued",
					},
				},
				Action: uploadAction,
			},
			{
				Name:      "search",
				Usage:     "search indexed documents",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "raw",
						Usage: "show raw extracted text",
					},
				},
				Action: searchAction,
			},
			{
				Name:      "download",
				Usage:     "download a source document",
				ArgsUsage: "<filename>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "target directory, overrides download_dir",
					},
				},
				Action: downloadAction,
			},
			{
				Name:   "notifications",
				Usage:  "show the notification feed, newest first",
				Action: notificationsAction,
			},
			{
				Name:   "status",
				Usage:  "show index size",
				Action: statusAction,
			},
			{
				Name:      "watch",
				Usage:     "upload files dropped into a directory",
				ArgsUsage: "[dir]",
				Action:    watchAction,
			},
		},
	}

	if err := root.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
