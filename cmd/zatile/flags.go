package main

import (
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/zatile/internal/logger"
	"github.com/samcharles93/zatile/pkg/matmul"
)

var (
	blockSize int64
	workers   int64
	logLevel  string
	logFormat string
)

func commonKernelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "block-size",
			Usage:       "cache block edge for the tiled drivers (multiple of 16)",
			Value:       0,
			Destination: &blockSize,
		},
		&cli.Int64Flag{
			Name:        "workers",
			Aliases:     []string{"j"},
			Usage:       "worker goroutines for parallel drivers (0 = GOMAXPROCS)",
			Value:       0,
			Destination: &workers,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (text, json)",
			Value:       "text",
			Destination: &logFormat,
		},
	}
}

func newLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	if logFormat == "json" {
		return logger.JSON(os.Stderr, level)
	}
	return logger.Text(os.Stderr, level)
}

func kernelConfig() matmul.Config {
	cfg := matmul.DefaultConfig()
	if blockSize > 0 {
		cfg.BlockSize = int(blockSize)
	}
	return cfg
}
