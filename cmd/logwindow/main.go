package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// Variables already set in the environment win over the file.
	if err := loadEnvFile(os.Getenv("LOGWINDOW_ENV_FILE")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := &cli.App{
		Name:  "logwindow",
		Usage: "Page through job output with a bounded sliding window",
		Commands: []*cli.Command{
			{
				Name:      "view",
				Usage:     "View job output interactively",
				UsageText: "logwindow view [--source file|clickhouse|kafka] [--follow] ...\n\nCommands read from stdin: n/p page forward/back, j N/k N advance/retreat N,\ng/G start/end, h N/t N shift head/tail, r reset, q quit",
				Flags:     viewFlags(),
				Action:    view,
			},
			{
				Name:   "publish",
				Usage:  "Publish a job output file to Kafka as job events",
				Flags:  publishFlags(),
				Action: publish,
			},
			{
				Name:   "load",
				Usage:  "Insert a job output file into ClickHouse",
				Flags:  loadFlags(),
				Action: load,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadEnvFile loads path, or .env when path is empty. A missing default file is not an error.
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}
