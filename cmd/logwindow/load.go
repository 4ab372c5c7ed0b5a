package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/logwindow/pkg/clickhouse"
	"github.com/ava-labs/logwindow/pkg/data/clickhouse/jobevents"
	"github.com/ava-labs/logwindow/pkg/slidingwindow"
	"github.com/ava-labs/logwindow/pkg/utils"
)

// load inserts a job output file into the events table. Rows are keyed by
// job and counter, so loading the same file twice converges to one copy.
func load(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}
	if cfg.JobID == "" || cfg.File == "" {
		return errors.New("--job-id and --file are required")
	}
	if cfg.BatchSize <= 0 {
		return errors.New("--batch-size must be greater than 0")
	}

	sugar, err := utils.NewSugaredLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"jobID", cfg.JobID,
		"file", cfg.File,
		"batchSize", cfg.BatchSize,
		"clickhouseHosts", cfg.ClickHouse.Hosts,
		"clickhouseDatabase", cfg.ClickHouse.Database,
		"clickhouseEventsTable", cfg.ClickHouse.EventsTable,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records, err := readRecords(cfg.File)
	if err != nil {
		return err
	}

	chClient, err := clickhouse.New(cfg.ClickHouse, sugar)
	if err != nil {
		return fmt.Errorf("failed to create ClickHouse client: %w", err)
	}
	defer chClient.Close()

	repo, err := jobevents.NewRepository(chClient, sugar, cfg.ClickHouse.EventsTable, cfg.JobID, cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to create job events repository: %w", err)
	}
	if err := repo.Initialize(ctx); err != nil {
		return err
	}

	start := time.Now()
	inserted, err := insertBatches(ctx, repo, records, cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("inserted %d of %d records: %w", inserted, len(records), err)
	}
	sugar.Infow("load complete", "records", inserted, "duration", time.Since(start))
	return nil
}

type inserter interface {
	Insert(ctx context.Context, records []slidingwindow.Record) error
}

func insertBatches(ctx context.Context, repo inserter, records []slidingwindow.Record, size int) (int, error) {
	inserted := 0
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		if err := repo.Insert(ctx, records[start:end]); err != nil {
			return inserted, err
		}
		inserted = end
	}
	return inserted, nil
}
