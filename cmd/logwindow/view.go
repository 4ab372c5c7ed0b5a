package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/ava-labs/logwindow/pkg/buffer"
	"github.com/ava-labs/logwindow/pkg/clickhouse"
	"github.com/ava-labs/logwindow/pkg/data/clickhouse/jobevents"
	"github.com/ava-labs/logwindow/pkg/joblog"
	"github.com/ava-labs/logwindow/pkg/kafka"
	"github.com/ava-labs/logwindow/pkg/kafka/processor"
	"github.com/ava-labs/logwindow/pkg/metrics"
	"github.com/ava-labs/logwindow/pkg/slidingwindow"
	"github.com/ava-labs/logwindow/pkg/utils"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
)

// source is a window source plus what the viewer needs to run it.
type source struct {
	slidingwindow.Source
	// grown fires when the log gains records; nil when the log is static.
	grown <-chan struct{}
	// after runs once the Manager has reset the source cache.
	after func(ctx context.Context) error
	// run keeps the source up to date; nil when nothing needs to run.
	run    func(ctx context.Context) error
	health metrics.HealthCheck
	close  func()
}

func view(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}
	if err := cfg.validateView(); err != nil {
		return err
	}

	sugar, err := utils.NewSugaredLogger(cfg.Verbose, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"verbose", cfg.Verbose,
		"source", cfg.Source,
		"jobID", cfg.JobID,
		"file", cfg.File,
		"follow", cfg.Follow,
		"eventLimit", cfg.Window.EventLimit,
		"pageSize", cfg.Window.PageSize,
		"maxPending", cfg.Window.MaxPending,
		"metricsHost", cfg.MetricsHost,
		"metricsPort", cfg.MetricsPort,
		"clickhouseDatabase", cfg.ClickHouse.Database,
		"clickhouseEventsTable", cfg.ClickHouse.EventsTable,
		"kafkaTopic", cfg.KafkaFollower.Topic,
	)

	registry := prometheus.NewRegistry()
	m, err := metrics.NewWithLabels(registry, metrics.Labels{
		JobID:         cfg.JobID,
		Environment:   cfg.Environment,
		Region:        cfg.Region,
		CloudProvider: cfg.CloudProvider,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	src, err := openSource(cfg, sugar, m)
	if err != nil {
		return err
	}
	defer src.close()

	buf := buffer.New()
	mgr, err := slidingwindow.NewManager(sugar, src, buf, buf, cfg.Window, m)
	if err != nil {
		return fmt.Errorf("failed to create window manager: %w", err)
	}
	if src.after != nil {
		if err := src.after(ctx); err != nil {
			return err
		}
	}

	width, height := terminalSize()
	v := &viewer{
		log:   sugar,
		mgr:   mgr,
		buf:   buf,
		out:   os.Stdout,
		width: width,
		rows:  max(height-2, 1),
		clear: term.IsTerminal(int(os.Stdout.Fd())),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mgr.Run(gctx)
	})
	if src.run != nil {
		g.Go(func() error {
			return src.run(gctx)
		})
	}
	if cfg.MetricsPort > 0 {
		server := metrics.NewServer(cfg.MetricsAddr(), registry, src.health)
		sugar.Infof("metrics server listening on http://%s/metrics", cfg.MetricsAddr())
		g.Go(func() error {
			return server.Run(gctx)
		})
	}
	g.Go(func() error {
		// Quitting the viewer stops everything else.
		defer cancel()
		return interact(gctx, v, cfg.Follow, src.grown, readLines(os.Stdin))
	})

	go slidingwindow.StartLagWatchdog(gctx, sugar, mgr, cfg.LagWatchdogInterval, cfg.LagWatchdogMaxLag)

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		sugar.Infow("exiting due to context cancellation")
		err = nil
	} else if err != nil {
		sugar.Errorw("view failed", "error", err)
	}
	sugar.Info("shutdown complete")
	return err
}

// interact loads the initial page and then applies commands and log growth
// until the input ends, the user quits or ctx is done.
func interact(ctx context.Context, v *viewer, follow bool, grown <-chan struct{}, input <-chan string) error {
	initial := command{op: opStart}
	if follow {
		initial = command{op: opEnd}
	}
	if _, err := v.exec(ctx, initial); err != nil {
		return err
	}
	if err := v.draw(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-grown:
			if err := v.grown(ctx); err != nil {
				return err
			}
		case line, ok := <-input:
			if !ok {
				return nil
			}
			cmd, err := parseCommand(line)
			if err != nil {
				v.message = err.Error()
				break
			}
			quit, err := v.exec(ctx, cmd)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
		if err := v.draw(); err != nil {
			return fmt.Errorf("failed to draw: %w", err)
		}
	}
}

// readLines forwards input lines until EOF. The goroutine outlives the
// viewer when input never ends.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func terminalSize() (int, int) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth, defaultHeight
	}
	width, height, err := term.GetSize(fd)
	if err != nil || width <= 0 || height <= 0 {
		return defaultWidth, defaultHeight
	}
	return width, height
}

func openSource(cfg *Config, log *zap.SugaredLogger, m *metrics.Metrics) (*source, error) {
	switch cfg.Source {
	case sourceClickHouse:
		return openClickHouse(cfg, log)
	case sourceKafka:
		return openKafka(cfg, log, m)
	default:
		return openFile(cfg, log, m)
	}
}

func openFile(cfg *Config, log *zap.SugaredLogger, m *metrics.Metrics) (*source, error) {
	l, err := joblog.New(cfg.Window.PageSize)
	if err != nil {
		return nil, err
	}

	if cfg.Follow {
		// The follower reads the existing content itself.
		follower, err := joblog.NewFileFollower(log, cfg.File, l, m)
		if err != nil {
			return nil, err
		}
		return &source{Source: l, grown: l.Notify(), run: follower.Run, close: func() {}}, nil
	}

	n, err := joblog.LoadFile(cfg.File, l)
	if err != nil {
		return nil, err
	}
	log.Infow("loaded job output", "file", cfg.File, "records", n)
	return &source{Source: l, close: func() {}}, nil
}

func openClickHouse(cfg *Config, log *zap.SugaredLogger) (*source, error) {
	client, err := clickhouse.New(cfg.ClickHouse, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create ClickHouse client: %w", err)
	}
	repo, err := jobevents.NewRepository(client, log, cfg.ClickHouse.EventsTable, cfg.JobID, cfg.Window.PageSize)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create job events repository: %w", err)
	}

	src := &source{
		Source: repo,
		after: func(ctx context.Context) error {
			maxCounter, err := repo.Refresh(ctx)
			if err != nil {
				return err
			}
			log.Infow("job events", "jobID", cfg.JobID, "maxCounter", maxCounter)
			return nil
		},
		health: func() error {
			return client.Ping(context.Background())
		},
		close: func() {
			if err := client.Close(); err != nil {
				log.Warnw("failed to close ClickHouse client", "error", err)
			}
		},
	}
	if cfg.Follow {
		grown := make(chan struct{}, 1)
		src.grown = grown
		src.run = func(ctx context.Context) error {
			repo.Poll(ctx, cfg.PollInterval, func(int64) {
				select {
				case grown <- struct{}{}:
				default:
				}
			})
			return nil
		}
	}
	return src, nil
}

func openKafka(cfg *Config, log *zap.SugaredLogger, m *metrics.Metrics) (*source, error) {
	l, err := joblog.New(cfg.Window.PageSize)
	if err != nil {
		return nil, err
	}
	p, err := processor.NewJobLog(log, cfg.JobID, l, m)
	if err != nil {
		return nil, err
	}
	follower, err := kafka.NewFollower(log, cfg.KafkaFollower, p, m)
	if err != nil {
		return nil, err
	}
	return &source{
		Source: l,
		grown:  l.Notify(),
		run:    follower.Run,
		close:  func() {},
	}, nil
}
