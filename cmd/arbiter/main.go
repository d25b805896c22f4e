package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v3"

	"github.com/arbiter-oj/arbiter/api"
	"github.com/arbiter-oj/arbiter/internal/environment"
	"github.com/arbiter-oj/arbiter/internal/filestore"
	"github.com/arbiter-oj/arbiter/internal/langs"
	"github.com/arbiter-oj/arbiter/internal/pipeline"
	"github.com/arbiter-oj/arbiter/internal/report"
	"github.com/arbiter-oj/arbiter/internal/report/termrep"
	"github.com/arbiter-oj/arbiter/internal/scenario"
	"github.com/arbiter-oj/arbiter/internal/scheduler"
	"github.com/arbiter-oj/arbiter/internal/store"
	"github.com/arbiter-oj/arbiter/internal/store/fsstore"
	"github.com/arbiter-oj/arbiter/internal/store/memstore"
)

func main() {
	app := &cli.Command{
		Name:  "arbiter",
		Usage: "sandboxed code execution and grading worker",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "debug logging"},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "judge scenario files locally and report to the terminal",
				ArgsUsage: "scenario.toml [...]",
				Action:    runAction,
			},
			{
				Name:   "serve",
				Usage:  "consume submissions from the queue until interrupted",
				Action: serveAction,
			},
		},
	}
	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("arbiter failed", "error", err)
		os.Exit(1)
	}
}

func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	logger := setupLogger(cmd.Bool("verbose"))
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("no scenario files given")
	}

	env := environment.ReadEnvConfig()
	registry, err := loadRegistry(env)
	if err != nil {
		return err
	}

	pipe := pipeline.New(pipeline.Config{
		WorkRoot: env.WorkDir,
		Registry: registry,
		Logger:   logger,
	})
	results := memstore.New()

	failed := 0
	for _, path := range cmd.Args().Slice() {
		cases, err := scenario.Parse(path)
		if err != nil {
			return err
		}
		for _, c := range cases {
			res := pipe.Run(ctx, c.Submission, termrep.New(c.Submission.ID))
			if err := results.Save(ctx, res); err != nil {
				return err
			}
			for _, problem := range scenario.Check(c, res) {
				logger.Error("scenario mismatch", "scenario", c.Name, "problem", problem)
				failed++
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d scenario expectation(s) failed", failed)
	}
	return nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	logger := setupLogger(cmd.Bool("verbose"))
	env := environment.ReadEnvConfig()

	registry, err := loadRegistry(env)
	if err != nil {
		return err
	}

	files := filestore.New(env.FileDir, env.TmpDir)
	go files.Start()

	pipe := pipeline.New(pipeline.Config{
		WorkRoot: env.WorkDir,
		Registry: registry,
		Files:    files,
		Logger:   logger,
	})

	fs, err := fsstore.New(env.ResultDir)
	if err != nil {
		return err
	}
	results := &store.Retrying{Inner: fs, Logger: logger}

	reporters, err := buildReporters(ctx, env, logger)
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Config{
		Workers:      env.Workers,
		QueueDepth:   env.QueueDepth,
		PerUserLimit: env.PerUserLimit,
		Logger:       logger,
	}, pipe, results, reporters)

	intakeCtx, stopIntake := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopIntake()

	if env.SubmSqsURL != "" {
		if err := serveSqs(intakeCtx, env, sched, logger); err != nil {
			logger.Error("queue intake stopped", "error", err)
		}
	} else {
		logger.Info("no submission queue configured, judging nothing until interrupted")
		<-intakeCtx.Done()
	}

	logger.Info("draining", "in_flight", sched.InFlight())
	drainCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	return sched.Close(drainCtx)
}

func loadRegistry(env *environment.EnvConfig) (*langs.Registry, error) {
	if env.Toolchains == "" {
		return langs.NewRegistry(), nil
	}
	return langs.LoadRegistry(env.Toolchains)
}

func buildReporters(ctx context.Context, env *environment.EnvConfig, logger *slog.Logger) (scheduler.ReporterFunc, error) {
	backends, err := connectBackends(ctx, env, logger)
	if err != nil {
		return nil, err
	}
	return func(subm api.Submission) report.Reporter {
		reps := make([]report.Reporter, 0, len(backends))
		for _, b := range backends {
			reps = append(reps, b(subm))
		}
		if len(reps) == 0 {
			return report.Discard()
		}
		return report.Multi(reps)
	}, nil
}
