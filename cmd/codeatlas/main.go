package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/codeatlas/internal/config"
	"github.com/standardbeagle/codeatlas/internal/debug"
	"github.com/standardbeagle/codeatlas/internal/orchestrator"
	"github.com/standardbeagle/codeatlas/internal/version"
	"github.com/standardbeagle/codeatlas/pkg/pathutil"
)

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		return nil, err
	}

	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
		cfg.Analysis.Incremental = false
	}
	if c.IsSet("concurrency") {
		cfg.Performance.MaxConcurrency = c.Int("concurrency")
	}
	if c.Bool("watch") {
		cfg.Analysis.WatchMode = true
	}
	return cfg, nil
}

func main() {
	app := &cli.App{
		Name:                   "codeatlas",
		Usage:                  "Structural code analysis: symbols, dependencies, patterns and metrics",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory to analyze",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Include files matching glob patterns (e.g., --include 'src/**/*.ts')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns (e.g., --exclude '**/vendor/**')",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "analyze",
				Usage: "Analyze a project and emit the result as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the JSON result to a file instead of stdout",
					},
					&cli.BoolFlag{
						Name:  "no-cache",
						Usage: "Disable the record cache and incremental reuse",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Maximum concurrent file analyses (0 = number of CPUs)",
					},
					&cli.BoolFlag{
						Name:    "watch",
						Aliases: []string{"w"},
						Usage:   "Keep running and re-analyze on file changes",
					},
				},
				Action: runAnalyze,
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				debug.Enable()
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "codeatlas: %v\n", err)
		os.Exit(1)
	}
}

func runAnalyze(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	o, err := orchestrator.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := o.Run(ctx)
	if err != nil {
		return err
	}
	if err := emit(c.String("output"), result); err != nil {
		return err
	}

	if !cfg.Analysis.WatchMode {
		return nil
	}

	w, err := o.NewWatcher(func(r *orchestrator.Result, runErr error) {
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "codeatlas: re-analysis failed: %v\n", runErr)
			return
		}
		if emitErr := emit(c.String("output"), r); emitErr != nil {
			fmt.Fprintf(os.Stderr, "codeatlas: %v\n", emitErr)
		}
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	return w.Stop()
}

// emit serializes the result with finding locations made root-relative.
// Internal structures keep absolute paths; conversion happens only here,
// at the output boundary.
func emit(output string, result *orchestrator.Result) error {
	if result.Deps != nil {
		result.Deps.Findings = pathutil.ToRelativeFindings(result.Deps.Findings, result.Root)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(output, data, 0o644)
}
