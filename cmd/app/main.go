package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/jera/internal"
	pkgconfig "github.com/starford/jera/pkg/config"
)

type runFunc func(ctx context.Context, opts ...internal.Option) error

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Warn("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

// optionsFunc derives extra options from flags. closeFn, when non-nil, runs
// after the command and its error is reported.
type optionsFunc func(cmd *cli.Command) (opts []internal.Option, closeFn func() error, err error)

func action(run runFunc, extra ...optionsFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) (err error) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts := []internal.Option{internal.WithConfig(cfg)}
		for _, fn := range extra {
			var (
				more    []internal.Option
				closeFn func() error
			)
			more, closeFn, err = fn(cmd)
			if err != nil {
				return err
			}
			if closeFn != nil {
				defer func() {
					if cerr := closeFn(); cerr != nil && err == nil {
						err = cerr
					}
				}()
			}
			opts = append(opts, more...)
		}
		if err := run(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

// exportOutput opens --out, or keeps stdout when it is empty or "-".
func exportOutput(cmd *cli.Command) ([]internal.Option, func() error, error) {
	path := cmd.String("out")
	if path == "" || path == "-" {
		return nil, nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open output: %w", err)
	}
	closeFn := func() error {
		if err := f.Close(); err != nil {
			return fmt.Errorf("close output %s: %w", path, err)
		}
		return nil
	}
	return []internal.Option{internal.WithOutput(f)}, closeFn, nil
}

func main() {
	cmd := &cli.Command{
		Name:   "jera",
		Usage:  "Month calendar of dated entries with reminders, served over HTTP, SSE and MCP",
		Action: action(internal.Run),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, SSE stream, store watcher and day rollover",
				Action: action(internal.Run),
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: action(internal.RunMCP),
			},
			{
				Name:  "export",
				Usage: "Write all entries as an iCalendar feed",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file (default stdout)",
					},
				},
				Action: action(internal.Export, exportOutput),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
