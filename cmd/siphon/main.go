package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/siphon/internal"
	pkgconfig "github.com/starford/siphon/pkg/config"
)

// loadConfig reads the config file, falling back to defaults when it does
// not exist, and applies command-line overrides.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if v := cmd.String("source"); v != "" {
		cfg.Source.Path = v
	}
	if v := cmd.String("target"); v != "" {
		cfg.Target.Path = v
	}
	if cmd.Bool("dry-run") {
		cfg.Target.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func build(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	report, err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return fmt.Errorf("build error: %w", err)
	}
	if len(report.Outputs) == 0 {
		fmt.Fprintln(cmd.Root().Writer, "No collections found.")
		return nil
	}
	fmt.Fprintln(cmd.Root().Writer, reportTable(report))
	return nil
}

func listCollections(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	idx, err := internal.Collections(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return fmt.Errorf("collections error: %w", err)
	}
	if idx.Len() == 0 {
		fmt.Fprintln(cmd.Root().Writer, "No collections recorded. Run a build first.")
		return nil
	}
	fmt.Fprintln(cmd.Root().Writer, collectionsTable(idx))
	return nil
}

func watch(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Watch(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("watch error: %w", err)
	}
	return nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Serve(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.ServeMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp error: %w", err)
	}
	return nil
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:   "siphon",
		Usage:  "Collect published poems into their collection documents",
		Action: build,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("SIPHON_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "Poem directory, overrides source.path",
			},
			&cli.StringFlag{
				Name:  "target",
				Usage: "Collection directory, overrides target.path",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Log collection documents instead of writing them",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Rebuild collection documents once",
				Action: build,
			},
			{
				Name:   "collections",
				Usage:  "Show the collections recorded by the latest build",
				Action: listCollections,
			},
			{
				Name:   "watch",
				Usage:  "Rebuild whenever a poem changes",
				Action: watch,
			},
			{
				Name:   "serve",
				Usage:  "Run the preview HTTP server with a watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
