package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/notelinker/internal"
	pkgconfig "github.com/starford/notelinker/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// options builds the application options. Commands that print results keep
// stdout for them and log to stderr.
func options(cmd *cli.Command, quiet bool) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	opts := []internal.Option{internal.WithConfig(cfg)}
	if quiet {
		opts = append(opts, internal.WithLogOutput(os.Stderr))
	}
	return opts, nil
}

func scanOptions(cmd *cli.Command) internal.ScanOptions {
	return internal.ScanOptions{
		JSON:   cmd.Bool("json"),
		Apply:  cmd.Bool("apply"),
		Review: cmd.Bool("review"),
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd, false)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func scan(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd, true)
	if err != nil {
		return err
	}
	return internal.Scan(ctx, scanOptions(cmd), opts...)
}

func link(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return fmt.Errorf("link: expected one note path, got %d arguments", cmd.NArg())
	}
	opts, err := options(cmd, true)
	if err != nil {
		return err
	}
	return internal.Link(ctx, cmd.Args().First(), scanOptions(cmd), opts...)
}

func invalid(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd, true)
	if err != nil {
		return err
	}
	return internal.Invalid(ctx, cmd.Bool("json"), opts...)
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd, true)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, opts...)
}

func main() {
	jsonFlag := &cli.BoolFlag{Name: "json", Usage: "Print results as JSON"}
	applyFlag := &cli.BoolFlag{Name: "apply", Usage: "Rewrite every found mention into a wikilink"}
	reviewFlag := &cli.BoolFlag{Name: "review", Aliases: []string{"r"}, Usage: "Accept or decline each mention interactively before writing"}

	cmd := &cli.Command{
		Name:   "notelinker",
		Usage:  "Find unlinked mentions of notes in a Markdown vault and turn them into wikilinks",
		Action: serve,
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
				Usage:  "Run the HTTP API, event stream and vault watcher",
				Action: serve,
			},
			{
				Name:   "scan",
				Usage:  "Find links across the whole vault",
				Flags:  []cli.Flag{jsonFlag, applyFlag, reviewFlag},
				Action: scan,
			},
			{
				Name:      "link",
				Usage:     "Find links in one note",
				ArgsUsage: "<path>",
				Flags:     []cli.Flag{jsonFlag, applyFlag, reviewFlag},
				Action:    link,
			},
			{
				Name:   "invalid",
				Usage:  "List notes that could not be parsed",
				Flags:  []cli.Flag{jsonFlag},
				Action: invalid,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
