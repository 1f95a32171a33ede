package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ansuz/internal"
	pkgconfig "github.com/starford/ansuz/pkg/config"
	"github.com/starford/ansuz/pkg/exitcode"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, exitcode.Wrap(exitcode.ConfigError, fmt.Errorf("load config: %w", err))
	}

	if root := cmd.String("root"); root != "" {
		cfg.Corpus.Root = root
	}
	if format := cmd.String("format"); format != "" {
		cfg.App.Format = format
	}
	if err := cfg.Validate(); err != nil {
		return nil, exitcode.Wrap(exitcode.ConfigError, fmt.Errorf("invalid config: %w", err))
	}
	return cfg, nil
}

func baseOptions(cmd *cli.Command, cfg *internal.Config) []internal.Option {
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVerbose(cmd.Bool("verbose")),
		internal.WithVersion(version),
	}
}

func maintain(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := append(baseOptions(cmd, cfg),
		internal.WithFix(cmd.Bool("fix")),
		internal.WithFailOnFindings(cmd.Bool("fail-on-findings")),
		internal.WithExportPath(cmd.String("export-index")),
	)
	return internal.RunMaintain(ctx, opts...)
}

func drift(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := append(baseOptions(cmd, cfg),
		internal.WithFix(cmd.Bool("fix")),
		internal.WithFailOnFindings(cmd.Bool("fail-on-findings")),
	)
	return internal.RunDrift(ctx, opts...)
}

func watchCorpus(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := append(baseOptions(cmd, cfg), internal.WithFix(cmd.Bool("fix")))
	return internal.RunWatch(ctx, opts...)
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, baseOptions(cmd, cfg)...)
}

func fixFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "fix",
		Usage: "Apply repairs instead of only reporting them",
	}
}

func failFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "fail-on-findings",
		Usage: "Exit with code 3 when anything was found",
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "ansuz",
		Usage:   "Keep a Markdown documentation corpus consistent: duplicate names, tables of contents, front matter",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (optional)",
				Value:   "ansuz.yaml",
				Sources: cli.EnvVars("ANSUZ_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Corpus root directory (overrides corpus.root)",
				Sources: cli.EnvVars("ANSUZ_ROOT"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Report format: text or json (overrides app.format)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "drift",
				Usage:  "Report duplicate file names, then run maintenance",
				Flags:  []cli.Flag{fixFlag(), failFlag()},
				Action: drift,
			},
			{
				Name:  "maintain",
				Usage: "Refresh tables of contents and validate front matter",
				Flags: []cli.Flag{
					fixFlag(),
					failFlag(),
					&cli.StringFlag{
						Name:  "export-index",
						Usage: "Write the metadata index to PATH (.json for JSON, otherwise SQLite)",
					},
				},
				Action: maintain,
			},
			{
				Name:   "watch",
				Usage:  "Re-run maintenance whenever documents change",
				Flags:  []cli.Flag{fixFlag()},
				Action: watchCorpus,
			},
			{
				Name:   "mcp",
				Usage:  "Run a dry maintenance pass and serve its results as MCP tools on stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(exitcode.From(err))
	}
}
