package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/paveg/ocpanel"
	"github.com/paveg/ocpanel/internal/config"
	"github.com/spf13/cobra"
)

// app holds what the subcommands share once flags are parsed
type app struct {
	stdout io.Writer
	stderr io.Writer

	configFile string
	envFile    string
	dataPath   string
	sheet      string

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "ocpanel",
		Short:         "Explore a firms × years panel of over-confidence indicators",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.loadConfig()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (.json, .yaml or .yml)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file read before OCPANEL_* variables")
	flags.StringVar(&a.dataPath, "data", "", "panel source file (overrides config)")
	flags.StringVar(&a.sheet, "sheet", "", "workbook sheet (overrides config)")

	root.AddCommand(
		newServeCmd(a),
		newFilterCmd(a),
		newAggregateCmd(a),
		newRankCmd(a),
		newExportCmd(a),
		newVersionCmd(a),
	)
	return root
}

// loadConfig layers the config file, the dotenv file, the environment and
// finally the command-line overrides
func (a *app) loadConfig() error {
	if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	cfg := config.NewConfig()
	if a.configFile != "" {
		loaded, err := config.LoadFromFile(a.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg = config.ApplyEnv(cfg)

	if a.dataPath != "" {
		cfg.DataPath = a.dataPath
	}
	if a.sheet != "" {
		cfg.Sheet = a.sheet
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = cfg.NewLogger(a.stderr)
	return nil
}

func (a *app) open(ctx context.Context) (*ocpanel.Explorer, error) {
	return ocpanel.Open(ctx, a.cfg, ocpanel.WithLogger(a.logger))
}
