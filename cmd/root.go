// Package cmd implements the studymesh command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/studymesh"
	"github.com/hupe1980/studymesh/config"
	"github.com/hupe1980/studymesh/runner"
)

// Version is set at build time.
var Version = "dev"

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

type globalFlags struct {
	configPath string
	provider   string
	database   string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "studymesh",
		Short:         "Multi-agent study and productivity planner",
		Long:          "studymesh runs a roster of planner agents (task planning, research, progress analysis, content creation, deadline parsing) behind an orchestrator, from the terminal or over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to a YAML config file (default ./studymesh.yaml)")
	pf.StringVar(&flags.provider, "provider", "", "model provider override: gemini, openai, anthropic or mock")
	pf.StringVar(&flags.database, "db", "", "SQLite planner database path override")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level override: debug, info, warn or error")

	rootCmd.AddCommand(
		newVersionCmd(),
		newAgentsCmd(flags),
		newRunCmd(flags),
		newServeCmd(flags),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), Version)
			return err
		},
	}
}

// loadConfig reads the configuration and applies flag overrides.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.provider != "" {
		cfg.Model.Provider = f.provider
	}
	if f.database != "" {
		cfg.Database.Path = f.database
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// wireApp builds the planner from configuration. profile, when set, seeds
// every session's state before a run.
func (f *globalFlags) wireApp(ctx context.Context, profile map[string]any) (*studymesh.App, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	return studymesh.NewFromConfig(ctx, cfg, func(o *studymesh.AppOptions) {
		if len(profile) == 0 {
			return
		}
		o.Mesh = append(o.Mesh, func(m *studymesh.Options) {
			m.Profile = staticProfile(profile)
		})
	})
}

func staticProfile(profile map[string]any) runner.ProfileFunc {
	return func(context.Context, string) (map[string]any, error) {
		out := make(map[string]any, len(profile))
		for k, v := range profile {
			out[k] = v
		}
		return out, nil
	}
}
