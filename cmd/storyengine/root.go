package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eringen/storyengine"
	"github.com/eringen/storyengine/logger"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug switches the logger to debug level.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "storyengine",
		Short: "Bundle web stories for publishing",
		Long: `storyengine turns a story submission (metadata, a source image and raw
story HTML) into a publishable AMP web story plus its metadata manifest.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default $CONFIG_PATH, else built-in defaults)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the storyengine version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "storyengine %s\n", version)
		},
	})
	rootCmd.AddCommand(submitCommand())
	rootCmd.AddCommand(draftCommand())
	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(initCommand())
}

// loadConfig reads the --config file, or CONFIG_PATH when the flag is unset.
func loadConfig() (storyengine.Config, error) {
	path := cfgFile
	if path == "" {
		path = storyengine.GetConfigPath("")
	}
	cfg, err := storyengine.LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	if debug {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}
	return cfg, nil
}

// newApp builds an App from the loaded configuration.
func newApp(opts ...storyengine.Option) (*storyengine.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return storyengine.New(cfg, append([]storyengine.Option{storyengine.WithLogger(log)}, opts...)...)
}
