package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/uniedit/mediagen/internal/infra/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "mediagen",
	Short:         "Asynchronous media generation service",
	Long:          "mediagen submits image, video and audio generations to AI vendors, tracks them until they finish and recovers stalled results.",
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file (default: ./config.yaml, ./configs/config.yaml)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
