package main

import (
	"github.com/spf13/cobra"

	"github.com/IvanBrykalov/deltacache/internal/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "deltacache",
	Short: "Delta-synchronization cache for polled download lists",
	Long: `deltacache keeps the last polled list per credential and resource type,
answers each poll with only the changed items and removed ids, and derives
duration metrics from recorded state histories.

Configuration is read from --config (yaml, toml or json) and DELTACACHE_*
environment variables, e.g. DELTACACHE_CACHE_TTL=1800s.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (optional)")
}

func loadConfig() (config.Config, error) { return config.Load(configFile) }
