package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/deltacache/snapstats"
)

var statsCmd = &cobra.Command{
	Use:   "stats [FILE]",
	Short: "Compute stalled/seeding/stuck metrics from a snapshot history",
	Long: `Reads a list of snapshots ({state, progress, created_at}) from FILE, or
stdin when FILE is "-" or omitted, and prints the aggregate metrics as JSON.
Files ending in .yaml or .yml are read as YAML, everything else as JSON.

Example:
  deltacache stats history.yaml --now 2024-05-01T18:00:00Z`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		nowFlag, _ := cmd.Flags().GetString("now")
		now := time.Now()
		if nowFlag != "" {
			if now, err = time.Parse(time.RFC3339, nowFlag); err != nil {
				return fmt.Errorf("--now: %w", err)
			}
		}

		path := "-"
		if len(args) == 1 {
			path = args[0]
		}
		snaps, err := readSnapshots(path, cmd.InOrStdin())
		if err != nil {
			return err
		}

		m := cfg.Calculator().Compute(snaps, now)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	},
}

func init() {
	statsCmd.Flags().String("now", "", "evaluation instant (RFC3339); default is the current time")
	rootCmd.AddCommand(statsCmd)
}

func readSnapshots(path string, stdin io.Reader) ([]snapstats.Snapshot, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}

	var snaps []snapstats.Snapshot
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &snaps)
	default:
		err = json.Unmarshal(data, &snaps)
	}
	if err != nil {
		return nil, fmt.Errorf("decode snapshots %s: %w", path, err)
	}
	for i, s := range snaps {
		if s.CreatedAt.IsZero() {
			return nil, fmt.Errorf("snapshot %d: missing created_at", i)
		}
	}
	return snaps, nil
}
