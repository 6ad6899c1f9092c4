// jarvis is a personal voice-assistant shell: it classifies what you say,
// runs commands, and answers everything else in the chosen personality.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vthunder/jarvis/internal/config"
	"github.com/vthunder/jarvis/internal/logging"
)

var version = "dev"

// globals shared by subcommands, set in PersistentPreRunE
var cfg *config.Config

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jarvis",
		Short:         "Jarvis - conversational assistant with commands, tasks and reminders",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			config.LoadEnvFile(envPaths()...)
			if err := applyFlagOverrides(cmd); err != nil {
				return err
			}
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded

			logFile := ""
			if err := os.MkdirAll(cfg.StatePath, 0755); err == nil {
				logFile = cfg.Path("jarvis.log")
			}
			return logging.Init(logging.Config{Level: cfg.LogLevel, Console: true, File: logFile})
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			logging.Close()
		},
	}

	flags := root.PersistentFlags()
	flags.String("state", "", "state directory (overrides JARVIS_STATE_PATH)")
	flags.String("log-level", "", "debug, info, warn or error (overrides JARVIS_LOG_LEVEL)")
	flags.Float64("threshold", 0, "command confidence threshold in [0,1] (overrides "+config.ThresholdEnv+")")

	root.AddCommand(
		newChatCmd(),
		newSayCmd(),
		newTasksCmd(),
		newMoodCmd(),
		newPersonalityCmd(),
		newStatsCmd(),
		newMCPCmd(),
		newDiscordCmd(),
	)
	return root
}

// envPaths lists .env candidates: the repo root above bin/, the executable's
// directory, then the working directory
func envPaths() []string {
	paths := []string{".env"}
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append([]string{
			filepath.Join(filepath.Dir(exeDir), ".env"),
			filepath.Join(exeDir, ".env"),
		}, paths...)
	}
	return paths
}

// applyFlagOverrides copies explicitly set flags into the environment so
// config.Load sees them
func applyFlagOverrides(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("state") {
		v, _ := flags.GetString("state")
		if err := os.Setenv("JARVIS_STATE_PATH", v); err != nil {
			return err
		}
	}
	if flags.Changed("log-level") {
		v, _ := flags.GetString("log-level")
		if err := os.Setenv("JARVIS_LOG_LEVEL", v); err != nil {
			return err
		}
	}
	if flags.Changed("threshold") {
		v, _ := flags.GetFloat64("threshold")
		if err := os.Setenv(config.ThresholdEnv, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
			return err
		}
	}
	return nil
}
