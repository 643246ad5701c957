package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"imaged/internal/config"
)

// loadConfig resolves defaults, the --config file and the environment, then
// applies any serve flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return config.Config{}, err
		}
	}
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Resolve(path)
	if err != nil {
		return cfg, err
	}
	if err := applyFlags(cmd.Flags(), &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// applyFlags copies changed flags over cfg. Unknown flag names are ignored
// so the same helper serves commands with a subset of the flags.
func applyFlags(fs *pflag.FlagSet, cfg *config.Config) error {
	var firstErr error
	fs.Visit(func(f *pflag.Flag) {
		if firstErr != nil {
			return
		}
		var err error
		switch f.Name {
		case "addr":
			cfg.Addr, err = fs.GetString(f.Name)
		case "worker-url":
			cfg.WorkerURL, err = fs.GetString(f.Name)
		case "worker-api-key":
			cfg.WorkerAPIKey, err = fs.GetString(f.Name)
		case "presets-dir":
			cfg.PresetsDir, err = fs.GetString(f.Name)
		case "max-inflight":
			cfg.MaxInflight, err = fs.GetInt(f.Name)
		case "max-queue-depth":
			cfg.MaxQueueDepth, err = fs.GetInt(f.Name)
		case "sync-timeout-seconds":
			cfg.SyncTimeoutSeconds, err = fs.GetInt(f.Name)
		case "stream-drop-policy":
			cfg.StreamDropPolicy, err = fs.GetString(f.Name)
		case "job-store":
			cfg.JobStore, err = fs.GetString(f.Name)
		case "redis-url":
			cfg.RedisURL, err = fs.GetString(f.Name)
		case "log-level":
			cfg.LogLevel, err = fs.GetString(f.Name)
		case "cors-enabled":
			cfg.CORSEnabled, err = fs.GetBool(f.Name)
		case "cors-origins":
			var v string
			v, err = fs.GetString(f.Name)
			cfg.CORSOrigins = splitCSV(v)
		case "otlp-endpoint":
			cfg.OTLPEndpoint, err = fs.GetString(f.Name)
		}
		if err != nil {
			firstErr = fmt.Errorf("flag --%s: %w", f.Name, err)
		}
	})
	return firstErr
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
