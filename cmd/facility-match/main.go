// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the facility-match CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/facility-match/internal/logging"
	"github.com/pdiddy/facility-match/internal/secrets"
	"github.com/pdiddy/facility-match/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Resolved at startup by the root command's PersistentPreRunE.
var (
	cfg           types.Config
	loadedSecrets secrets.Secrets
	logger        = zerolog.Nop()
)

// rootCmd is the base command for the facility-match CLI.
var rootCmd = &cobra.Command{
	Use:   "facility-match",
	Short: "Reconcile health facility names between two registries",
	Long: `facility-match reconciles a master facility list (MFL) against a candidate
list exported from DHIS2. Each master facility is paired with its exact or
closest candidate by Jaro-Winkler similarity, and every candidate left over
is reported so nothing is silently dropped.

Lists can be CSV, TSV, XLSX, JSON, YAML, SQLite files, HTTP(S) URLs, or
MySQL/SQL Server tables. Results are written as CSV, XLSX, JSON, or YAML.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		logger = logging.New(c.Log, os.Stderr)

		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug().Strs("keys", keys).Msg("loaded secrets")
		}
		c.HTTP.Token = s.Get(secrets.SourceToken, c.HTTP.Token)

		cfg = c
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./facility-match.yaml or ~/.config/facility-match/config.yaml)")
	pf.String("secrets-dir", ".secrets", "directory of secret files (master-dsn, candidate-dsn, source-token)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: auto, console, json")
	bindRootFlags()
}

// bindRootFlags ties the persistent flags to their config keys.
func bindRootFlags() {
	bindFlag(rootCmd, "log.level", "log-level")
	bindFlag(rootCmd, "log.format", "log-format")
}

func initConfig() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("facility-match")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "facility-match"))
		}
	}

	setDefaults(types.DefaultConfig())
	bindEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so environment variables can
// override keys that no config file mentions.
func setDefaults(d types.Config) {
	viper.SetDefault("match.threshold", d.Match.Threshold)
	viper.SetDefault("match.master_prefix", d.Match.MasterPrefix)
	viper.SetDefault("match.candidate_prefix", d.Match.CandidatePrefix)
	viper.SetDefault("match.dedupe_master", d.Match.DedupeMaster)

	viper.SetDefault("http.timeout", d.HTTP.Timeout)
	viper.SetDefault("http.user_agent", d.HTTP.UserAgent)
	viper.SetDefault("http.max_retries", d.HTTP.MaxRetries)
	viper.SetDefault("http.token", d.HTTP.Token)

	viper.SetDefault("output.format", d.Output.Format)
	viper.SetDefault("output.sheet", d.Output.Sheet)
	viper.SetDefault("output.preview_rows", d.Output.PreviewRows)

	viper.SetDefault("server.addr", d.Server.Addr)
	viper.SetDefault("server.max_upload_bytes", d.Server.MaxUploadBytes)
	viper.SetDefault("server.mode", d.Server.Mode)

	viper.SetDefault("log.level", d.Log.Level)
	viper.SetDefault("log.format", d.Log.Format)
}

// bindEnv maps FACILITY_MATCH_<SECTION>_<KEY> variables onto config keys,
// e.g. FACILITY_MATCH_MATCH_THRESHOLD for match.threshold.
func bindEnv() {
	viper.SetEnvPrefix("FACILITY_MATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadConfig decodes viper's merged settings over the built-in defaults.
func loadConfig() (types.Config, error) {
	c := types.DefaultConfig()
	if err := viper.Unmarshal(&c); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if c.Match.Threshold < 0 || c.Match.Threshold > 100 {
		return types.Config{}, fmt.Errorf("match.threshold %v outside [0, 100]", c.Match.Threshold)
	}
	return c, nil
}

// bindFlag ties a flag of cmd to a viper key. A flag left unset does not
// override the config file or environment.
func bindFlag(cmd *cobra.Command, key, name string) {
	f := cmd.Flags().Lookup(name)
	if f == nil {
		f = cmd.PersistentFlags().Lookup(name)
	}
	if err := viper.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
