// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// MatchConfig holds settings for the reconciliation engine.
type MatchConfig struct {
	// Threshold is the minimum fuzzy score (0-100) accepted as a match (default 80).
	Threshold float64 `json:"threshold" yaml:"threshold" mapstructure:"threshold"`

	// MasterPrefix namespaces master columns in the result (default "MFL_").
	MasterPrefix string `json:"master_prefix" yaml:"master_prefix" mapstructure:"master_prefix"`

	// CandidatePrefix namespaces candidate columns in the result (default "DHIS2_").
	CandidatePrefix string `json:"candidate_prefix" yaml:"candidate_prefix" mapstructure:"candidate_prefix"`

	// DedupeMaster drops master records whose key repeats an earlier one (default true).
	DedupeMaster bool `json:"dedupe_master" yaml:"dedupe_master" mapstructure:"dedupe_master"`
}

// SourceConfig describes how to read one collection.
type SourceConfig struct {
	// Format overrides extension-based detection: csv, tsv, xlsx, json, yaml, sqlite.
	Format string `json:"format,omitempty" yaml:"format,omitempty" mapstructure:"format"`

	// Sheet selects an XLSX worksheet; empty means the first sheet.
	Sheet string `json:"sheet,omitempty" yaml:"sheet,omitempty" mapstructure:"sheet"`

	// Delimiter overrides the field separator for delimited text.
	Delimiter string `json:"delimiter,omitempty" yaml:"delimiter,omitempty" mapstructure:"delimiter"`

	// Encoding names the text encoding: utf-8, utf-16, windows-1252, iso-8859-1.
	Encoding string `json:"encoding,omitempty" yaml:"encoding,omitempty" mapstructure:"encoding"`

	// Driver selects a database/sql driver for DSN sources: sqlite3, mysql, sqlserver.
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty" mapstructure:"driver"`

	// Table names the table read from a database source.
	Table string `json:"table,omitempty" yaml:"table,omitempty" mapstructure:"table"`

	// Query replaces Table with an arbitrary SELECT.
	Query string `json:"query,omitempty" yaml:"query,omitempty" mapstructure:"query"`
}

// HTTPConfig holds settings for collections fetched over HTTP.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds retries on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// Token is sent as a bearer token when set.
	Token string `json:"-" yaml:"-" mapstructure:"token"`
}

// OutputConfig controls result export and console rendering.
type OutputConfig struct {
	// Format is the export format: csv, xlsx, json, yaml (default from the output extension).
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// Sheet names the XLSX worksheet (default "Results").
	Sheet string `json:"sheet" yaml:"sheet" mapstructure:"sheet"`

	// PreviewRows is how many rows the console preview shows (default 20).
	PreviewRows int `json:"preview_rows" yaml:"preview_rows" mapstructure:"preview_rows"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// MaxUploadBytes caps multipart uploads (default 32 MiB).
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`

	// Mode is the gin mode: debug, release, test.
	Mode string `json:"mode" yaml:"mode" mapstructure:"mode"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is auto, console, or json.
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Config groups all settings.
type Config struct {
	Match  MatchConfig  `json:"match" yaml:"match" mapstructure:"match"`
	HTTP   HTTPConfig   `json:"http" yaml:"http" mapstructure:"http"`
	Output OutputConfig `json:"output" yaml:"output" mapstructure:"output"`
	Server ServerConfig `json:"server" yaml:"server" mapstructure:"server"`
	Log    LogConfig    `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		Match: MatchConfig{
			Threshold:       80,
			MasterPrefix:    "MFL_",
			CandidatePrefix: "DHIS2_",
			DedupeMaster:    true,
		},
		HTTP: HTTPConfig{
			Timeout:    60 * time.Second,
			UserAgent:  "facility-match/0.1",
			MaxRetries: 5,
		},
		Output: OutputConfig{
			Sheet:       "Results",
			PreviewRows: 20,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 32 << 20,
			Mode:           "release",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}
