// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads database DSNs and API tokens from a directory of
// plain-text files. Each file is one secret: the file name is the key and
// the trimmed contents are the value.
//
// Recognized keys: master-dsn, candidate-dsn, source-token.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const (
	MasterDSN    = "master-dsn"
	CandidateDSN = "candidate-dsn"
	SourceToken  = "source-token"

	refPrefix = "secret:"
)

// Secrets maps secret names to values.
type Secrets map[string]string

// Load reads all files in dir. A missing directory is not an error; Load
// returns an empty set. Unreadable files are logged and skipped.
func Load(dir string, log zerolog.Logger) (Secrets, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	s := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}
	return s, nil
}

// Get returns the named secret, or fallback when it is absent.
func (s Secrets) Get(name, fallback string) string {
	if v, ok := s[name]; ok {
		return v
	}
	return fallback
}

// Resolve expands a "secret:<name>" reference. Any other value is returned
// unchanged.
func (s Secrets) Resolve(value string) (string, error) {
	name, ok := strings.CutPrefix(value, refPrefix)
	if !ok {
		return value, nil
	}
	v, found := s[name]
	if !found {
		return "", fmt.Errorf("secret %q not found", name)
	}
	return v, nil
}
