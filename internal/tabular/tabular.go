// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tabular reads registries into collections and writes result sets.
//
// Sources are local files (CSV, TSV, XLSX, JSON, YAML, SQLite), HTTP(S)
// URLs serving one of those formats, or SQL databases reached through a
// database/sql driver. Cells are typed per column the way a dataframe
// reader would type them, because keys are compared by their string form.
package tabular

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/facility-match/internal/httputil"
	"github.com/pdiddy/facility-match/pkg/types"
)

// Supported formats.
const (
	FormatCSV    = "csv"
	FormatTSV    = "tsv"
	FormatXLSX   = "xlsx"
	FormatJSON   = "json"
	FormatYAML   = "yaml"
	FormatSQLite = "sqlite"
)

// Source identifies one collection to load.
type Source struct {
	// Location is a file path, an http(s) URL, or a DSN when Driver is set.
	Location string

	// Name labels the collection; defaults to the base name of Location.
	Name string

	types.SourceConfig
}

// Loader loads collections. The zero value is not usable; use NewLoader.
type Loader struct {
	client *http.Client
	http   types.HTTPConfig
	log    zerolog.Logger
}

// NewLoader returns a Loader that fetches URL sources with client.
func NewLoader(client *http.Client, cfg types.HTTPConfig, log zerolog.Logger) *Loader {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Loader{client: client, http: cfg, log: log}
}

// Load reads src into a collection.
func (l *Loader) Load(ctx context.Context, src Source) (types.Collection, error) {
	if src.Location == "" {
		return types.Collection{}, fmt.Errorf("source location is empty")
	}

	var (
		c   types.Collection
		err error
	)
	switch {
	case src.Driver != "":
		c, err = LoadSQL(ctx, src.Driver, src.Location, src.Table, src.Query)
	case isURL(src.Location):
		c, err = l.loadURL(ctx, src)
	default:
		c, err = loadFile(ctx, src)
	}
	if err != nil {
		return types.Collection{}, err
	}

	c.Name = src.Name
	if c.Name == "" {
		c.Name = displayName(src)
	}
	l.log.Info().
		Str("source", c.Name).
		Int("records", len(c.Records)).
		Int("fields", len(c.Fields)).
		Msg("collection loaded")
	return c, nil
}

func loadFile(ctx context.Context, src Source) (types.Collection, error) {
	format := src.Format
	if format == "" {
		var err error
		format, err = FormatFromPath(src.Location)
		if err != nil {
			return types.Collection{}, err
		}
	}

	if format == FormatSQLite {
		return LoadSQL(ctx, "sqlite3", sqliteDSN(src.Location), src.Table, src.Query)
	}

	f, err := os.Open(src.Location)
	if err != nil {
		return types.Collection{}, fmt.Errorf("opening %s: %w", src.Location, err)
	}
	defer f.Close()

	c, err := Decode(f, format, src.SourceConfig)
	if err != nil {
		return types.Collection{}, fmt.Errorf("reading %s: %w", src.Location, err)
	}
	return c, nil
}

func (l *Loader) loadURL(ctx context.Context, src Source) (types.Collection, error) {
	body, ctype, err := httputil.Fetch(ctx, l.client, src.Location, l.http)
	if err != nil {
		return types.Collection{}, err
	}

	format := src.Format
	if format == "" {
		format = formatFromURL(src.Location, ctype)
	}
	if format == "" {
		return types.Collection{}, fmt.Errorf("cannot determine format of %s; set the format explicitly", src.Location)
	}
	if format == FormatSQLite {
		return types.Collection{}, fmt.Errorf("sqlite sources must be local files")
	}

	c, err := Decode(bytes.NewReader(body), format, src.SourceConfig)
	if err != nil {
		return types.Collection{}, fmt.Errorf("reading %s: %w", src.Location, err)
	}
	return c, nil
}

// Decode parses r in the given format. SQLite is not decodable from a
// stream; use LoadSQL.
func Decode(r io.Reader, format string, opts types.SourceConfig) (types.Collection, error) {
	switch normalizeFormat(format) {
	case FormatCSV:
		return readDelimited(r, delimiter(opts.Delimiter, ','), opts.Encoding)
	case FormatTSV:
		return readDelimited(r, delimiter(opts.Delimiter, '\t'), opts.Encoding)
	case FormatXLSX:
		return readXLSX(r, opts.Sheet)
	case FormatJSON:
		return readJSON(r)
	case FormatYAML:
		return readYAML(r)
	default:
		return types.Collection{}, fmt.Errorf("unsupported format %q", format)
	}
}

// FormatFromPath maps a file extension to a format.
func FormatFromPath(p string) (string, error) {
	ext := strings.ToLower(filepath.Ext(p))
	if f := formatFromExt(ext); f != "" {
		return f, nil
	}
	return "", fmt.Errorf("unsupported file type %q for %s", ext, p)
}

func formatFromExt(ext string) string {
	switch ext {
	case ".csv", ".txt":
		return FormatCSV
	case ".tsv", ".tab":
		return FormatTSV
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return ""
	}
}

func formatFromURL(raw, contentType string) string {
	if u, err := url.Parse(raw); err == nil {
		if f := formatFromExt(strings.ToLower(path.Ext(u.Path))); f != "" {
			return f
		}
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mt {
	case "text/csv", "application/csv":
		return FormatCSV
	case "text/tab-separated-values":
		return FormatTSV
	case "application/json":
		return FormatJSON
	case "application/yaml", "application/x-yaml", "text/yaml":
		return FormatYAML
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX
	default:
		return ""
	}
}

func normalizeFormat(f string) string {
	switch strings.ToLower(strings.TrimPrefix(f, ".")) {
	case "csv", "txt":
		return FormatCSV
	case "tsv", "tab":
		return FormatTSV
	case "xlsx", "xlsm", "excel":
		return FormatXLSX
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	case "sqlite", "sqlite3", "db":
		return FormatSQLite
	default:
		return strings.ToLower(f)
	}
}

func delimiter(s string, fallback rune) rune {
	switch s {
	case "":
		return fallback
	case `\t`, "tab":
		return '\t'
	}
	return []rune(s)[0]
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func displayName(src Source) string {
	if src.Driver != "" {
		if src.Table != "" {
			return src.Driver + ":" + src.Table
		}
		return src.Driver + ":query"
	}
	if isURL(src.Location) {
		if u, err := url.Parse(src.Location); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
			return path.Base(u.Path)
		}
		return src.Location
	}
	return filepath.Base(src.Location)
}
