// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/pdiddy/facility-match/pkg/types"
)

func readDelimited(r io.Reader, comma rune, enc string) (types.Collection, error) {
	dec, err := textDecoder(enc)
	if err != nil {
		return types.Collection{}, err
	}

	cr := csv.NewReader(transform.NewReader(r, dec))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return types.Collection{}, fmt.Errorf("no header row")
	}
	if err != nil {
		return types.Collection{}, fmt.Errorf("reading header: %w", err)
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.Collection{}, fmt.Errorf("reading row %d: %w", len(rows)+2, err)
		}
		if isBlankRow(row) {
			continue
		}
		rows = append(rows, row)
	}

	return buildCollection(header, rows), nil
}

// textDecoder returns a decoder for the named encoding. UTF-8 input has a
// leading byte-order mark removed, and a UTF-16 BOM switches decoding to
// UTF-16 regardless of the requested name.
func textDecoder(name string) (transform.Transformer, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "", "utf-8", "utf8", "utf-8-sig":
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	case "utf-16", "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	}
	e, err := ianaindex.IANA.Encoding(name)
	if err != nil || e == nil {
		return nil, fmt.Errorf("unsupported text encoding %q", name)
	}
	return e.NewDecoder(), nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
