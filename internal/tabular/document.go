// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tabular

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/facility-match/pkg/types"
)

// readJSON reads an array of objects. A top-level object is accepted when
// one of its members is such an array, the shape of an API export such as
// {"organisationUnits": [...]}; the first array member is used. Field order
// follows first appearance across records.
func readJSON(r io.Reader) (types.Collection, error) {
	var root json.RawMessage
	dec := json.NewDecoder(r)
	if err := dec.Decode(&root); err != nil {
		return types.Collection{}, fmt.Errorf("decoding json: %w", err)
	}

	items, err := jsonRecords(root)
	if err != nil {
		return types.Collection{}, err
	}

	b := newDocBuilder()
	for i, item := range items {
		keys, vals, err := decodeObject(item)
		if err != nil {
			return types.Collection{}, fmt.Errorf("record %d: %w", i, err)
		}
		b.add(keys, vals)
	}
	return b.collection(), nil
}

func jsonRecords(root json.RawMessage) ([]json.RawMessage, error) {
	switch firstByte(root) {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(root, &items); err != nil {
			return nil, fmt.Errorf("decoding json array: %w", err)
		}
		return items, nil
	case '{':
		keys, vals, err := decodeRawObject(root)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if firstByte(vals[k]) == '[' {
				var items []json.RawMessage
				if err := json.Unmarshal(vals[k], &items); err != nil {
					return nil, fmt.Errorf("decoding json member %q: %w", k, err)
				}
				return items, nil
			}
		}
		return nil, errors.New("json object has no array of records")
	default:
		return nil, errors.New("json document must be an array of objects")
	}
}

// decodeRawObject returns the member names of a JSON object in document
// order together with their raw values.
func decodeRawObject(data json.RawMessage) ([]string, map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("expected a json object")
	}

	var keys []string
	vals := make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("member %q: %w", key, err)
		}
		if _, seen := vals[key]; !seen {
			keys = append(keys, key)
		}
		vals[key] = raw
	}
	return keys, vals, nil
}

func decodeObject(data json.RawMessage) ([]string, map[string]types.Value, error) {
	keys, raws, err := decodeRawObject(data)
	if err != nil {
		return nil, nil, err
	}
	vals := make(map[string]types.Value, len(keys))
	for _, k := range keys {
		vals[k], err = jsonScalar(raws[k])
		if err != nil {
			return nil, nil, fmt.Errorf("member %q: %w", k, err)
		}
	}
	return keys, vals, nil
}

// jsonScalar converts a raw JSON value to a cell. Nested objects and
// arrays are kept as compact JSON text.
func jsonScalar(raw json.RawMessage) (types.Value, error) {
	switch firstByte(raw) {
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return types.Value{}, err
		}
		return types.Text(buf.String()), nil
	}
	var v types.Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return types.Value{}, err
	}
	return v, nil
}

func firstByte(b []byte) byte {
	b = bytes.TrimLeft(b, " \t\r\n")
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

// readYAML reads a sequence of mappings, or a mapping whose first sequence
// value holds them.
func readYAML(r io.Reader) (types.Collection, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return types.Collection{}, errors.New("yaml document is empty")
		}
		return types.Collection{}, fmt.Errorf("decoding yaml: %w", err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}

	seq, err := yamlRecords(root)
	if err != nil {
		return types.Collection{}, err
	}

	b := newDocBuilder()
	for i, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			return types.Collection{}, fmt.Errorf("record %d: expected a mapping", i)
		}
		keys := make([]string, 0, len(item.Content)/2)
		vals := make(map[string]types.Value, len(item.Content)/2)
		for j := 0; j+1 < len(item.Content); j += 2 {
			key := item.Content[j].Value
			v, err := yamlScalar(item.Content[j+1])
			if err != nil {
				return types.Collection{}, fmt.Errorf("record %d, key %q: %w", i, key, err)
			}
			if _, seen := vals[key]; !seen {
				keys = append(keys, key)
			}
			vals[key] = v
		}
		b.add(keys, vals)
	}
	return b.collection(), nil
}

func yamlRecords(root *yaml.Node) (*yaml.Node, error) {
	switch root.Kind {
	case yaml.SequenceNode:
		return root, nil
	case yaml.MappingNode:
		for j := 1; j < len(root.Content); j += 2 {
			if root.Content[j].Kind == yaml.SequenceNode {
				return root.Content[j], nil
			}
		}
		return nil, errors.New("yaml mapping has no sequence of records")
	default:
		return nil, errors.New("yaml document must be a sequence of mappings")
	}
}

func yamlScalar(n *yaml.Node) (types.Value, error) {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	if n.Kind != yaml.ScalarNode {
		var x any
		if err := n.Decode(&x); err != nil {
			return types.Value{}, err
		}
		b, err := json.Marshal(x)
		if err != nil {
			return types.Value{}, err
		}
		return types.Text(string(b)), nil
	}

	switch n.ShortTag() {
	case "!!null":
		return types.Null(), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			var f float64
			if ferr := n.Decode(&f); ferr != nil {
				return types.Value{}, err
			}
			return types.Float(f), nil
		}
		return types.Int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return types.Value{}, err
		}
		return types.Float(f), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return types.Value{}, err
		}
		return types.Bool(b), nil
	default:
		return types.Text(n.Value), nil
	}
}

// docBuilder accumulates records whose fields may differ from one record
// to the next.
type docBuilder struct {
	fields  []string
	seen    map[string]bool
	records []types.Record
}

func newDocBuilder() *docBuilder {
	return &docBuilder{seen: make(map[string]bool)}
}

func (b *docBuilder) add(keys []string, vals map[string]types.Value) {
	rec := make(types.Record, len(keys))
	for _, k := range keys {
		if !b.seen[k] {
			b.seen[k] = true
			b.fields = append(b.fields, k)
		}
		rec[k] = vals[k]
	}
	b.records = append(b.records, rec)
}

func (b *docBuilder) collection() types.Collection {
	for _, rec := range b.records {
		for _, f := range b.fields {
			if _, ok := rec[f]; !ok {
				rec[f] = types.Null()
			}
		}
	}
	c := types.Collection{Fields: b.fields, Records: b.records}
	harmonize(c)
	return c
}
