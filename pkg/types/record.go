// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Record maps field names to cell values. Field order lives on the owning
// Collection.
type Record map[string]Value

// Get returns the value of field, or null when the record lacks it.
func (r Record) Get(field string) Value {
	if r == nil {
		return Null()
	}
	return r[field]
}

// Collection is one registry: an ordered list of records sharing a schema.
type Collection struct {
	// Name labels the collection in logs and reports (e.g. the file name).
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Fields lists the schema in source order. Names are unique.
	Fields []string `json:"fields" yaml:"fields"`

	// Records holds the rows in source order.
	Records []Record `json:"records" yaml:"records"`
}

// HasField reports whether field is part of the schema.
func (c Collection) HasField(field string) bool {
	for _, f := range c.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// Len returns the number of records.
func (c Collection) Len() int {
	return len(c.Records)
}

// Keys returns the string form of field for every record, in order.
func (c Collection) Keys(field string) []string {
	keys := make([]string, len(c.Records))
	for i, r := range c.Records {
		keys[i] = r.Get(field).String()
	}
	return keys
}
