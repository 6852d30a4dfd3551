package audit

import "strings"

// Column is one input cell, kept in the order the source file declared it.
type Column struct {
	Name  string
	Value string
}

// ColumnMapping names the input columns holding the logical business fields.
// Website and City are optional.
type ColumnMapping struct {
	BusinessName string `json:"business_name"`
	Website      string `json:"website,omitempty"`
	City         string `json:"city,omitempty"`
}

// BusinessRecord is one input row. Row is its identity (1-based data row
// number); Columns carries every original cell so they can be passed through
// to the output untouched.
type BusinessRecord struct {
	Row     int
	Columns []Column
	Name    string
	Website string
	City    string
}

// Get returns the value of the named input column.
func (r BusinessRecord) Get(name string) (string, bool) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// NewRecord resolves the logical fields of a row through the mapping.
func NewRecord(row int, columns []Column, mapping ColumnMapping) BusinessRecord {
	rec := BusinessRecord{
		Row:     row,
		Columns: append([]Column(nil), columns...),
	}
	rec.Name = strings.TrimSpace(lookup(columns, mapping.BusinessName))
	rec.Website = strings.TrimSpace(lookup(columns, mapping.Website))
	rec.City = strings.TrimSpace(lookup(columns, mapping.City))
	return rec
}

func lookup(columns []Column, name string) string {
	if name == "" {
		return ""
	}
	for _, c := range columns {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
