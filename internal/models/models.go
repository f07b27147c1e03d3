package models

import "time"

// Record is one item a channel can suggest.
type Record struct {
	ID          string    `json:"id" yaml:"id"`
	Kind        string    `json:"kind" yaml:"kind"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Created     time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// Field returns the value of a searchable field by its column name.
func (r Record) Field(name string) (string, bool) {
	switch name {
	case "id":
		return r.ID, true
	case "kind":
		return r.Kind, true
	case "name":
		return r.Name, true
	case "description":
		return r.Description, true
	}
	return "", false
}

// SearchFields lists the column names accepted by Field.
var SearchFields = []string{"id", "kind", "name", "description"}

// IsSearchField reports whether name is a known record column.
func IsSearchField(name string) bool {
	_, ok := Record{}.Field(name)
	return ok
}
