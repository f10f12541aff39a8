package rime

import (
	"sort"
	"strings"
)

// Schema is an engine input schema. Identity is the ID alone.
type Schema struct {
	ID   string `json:"schema_id" yaml:"schema_id"`
	Name string `json:"name" yaml:"name"`
}

// Equal reports whether s and o are the same schema.
func (s Schema) Equal(o Schema) bool { return s.ID == o.ID }

// Less orders schemas by ID.
func (s Schema) Less(o Schema) bool { return s.ID < o.ID }

// Key is the map key for s.
func (s Schema) Key() string { return s.ID }

func (s Schema) String() string {
	if s.Name == "" || s.Name == s.ID {
		return s.ID
	}
	return s.ID + "/" + s.Name
}

// ParseSchema splits the "id/name" form used in schema notifications.
func ParseSchema(v string) Schema {
	id, name, _ := strings.Cut(v, "/")
	return Schema{ID: id, Name: name}
}

// SortSchemas sorts by ID.
func SortSchemas(list []Schema) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Less(list[j]) })
}

// UniqueSchemas drops later schemas whose ID repeats an earlier one.
func UniqueSchemas(list []Schema) []Schema {
	seen := make(map[string]bool, len(list))
	out := list[:0:0]
	for _, s := range list {
		if seen[s.Key()] {
			continue
		}
		seen[s.Key()] = true
		out = append(out, s)
	}
	return out
}
