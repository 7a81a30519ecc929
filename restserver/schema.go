// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"fmt"
	"io/ioutil"
	"sort"

	"github.com/diffeo/go-orm/restdata"
	"gopkg.in/yaml.v2"
)

// Kind describes one type of record the server publishes.
type Kind struct {
	// Name is the plural name, used as the URL path segment and
	// the record kind in the store, such as "nodes".
	Name string `yaml:"name"`

	// Singular is the name used in link relations, such as
	// "node".  If empty it is derived from Name.
	Singular string `yaml:"singular"`

	// References maps field names to the name of the kind they
	// point at.  Such a field holds the URL of a record of that
	// kind, or a list of URLs.
	References map[string]string `yaml:"references"`

	// Required lists fields that must be present when a record
	// is created or replaced.
	Required []string `yaml:"required"`

	// Actions lists the names of action endpoints on each record.
	Actions []string `yaml:"actions"`
}

// SingularName returns Singular, or a guess from Name.
func (k Kind) SingularName() string {
	if k.Singular != "" {
		return k.Singular
	}
	return restdata.Singular(k.Name)
}

// HasAction checks whether an action is defined for the kind.
func (k Kind) HasAction(action string) bool {
	for _, a := range k.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Schema describes everything the server publishes.
type Schema struct {
	Kinds []Kind `yaml:"kinds"`

	// Users maps user names to passwords.  If any are given,
	// every request that changes data needs a token from the
	// authentication endpoint.
	Users map[string]string `yaml:"users"`
}

// Kind finds a kind by its plural name.
func (s Schema) Kind(name string) (Kind, bool) {
	for _, k := range s.Kinds {
		if k.Name == name {
			return k, true
		}
	}
	return Kind{}, false
}

// reverseRelation is a field of some kind that points at another.
type reverseRelation struct {
	Kind  Kind
	Field string
}

// referencedBy lists the fields of every kind that refer to the
// named kind.
func (s Schema) referencedBy(name string) []reverseRelation {
	var result []reverseRelation
	for _, k := range s.Kinds {
		fields := make([]string, 0, len(k.References))
		for field, target := range k.References {
			if target == name {
				fields = append(fields, field)
			}
		}
		sort.Strings(fields)
		for _, field := range fields {
			result = append(result, reverseRelation{Kind: k, Field: field})
		}
	}
	return result
}

// Validate checks that every reference names a known kind.
func (s Schema) Validate() error {
	seen := make(map[string]bool)
	for _, k := range s.Kinds {
		if k.Name == "" {
			return fmt.Errorf("kind with no name")
		}
		if seen[k.Name] {
			return fmt.Errorf("duplicate kind %q", k.Name)
		}
		seen[k.Name] = true
	}
	for _, k := range s.Kinds {
		for field, target := range k.References {
			if !seen[target] {
				return fmt.Errorf("%v.%v refers to unknown kind %q", k.Name, field, target)
			}
		}
	}
	return nil
}

// LoadSchema reads a schema from a YAML file.
func LoadSchema(path string) (Schema, error) {
	var schema Schema
	bytes, err := ioutil.ReadFile(path)
	if err != nil {
		return schema, err
	}
	if err := yaml.Unmarshal(bytes, &schema); err != nil {
		return schema, err
	}
	return schema, schema.Validate()
}
