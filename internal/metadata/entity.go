package metadata

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldDefinition is one field of an entity definition together with its
// declarative tags ("column", "string:120", "nullable", ...). Static fields
// are class-level configuration and never persisted.
type FieldDefinition struct {
	Name   string   `yaml:"name"`
	Tags   []string `yaml:"tags"`
	Static bool     `yaml:"static,omitempty"`
}

// EntityDefinition is the structural description of one persisted type. It is
// plain data: however the caller obtains it (reflection, code generation, a
// definitions file) is outside this package.
type EntityDefinition struct {
	Name       string            `yaml:"entity"`
	Table      string            `yaml:"table"`
	Timestamps bool              `yaml:"timestamps"`
	Fields     []FieldDefinition `yaml:"fields"`
}

type definitionsFile struct {
	Entities []EntityDefinition `yaml:"entities"`
}

// LoadFile reads entity definitions from a YAML file.
func LoadFile(path string) ([]EntityDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entity definitions: %w", err)
	}
	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse entity definitions: %w", err)
	}
	if len(file.Entities) == 0 {
		return nil, fmt.Errorf("no entities defined in %s", path)
	}
	return file.Entities, nil
}

// Tag is one parsed declarative tag: a name and an optional value after the
// first colon.
type Tag struct {
	Name  string
	Value string
}

func parseTags(raw []string) []Tag {
	tags := make([]Tag, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		name, value, _ := strings.Cut(r, ":")
		tags = append(tags, Tag{
			Name:  strings.ToLower(strings.TrimSpace(name)),
			Value: strings.TrimSpace(value),
		})
	}
	return tags
}

func hasTag(tags []Tag, name string) bool {
	for _, t := range tags {
		if t.Name == name {
			return true
		}
	}
	return false
}
