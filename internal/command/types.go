// Package command holds the catalog of voice commands that utterances are
// resolved against.
//
// A [Command] is declared in YAML with one or more utterance patterns. The
// [Registry] exposes the catalog to the matcher and accepts new patterns from
// training. Catalog files are validated on load so that template mistakes are
// reported before the first utterance arrives.
//
// All registry operations are safe for concurrent use.
package command

import "sort"

// Command is a single executable voice command.
type Command struct {
	// Intent uniquely identifies the command, e.g. "open_app".
	Intent string `yaml:"intent" json:"intent"`

	// Description is a human-readable summary for help output.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Patterns are utterance templates with {entityName} placeholders.
	// Training appends to this list at runtime.
	Patterns []string `yaml:"patterns" json:"patterns"`

	// Examples are illustrative phrases. Used for suggestions only.
	Examples []string `yaml:"examples,omitempty" json:"examples,omitempty"`

	// Entities declares the entities the command understands.
	Entities map[string]EntitySpec `yaml:"entities,omitempty" json:"entities,omitempty"`
}

// EntitySpec describes one entity a command accepts.
type EntitySpec struct {
	// Required entities must be present (after context enrichment and
	// defaults) for the match to be executable.
	Required bool `yaml:"required" json:"required"`

	// Default is used when the entity is absent. Nil means no default.
	Default any `yaml:"default,omitempty" json:"default,omitempty"`
}

// RequiredEntities returns the names of required entities in sorted order.
func (c Command) RequiredEntities() []string {
	var names []string
	for name, spec := range c.Entities {
		if spec.Required {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of c.
func (c Command) Clone() Command {
	out := c
	out.Patterns = append([]string(nil), c.Patterns...)
	out.Examples = append([]string(nil), c.Examples...)
	if c.Entities != nil {
		out.Entities = make(map[string]EntitySpec, len(c.Entities))
		for k, v := range c.Entities {
			out.Entities[k] = v
		}
	}
	return out
}
