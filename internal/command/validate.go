package command

import (
	"errors"
	"fmt"

	"github.com/MrWong99/voxcmd/internal/nlu"
	"github.com/MrWong99/voxcmd/internal/pattern"
)

// Validate checks a [Command] for required fields and well-formed patterns.
//
// Rules:
//   - Intent must be non-empty.
//   - At least one pattern must be declared.
//   - Every pattern must parse and compile.
//   - Every placeholder must name a declared entity or a built-in entity type.
func Validate(c Command) error {
	var errs []error

	if c.Intent == "" {
		errs = append(errs, errors.New("intent must not be empty"))
	}
	if len(c.Patterns) == 0 {
		errs = append(errs, errors.New("at least one pattern is required"))
	}
	for i, p := range c.Patterns {
		if err := ValidatePattern(c, p); err != nil {
			errs = append(errs, fmt.Errorf("patterns[%d]: %w", i, err))
		}
	}
	for name := range c.Entities {
		if name == "" {
			errs = append(errs, errors.New("entities: name must not be empty"))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// ValidatePattern checks that raw would be accepted as a pattern of c.
func ValidatePattern(c Command, raw string) error {
	p, err := pattern.Parse(raw)
	if err != nil {
		return err
	}
	if _, err := pattern.Compile(p); err != nil {
		return err
	}
	for _, name := range p.Placeholders() {
		if _, ok := c.Entities[name]; ok {
			continue
		}
		if nlu.IsBuiltin(name) {
			continue
		}
		return fmt.Errorf("placeholder {%s} in %q is not a declared entity", name, raw)
	}
	return nil
}
