// Package strategy defines pluggable share rules. Implementations live with
// the domain that selects them.
package strategy

// Strategy is a named rule that can be listed and described
type Strategy interface {
	Name() string
	Description() string
}

// Named satisfies Strategy for any rule that embeds it
type Named struct {
	name        string
	description string
}

// NewNamed creates the Strategy part of a rule
func NewNamed(name, description string) Named {
	return Named{name: name, description: description}
}

func (n Named) Name() string {
	return n.name
}

func (n Named) Description() string {
	return n.description
}
