package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Capability names
const (
	QueryRepository = "query_repository"
	IndexRepository = "index_repository"
	IndexStatus     = "index_status"
)

var (
	// ErrUnknownCapability is returned when calling a name that is not in the table
	ErrUnknownCapability = errors.New("unknown capability")
	// ErrInvalidArgs is returned when arguments do not match the declared parameters
	ErrInvalidArgs = errors.New("invalid arguments")
)

// ParamType is the JSON type of a capability parameter
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
)

// Param declares one named parameter of a capability
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     any
	Minimum     *int
}

// Args are the validated arguments passed to a handler. Integer parameters
// are always int, whatever numeric type the caller sent.
type Args map[string]any

// String returns a string argument, or "" when absent
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns an integer argument, or 0 when absent
func (a Args) Int(name string) int {
	n, _ := a[name].(int)
	return n
}

// Handler executes a capability and returns its text output
type Handler func(ctx context.Context, args Args) (string, error)

// Capability is one entry of the table: a stable name, a typed parameter
// list and the handler bound to its dependencies
type Capability struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler
}

// Schema returns the JSON schema of the capability's parameters
func (c Capability) Schema() map[string]any {
	properties := make(map[string]any, len(c.Params))
	required := make([]string, 0)
	for _, p := range c.Params {
		prop := map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if p.Minimum != nil {
			prop["minimum"] = *p.Minimum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// RequiredParams returns the names of the required parameters
func (c Capability) RequiredParams() []string {
	var names []string
	for _, p := range c.Params {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// Validate checks raw arguments against the declared parameters, applies
// defaults and normalizes numbers
func (c Capability) Validate(raw map[string]any) (Args, error) {
	args := make(Args, len(c.Params))
	declared := make(map[string]bool, len(c.Params))

	for _, p := range c.Params {
		declared[p.Name] = true
		v, ok := raw[p.Name]
		if !ok || v == nil {
			if p.Required {
				return nil, fmt.Errorf("%w: %s: missing required parameter %q", ErrInvalidArgs, c.Name, p.Name)
			}
			if p.Default != nil {
				args[p.Name] = p.Default
			}
			continue
		}

		norm, err := coerce(p, v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArgs, c.Name, err)
		}
		args[p.Name] = norm
	}

	var unknown []string
	for name := range raw {
		if !declared[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s: unknown parameters %s", ErrInvalidArgs, c.Name, strings.Join(unknown, ", "))
	}

	return args, nil
}

func coerce(p Param, v any) (any, error) {
	switch p.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("parameter %q must be a string", p.Name)
		}
		if p.Required && strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("parameter %q cannot be empty", p.Name)
		}
		return s, nil

	case TypeInteger:
		var n int
		switch x := v.(type) {
		case int:
			n = x
		case int64:
			n = int(x)
		case float64:
			if x != math.Trunc(x) {
				return nil, fmt.Errorf("parameter %q must be an integer", p.Name)
			}
			n = int(x)
		default:
			return nil, fmt.Errorf("parameter %q must be an integer", p.Name)
		}
		if p.Minimum != nil && n < *p.Minimum {
			return nil, fmt.Errorf("parameter %q must be >= %d", p.Name, *p.Minimum)
		}
		return n, nil

	case TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("parameter %q must be a boolean", p.Name)
		}
		return b, nil
	}
	return nil, fmt.Errorf("parameter %q has unsupported type %s", p.Name, p.Type)
}

// Table is the static capability table shared by the MCP server and the agent
type Table struct {
	caps   []Capability
	byName map[string]int
}

// NewTable builds a table from capabilities, in the given order
func NewTable(caps ...Capability) *Table {
	t := &Table{byName: make(map[string]int, len(caps))}
	for _, c := range caps {
		if i, dup := t.byName[c.Name]; dup {
			t.caps[i] = c
			continue
		}
		t.byName[c.Name] = len(t.caps)
		t.caps = append(t.caps, c)
	}
	return t
}

// List returns the capabilities in declaration order
func (t *Table) List() []Capability {
	return append([]Capability(nil), t.caps...)
}

// Get looks up a capability by name
func (t *Table) Get(name string) (Capability, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Capability{}, false
	}
	return t.caps[i], true
}

// Subset returns a table restricted to the named capabilities
func (t *Table) Subset(names ...string) *Table {
	caps := make([]Capability, 0, len(names))
	for _, name := range names {
		if c, ok := t.Get(name); ok {
			caps = append(caps, c)
		}
	}
	return NewTable(caps...)
}

// Call validates raw arguments and runs the named capability
func (t *Table) Call(ctx context.Context, name string, raw map[string]any) (string, error) {
	c, ok := t.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}
	args, err := c.Validate(raw)
	if err != nil {
		return "", err
	}
	return c.Handler(ctx, args)
}
