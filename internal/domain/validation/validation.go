// Package validation collects field-level input errors.
package validation

import (
	"sort"
	"strings"
)

// Error reports one or more invalid input fields.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + e.Fields[name]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Collector accumulates field errors. The zero value is ready to use.
type Collector struct {
	fields map[string]string
}

// Add records msg for field. The first message recorded for a field wins.
func (c *Collector) Add(field, msg string) {
	if c.fields == nil {
		c.fields = make(map[string]string)
	}
	if _, ok := c.fields[field]; !ok {
		c.fields[field] = msg
	}
}

// Check records msg for field when ok is false.
func (c *Collector) Check(ok bool, field, msg string) {
	if !ok {
		c.Add(field, msg)
	}
}

// Err returns a *Error when any field was recorded, nil otherwise.
func (c *Collector) Err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &Error{Fields: c.fields}
}
