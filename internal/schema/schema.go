// Package schema declares the typed input/output contracts of geoprocessing
// endpoints: field names, data types, defaults and allowed values. Descriptors
// are static data; Resolve applies a descriptor to raw request values.
package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DataType enumerates literal input types.
type DataType string

const (
	TypeString    DataType = "string"
	TypeInteger   DataType = "integer"
	TypeFloat     DataType = "float"
	TypeBoolean   DataType = "boolean"
	TypeDate      DataType = "date"
	TypeFloatList DataType = "float_list" // comma separated floats
	TypeJSON      DataType = "json"
)

// Input declares one literal or file input of a process.
type Input struct {
	Name     string   `json:"name"`
	Title    string   `json:"title"`
	Abstract string   `json:"abstract,omitempty"`
	Type     DataType `json:"type,omitempty"`
	Default  string   `json:"default,omitempty"`
	Allowed  []string `json:"allowed,omitempty"`
	Required bool     `json:"required"`
	// File marks complex inputs delivered as uploaded files or URL references.
	File bool `json:"file,omitempty"`
}

// Output declares one result file of a process.
type Output struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	MediaType string `json:"media_type"`
}

// Descriptor is the public contract of a process endpoint.
type Descriptor struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Abstract string   `json:"abstract"`
	Version  string   `json:"version"`
	Inputs   []Input  `json:"inputs"`
	Outputs  []Output `json:"outputs"`
}

// Violation is a schema-level input error, distinct from engine failures so the
// handler can map it to a 400 response.
type Violation struct {
	Field  string
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("input %q: %s", v.Field, v.Reason)
}

// Resolve validates raw literal values and file presence against the
// descriptor and returns the literal set with defaults applied.
// Unknown fields are rejected.
func (d *Descriptor) Resolve(literals map[string]string, files map[string]bool) (map[string]string, error) {
	known := make(map[string]Input, len(d.Inputs))
	for _, in := range d.Inputs {
		known[in.Name] = in
	}

	for name := range literals {
		in, ok := known[name]
		if !ok {
			return nil, &Violation{Field: name, Reason: "unknown input"}
		}
		if in.File {
			return nil, &Violation{Field: name, Reason: "expects a file part or URL reference"}
		}
	}

	out := make(map[string]string, len(d.Inputs))
	for _, in := range d.Inputs {
		if in.File {
			if in.Required && !files[in.Name] {
				return nil, &Violation{Field: in.Name, Reason: "file input is required"}
			}
			continue
		}

		v, ok := literals[in.Name]
		if !ok || v == "" {
			if in.Required && in.Default == "" {
				return nil, &Violation{Field: in.Name, Reason: "value is required"}
			}
			if in.Default == "" {
				continue
			}
			v = in.Default
		}

		if err := checkType(in, v); err != nil {
			return nil, err
		}
		if len(in.Allowed) > 0 && !contains(in.Allowed, v) {
			return nil, &Violation{
				Field:  in.Name,
				Reason: fmt.Sprintf("value %q not one of %s", v, strings.Join(in.Allowed, ", ")),
			}
		}
		out[in.Name] = v
	}
	return out, nil
}

func checkType(in Input, v string) error {
	switch in.Type {
	case TypeInteger:
		if _, err := strconv.Atoi(v); err != nil {
			return &Violation{Field: in.Name, Reason: "not an integer"}
		}
	case TypeFloat:
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return &Violation{Field: in.Name, Reason: "not a number"}
		}
	case TypeBoolean:
		if _, err := strconv.ParseBool(v); err != nil {
			return &Violation{Field: in.Name, Reason: "not a boolean"}
		}
	case TypeDate:
		if _, err := ParseDate(v); err != nil {
			return &Violation{Field: in.Name, Reason: "not a date (want YYYY-MM-DD)"}
		}
	case TypeFloatList:
		if _, err := ParseFloats(v); err != nil {
			return &Violation{Field: in.Name, Reason: "not a comma-separated list of numbers"}
		}
	}
	return nil
}

func contains(vals []string, v string) bool {
	for _, s := range vals {
		if s == v {
			return true
		}
	}
	return false
}

// ParseDate accepts YYYY-MM-DD or RFC3339 timestamps.
func ParseDate(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

// ParseFloats parses a comma-separated list of numbers.
func ParseFloats(v string) ([]float64, error) {
	parts := strings.Split(v, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// FormatFloats renders a float slice the way defaults are declared: comma
// separated, full precision.
func FormatFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, f := range vals {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(parts, ", ")
}
