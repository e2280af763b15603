// Package registry implements the Function Registry Store (C1, §4.1): the
// authoritative catalogue of callable Function Records, plus the
// at-least-once CDC change stream the Embedding Index (C2) replays to stay
// in sync.
package registry

import "fmt"

// ParamType enumerates the scalar/structural types a function parameter may
// declare (§3 Function Record: parameter_schema).
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamArray   ParamType = "array"
	ParamObject  ParamType = "object"
)

// ParamSpec is one entry of a Function Record's parameter_schema.
type ParamSpec struct {
	Type        ParamType     `json:"type" yaml:"type"`
	Required    bool          `json:"required" yaml:"required"`
	Enum        []interface{} `json:"enum,omitempty" yaml:"enum,omitempty"`
	Default     interface{}   `json:"default,omitempty" yaml:"default,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
}

// Method is the HTTP verb a Function Record's endpoint is invoked with.
type Method string

const (
	MethodGET    Method = "GET"
	MethodPOST   Method = "POST"
	MethodPUT    Method = "PUT"
	MethodDELETE Method = "DELETE"
)

// Record is the authoritative Function Record (§3).
type Record struct {
	FunctionID      string               `json:"function_id" yaml:"function_id"`
	Name            string               `json:"name" yaml:"name"`
	Description     string               `json:"description" yaml:"description"`
	Domain          string               `json:"domain" yaml:"domain"`
	Endpoint        string               `json:"endpoint" yaml:"endpoint"`
	Method          Method               `json:"method" yaml:"method"`
	ParameterSchema map[string]ParamSpec `json:"parameter_schema" yaml:"parameter_schema"`
	ResponseSchema  map[string]ParamSpec `json:"response_schema,omitempty" yaml:"response_schema,omitempty"`
	Tags            []string             `json:"tags,omitempty" yaml:"tags,omitempty"`
	PopularityScore float64              `json:"popularity_score" yaml:"popularity_score"`
	Version         string               `json:"version,omitempty" yaml:"version,omitempty"`
	Deprecated      bool                 `json:"deprecated" yaml:"deprecated"`
}

// Validate enforces the Function Record invariants from §3: parameter_schema
// keys are unique (guaranteed by the Go map itself), enum values must match
// the declared type, and a required parameter need not (but may) carry a
// default.
func (r *Record) Validate() error {
	if r.FunctionID == "" {
		return fmt.Errorf("registry: function_id is required")
	}
	for name, spec := range r.ParameterSchema {
		for _, v := range spec.Enum {
			if !typeMatches(spec.Type, v) {
				return fmt.Errorf("registry: function %s parameter %s: enum value %v is not of declared type %s", r.FunctionID, name, v, spec.Type)
			}
		}
	}
	return nil
}

func typeMatches(t ParamType, v interface{}) bool {
	switch t {
	case ParamString:
		_, ok := v.(string)
		return ok
	case ParamInteger:
		switch v.(type) {
		case int, int32, int64:
			return true
		case float64:
			f := v.(float64)
			return f == float64(int64(f))
		}
		return false
	case ParamNumber:
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case ParamBoolean:
		_, ok := v.(bool)
		return ok
	case ParamArray:
		_, ok := v.([]interface{})
		return ok
	case ParamObject:
		_, ok := v.(map[string]interface{})
		return ok
	}
	return false
}
