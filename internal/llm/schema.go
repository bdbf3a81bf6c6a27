package llm

import "encoding/json"

// Type is the primitive kind of a schema node. Values follow the OpenAPI
// subset understood by Gemini.
type Type string

const (
	TypeObject  Type = "OBJECT"
	TypeArray   Type = "ARRAY"
	TypeString  Type = "STRING"
	TypeNumber  Type = "NUMBER"
	TypeInteger Type = "INTEGER"
	TypeBoolean Type = "BOOLEAN"
)

// Schema is a vendor-neutral declaration of a structured response shape.
// Providers translate it to their native form. Gemini and OpenAI (strict mode)
// enforce it; Ollama and Anthropic treat it as guidance, so callers must still
// validate what comes back.
type Schema struct {
	Type        Type
	Description string
	Enum        []string
	Properties  map[string]*Schema
	// Order fixes property order for vendors that honour it. Properties not
	// listed are appended in map order.
	Order    []string
	Required []string
	Items    *Schema
	Minimum  *float64
	Maximum  *float64
}

// IsRequired reports whether the named property is required.
func (s *Schema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// PropertyNames returns property names, ordered by Order first.
func (s *Schema) PropertyNames() []string {
	seen := make(map[string]bool, len(s.Properties))
	names := make([]string, 0, len(s.Properties))
	for _, n := range s.Order {
		if _, ok := s.Properties[n]; ok && !seen[n] {
			names = append(names, n)
			seen[n] = true
		}
	}
	for n := range s.Properties {
		if !seen[n] {
			names = append(names, n)
		}
	}
	return names
}

// JSONSchema renders the declaration as a JSON Schema document for vendors that
// accept standard JSON Schema (Ollama, Anthropic). Optional properties may be
// omitted.
func (s *Schema) JSONSchema() map[string]any {
	return s.render(false, false)
}

// StrictJSONSchema renders the declaration in the form OpenAI enforces under
// strict structured outputs: every object closes additionalProperties and lists
// all of its properties as required, and optional properties become nullable
// instead of omittable. Decoders treat null like an absent optional field.
func (s *Schema) StrictJSONSchema() map[string]any {
	return s.render(true, false)
}

func (s *Schema) render(strict, nullable bool) map[string]any {
	if s == nil {
		return nil
	}
	out := map[string]any{}
	if t := jsonType(s.Type); t != "" {
		if nullable {
			out["type"] = []string{t, "null"}
		} else {
			out["type"] = t
		}
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		if nullable {
			enum := make([]any, 0, len(s.Enum)+1)
			for _, e := range s.Enum {
				enum = append(enum, e)
			}
			out["enum"] = append(enum, nil)
		} else {
			out["enum"] = s.Enum
		}
	}
	if s.Minimum != nil {
		out["minimum"] = *s.Minimum
	}
	if s.Maximum != nil {
		out["maximum"] = *s.Maximum
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = p.render(strict, strict && !s.IsRequired(name))
		}
		out["properties"] = props
	}
	switch {
	case strict && s.Type == TypeObject:
		out["required"] = s.PropertyNames()
		out["additionalProperties"] = false
	case len(s.Required) > 0:
		out["required"] = s.Required
	}
	if s.Items != nil {
		out["items"] = s.Items.render(strict, false)
	}
	return out
}

func jsonType(t Type) string {
	switch t {
	case TypeObject:
		return "object"
	case TypeArray:
		return "array"
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeInteger:
		return "integer"
	case TypeBoolean:
		return "boolean"
	}
	return ""
}

// jsonSchemaDoc lets a rendered schema satisfy json.Marshaler.
type jsonSchemaDoc map[string]any

func (d jsonSchemaDoc) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(d))
}

// Float returns a pointer to v, for Minimum/Maximum.
func Float(v float64) *float64 { return &v }
