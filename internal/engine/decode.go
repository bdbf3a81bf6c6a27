package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ziadkadry99/nae/internal/llm"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeRecord turns a raw analysis payload into a validated record.
//
// A payload that is empty or not JSON yields an InferenceError. A JSON payload
// with the wrong shape yields a SchemaViolationError naming the first
// offending path. id and timestamp in the payload are discarded; the returned
// record carries a fresh id and the given receipt time.
func DecodeRecord(payload string, receivedAt time.Time) (*AnalysisRecord, error) {
	text := stripFences(payload)
	if text == "" {
		return nil, &InferenceError{Op: "analyze", Err: errors.New("narrative engine failed to converge: empty response")}
	}

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, &InferenceError{Op: "analyze", Err: fmt.Errorf("response is not valid JSON: %w", err)}
	}

	if err := checkShape(doc, ResponseSchema(), ""); err != nil {
		return nil, err
	}
	obj := doc.(map[string]any)
	if err := checkLayerKeys(obj["layers"].(map[string]any)); err != nil {
		return nil, err
	}
	delete(obj, "id")
	delete(obj, "timestamp")

	normalized, err := json.Marshal(obj)
	if err != nil {
		return nil, &InferenceError{Op: "analyze", Err: fmt.Errorf("re-encoding response: %w", err)}
	}
	var rec AnalysisRecord
	if err := json.Unmarshal(normalized, &rec); err != nil {
		// checkShape has already vetted every declared kind.
		return nil, &SchemaViolationError{Reason: err.Error()}
	}
	if err := validateRanges(&rec); err != nil {
		return nil, err
	}

	normalize(&rec)
	rec.ID = uuid.New().String()
	rec.Timestamp = receivedAt.UTC()
	return &rec, nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// checkShape walks v against s. Optional properties that are absent or null
// are skipped; required ones must be present and non-null.
func checkShape(v any, s *llm.Schema, path string) error {
	switch s.Type {
	case llm.TypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return violation(path, "expected object, got %s", kindOf(v))
		}
		for _, name := range s.PropertyNames() {
			child, present := obj[name]
			if !present || child == nil {
				if s.IsRequired(name) {
					return violation(join(path, name), "required field is missing")
				}
				continue
			}
			if err := checkShape(child, s.Properties[name], join(path, name)); err != nil {
				return err
			}
		}
	case llm.TypeArray:
		arr, ok := v.([]any)
		if !ok {
			return violation(path, "expected array, got %s", kindOf(v))
		}
		if s.Items == nil {
			return nil
		}
		for i, item := range arr {
			p := fmt.Sprintf("%s[%d]", path, i)
			if item == nil {
				return violation(p, "null array element")
			}
			if err := checkShape(item, s.Items, p); err != nil {
				return err
			}
		}
	case llm.TypeString:
		str, ok := v.(string)
		if !ok {
			return violation(path, "expected string, got %s", kindOf(v))
		}
		if len(s.Enum) > 0 && !slices.Contains(s.Enum, str) {
			return violation(path, "value %q is not one of %s", str, strings.Join(s.Enum, ", "))
		}
	case llm.TypeNumber:
		if _, ok := v.(float64); !ok {
			return violation(path, "expected number, got %s", kindOf(v))
		}
	case llm.TypeInteger:
		f, ok := v.(float64)
		if !ok || f != math.Trunc(f) {
			return violation(path, "expected integer, got %s", kindOf(v))
		}
	case llm.TypeBoolean:
		if _, ok := v.(bool); !ok {
			return violation(path, "expected boolean, got %s", kindOf(v))
		}
	}
	return nil
}

func checkLayerKeys(layers map[string]any) error {
	for key := range layers {
		if !slices.Contains(LayerNames, key) {
			return violation(join("layers", key), "unexpected layer")
		}
	}
	return nil
}

func validateRanges(rec *AnalysisRecord) error {
	err := validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &SchemaViolationError{Reason: err.Error()}
	}
	fe := verrs[0]
	path := fe.Namespace()
	// Drop the root type name.
	if _, rest, ok := strings.Cut(path, "."); ok {
		path = rest
	}
	switch fe.Tag() {
	case "required_if":
		return violation(path, "required when %s", strings.ReplaceAll(fe.Param(), " ", " is "))
	case "gte", "lte":
		return violation(path, "value %v out of range (%s %s)", fe.Value(), fe.Tag(), fe.Param())
	default:
		return violation(path, "failed %s check", fe.Tag())
	}
}

// normalize replaces nil slices so records encode with empty arrays.
func normalize(rec *AnalysisRecord) {
	if rec.Alerts == nil {
		rec.Alerts = []Alert{}
	}
	for i := range rec.Alerts {
		if rec.Alerts[i].EvidenceRefs == nil {
			rec.Alerts[i].EvidenceRefs = []string{}
		}
	}
	rec.Layers.Each(func(_ string, l *LayerData) {
		if l.KeyMetrics == nil {
			l.KeyMetrics = []Metric{}
		}
	})
	if sim := rec.StrategySimulation; sim != nil && sim.Zones != nil && sim.Zones.Targets == nil {
		sim.Zones.Targets = []float64{}
	}
}

func violation(path, format string, args ...any) *SchemaViolationError {
	return &SchemaViolationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	}
	return fmt.Sprintf("%T", v)
}
