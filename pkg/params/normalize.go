// Package params turns loosely typed job requests into canonical JobParams
// and derives their deduplication signatures.
package params

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/jdziat/durable-training-queue/pkg/core"
)

// FieldError reports a value that could not be coerced into its field.
type FieldError struct {
	Field string
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q (%v): %v", e.Field, e.Value, e.Err)
}

// Unwrap classifies every field error as invalid params.
func (e *FieldError) Unwrap() error {
	return core.ErrInvalidParams
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"20060102",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// Normalize fills every recognized field from raw, falling back to defaults
// for absent or blank values. Keys are matched case-insensitively and may use
// any of a field's aliases. Unknown keys are ignored.
//
// The returned error joins one *FieldError per malformed field; the partially
// normalized params are returned alongside it.
func Normalize(raw map[string]any, defaults core.JobParams) (core.JobParams, error) {
	lookup := make(map[string]any, len(raw))
	for k, v := range raw {
		lookup[strings.ToLower(strings.TrimSpace(k))] = v
	}

	var out core.JobParams
	var errs []error

	for _, f := range fields {
		v, ok := lookup[f.key]
		if !ok || isBlank(v) {
			for _, alias := range f.aliases {
				if av, found := lookup[alias]; found && !isBlank(av) {
					v, ok = av, true
					break
				}
			}
		}

		if f.kind == kindInt {
			n, set, err := toInt(v)
			if err != nil {
				errs = append(errs, &FieldError{Field: f.key, Value: v, Err: err})
				continue
			}
			if !set {
				n = *f.number(&defaults)
			}
			*f.number(&out) = n
			continue
		}

		s, err := canonicalize(f.kind, v)
		if err != nil {
			errs = append(errs, &FieldError{Field: f.key, Value: v, Err: err})
			continue
		}
		if s == "" {
			// Defaults go through the same canonicalization so a hand-built
			// default cannot smuggle in a non-canonical form.
			s, err = canonicalize(f.kind, *f.text(&defaults))
			if err != nil {
				errs = append(errs, &FieldError{Field: f.key, Value: *f.text(&defaults), Err: fmt.Errorf("default: %w", err)})
				continue
			}
		}
		*f.text(&out) = s
	}

	return out, errors.Join(errs...)
}

// FromParams returns the raw form of p, keyed by canonical field names.
// Normalize(FromParams(p), d) returns p for any normalized p.
func FromParams(p core.JobParams) map[string]any {
	raw := make(map[string]any, len(fields))
	for _, f := range fields {
		if f.kind == kindInt {
			raw[f.key] = *f.number(&p)
			continue
		}
		raw[f.key] = *f.text(&p)
	}
	return raw
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// toInt coerces v to an integer. set is false for nil, blank and zero values
// so the default applies.
func toInt(v any) (n int, set bool, err error) {
	if isBlank(v) {
		return 0, false, nil
	}
	if _, isBool := v.(bool); isBool {
		return 0, false, fmt.Errorf("expected a number")
	}
	if s, isString := v.(string); isString {
		v = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false, fmt.Errorf("expected a number")
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false, fmt.Errorf("expected a whole number")
	}
	if f == 0 {
		return 0, false, nil
	}
	return int(f), true, nil
}

func canonicalize(k kind, v any) (string, error) {
	if isBlank(v) {
		return "", nil
	}
	switch k {
	case kindText:
		return toText(v)
	case kindLower:
		s, err := toText(v)
		return strings.ToLower(s), err
	case kindDate:
		return toDate(v)
	case kindList, kindSet:
		items, err := toList(v)
		if err != nil {
			return "", err
		}
		return strings.Join(items, ","), nil
	case kindFloatList:
		items, err := toList(v)
		if err != nil {
			return "", err
		}
		for i, item := range items {
			f, err := cast.ToFloat64E(item)
			if err != nil {
				return "", fmt.Errorf("item %q is not a number", item)
			}
			items[i] = formatFloat(f)
		}
		return strings.Join(items, ","), nil
	case kindKeyValue:
		return toKeyValue(v)
	}
	return "", fmt.Errorf("unsupported field kind %d", k)
}

func toText(v any) (string, error) {
	switch t := v.(type) {
	case float64:
		return formatFloat(t), nil
	case float32:
		return formatFloat(float64(t)), nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("expected text: %w", err)
	}
	return strings.TrimSpace(s), nil
}

func toDate(v any) (string, error) {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format("2006-01-02"), nil
	}
	s, err := toText(v)
	if err != nil {
		return "", err
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return s, nil
}

// toList splits v into trimmed, non-empty items, preserving order.
func toList(v any) ([]string, error) {
	var parts []string
	switch t := v.(type) {
	case string:
		parts = splitTopLevel(t, ",;\n")
	case []string:
		for _, item := range t {
			parts = append(parts, splitTopLevel(item, ",;\n")...)
		}
	case []any:
		for _, item := range t {
			s, err := toText(item)
			if err != nil {
				return nil, err
			}
			parts = append(parts, splitTopLevel(s, ",;\n")...)
		}
	default:
		s, err := toText(v)
		if err != nil {
			return nil, err
		}
		parts = splitTopLevel(s, ",;\n")
	}

	items := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"'`)
		p = strings.TrimSpace(p)
		if p != "" {
			items = append(items, p)
		}
	}
	return items, nil
}

// keyValueReserved may not appear in hyperparameter names.
const keyValueReserved = "=:,;\n[]()"

// toKeyValue canonicalizes hyperparameter overrides into sorted k=v pairs.
func toKeyValue(v any) (string, error) {
	pairs := make(map[string]string)

	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			s, err := canonicalValue(val)
			if err != nil {
				return "", fmt.Errorf("key %q: %w", k, err)
			}
			key := strings.TrimSpace(k)
			if strings.ContainsAny(key, keyValueReserved) {
				return "", fmt.Errorf("key %q contains a reserved character", key)
			}
			if key != "" {
				pairs[key] = s
			}
		}
	default:
		var items []string
		if list, ok := v.([]any); ok {
			for _, item := range list {
				s, err := toText(item)
				if err != nil {
					return "", err
				}
				items = append(items, s)
			}
		} else {
			s, err := toText(v)
			if err != nil {
				return "", err
			}
			items = splitTopLevel(s, ",;\n")
		}
		for _, item := range items {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			idx := strings.IndexByte(item, '=')
			if idx < 0 {
				idx = strings.IndexByte(item, ':')
			}
			if idx <= 0 {
				return "", fmt.Errorf("entry %q is not key=value", item)
			}
			key := strings.TrimSpace(item[:idx])
			val, err := canonicalValue(strings.TrimSpace(item[idx+1:]))
			if err != nil {
				return "", fmt.Errorf("key %q: %w", key, err)
			}
			pairs[key] = val
		}
	}

	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k + "=" + pairs[k]
	}
	return strings.Join(out, ","), nil
}

// canonicalValue formats a hyperparameter value. Numbers use their shortest
// form and ranges are written as [a,b].
func canonicalValue(v any) (string, error) {
	switch t := v.(type) {
	case []any:
		items := make([]string, len(t))
		for i, item := range t {
			s, err := canonicalValue(item)
			if err != nil {
				return "", err
			}
			items[i] = s
		}
		return "[" + strings.Join(items, ",") + "]", nil
	case bool:
		return strconv.FormatBool(t), nil
	}

	s, err := toText(v)
	if err != nil {
		return "", err
	}
	if n := len(s); n >= 2 && (s[0] == '[' || s[0] == '(') && (s[n-1] == ']' || s[n-1] == ')') {
		inner := splitTopLevel(s[1:n-1], ",")
		items := make([]any, 0, len(inner))
		for _, item := range inner {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return canonicalValue(items)
	}
	if parts := splitTopLevel(s, ",;\n"); len(parts) > 1 {
		items := make([]any, 0, len(parts))
		for _, item := range parts {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return canonicalValue(items)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return formatFloat(f), nil
	}
	return s, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// splitTopLevel splits s on any of seps, ignoring separators inside brackets.
func splitTopLevel(s, seps string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch {
		case r == '[' || r == '(':
			depth++
		case (r == ']' || r == ')') && depth > 0:
			depth--
		case depth == 0 && strings.ContainsRune(seps, r):
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
