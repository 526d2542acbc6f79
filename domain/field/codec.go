package field

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrOutOfRange is returned when a unit-converted option value is not
// positive or exceeds its declared bound.
var ErrOutOfRange = errors.New("value out of range")

// EditorMap is the editor-friendly form of a field's options: one entry per
// key, numeric values in edited units.
type EditorMap map[OptionKey]any

// ToMap converts stored options to the editor form. Unknown keys and values
// that do not match their declared shape are left out.
func ToMap(opts []Option) EditorMap {
	m := make(EditorMap, len(opts))
	for _, o := range opts {
		cfg, ok := UIConfigFor(o.Key)
		if !ok {
			continue
		}
		switch v := o.Value.(type) {
		case StringValue:
			m[o.Key] = string(v)
		case NumberValue:
			n := float64(v)
			if cfg.Unit != nil {
				n = n / cfg.Unit.Factor
			}
			m[o.Key] = n
		case StringListValue:
			m[o.Key] = append([]string(nil), v...)
		case ChoiceListValue:
			m[o.Key] = append([]Choice(nil), v...)
		case SelectValue:
			m[o.Key] = string(v)
		}
	}
	return m
}

// FromMap converts the editor form back to stored options, ordered by the
// registry. Unknown keys, empty strings, empty arrays and incomplete choices
// are dropped. Unit-converted numbers that are not positive or exceed the
// declared bound fail with ErrOutOfRange.
func FromMap(m EditorMap) ([]Option, error) {
	keys := make([]OptionKey, 0, len(m))
	for k := range m {
		if k.IsKnown() {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].order() < keys[j].order() })

	opts := make([]Option, 0, len(keys))
	for _, k := range keys {
		cfg, _ := UIConfigFor(k)
		v, keep, err := fromEditor(cfg, m[k])
		if err != nil {
			return nil, err
		}
		if keep {
			opts = append(opts, Option{Key: k, Value: v})
		}
	}
	return opts, nil
}

func fromEditor(cfg UIConfig, raw any) (OptionValue, bool, error) {
	switch cfg.Kind {
	case KindString:
		s, ok := raw.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, false, nil
		}
		return StringValue(s), true, nil

	case KindSelect:
		s, ok := raw.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, false, nil
		}
		return SelectValue(s), true, nil

	case KindNumber:
		n, ok := editorNumber(raw)
		if !ok {
			return nil, false, nil
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, false, fmt.Errorf("option %s: not a finite number: %w", cfg.Key, ErrOutOfRange)
		}
		if cfg.Unit != nil {
			if n <= 0 {
				return nil, false, fmt.Errorf("option %s: %s must be positive: %w", cfg.Key, cfg.Unit.Edited, ErrOutOfRange)
			}
			if cfg.Max > 0 && n > cfg.Max {
				return nil, false, fmt.Errorf("option %s: at most %s %s allowed: %w", cfg.Key, formatNumber(cfg.Max), cfg.Unit.Edited, ErrOutOfRange)
			}
			n = n * cfg.Unit.Factor
		}
		return NumberValue(n), true, nil

	case KindStringArray:
		list, _ := editorStrings(raw)
		if len(list) == 0 {
			return nil, false, nil
		}
		return StringListValue(list), true, nil

	case KindChoiceArray:
		choices := editorChoices(raw)
		if len(choices) == 0 {
			return nil, false, nil
		}
		return ChoiceListValue(choices), true, nil
	}
	return nil, false, nil
}

func editorNumber(raw any) (float64, bool) {
	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		return n, err == nil
	}
	return toFloat(raw)
}

func editorStrings(raw any) ([]string, bool) {
	var in []string
	switch l := raw.(type) {
	case []string:
		in = l
	case StringListValue:
		in = l
	case []any:
		for _, item := range l {
			if s, ok := item.(string); ok {
				in = append(in, s)
			}
		}
	default:
		return nil, false
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out, true
}

func editorChoices(raw any) []Choice {
	var in []Choice
	switch l := raw.(type) {
	case []Choice:
		in = l
	case ChoiceListValue:
		in = l
	case []any:
		for _, item := range l {
			switch c := item.(type) {
			case Choice:
				in = append(in, c)
			case map[string]any:
				label, _ := c["label"].(string)
				value, _ := c["value"].(string)
				in = append(in, Choice{Label: label, Value: value})
			}
		}
	}
	out := make([]Choice, 0, len(in))
	for _, c := range in {
		if strings.TrimSpace(c.Label) == "" || strings.TrimSpace(c.Value) == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// UnmarshalJSON decodes an editor map, keeping numbers as float64 and
// choice lists as []any of objects for FromMap to filter.
func (m *EditorMap) UnmarshalJSON(data []byte) error {
	var raw map[OptionKey]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = EditorMap(raw)
	return nil
}
