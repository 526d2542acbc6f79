package field

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OptionValue is the value carried by an Option. The set of variants is
// closed: StringValue, NumberValue, StringListValue, ChoiceListValue,
// SelectValue, and RawValue for input that matched no declared shape.
type OptionValue interface {
	Kind() ValueKind
	isOptionValue()
}

// StringValue is a free-form text option value.
type StringValue string

// NumberValue is a numeric option value, in stored units.
type NumberValue float64

// StringListValue is a list of strings.
type StringListValue []string

// ChoiceListValue is a list of label/value pairs.
type ChoiceListValue []Choice

// SelectValue is one of the fixed choices declared in the registry.
type SelectValue string

// RawValue holds a value that could not be decoded into the shape declared
// for its key, or whose key is unknown. Validation always rejects it.
type RawValue struct {
	Data json.RawMessage
}

// Choice is one entry of a choices option.
type Choice struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

func (StringValue) Kind() ValueKind     { return KindString }
func (NumberValue) Kind() ValueKind     { return KindNumber }
func (StringListValue) Kind() ValueKind { return KindStringArray }
func (ChoiceListValue) Kind() ValueKind { return KindChoiceArray }
func (SelectValue) Kind() ValueKind     { return KindSelect }
func (RawValue) Kind() ValueKind        { return "" }

func (StringValue) isOptionValue()     {}
func (NumberValue) isOptionValue()     {}
func (StringListValue) isOptionValue() {}
func (ChoiceListValue) isOptionValue() {}
func (SelectValue) isOptionValue()     {}
func (RawValue) isOptionValue()        {}

// Option is a typed configuration knob: {type: key, value: value} on the wire.
type Option struct {
	Key   OptionKey
	Value OptionValue
}

type wireOption struct {
	Type  OptionKey       `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the option in its storage form.
func (o Option) MarshalJSON() ([]byte, error) {
	var raw json.RawMessage
	switch v := o.Value.(type) {
	case nil:
		raw = json.RawMessage("null")
	case RawValue:
		raw = v.Data
		if len(raw) == 0 {
			raw = json.RawMessage("null")
		}
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal option %s: %w", o.Key, err)
		}
		raw = data
	}
	return json.Marshal(wireOption{Type: o.Key, Value: raw})
}

// UnmarshalJSON decodes an option, using the registry to pick the variant.
// Unknown keys and mismatched shapes decode to RawValue so that the
// validator, not the decoder, reports them.
func (o *Option) UnmarshalJSON(data []byte) error {
	var w wireOption
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	o.Key = w.Type
	o.Value = decodeValue(w.Type, w.Value)
	return nil
}

func decodeValue(key OptionKey, data json.RawMessage) OptionValue {
	raw := RawValue{Data: append(json.RawMessage(nil), data...)}
	cfg, ok := UIConfigFor(key)
	if !ok {
		return raw
	}
	dec := func(dst any) bool {
		d := json.NewDecoder(bytes.NewReader(data))
		d.DisallowUnknownFields()
		return d.Decode(dst) == nil
	}
	switch cfg.Kind {
	case KindString:
		var s string
		if dec(&s) {
			return StringValue(s)
		}
	case KindNumber:
		var n float64
		if dec(&n) {
			return NumberValue(n)
		}
	case KindStringArray:
		var l []string
		if dec(&l) && l != nil {
			return StringListValue(l)
		}
	case KindChoiceArray:
		var l []Choice
		if dec(&l) && l != nil {
			return ChoiceListValue(l)
		}
	case KindSelect:
		var s string
		if dec(&s) {
			return SelectValue(s)
		}
	}
	return raw
}

// Find returns the first option with the given key.
func Find(opts []Option, k OptionKey) (OptionValue, bool) {
	for _, o := range opts {
		if o.Key == k {
			return o.Value, true
		}
	}
	return nil, false
}

// OptionSet is a keyed view of a field's options.
type OptionSet map[OptionKey]OptionValue

// Set builds a keyed view of opts. Later duplicates win.
func Set(opts []Option) OptionSet {
	s := make(OptionSet, len(opts))
	for _, o := range opts {
		s[o.Key] = o.Value
	}
	return s
}

// String returns a string option or "".
func (s OptionSet) String(k OptionKey) string {
	switch v := s[k].(type) {
	case StringValue:
		return string(v)
	case SelectValue:
		return string(v)
	}
	return ""
}

// Number returns a numeric option in stored units.
func (s OptionSet) Number(k OptionKey) (float64, bool) {
	v, ok := s[k].(NumberValue)
	return float64(v), ok
}

// Strings returns a string list option.
func (s OptionSet) Strings(k OptionKey) []string {
	v, _ := s[k].(StringListValue)
	return v
}

// Choices returns the choices option.
func (s OptionSet) Choices() []Choice {
	v, _ := s[OptChoices].(ChoiceListValue)
	return v
}
