package field

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Storage formats for date values. Display formats come from the format option.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = time.RFC3339
)

var displayLayouts = map[string]string{
	"YYYY-MM-DD": "2006-01-02",
	"DD/MM/YYYY": "02/01/2006",
	"MM/DD/YYYY": "01/02/2006",
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Render returns the display text for an item value of type t.
func Render(t Type, value any, opts []Option) string {
	s, ok := Spec(t)
	if !ok || value == nil {
		return ""
	}
	return s.Render(value, Set(opts))
}

// CheckValue validates an item value of type t against opts.
// Returns "" when the value is acceptable.
func CheckValue(t Type, value any, opts []Option) string {
	s, ok := Spec(t)
	if !ok {
		return fmt.Sprintf("unknown field type %q", t)
	}
	return s.Check(value, Set(opts))
}

// -----------------------------------------------------------------------------
// Renderers
// -----------------------------------------------------------------------------

func renderString(v any, _ OptionSet) string {
	s, _ := v.(string)
	return s
}

func renderRichText(v any, _ OptionSet) string {
	s, _ := v.(string)
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}

func renderNumber(v any, _ OptionSet) string {
	n, ok := toFloat(v)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func renderBoolean(v any, _ OptionSet) string {
	if b, _ := v.(bool); b {
		return "Yes"
	}
	return "No"
}

func renderDate(v any, opts OptionSet) string {
	s, _ := v.(string)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return s
	}
	return t.Format(displayLayout(opts))
}

func renderDateTime(v any, opts OptionSet) string {
	s, _ := v.(string)
	t, err := time.Parse(DateTimeLayout, s)
	if err != nil {
		return s
	}
	return t.Format(displayLayout(opts) + " 15:04")
}

func displayLayout(opts OptionSet) string {
	if l, ok := displayLayouts[opts.String(OptFormat)]; ok {
		return l
	}
	return DateLayout
}

func renderSelect(v any, opts OptionSet) string {
	s, _ := v.(string)
	return choiceLabel(opts.Choices(), s)
}

func renderMultiSelect(v any, opts OptionSet) string {
	values, _ := toStrings(v)
	labels := make([]string, len(values))
	for i, s := range values {
		labels[i] = choiceLabel(opts.Choices(), s)
	}
	return strings.Join(labels, ", ")
}

func renderList(v any, _ OptionSet) string {
	values, _ := toStrings(v)
	return strings.Join(values, ", ")
}

func renderJSON(v any, _ OptionSet) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func choiceLabel(choices []Choice, value string) string {
	for _, c := range choices {
		if c.Value == value {
			return c.Label
		}
	}
	return value
}

// -----------------------------------------------------------------------------
// Item value checks
// -----------------------------------------------------------------------------

func checkString(v any, _ OptionSet) string {
	if _, ok := v.(string); !ok {
		return "must be a string"
	}
	return ""
}

func checkText(v any, opts OptionSet) string {
	s, ok := v.(string)
	if !ok {
		return "must be a string"
	}
	n := utf8.RuneCountInString(s)
	if min, ok := opts.Number(OptMinLength); ok && float64(n) < min {
		return fmt.Sprintf("must be at least %s characters", formatNumber(min))
	}
	if max, ok := opts.Number(OptMaxLength); ok && float64(n) > max {
		return fmt.Sprintf("must be at most %s characters", formatNumber(max))
	}
	if p := opts.String(OptPattern); p != "" && s != "" {
		re, err := regexp.Compile(p)
		if err == nil && !re.MatchString(s) {
			return fmt.Sprintf("must match pattern %s", p)
		}
	}
	return ""
}

func checkNumber(v any, opts OptionSet) string {
	n, ok := toFloat(v)
	if !ok {
		return "must be a number"
	}
	if min, ok := opts.Number(OptMin); ok && n < min {
		return fmt.Sprintf("must be at least %s", formatNumber(min))
	}
	if max, ok := opts.Number(OptMax); ok && n > max {
		return fmt.Sprintf("must be at most %s", formatNumber(max))
	}
	return ""
}

func checkBoolean(v any, _ OptionSet) string {
	if _, ok := v.(bool); !ok {
		return "must be true or false"
	}
	return ""
}

func checkDate(v any, _ OptionSet) string {
	s, ok := v.(string)
	if !ok {
		return "must be a date string"
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "must be a date in YYYY-MM-DD form"
	}
	return ""
}

func checkDateTime(v any, _ OptionSet) string {
	s, ok := v.(string)
	if !ok {
		return "must be a date-time string"
	}
	if _, err := time.Parse(DateTimeLayout, s); err != nil {
		return "must be an RFC 3339 date-time"
	}
	return ""
}

func checkSelect(v any, opts OptionSet) string {
	s, ok := v.(string)
	if !ok {
		return "must be a string"
	}
	if !hasChoice(opts.Choices(), s) {
		return fmt.Sprintf("%q is not one of the allowed choices", s)
	}
	return ""
}

func checkMultiSelect(v any, opts OptionSet) string {
	values, ok := toStrings(v)
	if !ok {
		return "must be a list of strings"
	}
	for _, s := range values {
		if !hasChoice(opts.Choices(), s) {
			return fmt.Sprintf("%q is not one of the allowed choices", s)
		}
	}
	return ""
}

func checkFileList(v any, opts OptionSet) string {
	values, ok := toStrings(v)
	if !ok {
		return "must be a list of strings"
	}
	if max, ok := opts.Number(OptMaxFiles); ok && float64(len(values)) > max {
		return fmt.Sprintf("must contain at most %s files", formatNumber(max))
	}
	return ""
}

func checkJSON(v any, _ OptionSet) string {
	if _, err := json.Marshal(v); err != nil {
		return "must be valid JSON"
	}
	return ""
}

func hasChoice(choices []Choice, value string) bool {
	for _, c := range choices {
		if c.Value == value {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toStrings(v any) ([]string, bool) {
	switch l := v.(type) {
	case []string:
		return l, true
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
