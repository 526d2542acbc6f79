package field

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Issue codes.
const (
	CodeInvalid        = "invalid"
	CodeRequired       = "required"
	CodeTooLong        = "too_long"
	CodeInvalidSlug    = "invalid_slug"
	CodeUnknownType    = "unknown_type"
	CodeUnknownOption  = "unknown_option"
	CodeUnsupported    = "unsupported_option"
	CodeInvalidValue   = "invalid_value"
	CodeMissingOption  = "missing_option"
	CodeDuplicateSlug  = "duplicate_slug"
	CodeDuplicateValue = "duplicate_value"
)

// Issue is one validation failure, located by path.
type Issue struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i Issue) Error() string {
	if i.Path == "" {
		return i.Message
	}
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Result is the outcome of validating a field or a set of fields.
// Warnings never make a result invalid.
type Result struct {
	Valid    bool    `json:"valid"`
	Issues   []Issue `json:"issues,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Add records a failure.
func (r *Result) Add(path, code, message string) {
	r.Valid = false
	r.Issues = append(r.Issues, Issue{Path: path, Code: code, Message: message})
}

// Warn records a soft issue.
func (r *Result) Warn(path, code, message string) {
	r.Warnings = append(r.Warnings, Issue{Path: path, Code: code, Message: message})
}

// Merge appends other's issues and warnings under a path prefix.
func (r *Result) Merge(prefix string, other Result) {
	for _, i := range other.Issues {
		r.Add(joinPath(prefix, i.Path), i.Code, i.Message)
	}
	for _, w := range other.Warnings {
		r.Warn(joinPath(prefix, w.Path), w.Code, w.Message)
	}
}

// FirstError returns the first failure message, or "".
func (r Result) FirstError() string {
	if len(r.Issues) == 0 {
		return ""
	}
	return r.Issues[0].Message
}

// Err returns nil for a valid result and a *ValidationError otherwise.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Result: r}
}

// ValidationError carries an invalid Result across an error boundary.
type ValidationError struct {
	Result Result
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Result.Issues))
	for i, iss := range e.Result.Issues {
		msgs[i] = iss.Error()
	}
	return strings.Join(msgs, "; ")
}

// AsValidation extracts a *ValidationError from err.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func joinPath(prefix, path string) string {
	switch {
	case prefix == "":
		return path
	case path == "":
		return prefix
	default:
		return prefix + "." + path
	}
}

var shape = newShapeValidator()

func newShapeValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateField checks a single field definition and stops at the first
// failure. The slug is derived from the label when empty.
func ValidateField(c Config) Result {
	c = Normalize(c)
	r := Result{Valid: true}

	if err := shape.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			r.Add(fe.Field(), shapeCode(fe), shapeMessage(fe))
			return r
		}
		r.Add("", CodeInvalid, err.Error())
		return r
	}

	if !IsValidSlug(c.Slug) {
		r.Add("slug", CodeInvalidSlug, fmt.Sprintf("slug %q must contain only lowercase letters, digits and single underscores", c.Slug))
		return r
	}

	spec, ok := Spec(c.Type)
	if !ok {
		r.Add("type", CodeUnknownType, fmt.Sprintf("unknown field type %q; valid types: %s", c.Type, knownTypeList()))
		return r
	}

	for i, o := range c.Options {
		if iss, bad := checkOption(spec, o); bad {
			r.Add(fmt.Sprintf("options[%d]", i), iss.Code, iss.Message)
			return r
		}
	}

	present := c.OptionSet()
	for _, k := range spec.RequiredOptions {
		if _, ok := present[k]; !ok {
			r.Add("options", CodeMissingOption, missingOptionMessage(spec, k))
			return r
		}
	}
	for _, k := range spec.RecommendedOptions {
		if _, ok := present[k]; !ok {
			r.Warn("options", CodeMissingOption, fmt.Sprintf("%s fields should have a %q option", spec.Label, k))
		}
	}
	return r
}

// ValidateCollection checks every field and the uniqueness of their slugs.
// Issues are reported per field path; each field contributes at most one.
// Uniqueness against built-in field slugs is the caller's concern.
func ValidateCollection(fields []Config) Result {
	r := Result{Valid: true}
	seen := make(map[string]int, len(fields))
	for i, f := range fields {
		path := fmt.Sprintf("customFields[%d]", i)
		r.Merge(path, ValidateField(f))

		slug := Normalize(f).Slug
		if slug == "" {
			continue
		}
		if first, dup := seen[slug]; dup {
			r.Add(path+".slug", CodeDuplicateSlug,
				fmt.Sprintf("duplicate field slug %q (also used by customFields[%d])", slug, first))
			continue
		}
		seen[slug] = i
	}
	return r
}

func checkOption(spec TypeSpec, o Option) (Issue, bool) {
	cfg, ok := UIConfigFor(o.Key)
	if !ok {
		return Issue{Code: CodeUnknownOption,
			Message: fmt.Sprintf("unknown option %q; valid options: %s", o.Key, knownOptionList())}, true
	}
	if !spec.Accepts(o.Key) {
		return Issue{Code: CodeUnsupported,
			Message: fmt.Sprintf("option %q is not supported for %s fields", o.Key, spec.Label)}, true
	}
	if code, msg := checkOptionValue(spec, cfg, o.Value); msg != "" {
		return Issue{Code: code, Message: msg}, true
	}
	return Issue{}, false
}

func checkOptionValue(spec TypeSpec, cfg UIConfig, v OptionValue) (code, msg string) {
	switch val := v.(type) {
	case StringValue:
		if cfg.Kind != KindString {
			break
		}
		if strings.TrimSpace(string(val)) == "" {
			return CodeInvalidValue, fmt.Sprintf("option %q must be a non-empty string", cfg.Key)
		}
		if cfg.Key == OptPattern {
			if _, err := regexp.Compile(string(val)); err != nil {
				return CodeInvalidValue, fmt.Sprintf("option %q is not a valid regular expression", cfg.Key)
			}
		}
		return "", ""

	case NumberValue:
		if cfg.Kind != KindNumber {
			break
		}
		n := float64(val)
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return CodeInvalidValue, fmt.Sprintf("option %q must be a finite number", cfg.Key)
		}
		if cfg.Unit != nil {
			n = n / cfg.Unit.Factor
		}
		if n <= 0 {
			return CodeInvalidValue, fmt.Sprintf("option %q must be a positive number", cfg.Key)
		}
		if cfg.Max > 0 && n > cfg.Max {
			if cfg.Unit != nil {
				return CodeInvalidValue, fmt.Sprintf("option %q must be at most %s %s", cfg.Key, formatNumber(cfg.Max), cfg.Unit.Edited)
			}
			return CodeInvalidValue, fmt.Sprintf("option %q must be at most %s", cfg.Key, formatNumber(cfg.Max))
		}
		return "", ""

	case StringListValue:
		if cfg.Kind != KindStringArray {
			break
		}
		if len(val) == 0 {
			return CodeInvalidValue, fmt.Sprintf("option %q must contain at least one entry", cfg.Key)
		}
		for _, s := range val {
			if strings.TrimSpace(s) == "" {
				return CodeInvalidValue, fmt.Sprintf("option %q must not contain empty entries", cfg.Key)
			}
		}
		return "", ""

	case ChoiceListValue:
		if cfg.Kind != KindChoiceArray {
			break
		}
		if len(val) == 0 {
			return CodeMissingOption, fmt.Sprintf("%s fields must have at least one choice", spec.Label)
		}
		seen := make(map[string]bool, len(val))
		for _, c := range val {
			if strings.TrimSpace(c.Label) == "" || strings.TrimSpace(c.Value) == "" {
				return CodeInvalidValue, "each choice needs a non-empty label and value"
			}
			if seen[c.Value] {
				return CodeDuplicateValue, fmt.Sprintf("option %q has duplicate value %q", cfg.Key, c.Value)
			}
			seen[c.Value] = true
		}
		return "", ""

	case SelectValue:
		if cfg.Kind != KindSelect {
			break
		}
		if !cfg.allows(string(val)) {
			return CodeInvalidValue, fmt.Sprintf("option %q must be one of: %s", cfg.Key, strings.Join(cfg.Choices, ", "))
		}
		return "", ""
	}
	return CodeInvalidValue, fmt.Sprintf("option %q must be %s", cfg.Key, kindDescription(cfg.Kind))
}

func missingOptionMessage(spec TypeSpec, k OptionKey) string {
	if k == OptChoices {
		return fmt.Sprintf("%s fields must have at least one choice", spec.Label)
	}
	return fmt.Sprintf("%s fields require a %q option", spec.Label, k)
}

func kindDescription(k ValueKind) string {
	switch k {
	case KindString:
		return "a string"
	case KindNumber:
		return "a number"
	case KindStringArray:
		return "a list of strings"
	case KindChoiceArray:
		return "a list of {label, value} choices"
	case KindSelect:
		return "one of its fixed choices"
	}
	return "a valid value"
}

func shapeCode(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return CodeRequired
	case "max":
		return CodeTooLong
	}
	return CodeInvalid
}

func shapeMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
