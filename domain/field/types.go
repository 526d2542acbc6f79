// Package field provides the field-type system for user-defined collections.
//
// Everything type-specific lives in one table (typeTable) keyed by the closed
// Type enum: the native value shape, the option keys the type accepts, the
// read-side renderer, the input widget and the item value check. The option
// registry (optionTable) declares the shape and UI metadata of every option
// key. Both the editing API and the validator read these two tables; no other
// code branches on field type.
//
// All functions in this package are pure.
package field

import (
	"strings"
)

// Type is a supported field kind.
type Type string

const (
	TypeText        Type = "text"
	TypeTextarea    Type = "textarea"
	TypeRichText    Type = "richtext"
	TypeNumber      Type = "number"
	TypeBoolean     Type = "boolean"
	TypeDate        Type = "date"
	TypeDateTime    Type = "datetime"
	TypeSelect      Type = "select"
	TypeMultiSelect Type = "multiselect"
	TypeImage       Type = "image"
	TypeImages      Type = "images"
	TypeFile        Type = "file"
	TypeJSON        Type = "json"
)

// ValueShape is the native shape of a field's item value.
type ValueShape string

const (
	ShapeString      ValueShape = "string"
	ShapeNumber      ValueShape = "number"
	ShapeBoolean     ValueShape = "boolean"
	ShapeStringArray ValueShape = "string_array"
	ShapeJSON        ValueShape = "json"
)

// Widget identifies the input widget used to author a value.
type Widget string

const (
	WidgetTextInput   Widget = "text_input"
	WidgetTextarea    Widget = "textarea"
	WidgetRichText    Widget = "rich_text_editor"
	WidgetNumberInput Widget = "number_input"
	WidgetToggle      Widget = "toggle"
	WidgetDatePicker  Widget = "date_picker"
	WidgetDateTime    Widget = "datetime_picker"
	WidgetSelect      Widget = "select"
	WidgetMultiSelect Widget = "multi_select"
	WidgetImage       Widget = "image_upload"
	WidgetGallery     Widget = "gallery_upload"
	WidgetFile        Widget = "file_upload"
	WidgetJSON        Widget = "json_editor"
)

// Renderer turns a stored item value into display text.
type Renderer func(value any, opts OptionSet) string

// Checker validates an item value against the field's options.
// It returns a user-facing message, or "" when the value is acceptable.
type Checker func(value any, opts OptionSet) string

// TypeSpec is one row of the type table.
type TypeSpec struct {
	Type    Type        `json:"type"`
	Label   string      `json:"label"`
	Shape   ValueShape  `json:"shape"`
	Options []OptionKey `json:"options"`
	Widget  Widget      `json:"widget"`

	// RequiredOptions must be present for the field to be valid.
	RequiredOptions []OptionKey `json:"required_options,omitempty"`

	// RecommendedOptions produce a warning, not a failure, when absent.
	RecommendedOptions []OptionKey `json:"recommended_options,omitempty"`

	Render Renderer `json:"-"`
	Check  Checker  `json:"-"`
}

var typeTable = []TypeSpec{
	{
		Type: TypeText, Label: "Text", Shape: ShapeString, Widget: WidgetTextInput,
		Options: []OptionKey{OptPlaceholder, OptHelpText, OptDefaultValue, OptMinLength, OptMaxLength, OptPattern},
		Render:  renderString, Check: checkText,
	},
	{
		Type: TypeTextarea, Label: "Textarea", Shape: ShapeString, Widget: WidgetTextarea,
		Options: []OptionKey{OptPlaceholder, OptHelpText, OptRows, OptMinLength, OptMaxLength},
		Render:  renderString, Check: checkText,
	},
	{
		Type: TypeRichText, Label: "Rich text", Shape: ShapeString, Widget: WidgetRichText,
		Options: []OptionKey{OptHelpText, OptToolbar},
		Render:  renderRichText, Check: checkString,
	},
	{
		Type: TypeNumber, Label: "Number", Shape: ShapeNumber, Widget: WidgetNumberInput,
		Options: []OptionKey{OptPlaceholder, OptHelpText, OptMin, OptMax, OptStep},
		Render:  renderNumber, Check: checkNumber,
	},
	{
		Type: TypeBoolean, Label: "Boolean", Shape: ShapeBoolean, Widget: WidgetToggle,
		Options: []OptionKey{OptHelpText, OptDefaultValue},
		Render:  renderBoolean, Check: checkBoolean,
	},
	{
		Type: TypeDate, Label: "Date", Shape: ShapeString, Widget: WidgetDatePicker,
		Options: []OptionKey{OptHelpText, OptFormat},
		Render:  renderDate, Check: checkDate,
	},
	{
		Type: TypeDateTime, Label: "Date & time", Shape: ShapeString, Widget: WidgetDateTime,
		Options: []OptionKey{OptHelpText, OptFormat},
		Render:  renderDateTime, Check: checkDateTime,
	},
	{
		Type: TypeSelect, Label: "Select", Shape: ShapeString, Widget: WidgetSelect,
		Options:         []OptionKey{OptHelpText, OptChoices},
		RequiredOptions: []OptionKey{OptChoices},
		Render:          renderSelect, Check: checkSelect,
	},
	{
		Type: TypeMultiSelect, Label: "Multi-select", Shape: ShapeStringArray, Widget: WidgetMultiSelect,
		Options:         []OptionKey{OptHelpText, OptChoices},
		RequiredOptions: []OptionKey{OptChoices},
		Render:          renderMultiSelect, Check: checkMultiSelect,
	},
	{
		Type: TypeImage, Label: "Image", Shape: ShapeString, Widget: WidgetImage,
		Options: []OptionKey{OptHelpText, OptMaxSize, OptAccept, OptAspectRatio},
		Render:  renderString, Check: checkString,
	},
	{
		Type: TypeImages, Label: "Images", Shape: ShapeStringArray, Widget: WidgetGallery,
		Options: []OptionKey{OptHelpText, OptMaxSize, OptMaxFiles, OptAccept, OptAspectRatio},
		Render:  renderList, Check: checkFileList,
	},
	{
		Type: TypeFile, Label: "File", Shape: ShapeString, Widget: WidgetFile,
		Options:            []OptionKey{OptHelpText, OptAccept, OptMaxSize},
		RecommendedOptions: []OptionKey{OptAccept},
		Render:             renderString, Check: checkString,
	},
	{
		Type: TypeJSON, Label: "JSON", Shape: ShapeJSON, Widget: WidgetJSON,
		Options: []OptionKey{OptHelpText},
		Render:  renderJSON, Check: checkJSON,
	},
}

var typeIndex = func() map[Type]int {
	idx := make(map[Type]int, len(typeTable))
	for i, s := range typeTable {
		idx[s.Type] = i
	}
	return idx
}()

// Spec returns the table row for t.
func Spec(t Type) (TypeSpec, bool) {
	i, ok := typeIndex[t]
	if !ok {
		return TypeSpec{}, false
	}
	return typeTable[i], true
}

// Specs returns every row of the type table, in declaration order.
func Specs() []TypeSpec {
	out := make([]TypeSpec, len(typeTable))
	copy(out, typeTable)
	return out
}

// AllTypes returns every supported field type.
func AllTypes() []Type {
	out := make([]Type, len(typeTable))
	for i, s := range typeTable {
		out[i] = s.Type
	}
	return out
}

// IsValid reports whether t is a member of the closed enum.
func (t Type) IsValid() bool {
	_, ok := typeIndex[t]
	return ok
}

// String returns the string form of the type.
func (t Type) String() string {
	return string(t)
}

// OptionsForType returns the option keys t accepts, in display order.
func OptionsForType(t Type) []OptionKey {
	s, ok := Spec(t)
	if !ok {
		return nil
	}
	out := make([]OptionKey, len(s.Options))
	copy(out, s.Options)
	return out
}

// ShapeOf returns the native value shape of t.
func ShapeOf(t Type) ValueShape {
	s, _ := Spec(t)
	return s.Shape
}

// WidgetFor returns the input widget for t.
func WidgetFor(t Type) Widget {
	s, _ := Spec(t)
	return s.Widget
}

// Accepts reports whether options of key k may be attached to t.
func (s TypeSpec) Accepts(k OptionKey) bool {
	for _, o := range s.Options {
		if o == k {
			return true
		}
	}
	return false
}

func knownTypeList() string {
	names := make([]string, len(typeTable))
	for i, s := range typeTable {
		names[i] = string(s.Type)
	}
	return strings.Join(names, ", ")
}
