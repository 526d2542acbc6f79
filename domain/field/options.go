package field

import "strings"

// OptionKey names a configuration knob attached to a field.
// Keys come from a single global registry, not from per-type lists.
type OptionKey string

// Registered option keys.
const (
	OptPlaceholder  OptionKey = "placeholder"
	OptHelpText     OptionKey = "help_text"
	OptDefaultValue OptionKey = "default_value"
	OptMinLength    OptionKey = "min_length"
	OptMaxLength    OptionKey = "max_length"
	OptPattern      OptionKey = "pattern"
	OptMin          OptionKey = "min"
	OptMax          OptionKey = "max"
	OptStep         OptionKey = "step"
	OptRows         OptionKey = "rows"
	OptChoices      OptionKey = "choices"
	OptAccept       OptionKey = "accept"
	OptMaxSize      OptionKey = "max_size"
	OptMaxFiles     OptionKey = "max_files"
	OptFormat       OptionKey = "format"
	OptToolbar      OptionKey = "toolbar"
	OptAspectRatio  OptionKey = "aspect_ratio"
)

// ValueKind is the shape an option value must have.
type ValueKind string

const (
	KindString      ValueKind = "string"
	KindNumber      ValueKind = "number"
	KindStringArray ValueKind = "string_array"
	KindChoiceArray ValueKind = "choice_array"
	KindSelect      ValueKind = "select"
)

// Unit describes a conversion between the stored and edited representation
// of a numeric option. Stored = Edited * Factor.
type Unit struct {
	Stored string  `json:"stored"`
	Edited string  `json:"edited"`
	Factor float64 `json:"factor"`
}

// BytesPerMB is the factor between bytes and megabytes.
const BytesPerMB = 1024 * 1024

// MaxUploadMB is the largest max_size accepted, in megabytes.
const MaxUploadMB = 1000

// UIConfig is the registry entry for one option key.
type UIConfig struct {
	Key         OptionKey `json:"key"`
	Kind        ValueKind `json:"kind"`
	Label       string    `json:"label"`
	Placeholder string    `json:"placeholder,omitempty"`
	HelpText    string    `json:"help_text,omitempty"`

	// Choices lists the legal values for KindSelect options.
	Choices []string `json:"choices,omitempty"`

	// Max is the inclusive upper bound for KindNumber options,
	// expressed in edited units when Unit is set.
	Max float64 `json:"max,omitempty"`

	// Unit is set when the stored and edited forms differ.
	Unit *Unit `json:"unit,omitempty"`
}

var megabytes = &Unit{Stored: "bytes", Edited: "MB", Factor: BytesPerMB}

// optionTable is the option registry. Order here is the canonical order
// used when converting editor maps back to stored option lists.
var optionTable = []UIConfig{
	{Key: OptPlaceholder, Kind: KindString, Label: "Placeholder", Placeholder: "Enter placeholder text", HelpText: "Shown inside the empty input"},
	{Key: OptHelpText, Kind: KindString, Label: "Help text", Placeholder: "Explain what belongs here", HelpText: "Shown below the input"},
	{Key: OptDefaultValue, Kind: KindString, Label: "Default value"},
	{Key: OptMinLength, Kind: KindNumber, Label: "Minimum length", Max: 100000},
	{Key: OptMaxLength, Kind: KindNumber, Label: "Maximum length", Max: 100000},
	{Key: OptPattern, Kind: KindString, Label: "Pattern", Placeholder: "^[A-Z]+$", HelpText: "Regular expression values must match"},
	{Key: OptMin, Kind: KindNumber, Label: "Minimum", Max: 1e12},
	{Key: OptMax, Kind: KindNumber, Label: "Maximum", Max: 1e12},
	{Key: OptStep, Kind: KindNumber, Label: "Step", Max: 1e6},
	{Key: OptRows, Kind: KindNumber, Label: "Rows", Max: 50},
	{Key: OptChoices, Kind: KindChoiceArray, Label: "Choices", HelpText: "Each choice needs a label and a unique value"},
	{Key: OptAccept, Kind: KindStringArray, Label: "Accepted types", Placeholder: "image/png, .pdf", HelpText: "MIME types or file extensions"},
	{Key: OptMaxSize, Kind: KindNumber, Label: "Maximum size", HelpText: "Largest upload allowed, in megabytes", Max: MaxUploadMB, Unit: megabytes},
	{Key: OptMaxFiles, Kind: KindNumber, Label: "Maximum files", Max: 100},
	{Key: OptFormat, Kind: KindSelect, Label: "Date format", Choices: []string{"YYYY-MM-DD", "DD/MM/YYYY", "MM/DD/YYYY"}},
	{Key: OptToolbar, Kind: KindSelect, Label: "Toolbar", Choices: []string{"minimal", "standard", "full"}},
	{Key: OptAspectRatio, Kind: KindSelect, Label: "Aspect ratio", Choices: []string{"free", "1:1", "4:3", "16:9"}},
}

var optionIndex = func() map[OptionKey]int {
	idx := make(map[OptionKey]int, len(optionTable))
	for i, c := range optionTable {
		idx[c.Key] = i
	}
	return idx
}()

// UIConfigFor returns the registry entry for an option key.
func UIConfigFor(k OptionKey) (UIConfig, bool) {
	i, ok := optionIndex[k]
	if !ok {
		return UIConfig{}, false
	}
	return optionTable[i], true
}

// OptionKeys returns every registered option key in registry order.
func OptionKeys() []OptionKey {
	keys := make([]OptionKey, len(optionTable))
	for i, c := range optionTable {
		keys[i] = c.Key
	}
	return keys
}

// UIConfigs returns a copy of the whole option registry.
func UIConfigs() []UIConfig {
	out := make([]UIConfig, len(optionTable))
	copy(out, optionTable)
	return out
}

// IsKnown reports whether k is a registered option key.
func (k OptionKey) IsKnown() bool {
	_, ok := optionIndex[k]
	return ok
}

func (k OptionKey) order() int {
	if i, ok := optionIndex[k]; ok {
		return i
	}
	return len(optionTable)
}

func knownOptionList() string {
	names := make([]string, len(optionTable))
	for i, c := range optionTable {
		names[i] = string(c.Key)
	}
	return strings.Join(names, ", ")
}

func (c UIConfig) allows(choice string) bool {
	for _, v := range c.Choices {
		if v == choice {
			return true
		}
	}
	return false
}
