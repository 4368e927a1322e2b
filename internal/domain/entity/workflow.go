package entity

type OptionType string

const (
	OptionText     OptionType = "text"
	OptionTextarea OptionType = "textarea"
	OptionNumber   OptionType = "number"
	OptionCheckbox OptionType = "checkbox"
	OptionSelect   OptionType = "select"
)

// WorkflowOption is a typed parameter the operator can set per profile.
// Steps reference it as {{options.<Key>}}.
type WorkflowOption struct {
	Key         string     `yaml:"key" json:"key"`
	Label       string     `yaml:"label" json:"label"`
	Type        OptionType `yaml:"type" json:"type"`
	Default     any        `yaml:"default,omitempty" json:"default,omitempty"`
	Choices     []string   `yaml:"choices,omitempty" json:"choices,omitempty"`
	Placeholder string     `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
}

// TriggerOverride lets a definition make a trigger unavailable or change
// its default enabled state.
type TriggerOverride struct {
	Available *bool `yaml:"available,omitempty" json:"available,omitempty"`
	Enabled   *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

type AutoRunConfig struct {
	Manual TriggerOverride `yaml:"manual,omitempty" json:"manual,omitempty"`
	Auto   TriggerOverride `yaml:"auto,omitempty" json:"auto,omitempty"`
	Repeat TriggerOverride `yaml:"repeat,omitempty" json:"repeat,omitempty"`
}

type WorkflowDefinition struct {
	ID          string
	Label       string
	Description string
	Steps       []Action
	Options     []WorkflowOption
	AutoRun     *AutoRunConfig
	Profiles    bool
	EnabledWhen Condition
	// Internal marks helper workflows reachable only through branch or
	// execute steps. They are never listed or auto-run.
	Internal bool
}

// DefaultOptionValues returns the declared option defaults keyed by option key.
func (w *WorkflowDefinition) DefaultOptionValues() map[string]any {
	values := make(map[string]any, len(w.Options))
	for _, opt := range w.Options {
		if opt.Default != nil {
			values[opt.Key] = opt.Default
			continue
		}
		switch opt.Type {
		case OptionCheckbox:
			values[opt.Key] = false
		case OptionNumber:
			values[opt.Key] = 0
		default:
			values[opt.Key] = ""
		}
	}
	return values
}
