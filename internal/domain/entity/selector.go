package entity

import (
	"fmt"
	"sort"
	"strings"
)

// SelectorSpec is a predicate tree describing how to find elements.
// Selector, ID, Tag and Role double as candidate narrowing keys, checked in
// that order; the remaining fields only filter candidates.
type SelectorSpec struct {
	Selector   string                   `yaml:"selector,omitempty" json:"selector,omitempty"`
	ID         string                   `yaml:"id,omitempty" json:"id,omitempty"`
	Tag        string                   `yaml:"tag,omitempty" json:"tag,omitempty"`
	Role       string                   `yaml:"role,omitempty" json:"role,omitempty"`
	Type       string                   `yaml:"type,omitempty" json:"type,omitempty"`
	Attributes map[string]StringMatcher `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	Text       *TextMatcher             `yaml:"text,omitempty" json:"text,omitempty"`
	Visible    *bool                    `yaml:"visible,omitempty" json:"visible,omitempty"`
	Within     *SelectorSpec            `yaml:"within,omitempty" json:"within,omitempty"`
	And        []SelectorSpec           `yaml:"and,omitempty" json:"and,omitempty"`
	Or         []SelectorSpec           `yaml:"or,omitempty" json:"or,omitempty"`
	Not        *SelectorSpec            `yaml:"not,omitempty" json:"not,omitempty"`
	Nth        *int                     `yaml:"nth,omitempty" json:"nth,omitempty"`
}

// StringMatcher matches an attribute value. All set fields must hold.
// An empty matcher only requires the attribute to be present.
type StringMatcher struct {
	Equals     string `yaml:"equals,omitempty" json:"equals,omitempty"`
	Includes   string `yaml:"includes,omitempty" json:"includes,omitempty"`
	Pattern    string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	IgnoreCase bool   `yaml:"ignoreCase,omitempty" json:"ignoreCase,omitempty"`
}

// TextMatcher matches an element's text content. All set fields must hold.
type TextMatcher struct {
	Equals     string `yaml:"equals,omitempty" json:"equals,omitempty"`
	Includes   string `yaml:"includes,omitempty" json:"includes,omitempty"`
	Pattern    string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Flags      string `yaml:"flags,omitempty" json:"flags,omitempty"`
	Trim       bool   `yaml:"trim,omitempty" json:"trim,omitempty"`
	IgnoreCase bool   `yaml:"ignoreCase,omitempty" json:"ignoreCase,omitempty"`
}

// Bool returns a pointer to b, for optional spec fields.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to i, for optional spec fields.
func Int(i int) *int { return &i }

// String renders a short human description used in logs and errors.
func (s SelectorSpec) String() string {
	var parts []string
	if s.Selector != "" {
		parts = append(parts, s.Selector)
	}
	if s.ID != "" {
		parts = append(parts, "#"+s.ID)
	}
	if s.Tag != "" {
		parts = append(parts, "<"+s.Tag+">")
	}
	if s.Role != "" {
		parts = append(parts, "role="+s.Role)
	}
	if s.Type != "" {
		parts = append(parts, "type="+s.Type)
	}
	if len(s.Attributes) > 0 {
		names := make([]string, 0, len(s.Attributes))
		for name := range s.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)
		parts = append(parts, "["+strings.Join(names, ",")+"]")
	}
	if s.Text != nil {
		parts = append(parts, "text"+s.Text.String())
	}
	if s.Within != nil {
		parts = append(parts, "within("+s.Within.String()+")")
	}
	if len(s.And) > 0 {
		parts = append(parts, fmt.Sprintf("and(%d)", len(s.And)))
	}
	if len(s.Or) > 0 {
		parts = append(parts, fmt.Sprintf("or(%d)", len(s.Or)))
	}
	if s.Not != nil {
		parts = append(parts, "not("+s.Not.String()+")")
	}
	if s.Nth != nil {
		parts = append(parts, fmt.Sprintf("nth=%d", *s.Nth))
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}

func (t TextMatcher) String() string {
	switch {
	case t.Pattern != "":
		return fmt.Sprintf("~/%s/%s", t.Pattern, t.Flags)
	case t.Equals != "":
		return fmt.Sprintf("=%q", t.Equals)
	case t.Includes != "":
		return fmt.Sprintf("*=%q", t.Includes)
	}
	return ""
}
