package matcher

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"carvana-workflows/internal/application/port/output"
	"carvana-workflows/internal/domain/entity"

	"github.com/gobwas/glob"
)

// Options are call-site filters. VisibleOnly applies on top of spec.Visible.
type Options struct {
	Root        output.Element
	VisibleOnly bool
}

// Matcher evaluates SelectorSpec and Condition trees against a document.
// It never mutates the tree, except for Highlight.
type Matcher struct {
	doc    output.Document
	logger output.LoggerPort

	mu      sync.Mutex
	regexes map[string]*regexp.Regexp
	globs   map[string]glob.Glob
}

func New(doc output.Document, logger output.LoggerPort) *Matcher {
	return &Matcher{
		doc:     doc,
		logger:  logger,
		regexes: make(map[string]*regexp.Regexp),
		globs:   make(map[string]glob.Glob),
	}
}

func (m *Matcher) Document() output.Document {
	return m.doc
}

// FindAll returns every element matching spec, in document order. An
// error means the spec itself is malformed; absence is an empty slice.
func (m *Matcher) FindAll(spec entity.SelectorSpec, opts Options) ([]output.Element, error) {
	candidates, err := m.candidates(spec, opts.Root)
	if err != nil {
		return nil, err
	}

	var result []output.Element
	for _, el := range candidates {
		ok, err := m.Matches(el, spec)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if opts.VisibleOnly && !IsVisible(el) {
			continue
		}
		result = append(result, el)
	}
	return result, nil
}

// FindOne returns the first match, or the spec.Nth match when set. A nil
// element with a nil error means nothing matched.
func (m *Matcher) FindOne(spec entity.SelectorSpec, opts Options) (output.Element, error) {
	all, err := m.FindAll(spec, opts)
	if err != nil {
		return nil, err
	}
	idx := 0
	if spec.Nth != nil {
		idx = *spec.Nth
	}
	if idx < 0 || idx >= len(all) {
		return nil, nil
	}
	return all[idx], nil
}

// candidates narrows with the cheapest available key: selector, id, tag,
// role, then a full subtree walk.
func (m *Matcher) candidates(spec entity.SelectorSpec, root output.Element) ([]output.Element, error) {
	switch {
	case spec.Selector != "":
		return m.doc.QueryAll(root, spec.Selector)
	case spec.ID != "":
		if root != nil {
			return m.doc.QueryAll(root, attrSelector("id", spec.ID))
		}
		if el := m.doc.ElementByID(spec.ID); el != nil {
			return []output.Element{el}, nil
		}
		return nil, nil
	case spec.Tag != "":
		return m.doc.ElementsByTag(root, spec.Tag), nil
	case spec.Role != "":
		return m.doc.QueryAll(root, attrSelector("role", spec.Role))
	}
	return m.doc.Descendants(root), nil
}

// Matches checks el against the full predicate, cheapest checks first.
func (m *Matcher) Matches(el output.Element, spec entity.SelectorSpec) (bool, error) {
	if el == nil {
		return false, nil
	}
	if spec.Tag != "" && !strings.EqualFold(el.TagName(), spec.Tag) {
		return false, nil
	}
	if spec.ID != "" {
		if id, _ := el.Attribute("id"); id != spec.ID {
			return false, nil
		}
	}
	if spec.Type != "" {
		if typ, _ := el.Attribute("type"); !strings.EqualFold(typ, spec.Type) {
			return false, nil
		}
	}
	if spec.Role != "" {
		if role, _ := el.Attribute("role"); role != spec.Role {
			return false, nil
		}
	}
	if spec.Selector != "" {
		ok, err := m.doc.Matches(el, spec.Selector)
		if err != nil || !ok {
			return false, err
		}
	}
	for name, sm := range spec.Attributes {
		value, present := el.Attribute(name)
		if !present {
			return false, nil
		}
		ok, err := m.matchString(value, sm)
		if err != nil || !ok {
			return false, err
		}
	}
	if spec.Text != nil {
		ok, err := m.MatchText(el.TextContent(), *spec.Text)
		if err != nil || !ok {
			return false, err
		}
	}
	if spec.Visible != nil && IsVisible(el) != *spec.Visible {
		return false, nil
	}
	if spec.Within != nil {
		ok, err := m.hasAncestor(el, *spec.Within)
		if err != nil || !ok {
			return false, err
		}
	}
	for _, sub := range spec.And {
		ok, err := m.Matches(el, sub)
		if err != nil || !ok {
			return false, err
		}
	}
	if len(spec.Or) > 0 {
		matched := false
		for _, sub := range spec.Or {
			ok, err := m.Matches(el, sub)
			if err != nil {
				return false, err
			}
			if ok {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	if spec.Not != nil {
		ok, err := m.Matches(el, *spec.Not)
		if err != nil || ok {
			return false, err
		}
	}
	return true, nil
}

func (m *Matcher) hasAncestor(el output.Element, spec entity.SelectorSpec) (bool, error) {
	for p := el.Parent(); p != nil; p = p.Parent() {
		ok, err := m.Matches(p, spec)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// MatchText applies a text matcher to raw text content.
func (m *Matcher) MatchText(raw string, tm entity.TextMatcher) (bool, error) {
	text := raw
	if tm.Trim {
		text = strings.TrimSpace(text)
	}
	if tm.Pattern != "" {
		re, err := m.regex(tm.Pattern, tm.Flags, tm.IgnoreCase)
		if err != nil {
			return false, err
		}
		if !re.MatchString(text) {
			return false, nil
		}
	}
	equals, includes := tm.Equals, tm.Includes
	if tm.IgnoreCase {
		text = strings.ToLower(text)
		equals = strings.ToLower(equals)
		includes = strings.ToLower(includes)
	}
	if equals != "" && text != equals {
		return false, nil
	}
	if includes != "" && !strings.Contains(text, includes) {
		return false, nil
	}
	return true, nil
}

func (m *Matcher) matchString(value string, sm entity.StringMatcher) (bool, error) {
	if sm.Pattern != "" {
		re, err := m.regex(sm.Pattern, "", sm.IgnoreCase)
		if err != nil {
			return false, err
		}
		if !re.MatchString(value) {
			return false, nil
		}
	}
	equals, includes := sm.Equals, sm.Includes
	if sm.IgnoreCase {
		value = strings.ToLower(value)
		equals = strings.ToLower(equals)
		includes = strings.ToLower(includes)
	}
	if equals != "" && value != equals {
		return false, nil
	}
	if includes != "" && !strings.Contains(value, includes) {
		return false, nil
	}
	return true, nil
}

func (m *Matcher) regex(pattern, flags string, ignoreCase bool) (*regexp.Regexp, error) {
	var prefix strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			prefix.WriteRune(f)
		}
	}
	if ignoreCase && !strings.ContainsRune(flags, 'i') {
		prefix.WriteRune('i')
	}
	key := pattern
	if prefix.Len() > 0 {
		key = "(?" + prefix.String() + ")" + pattern
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if re, ok := m.regexes[key]; ok {
		return re, nil
	}
	re, err := regexp.Compile(key)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	m.regexes[key] = re
	return re, nil
}

func (m *Matcher) glob(pattern string) (glob.Glob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.globs[pattern]; ok {
		return g, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid url glob %q: %w", pattern, err)
	}
	m.globs[pattern] = g
	return g, nil
}

func attrSelector(name, value string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value)
	return fmt.Sprintf(`[%s="%s"]`, name, escaped)
}
