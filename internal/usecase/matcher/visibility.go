package matcher

import (
	"strings"
	"time"

	"carvana-workflows/internal/application/port/output"
)

const (
	highlightAttr      = "data-autoflow-highlight"
	highlightStyleAttr = "data-autoflow-prev-style"
	highlightStyle     = "outline: 2px solid #f59e0b; outline-offset: 2px;"
)

// IsVisible checks computed style flags and geometry. Zero geometry only
// counts as hidden when the host actually does layout.
func IsVisible(el output.Element) bool {
	l := el.Layout()
	if l.Hidden {
		return false
	}
	if strings.EqualFold(l.Display, "none") {
		return false
	}
	switch strings.ToLower(l.Visibility) {
	case "hidden", "collapse":
		return false
	}
	if l.HasGeometry && l.Width <= 0 && l.Height <= 0 {
		return false
	}
	return true
}

// Highlight outlines els for d. The marker attribute doubles as a
// per-element re-entrancy flag: an element already highlighted is skipped,
// so overlapping calls never double-apply or double-revert.
func (m *Matcher) Highlight(in output.Input, els []output.Element, d time.Duration) {
	for _, el := range els {
		if _, active := el.Attribute(highlightAttr); active {
			continue
		}
		prev, hadStyle := el.Attribute("style")
		if err := in.SetAttribute(el, highlightAttr, "1"); err != nil {
			m.logger.Debug("Highlight skipped", "error", err)
			continue
		}
		if hadStyle {
			_ = in.SetAttribute(el, highlightStyleAttr, prev)
		}
		_ = in.SetAttribute(el, "style", strings.TrimSpace(prev+" "+highlightStyle))

		time.AfterFunc(d, func() {
			m.revertHighlight(in, el)
		})
	}
}

func (m *Matcher) revertHighlight(in output.Input, el output.Element) {
	if prev, ok := el.Attribute(highlightStyleAttr); ok {
		_ = in.SetAttribute(el, "style", prev)
		_ = in.RemoveAttribute(el, highlightStyleAttr)
	} else {
		_ = in.RemoveAttribute(el, "style")
	}
	if err := in.RemoveAttribute(el, highlightAttr); err != nil {
		m.logger.Debug("Highlight revert failed", "error", err)
	}
}
