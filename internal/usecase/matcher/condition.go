package matcher

import (
	"context"
	"fmt"

	"carvana-workflows/internal/domain/entity"
)

// EvalCondition evaluates cond. A nil condition holds. "Not matched" is a
// false result, never an error; errors come from malformed specs or a done
// context.
func (m *Matcher) EvalCondition(ctx context.Context, cond entity.Condition) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	switch c := cond.(type) {
	case nil:
		return true, nil
	case entity.Exists:
		el, err := m.FindOne(c.Target, Options{})
		return el != nil, err
	case entity.NotExists:
		el, err := m.FindOne(c.Target, Options{})
		return el == nil, err
	case entity.TextPresent:
		el, err := m.FindOne(c.Where, Options{})
		if err != nil || el == nil {
			return false, err
		}
		return m.MatchText(el.TextContent(), c.Text)
	case entity.AnyOf:
		for _, sub := range c.Conditions {
			ok, err := m.EvalCondition(ctx, sub)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case entity.AllOf:
		for _, sub := range c.Conditions {
			ok, err := m.EvalCondition(ctx, sub)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case entity.Not:
		ok, err := m.EvalCondition(ctx, c.Condition)
		return !ok && err == nil, err
	case entity.URLMatches:
		g, err := m.glob(c.Glob)
		if err != nil {
			return false, err
		}
		return g.Match(m.doc.Location().Href), nil
	default:
		return false, fmt.Errorf("%w: %T", entity.ErrUnknownCondition, cond)
	}
}
