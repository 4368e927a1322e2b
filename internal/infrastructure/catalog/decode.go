package catalog

import (
	"fmt"

	"carvana-workflows/internal/domain/entity"

	"gopkg.in/yaml.v3"
)

type fileDoc struct {
	Pages []pageDoc `yaml:"pages"`
}

type pageDoc struct {
	ID        string        `yaml:"id"`
	Label     string        `yaml:"label"`
	Detector  yaml.Node     `yaml:"detector"`
	Workflows []workflowDoc `yaml:"workflows"`
}

type workflowDoc struct {
	ID          string                  `yaml:"id"`
	Label       string                  `yaml:"label"`
	Description string                  `yaml:"description"`
	Options     []entity.WorkflowOption `yaml:"options"`
	AutoRun     *entity.AutoRunConfig   `yaml:"autoRun"`
	Profiles    bool                    `yaml:"profiles"`
	EnabledWhen yaml.Node               `yaml:"enabledWhen"`
	Internal    bool                    `yaml:"internal"`
	Steps       []yaml.Node             `yaml:"steps"`
}

func (d pageDoc) build() (entity.PageDefinition, error) {
	page := entity.PageDefinition{ID: d.ID, Label: d.Label}
	if present(&d.Detector) {
		cond, err := decodeCondition(&d.Detector)
		if err != nil {
			return page, fmt.Errorf("page %q detector: %w", d.ID, err)
		}
		page.Detector = cond
	}
	for _, wd := range d.Workflows {
		wf, err := wd.build()
		if err != nil {
			return page, fmt.Errorf("page %q: %w", d.ID, err)
		}
		page.Workflows = append(page.Workflows, wf)
	}
	return page, nil
}

func (d workflowDoc) build() (entity.WorkflowDefinition, error) {
	wf := entity.WorkflowDefinition{
		ID:          d.ID,
		Label:       d.Label,
		Description: d.Description,
		Options:     d.Options,
		AutoRun:     d.AutoRun,
		Profiles:    d.Profiles,
		Internal:    d.Internal,
	}
	if present(&d.EnabledWhen) {
		cond, err := decodeCondition(&d.EnabledWhen)
		if err != nil {
			return wf, fmt.Errorf("workflow %q enabledWhen: %w", d.ID, err)
		}
		wf.EnabledWhen = cond
	}
	for i := range d.Steps {
		step, err := decodeStep(&d.Steps[i])
		if err != nil {
			return wf, fmt.Errorf("workflow %q step %d: %w", d.ID, i+1, err)
		}
		wf.Steps = append(wf.Steps, step)
	}
	return wf, nil
}

func present(n *yaml.Node) bool {
	return n.Kind != 0 && !(n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func decodeAs[T entity.Action](n *yaml.Node) (entity.Action, error) {
	var v T
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeStep(n *yaml.Node) (entity.Action, error) {
	n = resolve(n)
	var head struct {
		Kind entity.ActionKind `yaml:"kind"`
	}
	if err := n.Decode(&head); err != nil {
		return nil, fmt.Errorf("line %d: %w", n.Line, err)
	}

	switch head.Kind {
	case entity.KindWaitFor:
		return decodeAs[entity.WaitFor](n)
	case entity.KindDelay:
		return decodeAs[entity.Delay](n)
	case entity.KindClick:
		return decodeAs[entity.Click](n)
	case entity.KindType:
		return decodeAs[entity.Type](n)
	case entity.KindSelectFromList:
		return decodeAs[entity.SelectFromList](n)
	case entity.KindExtract:
		return decodeAs[entity.Extract](n)
	case entity.KindExtractList:
		return decodeAs[entity.ExtractList](n)
	case entity.KindCaptureData:
		return decodeAs[entity.CaptureData](n)
	case entity.KindError:
		return decodeAs[entity.Fail](n)
	case entity.KindExecute:
		return decodeAs[entity.Execute](n)
	case entity.KindBranch:
		var raw struct {
			If   yaml.Node `yaml:"if"`
			Then string    `yaml:"then"`
			Else string    `yaml:"else"`
		}
		if err := n.Decode(&raw); err != nil {
			return nil, err
		}
		if !present(&raw.If) {
			return nil, fmt.Errorf("line %d: branch without if", n.Line)
		}
		cond, err := decodeCondition(&raw.If)
		if err != nil {
			return nil, err
		}
		return entity.Branch{If: cond, Then: raw.Then, Else: raw.Else}, nil
	case "":
		return nil, fmt.Errorf("line %d: step without kind", n.Line)
	}
	return nil, fmt.Errorf("line %d: %w %q", n.Line, entity.ErrUnknownAction, head.Kind)
}

// decodeCondition reads a single-key mapping such as {exists: {...}} or
// {all: [...]}.
func decodeCondition(n *yaml.Node) (entity.Condition, error) {
	n = resolve(n)
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return nil, fmt.Errorf("line %d: condition must be a mapping with exactly one key", n.Line)
	}
	key, val := n.Content[0].Value, resolve(n.Content[1])

	switch key {
	case "exists":
		var target entity.SelectorSpec
		if err := val.Decode(&target); err != nil {
			return nil, err
		}
		return entity.Exists{Target: target}, nil
	case "notExists":
		var target entity.SelectorSpec
		if err := val.Decode(&target); err != nil {
			return nil, err
		}
		return entity.NotExists{Target: target}, nil
	case "textPresent":
		var tp struct {
			Where entity.SelectorSpec `yaml:"where"`
			Text  entity.TextMatcher  `yaml:"text"`
		}
		if err := val.Decode(&tp); err != nil {
			return nil, err
		}
		return entity.TextPresent{Where: tp.Where, Text: tp.Text}, nil
	case "any", "all":
		if val.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("line %d: %s takes a list of conditions", val.Line, key)
		}
		conds := make([]entity.Condition, 0, len(val.Content))
		for _, child := range val.Content {
			c, err := decodeCondition(child)
			if err != nil {
				return nil, err
			}
			conds = append(conds, c)
		}
		if key == "any" {
			return entity.AnyOf{Conditions: conds}, nil
		}
		return entity.AllOf{Conditions: conds}, nil
	case "not":
		c, err := decodeCondition(val)
		if err != nil {
			return nil, err
		}
		return entity.Not{Condition: c}, nil
	case "urlMatches":
		if val.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: urlMatches takes a glob string", val.Line)
		}
		return entity.URLMatches{Glob: val.Value}, nil
	}
	return nil, fmt.Errorf("line %d: %w %q", n.Line, entity.ErrUnknownCondition, key)
}
