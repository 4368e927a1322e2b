package service

import (
	"fmt"

	"carvana-workflows/internal/domain/entity"
)

// Registry holds the page catalog. It is provided whole at construction and
// read-only afterwards.
type Registry struct {
	pages []entity.PageDefinition
	index map[string]int
}

func NewRegistry(pages []entity.PageDefinition) (*Registry, error) {
	r := &Registry{
		pages: pages,
		index: make(map[string]int, len(pages)),
	}
	for i, p := range pages {
		if p.ID == "" {
			return nil, fmt.Errorf("page %d: empty id", i)
		}
		if _, dup := r.index[p.ID]; dup {
			return nil, fmt.Errorf("page %q: duplicate id", p.ID)
		}
		r.index[p.ID] = i

		seen := make(map[string]bool, len(p.Workflows))
		for _, wf := range p.Workflows {
			if wf.ID == "" {
				return nil, fmt.Errorf("page %q: workflow with empty id", p.ID)
			}
			if seen[wf.ID] {
				return nil, fmt.Errorf("page %q: duplicate workflow %q", p.ID, wf.ID)
			}
			seen[wf.ID] = true
		}
	}
	return r, nil
}

// Pages returns pages in declaration order, which is detection order.
func (r *Registry) Pages() []*entity.PageDefinition {
	result := make([]*entity.PageDefinition, len(r.pages))
	for i := range r.pages {
		result[i] = &r.pages[i]
	}
	return result
}

func (r *Registry) Page(id string) (*entity.PageDefinition, bool) {
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return &r.pages[i], true
}

func (r *Registry) Workflow(pageID, workflowID string) (*entity.PageDefinition, *entity.WorkflowDefinition, error) {
	page, ok := r.Page(pageID)
	if !ok {
		return nil, nil, fmt.Errorf("page %q: %w", pageID, entity.ErrWorkflowNotFound)
	}
	wf, ok := page.Workflow(workflowID)
	if !ok {
		return nil, nil, fmt.Errorf("%s/%s: %w", pageID, workflowID, entity.ErrWorkflowNotFound)
	}
	return page, wf, nil
}

// FindWorkflow looks a workflow up by id across all pages, first page wins.
func (r *Registry) FindWorkflow(workflowID string) (*entity.PageDefinition, *entity.WorkflowDefinition, bool) {
	for i := range r.pages {
		if wf, ok := r.pages[i].Workflow(workflowID); ok {
			return &r.pages[i], wf, true
		}
	}
	return nil, nil, false
}
