package entity

// PageDefinition is a detector plus the workflows valid when it matches.
// Built once when the catalog loads; the engine only reads it.
type PageDefinition struct {
	ID        string
	Label     string
	Detector  Condition
	Workflows []WorkflowDefinition
}

// Workflow returns the workflow with the given id, internal ones included.
func (p *PageDefinition) Workflow(id string) (*WorkflowDefinition, bool) {
	for i := range p.Workflows {
		if p.Workflows[i].ID == id {
			return &p.Workflows[i], true
		}
	}
	return nil, false
}

// RuntimeIDs lists the ids of workflows shown to the operator, in
// declaration order.
func (p *PageDefinition) RuntimeIDs() []string {
	ids := make([]string, 0, len(p.Workflows))
	for _, wf := range p.Workflows {
		if !wf.Internal {
			ids = append(ids, wf.ID)
		}
	}
	return ids
}

type Screenshot struct {
	Data   []byte
	Format string
	Width  int
	Height int
}
