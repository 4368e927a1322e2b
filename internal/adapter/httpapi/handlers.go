package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"carvana-workflows/internal/domain/entity"
	"carvana-workflows/internal/usecase/preferences"
	"carvana-workflows/internal/usecase/reorder"

	"github.com/go-chi/chi/v5"
)

type profileView struct {
	Active entity.ProfileID `json:"active"`
	Label  string           `json:"label"`
}

type workflowView struct {
	ID          string                  `json:"id"`
	Label       string                  `json:"label"`
	Description string                  `json:"description,omitempty"`
	Hidden      bool                    `json:"hidden"`
	Triggers    entity.TriggerState     `json:"triggers"`
	RunPrefs    entity.RunPrefs         `json:"runPrefs"`
	Options     []entity.WorkflowOption `json:"options,omitempty"`
	Profile     *profileView            `json:"profile,omitempty"`
}

type pageView struct {
	ID        string         `json:"id"`
	Label     string         `json:"label"`
	Running   bool           `json:"running"`
	Order     []string       `json:"order"`
	Visible   []string       `json:"visible"`
	Workflows []workflowView `json:"workflows"`
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page, err := s.deps.Engine.DetectPage(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	menu := s.deps.Menus.Load(page.ID, page.RuntimeIDs())
	hidden := make(map[string]bool, len(menu.HiddenInActions))
	for _, id := range menu.HiddenInActions {
		hidden[id] = true
	}

	view := pageView{
		ID:        page.ID,
		Label:     page.Label,
		Running:   s.deps.Engine.Running(),
		Order:     menu.Order,
		Visible:   preferences.Visible(menu),
		Workflows: make([]workflowView, 0, len(menu.Order)),
	}
	for _, id := range menu.Order {
		wf, ok := page.Workflow(id)
		if !ok {
			continue
		}
		view.Workflows = append(view.Workflows, s.workflowView(wf, hidden[id]))
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) workflowView(wf *entity.WorkflowDefinition, hidden bool) workflowView {
	prefs, persisted := s.deps.RunPrefs.Lookup(wf.ID)
	triggers := preferences.ResolveTriggers(wf, prefs, persisted)
	v := workflowView{
		ID:          wf.ID,
		Label:       wf.Label,
		Description: wf.Description,
		Hidden:      hidden,
		Triggers:    triggers,
		RunPrefs:    preferences.EffectiveRunPrefs(triggers, prefs),
		Options:     wf.Options,
	}
	if wf.Profiles {
		resolved := s.deps.Profiles.Resolve(wf)
		v.Profile = &profileView{Active: resolved.Profile, Label: resolved.Label}
	}
	return v
}

type runResponse struct {
	RunID      string         `json:"runId"`
	Workflow   string         `json:"workflow"`
	Steps      int            `json:"steps"`
	Vars       map[string]any `json:"vars"`
	DurationMs int64          `json:"durationMs"`
}

// handleRun runs a workflow of the detected page, or of ?page= when given.
// The run is bound to the request; a client that disconnects aborts it.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	pageID := r.URL.Query().Get("page")
	if pageID == "" {
		page, err := s.deps.Engine.DetectPage(ctx)
		if err != nil {
			s.writeError(w, err)
			return
		}
		pageID = page.ID
	}

	result, err := s.deps.Engine.RunWorkflow(ctx, pageID, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse{
		RunID:      result.RunID,
		Workflow:   result.Workflow,
		Steps:      result.Steps,
		Vars:       result.Vars,
		DurationMs: result.Duration.Milliseconds(),
	})
}

func (s *Server) workflow(id string) (*entity.WorkflowDefinition, error) {
	_, wf, ok := s.deps.Registry.FindWorkflow(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, entity.ErrWorkflowNotFound)
	}
	return wf, nil
}

type saveOptionsRequest struct {
	Slot   entity.ProfileID `json:"slot"`
	Values map[string]any   `json:"values"`
}

func (s *Server) handleSaveOptions(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflow(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req saveOptionsRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Slot == "" {
		req.Slot = s.deps.Profiles.Get(wf.ID).Active
	}

	profiles, err := s.deps.Profiles.SaveSlot(wf.ID, req.Slot, req.Values)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

type switchProfileRequest struct {
	Slot entity.ProfileID `json:"slot"`
}

func (s *Server) handleSwitchProfile(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflow(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req switchProfileRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	profiles, err := s.deps.Profiles.SetActive(wf.ID, req.Slot)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

type runPrefsRequest struct {
	Auto         *bool `json:"auto"`
	Repeat       *bool `json:"repeat"`
	ClearLastRun bool  `json:"clearLastRun"`
}

// handleRunPrefs saves trigger toggles. Unavailable triggers cannot be
// switched on. Enabling auto re-evaluates auto-run in the background, so
// the change applies to the page already open.
func (s *Server) handleRunPrefs(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflow(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req runPrefsRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	prefs, persisted := s.deps.RunPrefs.Lookup(wf.ID)
	triggers := preferences.ResolveTriggers(wf, prefs, persisted)
	if req.Auto != nil && *req.Auto && !triggers.Auto.Available {
		s.writeError(w, fmt.Errorf("%w: auto-run is not available for %s", errBadRequest, wf.ID))
		return
	}
	if req.Repeat != nil && *req.Repeat && !triggers.Repeat.Available {
		s.writeError(w, fmt.Errorf("%w: auto-repeat is not available for %s", errBadRequest, wf.ID))
		return
	}

	next := s.deps.RunPrefs.UpdateFrom(wf.ID, preferences.EffectiveRunPrefs(triggers, prefs), preferences.RunPrefsPatch{
		Auto:         req.Auto,
		Repeat:       req.Repeat,
		ClearLastRun: req.ClearLastRun,
	})
	if next.Auto && req.Auto != nil && *req.Auto {
		s.background(func(ctx context.Context) {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			defer cancel()
			if _, err := s.deps.Engine.AutoRun(ctx, false); err != nil {
				s.deps.Logger.Debug("Auto-run pass after prefs update", "workflow", wf.ID, "error", err)
			}
		})
	}
	writeJSON(w, http.StatusOK, next)
}

type moveRequest struct {
	ID     string `json:"id"`
	Target int    `json:"target"`
}

type menuResponse struct {
	Order        []string `json:"order"`
	Hidden       []string `json:"hidden"`
	Visible      []string `json:"visible"`
	Changed      bool     `json:"changed"`
	Announcement string   `json:"announcement,omitempty"`
}

func menuView(m entity.MenuPrefs, changed bool) menuResponse {
	return menuResponse{
		Order:   m.Order,
		Hidden:  m.HiddenInActions,
		Visible: preferences.Visible(m),
		Changed: changed,
	}
}

func (s *Server) page(r *http.Request) (*entity.PageDefinition, error) {
	id := chi.URLParam(r, "pageId")
	page, ok := s.deps.Registry.Page(id)
	if !ok {
		return nil, fmt.Errorf("page %q: %w", id, entity.ErrWorkflowNotFound)
	}
	return page, nil
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	page, err := s.page(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req moveRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	var said string
	m := reorder.NewMenu(s.deps.Menus, page, reorder.MenuOptions{
		Announce: func(a reorder.Announcement) { said = a.Message },
	})
	defer m.Close()
	menu, moved := m.Move(req.ID, req.Target)
	resp := menuView(menu, moved)
	resp.Announcement = said
	writeJSON(w, http.StatusOK, resp)
}

type hiddenRequest struct {
	Hidden bool `json:"hidden"`
}

func (s *Server) handleHidden(w http.ResponseWriter, r *http.Request) {
	page, err := s.page(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req hiddenRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	menu, err := s.deps.Menus.SetHidden(page.ID, page.RuntimeIDs(), chi.URLParam(r, "id"), req.Hidden)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, menuView(menu, true))
}
