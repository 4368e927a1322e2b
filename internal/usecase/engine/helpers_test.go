package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"carvana-workflows/internal/application/port/output"
	"carvana-workflows/internal/application/service"
	"carvana-workflows/internal/domain/entity"
	"carvana-workflows/internal/infrastructure/dom/memdom"
	"carvana-workflows/internal/infrastructure/logger"
	"carvana-workflows/internal/infrastructure/store"
	"carvana-workflows/internal/usecase/preferences"
	"carvana-workflows/internal/usecase/wait"

	"github.com/stretchr/testify/require"
)

const InventoryHTML = `<!DOCTYPE html>
<html>
<head><title>Inventory - Phoenix</title></head>
<body>
  <div id="toolbar">
    <button id="a">Approve</button>
    <button id="b">Block</button>
  </div>
  <form id="search">
    <input id="zip" type="text">
    <input id="vin" type="text">
  </form>
  <ul id="results">
    <li class="row"><span class="vin">V1</span><span class="price">$1</span></li>
    <li class="row"><span class="vin">V2</span><span class="price">$2</span></li>
    <li class="row"><span class="vin">V3</span><span class="price">$3</span></li>
    <li class="row"><span class="vin">V4</span><span class="price">$4</span></li>
    <li class="row"><span class="vin">V5</span><span class="price">$5</span></li>
  </ul>
  <div id="menu">
    <a class="opt" data-value="x">Express</a>
    <a class="opt" data-value="y">Yard</a>
  </div>
</body>
</html>`

const inventoryURL = "https://example.com/inventory?zip=85001"

type notice struct {
	Level   output.NoticeLevel
	Message string
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *fakeNotifier) Notify(_ context.Context, level output.NoticeLevel, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{level, msg})
}

func (n *fakeNotifier) all() []notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notice(nil), n.notices...)
}

func (n *fakeNotifier) count(level output.NoticeLevel) int {
	c := 0
	for _, nt := range n.all() {
		if nt.Level == level {
			c++
		}
	}
	return c
}

type fakeClipboard struct {
	mu    sync.Mutex
	texts []string
}

func (c *fakeClipboard) WriteText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

type fakePrompter struct {
	answer string
	err    error
	asked  []string
}

func (p *fakePrompter) AskQuestion(_ context.Context, q string) (string, error) {
	p.asked = append(p.asked, q)
	return p.answer, p.err
}

type fakeRecorder struct {
	mu        sync.Mutex
	workflows []string
	steps     []string
}

func (r *fakeRecorder) WorkflowFinished(workflow, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows = append(r.workflows, workflow+":"+outcome)
}

func (r *fakeRecorder) StepFinished(kind, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, kind+":"+outcome)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	engine    *Engine
	doc       *memdom.Document
	kv        *store.MemoryStore
	profiles  *preferences.ProfileStore
	runPrefs  *preferences.RunPrefsStore
	notifier  *fakeNotifier
	clipboard *fakeClipboard
	prompter  *fakePrompter
	recorder  *fakeRecorder
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.InterActionDelay = 0
	cfg.Highlight = 0
	cfg.WaitDefaults = wait.Options{Timeout: 300 * time.Millisecond, PollInterval: 10 * time.Millisecond}
	cfg.NavSettle = 20 * time.Millisecond
	return cfg
}

func newHarnessFor(t *testing.T, page output.Page, doc *memdom.Document, pages []entity.PageDefinition, tweaks ...func(*Config)) *harness {
	t.Helper()
	registry, err := service.NewRegistry(pages)
	require.NoError(t, err)

	cfg := fastConfig()
	for _, tweak := range tweaks {
		tweak(&cfg)
	}

	log := logger.Nop()
	h := &harness{
		doc:       doc,
		kv:        store.NewMemoryStore(),
		notifier:  &fakeNotifier{},
		clipboard: &fakeClipboard{},
		prompter:  &fakePrompter{},
		recorder:  &fakeRecorder{},
	}
	h.profiles = preferences.NewProfileStore(h.kv, log)
	h.runPrefs = preferences.NewRunPrefsStore(h.kv, log)
	h.engine = New(Deps{
		Page:      page,
		Registry:  registry,
		Profiles:  h.profiles,
		RunPrefs:  h.runPrefs,
		Notifier:  h.notifier,
		Clipboard: h.clipboard,
		Prompter:  h.prompter,
		Logger:    log,
		Recorder:  h.recorder,
	}, cfg)
	return h
}

func newHarness(t *testing.T, pages []entity.PageDefinition, tweaks ...func(*Config)) *harness {
	t.Helper()
	doc := memdom.MustParse(InventoryHTML, memdom.WithURL(inventoryURL))
	return newHarnessFor(t, doc, doc, pages, tweaks...)
}

func inventoryPage(workflows ...entity.WorkflowDefinition) entity.PageDefinition {
	return entity.PageDefinition{
		ID:        "inventory",
		Label:     "Inventory",
		Detector:  entity.Exists{Target: entity.SelectorSpec{ID: "results"}},
		Workflows: workflows,
	}
}

func workflow(id string, steps ...entity.Action) entity.WorkflowDefinition {
	return entity.WorkflowDefinition{ID: id, Label: "WF " + id, Steps: steps}
}

func clickID(id string) entity.Click {
	return entity.Click{Target: entity.SelectorSpec{ID: id}}
}

// clicked lists the ids of clicked elements in dispatch order.
func clicked(doc *memdom.Document) []string {
	var ids []string
	for _, ev := range doc.Events() {
		if ev.Type == memdom.EventClick {
			id, _ := ev.Target.Attribute("id")
			if id == "" {
				id, _ = ev.Target.Attribute("data-value")
			}
			ids = append(ids, id)
		}
	}
	return ids
}
