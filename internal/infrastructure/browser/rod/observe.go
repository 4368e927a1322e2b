package rod

import (
	"fmt"

	"carvana-workflows/internal/application/port/output"

	"github.com/ysmood/gson"
)

const bindingName = "__autoflowNotify"

// observerJS installs one MutationObserver plus history hooks per document
// and reports through the exposed binding. Mutations are coalesced per
// microtask.
const observerJS = `(binding, announce) => {
	if (window.__autoflowObserved) return;
	window.__autoflowObserved = true;
	const send = (kind) => { try { window[binding](kind); } catch (e) {} };
	let queued = false;
	const observer = new MutationObserver(() => {
		if (queued) return;
		queued = true;
		queueMicrotask(() => { queued = false; send("mutation"); });
	});
	const start = () => observer.observe(document.documentElement, {
		subtree: true, childList: true, attributes: true, characterData: true,
	});
	if (document.documentElement) start();
	else document.addEventListener("DOMContentLoaded", start);
	document.addEventListener("readystatechange", () => send("ready"));
	for (const m of ["pushState", "replaceState"]) {
		const orig = history[m];
		history[m] = function (...args) {
			const r = orig.apply(this, args);
			send("navigate");
			return r;
		};
	}
	window.addEventListener("popstate", () => send("navigate"));
	window.addEventListener("hashchange", () => send("navigate"));
	if (announce) send("navigate");
}`

// Observe wires the page-side observer. Subscribers call it lazily; call it
// up front to surface wiring errors.
func (p *Page) Observe() error {
	p.observeOnce.Do(func() {
		p.observeErr = p.installObserver()
	})
	return p.observeErr
}

func (p *Page) installObserver() error {
	stop, err := p.page.Expose(bindingName, func(arg gson.JSON) (interface{}, error) {
		p.dispatch(arg.Str())
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("expose binding: %w", err)
	}
	p.unbind = append(p.unbind, stop)

	remove, err := p.page.EvalOnNewDocument(fmt.Sprintf("(%s)(%q, true)", observerJS, bindingName))
	if err != nil {
		return fmt.Errorf("install observer: %w", err)
	}
	p.unbind = append(p.unbind, remove)

	if _, err := p.page.Eval(observerJS, bindingName, false); err != nil {
		return fmt.Errorf("install observer: %w", err)
	}
	return nil
}

func (p *Page) dispatch(kind string) {
	p.subsMu.Lock()
	var fns []func()
	var navs []func(output.Location)
	switch kind {
	case "mutation":
		for _, fn := range p.subs {
			fns = append(fns, fn)
		}
	case "ready":
		for _, fn := range p.readySubs {
			fns = append(fns, fn)
		}
	case "navigate":
		for _, fn := range p.navSubs {
			navs = append(navs, fn)
		}
		// A new document is also a tree change.
		for _, fn := range p.subs {
			fns = append(fns, fn)
		}
	}
	p.subsMu.Unlock()

	for _, fn := range fns {
		fn()
	}
	if len(navs) > 0 {
		loc := p.Location()
		for _, fn := range navs {
			fn(loc)
		}
	}
}

func (p *Page) Subscribe(fn func()) func() {
	_ = p.Observe()
	return p.register(func(id int) { p.subs[id] = fn }, func(id int) { delete(p.subs, id) })
}

func (p *Page) OnReady(fn func()) func() {
	_ = p.Observe()
	return p.register(func(id int) { p.readySubs[id] = fn }, func(id int) { delete(p.readySubs, id) })
}

func (p *Page) OnNavigate(fn func(output.Location)) func() {
	_ = p.Observe()
	return p.register(func(id int) { p.navSubs[id] = fn }, func(id int) { delete(p.navSubs, id) })
}

func (p *Page) register(add, remove func(id int)) func() {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	id := p.nextSub
	p.nextSub++
	add(id)
	return func() {
		p.subsMu.Lock()
		remove(id)
		p.subsMu.Unlock()
	}
}
