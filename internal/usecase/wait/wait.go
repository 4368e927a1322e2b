// Package wait suspends until the element tree reaches a state. Each wait
// races a change subscription against a poll ticker, and a hard timeout
// bounds both.
package wait

import (
	"context"
	"time"

	"carvana-workflows/internal/application/port/output"
	"carvana-workflows/internal/domain/entity"
	"carvana-workflows/internal/usecase/matcher"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultPollInterval = 200 * time.Millisecond
)

type Options struct {
	Timeout      time.Duration
	PollInterval time.Duration
	VisibleOnly  bool
	// MinStability requires a match to hold uninterrupted this long.
	MinStability time.Duration
}

func DefaultOptions() Options {
	return Options{
		Timeout:      defaultTimeout,
		PollInterval: defaultPollInterval,
	}
}

// FromSpec overlays a step's millisecond overrides on base.
func FromSpec(s entity.WaitSpec, base Options) Options {
	opts := base
	if s.TimeoutMs > 0 {
		opts.Timeout = time.Duration(s.TimeoutMs) * time.Millisecond
	}
	if s.PollIntervalMs > 0 {
		opts.PollInterval = time.Duration(s.PollIntervalMs) * time.Millisecond
	}
	if s.MinStabilityMs > 0 {
		opts.MinStability = time.Duration(s.MinStabilityMs) * time.Millisecond
	}
	opts.VisibleOnly = opts.VisibleOnly || s.VisibleOnly
	return opts
}

func (o Options) normalized() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	return o
}

// Probe reports whether the awaited state holds. An error aborts the wait.
type Probe func() (bool, error)

type cleanups []func()

func (c *cleanups) push(fn func()) { *c = append(*c, fn) }

func (c cleanups) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// Until re-runs probe on every tree change and poll tick until it holds.
// The first check is synchronous. Subscription, ticker and timers are
// released on every exit path.
func Until(ctx context.Context, doc output.Document, what string, probe Probe, opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts = opts.normalized()

	ok, err := probe()
	if err != nil {
		return err
	}
	if ok && opts.MinStability <= 0 {
		return nil
	}

	var stack cleanups
	defer func() { stack.run() }()

	changed := make(chan struct{}, 1)
	stack.push(doc.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))

	poll := time.NewTicker(opts.PollInterval)
	stack.push(poll.Stop)

	deadline := time.NewTimer(opts.Timeout)
	stack.push(func() { deadline.Stop() })

	var (
		stable  *time.Timer
		stableC <-chan time.Time
		matched bool
	)
	stopStable := func() {
		if stable != nil {
			stable.Stop()
			stable, stableC = nil, nil
		}
	}
	stack.push(stopStable)

	// observe tracks match transitions; only a fresh match arms the
	// stability timer and any miss disarms it.
	observe := func(ok bool) {
		switch {
		case ok && !matched:
			stable = time.NewTimer(opts.MinStability)
			stableC = stable.C
		case !ok:
			stopStable()
		}
		matched = ok
	}
	observe(ok)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return &entity.TimeoutError{What: what, After: opts.Timeout}
		case <-stableC:
			stable, stableC = nil, nil
			ok, err := probe()
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
			matched = false
			continue
		case <-changed:
		case <-poll.C:
		}

		ok, err := probe()
		if err != nil {
			return err
		}
		if ok && opts.MinStability <= 0 {
			return nil
		}
		observe(ok)
	}
}

// ForElement settles with the first element matching spec.
func ForElement(ctx context.Context, m *matcher.Matcher, spec entity.SelectorSpec, opts Options) (output.Element, error) {
	var found output.Element
	err := Until(ctx, m.Document(), spec.String(), func() (bool, error) {
		el, err := m.FindOne(spec, matcher.Options{VisibleOnly: opts.VisibleOnly})
		if err != nil {
			return false, err
		}
		found = el
		return el != nil, nil
	}, opts)
	if err != nil {
		return nil, err
	}
	return found, nil
}

// ForAbsence settles once nothing matches spec.
func ForAbsence(ctx context.Context, m *matcher.Matcher, spec entity.SelectorSpec, opts Options) error {
	return Until(ctx, m.Document(), "absence of "+spec.String(), func() (bool, error) {
		el, err := m.FindOne(spec, matcher.Options{VisibleOnly: opts.VisibleOnly})
		return el == nil, err
	}, opts)
}

// ForCondition settles once cond holds.
func ForCondition(ctx context.Context, m *matcher.Matcher, cond entity.Condition, opts Options) error {
	return Until(ctx, m.Document(), "condition", func() (bool, error) {
		return m.EvalCondition(ctx, cond)
	}, opts)
}

// DocumentReady returns at once when the document is interactive or
// complete, otherwise after the first ready notification.
func DocumentReady(ctx context.Context, doc output.Document) error {
	if doc.ReadyState() != output.ReadyLoading {
		return nil
	}

	ready := make(chan struct{}, 1)
	cancel := doc.OnReady(func() {
		select {
		case ready <- struct{}{}:
		default:
		}
	})
	defer cancel()

	// The state may have flipped between the check and the subscription.
	if doc.ReadyState() != output.ReadyLoading {
		return nil
	}

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
