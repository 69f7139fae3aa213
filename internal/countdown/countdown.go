// Package countdown runs short-lived spell/ability timers triggered by log
// pattern matches. Timers live only in memory; the tick loop is lazy and
// stops itself when the last timer expires.
package countdown

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ZehenForever/eqrespawn/internal/model"
)

type RestartMode string

const (
	// RestartCurrent collapses the trigger group into one timer and resets
	// its expiry. This is the default behavior.
	RestartCurrent RestartMode = "restart-current"
	// RestartIgnore keeps the existing group timer untouched.
	RestartIgnore RestartMode = "ignore"
	// RestartNew always creates an independent timer alongside the group.
	RestartNew RestartMode = "new"
)

// Trigger describes what to start when a pattern matches.
type Trigger struct {
	ID          string
	Label       string
	Color       string
	Duration    time.Duration
	Pattern     model.Pattern
	RestartMode RestartMode
}

// Timer is an active countdown keyed by a synthetic id. TriggerID groups
// timers that share a trigger.
type Timer struct {
	ID        string        `json:"id"`
	TriggerID string        `json:"triggerId"`
	Label     string        `json:"label"`
	Color     string        `json:"color,omitempty"`
	Duration  time.Duration `json:"-"`
	StartsAt  time.Time     `json:"startsAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

type Engine struct {
	interval time.Duration

	mu      sync.Mutex
	timers  map[string]*Timer
	running bool
	stop    chan struct{}

	subMu   sync.Mutex
	nextSub int
	subs    map[int]func([]Timer)
}

// New creates an engine ticking at interval (500ms when zero).
func New(interval time.Duration) *Engine {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Engine{
		interval: interval,
		timers:   make(map[string]*Timer),
		subs:     make(map[int]func([]Timer)),
	}
}

// AddTimer starts (or restarts) a timer for the trigger at ts. Group
// behavior depends on the trigger's restart mode:
//
//   - RestartIgnore: an existing unexpired timer in the group is returned
//     unchanged.
//   - RestartCurrent (or empty): the group collapses to one timer whose
//     expiry resets to ts+duration; duplicates are pruned.
//   - anything else: a new independent timer joins the group.
func (e *Engine) AddTimer(tr Trigger, ts time.Time) *Timer {
	e.mu.Lock()

	// Expired timers the sweep has not reached yet must not count as group
	// members, or RestartIgnore would return a dead timer.
	var existing []*Timer
	for id, t := range e.timers {
		if t.TriggerID != tr.ID {
			continue
		}
		if !t.ExpiresAt.After(ts) {
			delete(e.timers, id)
			continue
		}
		existing = append(existing, t)
	}

	var out *Timer
	switch {
	case tr.RestartMode == RestartIgnore && len(existing) > 0:
		out = existing[0]
	case (tr.RestartMode == RestartCurrent || tr.RestartMode == "") && len(existing) > 0:
		sort.Slice(existing, func(i, j int) bool { return existing[i].StartsAt.Before(existing[j].StartsAt) })
		out = existing[0]
		for _, dup := range existing[1:] {
			delete(e.timers, dup.ID)
		}
		out.StartsAt = ts
		out.ExpiresAt = ts.Add(tr.Duration)
	default:
		out = &Timer{
			ID:        uuid.NewString(),
			TriggerID: tr.ID,
			Label:     tr.Label,
			Color:     tr.Color,
			Duration:  tr.Duration,
			StartsAt:  ts,
			ExpiresAt: ts.Add(tr.Duration),
		}
		e.timers[out.ID] = out
	}

	needTick := !e.running && len(e.timers) > 0
	if needTick {
		e.running = true
		e.stop = make(chan struct{})
	}
	stop := e.stop
	e.mu.Unlock()

	if needTick {
		go e.tickLoop(stop)
	}
	e.notify(e.Active(time.Now()))
	return out
}

// Active returns the unexpired timers sorted by ascending remaining time.
func (e *Engine) Active(now time.Time) []Timer {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Timer, 0, len(e.timers))
	for _, t := range e.timers {
		if t.ExpiresAt.After(now) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	return out
}

// Subscribe registers a callback receiving the active timer list after each
// change or tick. The returned func cancels the subscription.
func (e *Engine) Subscribe(fn func([]Timer)) func() {
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.subMu.Unlock()
	return func() {
		e.subMu.Lock()
		delete(e.subs, id)
		e.subMu.Unlock()
	}
}

// Stop halts the tick loop. Idempotent; timers are retained and the loop
// resumes on the next AddTimer.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.running {
		e.running = false
		close(e.stop)
	}
	e.mu.Unlock()
}

func (e *Engine) tickLoop(stop chan struct{}) {
	t := time.NewTicker(e.interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-t.C:
			if done := e.sweep(now); done {
				return
			}
		}
	}
}

// sweep removes expired timers and emits the updated list. Returns true when
// no timers remain, which stops the loop.
func (e *Engine) sweep(now time.Time) bool {
	e.mu.Lock()
	changed := false
	for id, t := range e.timers {
		if !t.ExpiresAt.After(now) {
			delete(e.timers, id)
			changed = true
		}
	}
	empty := len(e.timers) == 0
	if empty && e.running {
		e.running = false
		close(e.stop)
	}
	e.mu.Unlock()

	if changed || !empty {
		e.notify(e.Active(now))
	}
	return empty
}

func (e *Engine) notify(timers []Timer) {
	e.subMu.Lock()
	fns := make([]func([]Timer), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()
	for _, fn := range fns {
		fn(timers)
	}
}
