// Package window owns the respawn-window state machine: the mob definition
// catalog, the single source of truth for last-kill timestamps, and the
// derived window snapshot that every front end consumes.
package window

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ZehenForever/eqrespawn/internal/catalog"
	"github.com/ZehenForever/eqrespawn/internal/model"
)

// reLinePrefix strips the bracketed timestamp prefix EverQuest puts on every
// log line before narrative matching.
var reLinePrefix = regexp.MustCompile(`^\[[^\]]+\]\s+`)

// Engine holds all mutable respawn state. Mutations are atomic from the
// caller's perspective; every successful mutation triggers a recomputed
// snapshot notification to subscribers. Malformed input degrades to a no-op
// reported via the return value, never a panic: the engine sits downstream of
// raw log text.
type Engine struct {
	mu    sync.RWMutex
	defs  map[string]*model.MobDefinition
	order []string
	kills map[string]time.Time

	aliasOverrides map[string]string
	aliases        *AliasIndex

	subMu    sync.Mutex
	nextSub  int
	snapSubs map[int]func(Snapshot)
	killSubs map[int]func(model.MobDefinition, time.Time)
}

func New() *Engine {
	return &Engine{
		defs:     make(map[string]*model.MobDefinition),
		kills:    make(map[string]time.Time),
		aliases:  newAliasIndex(nil, nil),
		snapSubs: make(map[int]func(Snapshot)),
		killSubs: make(map[int]func(model.MobDefinition, time.Time)),
	}
}

// LoadDefinitions replaces the definition catalog. Entries missing a
// derivable id or usable respawn bounds are dropped. Returns the number of
// definitions loaded.
func (e *Engine) LoadDefinitions(raws []catalog.RawMob) int {
	defs := make(map[string]*model.MobDefinition, len(raws))
	order := make([]string, 0, len(raws))
	for _, raw := range raws {
		def, ok := normalizeDefinition(raw)
		if !ok {
			continue
		}
		if _, dup := defs[def.ID]; dup {
			continue
		}
		d := def
		defs[d.ID] = &d
		order = append(order, d.ID)
	}

	e.mu.Lock()
	e.defs = defs
	e.order = order
	e.aliases = newAliasIndex(e.orderedDefsLocked(), e.aliasOverrides)
	e.mu.Unlock()

	e.notifySnapshot()
	return len(order)
}

// normalizeDefinition resolves the raw shape variants into the canonical
// definition. Shape precedence: explicit minutes, then explicit hours, then
// base+variance. Exactly one shape wins.
func normalizeDefinition(raw catalog.RawMob) (model.MobDefinition, bool) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = model.Slug(raw.Name)
	}
	if id == "" {
		return model.MobDefinition{}, false
	}

	var minMinutes, maxMinutes float64
	switch {
	case raw.MinRespawnMinutes != nil && raw.MaxRespawnMinutes != nil:
		minMinutes = *raw.MinRespawnMinutes
		maxMinutes = *raw.MaxRespawnMinutes
	case raw.MinRespawnHours != nil && raw.MaxRespawnHours != nil:
		minMinutes = *raw.MinRespawnHours * 60
		maxMinutes = *raw.MaxRespawnHours * 60
	case raw.RespawnHours != nil && raw.VarianceHours != nil:
		minMinutes = (*raw.RespawnHours - *raw.VarianceHours) * 60
		maxMinutes = (*raw.RespawnHours + *raw.VarianceHours) * 60
	default:
		return model.MobDefinition{}, false
	}
	if minMinutes < 1 || maxMinutes <= minMinutes {
		return model.MobDefinition{}, false
	}

	def := model.MobDefinition{
		ID:             id,
		Name:           strings.TrimSpace(raw.Name),
		Aliases:        raw.Aliases,
		Zone:           raw.Zone,
		Expansion:      raw.Expansion,
		Notes:          raw.Notes,
		RespawnDisplay: raw.RespawnDisplay,
		MinRespawn:     time.Duration(minMinutes * float64(time.Minute)),
		MaxRespawn:     time.Duration(maxMinutes * float64(time.Minute)),
		MaxSkips:       raw.MaxSkips,
	}

	for _, phrase := range raw.KillPhrases {
		p := model.CompilePattern(phrase)
		if !p.IsZero() {
			def.KillMatchers = append(def.KillMatchers, p)
		}
	}
	names := append([]string{def.Name}, def.Aliases...)
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		def.KillMatchers = append(def.KillMatchers,
			model.SubstringPattern(fmt.Sprintf("%s has been slain", n)),
			model.SubstringPattern(fmt.Sprintf("you have slain %s", n)),
		)
	}
	return def, true
}

// Definitions returns the loaded definitions in catalog order.
func (e *Engine) Definitions() []*model.MobDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.orderedDefsLocked()
}

func (e *Engine) orderedDefsLocked() []*model.MobDefinition {
	out := make([]*model.MobDefinition, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.defs[id])
	}
	return out
}

func (e *Engine) Definition(id string) (*model.MobDefinition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	def, ok := e.defs[id]
	return def, ok
}

// Aliases returns the current alias index. The index is immutable; it is
// rebuilt from scratch whenever the catalog or the overrides change.
func (e *Engine) Aliases() *AliasIndex {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.aliases
}

// SetAliasOverrides replaces the dynamic alias overrides (alias text to mob
// id) and rebuilds the index.
func (e *Engine) SetAliasOverrides(overrides map[string]string) {
	e.mu.Lock()
	e.aliasOverrides = overrides
	e.aliases = newAliasIndex(e.orderedDefsLocked(), overrides)
	e.mu.Unlock()
}

// normalizeTime is the single precision boundary: all stored and compared
// timestamps are whole seconds, UTC. Sub-second differences between call
// sites must not defeat the idempotence check.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// RecordKill stores ts as the mob's time of death. Returns false when the
// mob is unknown, ts is zero, or the stored timestamp is already the same or
// newer; updates apply keep-max-timestamp, not keep-latest-call, so
// re-delivered log lines and stale reports are no-ops.
func (e *Engine) RecordKill(id string, ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	norm := normalizeTime(ts)

	e.mu.Lock()
	def, ok := e.defs[id]
	if !ok {
		e.mu.Unlock()
		return false
	}
	if stored, exists := e.kills[id]; exists && !norm.After(stored) {
		e.mu.Unlock()
		return false
	}
	e.kills[id] = norm
	defCopy := *def
	e.mu.Unlock()

	e.notifyKill(defCopy, norm)
	e.notifySnapshot()
	return true
}

// ClearKill removes the mob's kill record. Returns whether one existed.
func (e *Engine) ClearKill(id string) bool {
	e.mu.Lock()
	_, existed := e.kills[id]
	delete(e.kills, id)
	e.mu.Unlock()

	if existed {
		e.notifySnapshot()
	}
	return existed
}

// ApplyQuake applies one timestamp to every known mob under the keep-max
// rule ("quake": a server event resets every raid target at once). Returns
// how many records changed.
func (e *Engine) ApplyQuake(ts time.Time) int {
	if ts.IsZero() {
		return 0
	}
	norm := normalizeTime(ts)

	e.mu.Lock()
	changed := 0
	for _, id := range e.order {
		if stored, exists := e.kills[id]; exists && !norm.After(stored) {
			continue
		}
		e.kills[id] = norm
		changed++
	}
	e.mu.Unlock()

	if changed > 0 {
		e.notifySnapshot()
	}
	return changed
}

// IngestLogLine runs narrative kill detection over a raw log line: the
// bracketed timestamp prefix is stripped, the remainder lower-cased, and
// each definition's matchers tested in catalog order. First match wins; at
// most one mob is credited per line. Returns the credited mob id and whether
// a kill was recorded.
func (e *Engine) IngestLogLine(line string, ts time.Time) (string, bool) {
	msg := strings.ToLower(reLinePrefix.ReplaceAllString(line, ""))
	if msg == "" {
		return "", false
	}

	e.mu.RLock()
	var hit string
	for _, id := range e.order {
		for _, p := range e.defs[id].KillMatchers {
			if p.Match(msg) {
				hit = id
				break
			}
		}
		if hit != "" {
			break
		}
	}
	e.mu.RUnlock()

	if hit == "" {
		return "", false
	}
	return hit, e.RecordKill(hit, ts)
}

// LoadState replaces the entire kill record from a serialized mobId to ISO
// timestamp mapping. Unparsable timestamps and unknown mob ids are dropped,
// not errors. Returns the number of records loaded.
func (e *Engine) LoadState(kills map[string]string) int {
	next := make(map[string]time.Time, len(kills))

	e.mu.Lock()
	for id, iso := range kills {
		if _, ok := e.defs[id]; !ok {
			continue
		}
		ts, ok := parseTimestamp(iso)
		if !ok {
			continue
		}
		next[id] = normalizeTime(ts)
	}
	e.kills = next
	e.mu.Unlock()

	e.notifySnapshot()
	return len(next)
}

// SerializeState is the inverse of LoadState. Round-trips exactly at second
// precision.
func (e *Engine) SerializeState() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]string, len(e.kills))
	for id, ts := range e.kills {
		out[id] = ts.Format(time.RFC3339)
	}
	return out
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Subscribe registers a callback invoked with a fresh snapshot after every
// successful mutation. The returned func cancels the subscription and is
// safe to call more than once.
func (e *Engine) Subscribe(fn func(Snapshot)) func() {
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.snapSubs[id] = fn
	e.subMu.Unlock()
	return func() {
		e.subMu.Lock()
		delete(e.snapSubs, id)
		e.subMu.Unlock()
	}
}

// SubscribeKills registers a callback invoked once per recorded kill with
// the definition and the normalized timestamp.
func (e *Engine) SubscribeKills(fn func(model.MobDefinition, time.Time)) func() {
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.killSubs[id] = fn
	e.subMu.Unlock()
	return func() {
		e.subMu.Lock()
		delete(e.killSubs, id)
		e.subMu.Unlock()
	}
}

func (e *Engine) notifySnapshot() {
	e.subMu.Lock()
	if len(e.snapSubs) == 0 {
		e.subMu.Unlock()
		return
	}
	fns := make([]func(Snapshot), 0, len(e.snapSubs))
	for _, fn := range e.snapSubs {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()

	snap := e.ComputeSnapshot(time.Now())
	for _, fn := range fns {
		fn(snap)
	}
}

func (e *Engine) notifyKill(def model.MobDefinition, ts time.Time) {
	e.subMu.Lock()
	fns := make([]func(model.MobDefinition, time.Time), 0, len(e.killSubs))
	for _, fn := range e.killSubs {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()

	for _, fn := range fns {
		fn(def, ts)
	}
}
