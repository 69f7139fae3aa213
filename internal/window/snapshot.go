package window

import "time"

// MobWindow is the derived per-mob view. It has no identity of its own; it
// is a projection of the kill record, the definition, and now.
type MobWindow struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Zone           string `json:"zone,omitempty"`
	Expansion      string `json:"expansion,omitempty"`
	RespawnDisplay string `json:"respawnDisplay,omitempty"`

	LastKillAt     *time.Time `json:"lastKillAt"`
	WindowOpensAt  *time.Time `json:"windowOpensAt"`
	WindowClosesAt *time.Time `json:"windowClosesAt"`

	InWindow          bool  `json:"inWindow"`
	SecondsUntilOpen  int64 `json:"secondsUntilOpen"`
	SecondsUntilClose int64 `json:"secondsUntilClose"`

	// WindowProgress is the fraction of the open-to-close interval elapsed,
	// clamped to [0,1]; nil when no kill is recorded.
	WindowProgress *float64 `json:"windowProgress"`
}

type Snapshot struct {
	GeneratedAt time.Time   `json:"generatedAt"`
	Mobs        []MobWindow `json:"mobs"`
}

// ComputeSnapshot projects every definition's window state at now. It is
// recomputed fresh on every call: two callers milliseconds apart may
// legitimately see different inWindow flags at a boundary, so nothing here
// is cached.
func (e *Engine) ComputeSnapshot(now time.Time) Snapshot {
	now = normalizeTime(now)

	e.mu.RLock()
	defer e.mu.RUnlock()

	out := Snapshot{GeneratedAt: now, Mobs: make([]MobWindow, 0, len(e.order))}
	for _, id := range e.order {
		def := e.defs[id]
		mw := MobWindow{
			ID:             def.ID,
			Name:           def.Name,
			Zone:           def.Zone,
			Expansion:      def.Expansion,
			RespawnDisplay: def.RespawnDisplay,
		}

		killAt, ok := e.kills[id]
		if ok {
			opens := killAt.Add(def.MinRespawn)
			closes := killAt.Add(def.MaxRespawn)
			kill := killAt
			mw.LastKillAt = &kill
			mw.WindowOpensAt = &opens
			mw.WindowClosesAt = &closes
			mw.InWindow = !now.Before(opens) && !now.After(closes)
			mw.SecondsUntilOpen = secondsUntil(now, opens)
			mw.SecondsUntilClose = secondsUntil(now, closes)

			span := closes.Sub(opens).Seconds()
			progress := 0.0
			if span > 0 {
				progress = now.Sub(opens).Seconds() / span
			}
			if progress < 0 {
				progress = 0
			}
			if progress > 1 {
				progress = 1
			}
			mw.WindowProgress = &progress
		}

		out.Mobs = append(out.Mobs, mw)
	}
	return out
}

// secondsUntil is zero once the boundary has passed, never negative.
func secondsUntil(now, t time.Time) int64 {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	return int64(d.Seconds())
}
