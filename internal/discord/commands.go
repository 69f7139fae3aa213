package discord

import (
	"fmt"
	"sync"
	"time"

	"github.com/ZehenForever/eqrespawn/internal/command"
	"github.com/ZehenForever/eqrespawn/internal/timeparse"
	"github.com/ZehenForever/eqrespawn/internal/window"
)

// SkipBook counts per-mob "skipped" windows, a bookkeeping aid for raid
// rotation. Skips never affect window math. The counter caps at the mob's
// maxSkips when one is set.
type SkipBook struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewSkipBook() *SkipBook {
	return &SkipBook{counts: make(map[string]int)}
}

// Skip increments the mob's counter. Returns the new count and false when
// the cap was already reached.
func (b *SkipBook) Skip(mobID string, maxSkips int) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.counts[mobID]
	if maxSkips > 0 && n >= maxSkips {
		return n, false
	}
	n++
	b.counts[mobID] = n
	return n, true
}

func (b *SkipBook) Reset(mobID string) {
	b.mu.Lock()
	delete(b.counts, mobID)
	b.mu.Unlock()
}

func (b *SkipBook) Count(mobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[mobID]
}

// Responder maps free-text bot commands onto engine calls and produces the
// reply text.
type Responder struct {
	engine *window.Engine
	skips  *SkipBook
}

func NewResponder(engine *window.Engine) *Responder {
	return &Responder{engine: engine, skips: NewSkipBook()}
}

func (r *Responder) Skips() *SkipBook { return r.skips }

// HandleToD processes a "!tod ..." message. A time expression that fails to
// resolve produces an explicit error reply; defaulting to now would corrupt
// the respawn math.
func (r *Responder) HandleToD(text string, now time.Time) string {
	cmd, ok := command.Extract(text, r.engine.Aliases())
	if !ok {
		return "Usage: !tod <mob> [time], or !tod quake [time]"
	}

	ts := now
	if !cmd.ExplicitNow {
		resolved, ok := timeparse.Resolve(cmd.TimeText, now, now)
		if !ok {
			return fmt.Sprintf("Could not parse that time: %q", cmd.TimeText)
		}
		ts = resolved
	}

	if cmd.Kind == command.KindQuake {
		n := r.engine.ApplyQuake(ts)
		return fmt.Sprintf("Quake! Reset ToD for %d mobs to %s.", n, discordTime(ts))
	}

	def, okDef := func() (string, bool) {
		if cmd.MobID == "" {
			return "", false
		}
		d, ok := r.engine.Definition(cmd.MobID)
		if !ok {
			return "", false
		}
		return d.Name, true
	}()
	if !okDef {
		return fmt.Sprintf("I don't know a mob called %q.", cmd.Target)
	}

	if r.engine.RecordKill(cmd.MobID, ts) {
		r.skips.Reset(cmd.MobID)
		return fmt.Sprintf("Recorded ToD for **%s**: %s.", def, discordTime(ts))
	}
	return fmt.Sprintf("Kept the existing ToD for **%s** (newer or identical).", def)
}

// HandleSkip processes a "!skip <mob>" message.
func (r *Responder) HandleSkip(target string) string {
	id, def, ok := r.engine.Aliases().FindByAlias(target)
	if !ok {
		return fmt.Sprintf("I don't know a mob called %q.", target)
	}
	n, bumped := r.skips.Skip(id, def.MaxSkips)
	if !bumped {
		return fmt.Sprintf("**%s** is already at its skip cap (%d).", def.Name, n)
	}
	return fmt.Sprintf("**%s** skipped (%d).", def.Name, n)
}
