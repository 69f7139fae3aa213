package discord

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ZehenForever/eqrespawn/internal/catalog"
	"github.com/ZehenForever/eqrespawn/internal/window"
)

func fp(v float64) *float64 { return &v }

func newTestResponder(t *testing.T) (*Responder, *window.Engine) {
	t.Helper()
	engine := window.New()
	n := engine.LoadDefinitions([]catalog.RawMob{
		{
			ID:              "lord-nagafen",
			Name:            "Lord Nagafen",
			Aliases:         []string{"Naggy"},
			Zone:            "Nagafen's Lair",
			MinRespawnHours: fp(72),
			MaxRespawnHours: fp(96),
			MaxSkips:        2,
		},
	})
	if n != 1 {
		t.Fatalf("loaded %d definitions", n)
	}
	return NewResponder(engine), engine
}

func TestHandleToD_RecordsKill(t *testing.T) {
	r, engine := newTestResponder(t)
	now := time.Date(2026, time.August, 29, 21, 0, 0, 0, time.UTC)

	reply := r.HandleToD("!tod Naggy 2 hours ago", now)
	if !strings.Contains(reply, "Recorded ToD for **Lord Nagafen**") {
		t.Fatalf("reply=%q", reply)
	}

	want := now.Add(-2 * time.Hour)
	kill := engine.ComputeSnapshot(now).Mobs[0].LastKillAt
	if kill == nil || !kill.Equal(want) {
		t.Fatalf("kill=%v want=%v", kill, want)
	}

	// A stale report keeps the stored timestamp.
	reply = r.HandleToD("!tod Naggy 5 hours ago", now)
	if !strings.Contains(reply, "Kept the existing ToD") {
		t.Fatalf("reply=%q", reply)
	}
}

func TestHandleToD_UnparsableTimeIsAnError(t *testing.T) {
	r, engine := newTestResponder(t)
	now := time.Now()

	reply := r.HandleToD("!tod Naggy whenever the patch hit", now)
	if !strings.Contains(reply, "Could not parse that time") {
		t.Fatalf("reply=%q", reply)
	}
	if engine.ComputeSnapshot(now).Mobs[0].LastKillAt != nil {
		t.Fatalf("unparsable time still recorded a kill")
	}
}

func TestHandleToD_UnknownMob(t *testing.T) {
	r, _ := newTestResponder(t)
	reply := r.HandleToD("!tod some unknown dragon now", time.Now())
	if !strings.Contains(reply, "I don't know a mob called") {
		t.Fatalf("reply=%q", reply)
	}
}

func TestHandleToD_Quake(t *testing.T) {
	r, engine := newTestResponder(t)
	now := time.Date(2026, time.August, 29, 21, 0, 0, 0, time.UTC)

	reply := r.HandleToD("!tod quake now", now)
	if !strings.Contains(reply, "Quake!") || !strings.Contains(reply, "1 mobs") {
		t.Fatalf("reply=%q", reply)
	}
	kill := engine.ComputeSnapshot(now).Mobs[0].LastKillAt
	if kill == nil || !kill.Equal(now) {
		t.Fatalf("kill=%v want=%v", kill, now)
	}
}

func TestHandleToD_Usage(t *testing.T) {
	r, _ := newTestResponder(t)
	if reply := r.HandleToD("good morning everyone", time.Now()); !strings.HasPrefix(reply, "Usage:") {
		t.Fatalf("reply=%q", reply)
	}
}

func TestHandleSkip_CapAndReset(t *testing.T) {
	r, _ := newTestResponder(t)

	for i := 1; i <= 2; i++ {
		reply := r.HandleSkip("Naggy")
		if !strings.Contains(reply, fmt.Sprintf("(%d)", i)) {
			t.Fatalf("skip %d reply=%q", i, reply)
		}
	}
	if reply := r.HandleSkip("Naggy"); !strings.Contains(reply, "skip cap") {
		t.Fatalf("reply=%q", reply)
	}

	// A recorded ToD resets the counter.
	r.HandleToD("!tod Naggy now", time.Now())
	if n := r.Skips().Count("lord-nagafen"); n != 0 {
		t.Fatalf("count=%d want=0 after ToD", n)
	}
	if reply := r.HandleSkip("Naggy"); !strings.Contains(reply, "(1)") {
		t.Fatalf("reply=%q", reply)
	}
}

func TestHandleSkip_UnknownMob(t *testing.T) {
	r, _ := newTestResponder(t)
	if reply := r.HandleSkip("nobody"); !strings.Contains(reply, "I don't know a mob called") {
		t.Fatalf("reply=%q", reply)
	}
}
