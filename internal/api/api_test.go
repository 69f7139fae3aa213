package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/ZehenForever/eqrespawn/internal/catalog"
	"github.com/ZehenForever/eqrespawn/internal/countdown"
	"github.com/ZehenForever/eqrespawn/internal/hub"
	"github.com/ZehenForever/eqrespawn/internal/window"
)

func fp(v float64) *float64 { return &v }

func newTestHandler(t *testing.T) (*Handler, *window.Engine) {
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
		},
	})
	if n != 1 {
		t.Fatalf("loaded %d definitions", n)
	}
	timers := countdown.New(time.Hour)
	t.Cleanup(timers.Stop)
	return NewHandler(engine, timers, hub.New(zerolog.Nop()), zerolog.Nop()), engine
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: bad JSON response %q: %v", method, path, rec.Body.String(), err)
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)
	rec, out := doJSON(t, h.Routes(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || out["status"] != "ok" {
		t.Fatalf("code=%d body=%v", rec.Code, out)
	}
}

func TestMobs(t *testing.T) {
	h, _ := newTestHandler(t)
	rec, out := doJSON(t, h.Routes(), http.MethodGet, "/api/v1/mobs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}
	mobs := out["mobs"].([]any)
	if len(mobs) != 1 {
		t.Fatalf("mobs=%v", mobs)
	}
	m := mobs[0].(map[string]any)
	if m["id"] != "lord-nagafen" || m["minRespawnMinutes"] != float64(72*60) {
		t.Fatalf("mob=%v", m)
	}
}

func TestRecordKill(t *testing.T) {
	h, engine := newTestHandler(t)
	routes := h.Routes()

	rec, out := doJSON(t, routes, http.MethodPost, "/api/v1/mobs/lord-nagafen/kill",
		`{"timestamp":"2026-08-29T21:15:32Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d body=%v", rec.Code, out)
	}
	if out["recorded"] != true || out["timestamp"] != "2026-08-29T21:15:32Z" {
		t.Fatalf("body=%v", out)
	}

	// Replay of the same timestamp is accepted but records nothing.
	_, out = doJSON(t, routes, http.MethodPost, "/api/v1/mobs/lord-nagafen/kill",
		`{"timestamp":"2026-08-29T21:15:32Z"}`)
	if out["recorded"] != false {
		t.Fatalf("replay body=%v", out)
	}

	snap := engine.ComputeSnapshot(time.Now())
	if snap.Mobs[0].LastKillAt == nil {
		t.Fatalf("engine has no kill after POST")
	}
}

func TestRecordKill_Errors(t *testing.T) {
	h, _ := newTestHandler(t)
	routes := h.Routes()

	rec, _ := doJSON(t, routes, http.MethodPost, "/api/v1/mobs/no-such-mob/kill", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown mob code=%d", rec.Code)
	}

	rec, out := doJSON(t, routes, http.MethodPost, "/api/v1/mobs/lord-nagafen/kill",
		`{"expression":"not a time"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad expression code=%d", rec.Code)
	}
	if out["error"] != errCouldNotParseTime {
		t.Fatalf("error=%v", out["error"])
	}
}

func TestRecordKill_MalformedBody(t *testing.T) {
	h, engine := newTestHandler(t)
	routes := h.Routes()

	// A broken body must not be mistaken for an empty one and record a
	// kill at now.
	rec, out := doJSON(t, routes, http.MethodPost, "/api/v1/mobs/lord-nagafen/kill",
		`{"timestamp":"2026-08-29T21`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code=%d body=%v", rec.Code, out)
	}
	if engine.ComputeSnapshot(time.Now()).Mobs[0].LastKillAt != nil {
		t.Fatalf("kill recorded from malformed body")
	}

	// An absent body still means now.
	rec, out = doJSON(t, routes, http.MethodPost, "/api/v1/mobs/lord-nagafen/kill", "")
	if rec.Code != http.StatusOK || out["recorded"] != true {
		t.Fatalf("code=%d body=%v", rec.Code, out)
	}
}

func TestClearKill(t *testing.T) {
	h, engine := newTestHandler(t)
	routes := h.Routes()
	engine.RecordKill("lord-nagafen", time.Now())

	rec, out := doJSON(t, routes, http.MethodDelete, "/api/v1/mobs/lord-nagafen/kill", "")
	if rec.Code != http.StatusOK || out["cleared"] != true {
		t.Fatalf("code=%d body=%v", rec.Code, out)
	}
	_, out = doJSON(t, routes, http.MethodDelete, "/api/v1/mobs/lord-nagafen/kill", "")
	if out["cleared"] != false {
		t.Fatalf("second clear body=%v", out)
	}
}

func TestFreeTextToD(t *testing.T) {
	h, engine := newTestHandler(t)
	routes := h.Routes()

	rec, out := doJSON(t, routes, http.MethodPost, "/api/v1/tod",
		`{"text":"!tod Naggy 2 hours ago"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d body=%v", rec.Code, out)
	}
	if out["mobId"] != "lord-nagafen" || out["recorded"] != true {
		t.Fatalf("body=%v", out)
	}

	kill := engine.ComputeSnapshot(time.Now()).Mobs[0].LastKillAt
	if kill == nil {
		t.Fatalf("no kill recorded")
	}
	age := time.Since(*kill)
	if age < time.Hour+59*time.Minute || age > 2*time.Hour+time.Minute {
		t.Fatalf("kill age=%v want about 2h", age)
	}
}

func TestFreeTextToD_Errors(t *testing.T) {
	h, _ := newTestHandler(t)
	routes := h.Routes()

	rec, _ := doJSON(t, routes, http.MethodPost, "/api/v1/tod", `{"text":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty text code=%d", rec.Code)
	}

	rec, _ = doJSON(t, routes, http.MethodPost, "/api/v1/tod", `{"text":"hello there"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("no command code=%d", rec.Code)
	}

	rec, out := doJSON(t, routes, http.MethodPost, "/api/v1/tod",
		`{"text":"!tod Naggy whenever it was"}`)
	if rec.Code != http.StatusBadRequest || out["error"] != errCouldNotParseTime {
		t.Fatalf("code=%d body=%v", rec.Code, out)
	}

	rec, _ = doJSON(t, routes, http.MethodPost, "/api/v1/tod",
		`{"text":"!tod some unknown dragon"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown mob code=%d", rec.Code)
	}
}

func TestQuake(t *testing.T) {
	h, _ := newTestHandler(t)
	rec, out := doJSON(t, h.Routes(), http.MethodPost, "/api/v1/quake", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}
	if out["quake"] != true || out["updated"] != float64(1) {
		t.Fatalf("body=%v", out)
	}
}

func TestTimers(t *testing.T) {
	h, _ := newTestHandler(t)
	rec, out := doJSON(t, h.Routes(), http.MethodGet, "/api/v1/timers", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}
	if _, ok := out["timers"]; !ok {
		t.Fatalf("body=%v", out)
	}
}

func TestSnapshotShape(t *testing.T) {
	h, engine := newTestHandler(t)
	engine.RecordKill("lord-nagafen", time.Now().Add(-80*time.Hour))

	rec, out := doJSON(t, h.Routes(), http.MethodGet, "/api/v1/snapshot", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}
	mobs := out["mobs"].([]any)
	m := mobs[0].(map[string]any)
	if m["inWindow"] != true {
		t.Fatalf("80h after kill should be in a 72-96h window: %v", m)
	}
	if m["windowProgress"] == nil {
		t.Fatalf("windowProgress missing: %v", m)
	}
}
