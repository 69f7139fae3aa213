package discord

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/ZehenForever/eqrespawn/internal/model"
	"github.com/ZehenForever/eqrespawn/internal/window"
)

func TestNotifier_Send(t *testing.T) {
	var got WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type=%q", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "RespawnBot", "", zerolog.Nop())
	err := n.Send(context.Background(), WebhookPayload{Content: "hello"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Username != "RespawnBot" || got.Content != "hello" {
		t.Fatalf("payload=%+v", got)
	}
}

func TestNotifier_SendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid webhook"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "", "", zerolog.Nop())
	err := n.Send(context.Background(), WebhookPayload{Content: "x"})
	if err == nil {
		t.Fatalf("expected error on 400")
	}
	if !strings.Contains(err.Error(), "invalid webhook") {
		t.Fatalf("error lost the response body: %v", err)
	}
}

func TestKillEmbed(t *testing.T) {
	def := model.MobDefinition{
		Name:       "Lord Nagafen",
		Zone:       "Nagafen's Lair",
		MinRespawn: 72 * time.Hour,
		MaxRespawn: 96 * time.Hour,
	}
	ts := time.Date(2026, time.August, 29, 21, 0, 0, 0, time.UTC)

	e := KillEmbed(def, ts)
	if e.Title != "Lord Nagafen is down" {
		t.Fatalf("title=%q", e.Title)
	}
	if len(e.Fields) != 3 {
		t.Fatalf("fields=%v", e.Fields)
	}
	if e.Fields[1].Value != discordTime(ts.Add(72*time.Hour)) {
		t.Fatalf("opens field=%q", e.Fields[1].Value)
	}
	if e.Footer == nil || e.Footer.Text != "Nagafen's Lair" {
		t.Fatalf("footer=%v", e.Footer)
	}
}

func TestSnapshotEmbed(t *testing.T) {
	opens := time.Now().Add(2 * time.Hour)
	closes := time.Now().Add(8 * time.Hour)
	snap := window.Snapshot{
		GeneratedAt: time.Now(),
		Mobs: []window.MobWindow{
			{Name: "Lady Vox", InWindow: true, WindowClosesAt: &closes},
			{Name: "Lord Nagafen", WindowOpensAt: &opens, SecondsUntilOpen: 7200},
			{Name: "Never Killed"},
		},
	}

	e := SnapshotEmbed(snap)
	if e.Color != colorInWindow {
		t.Fatalf("color=%#x", e.Color)
	}
	if len(e.Fields) != 2 {
		t.Fatalf("fields=%+v", e.Fields)
	}
	if !strings.Contains(e.Fields[0].Value, "Lady Vox") {
		t.Fatalf("in-window field=%q", e.Fields[0].Value)
	}
	if !strings.Contains(e.Fields[1].Value, "Lord Nagafen") || strings.Contains(e.Fields[1].Value, "Never Killed") {
		t.Fatalf("upcoming field=%q", e.Fields[1].Value)
	}

	empty := SnapshotEmbed(window.Snapshot{GeneratedAt: time.Now()})
	if empty.Description != "No tracked kills yet." {
		t.Fatalf("empty description=%q", empty.Description)
	}
}
