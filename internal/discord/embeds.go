package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/ZehenForever/eqrespawn/internal/model"
	"github.com/ZehenForever/eqrespawn/internal/window"
)

const (
	colorKill     = 0xCC3333
	colorInWindow = 0x33AA55
	colorIdle     = 0x5865F2
)

// KillEmbed announces a recorded time of death.
func KillEmbed(def model.MobDefinition, ts time.Time) Embed {
	opens := ts.Add(def.MinRespawn)
	closes := ts.Add(def.MaxRespawn)
	e := Embed{
		Title:     fmt.Sprintf("%s is down", def.Name),
		Color:     colorKill,
		Timestamp: ts.UTC().Format(time.RFC3339),
		Fields: []EmbedField{
			{Name: "ToD", Value: discordTime(ts), Inline: true},
			{Name: "Window opens", Value: discordTime(opens), Inline: true},
			{Name: "Window closes", Value: discordTime(closes), Inline: true},
		},
	}
	if def.Zone != "" {
		e.Footer = &EmbedFooter{Text: def.Zone}
	}
	return e
}

// SnapshotEmbed summarizes the current window state: mobs in window first,
// then upcoming windows by time until open. Mobs with no recorded kill are
// omitted.
func SnapshotEmbed(snap window.Snapshot) Embed {
	var inWindow, upcoming []string
	for _, mw := range snap.Mobs {
		switch {
		case mw.InWindow:
			inWindow = append(inWindow, fmt.Sprintf("**%s** closes %s", mw.Name, discordRelative(*mw.WindowClosesAt)))
		case mw.WindowOpensAt != nil && mw.SecondsUntilOpen > 0:
			upcoming = append(upcoming, fmt.Sprintf("**%s** opens %s", mw.Name, discordRelative(*mw.WindowOpensAt)))
		}
	}

	e := Embed{
		Title:     "Respawn windows",
		Color:     colorIdle,
		Timestamp: snap.GeneratedAt.UTC().Format(time.RFC3339),
	}
	if len(inWindow) > 0 {
		e.Color = colorInWindow
		e.Fields = append(e.Fields, EmbedField{Name: "In window", Value: strings.Join(inWindow, "\n")})
	}
	if len(upcoming) > 0 {
		e.Fields = append(e.Fields, EmbedField{Name: "Upcoming", Value: strings.Join(upcoming, "\n")})
	}
	if len(e.Fields) == 0 {
		e.Description = "No tracked kills yet."
	}
	return e
}

// discordTime renders Discord's client-local timestamp markup.
func discordTime(t time.Time) string {
	return fmt.Sprintf("<t:%d:f>", t.Unix())
}

func discordRelative(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}
