// Package command extracts embedded time-of-death commands from raw log or
// chat lines. It recognizes the target and time text; resolving the time
// text into a timestamp is the time resolver's job.
package command

import (
	"regexp"
	"strings"

	"github.com/ZehenForever/eqrespawn/internal/model"
)

// MobFinder resolves free alias text to a mob. Satisfied by
// window.AliasIndex.
type MobFinder interface {
	FindByAlias(text string) (string, *model.MobDefinition, bool)
}

type Kind string

const (
	KindMob   Kind = "mob"
	KindQuake Kind = "quake"
)

// Command is an extracted ToD instruction.
type Command struct {
	Kind Kind

	// Target is the mob text as typed; MobID is set when the alias index
	// resolved it. Both empty for quake commands.
	Target string
	MobID  string

	// TimeText is the free time expression, empty meaning "now".
	// ExplicitNow is set when the literal word "now" appears standalone in
	// the time text, which short-circuits the resolver.
	TimeText    string
	ExplicitNow bool
}

// reCommand locates the command token, with or without a leading signal
// character, anywhere in the line (commands arrive embedded in chat text
// such as `Someone tells the guild, '!tod Lord Nagafen now'`). Matched
// case-insensitively against the original line so submatch indices stay
// valid for slicing it.
var reCommand = regexp.MustCompile(`(?i)(?:^|[\s'"(,])[!./]?tod\b[:,]?\s*(.*)$`)

// Extract scans a line for an embedded ToD command. Returns false when the
// line carries none or the command has no payload.
func Extract(line string, mobs MobFinder) (Command, bool) {
	m := reCommand.FindStringSubmatchIndex(line)
	if m == nil {
		return Command{}, false
	}

	rest := strings.TrimSpace(line[m[2]:m[3]])
	rest = strings.TrimRight(rest, `'"`)
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return Command{}, false
	}

	if first := strings.Fields(rest)[0]; strings.Trim(strings.ToLower(first), ".!?") == "quake" {
		timeText := strings.TrimSpace(rest[len(first):])
		return Command{Kind: KindQuake, TimeText: timeText, ExplicitNow: hasStandaloneNow(timeText)}, true
	}

	// Explicit separator between target and time text.
	if i := strings.IndexAny(rest, "|,"); i >= 0 {
		target := strings.TrimSpace(rest[:i])
		timeText := strings.TrimSpace(rest[i+1:])
		if target == "" {
			return Command{}, false
		}
		cmd := Command{Kind: KindMob, Target: target, TimeText: timeText, ExplicitNow: hasStandaloneNow(timeText)}
		if mobs != nil {
			if id, _, ok := mobs.FindByAlias(target); ok {
				cmd.MobID = id
			}
		}
		return cmd, true
	}

	// No separator: right-to-left token-shrinking search. Drop trailing
	// words from the target candidate until a prefix resolves against the
	// alias index, so "Lord Nagafen killed at 9pm" splits without explicit
	// punctuation. Longest match wins.
	words := strings.Fields(rest)
	if mobs != nil {
		for n := len(words); n >= 1; n-- {
			cand := strings.Join(words[:n], " ")
			if id, _, ok := mobs.FindByAlias(cand); ok {
				timeText := strings.Join(words[n:], " ")
				return Command{
					Kind:        KindMob,
					Target:      cand,
					MobID:       id,
					TimeText:    timeText,
					ExplicitNow: hasStandaloneNow(timeText),
				}, true
			}
		}
	}

	// Unresolvable target: hand the whole payload back so the caller can
	// report the unknown mob instead of silently dropping the command.
	return Command{Kind: KindMob, Target: rest}, true
}

func hasStandaloneNow(timeText string) bool {
	for _, w := range strings.Fields(strings.ToLower(timeText)) {
		if strings.Trim(w, ".!?,") == "now" {
			return true
		}
	}
	return false
}
