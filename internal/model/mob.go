package model

import (
	"regexp"
	"strings"
	"time"
)

// MobDefinition is the canonical, normalized form of a catalog entry. The
// heterogeneous raw shapes (explicit minutes, explicit hours, base+variance)
// are resolved at load time; nothing past the load boundary sees shape
// ambiguity.
type MobDefinition struct {
	ID             string
	Name           string
	Aliases        []string
	Zone           string
	Expansion      string
	Notes          string
	RespawnDisplay string

	MinRespawn time.Duration
	MaxRespawn time.Duration

	// MaxSkips caps the per-mob skip counter. 0 means uncapped.
	MaxSkips int

	// KillMatchers are tested against lower-cased narrative log text to
	// auto-detect kills. They are not used for explicit ToD commands.
	KillMatchers []Pattern
}

// Pattern is a text matcher compiled from a catalog kill phrase or a trigger
// expression. Compile failures fall back to a plain substring test so a bad
// pattern never aborts a catalog load.
type Pattern struct {
	raw string
	re  *regexp.Regexp
}

func CompilePattern(expr string) Pattern {
	expr = strings.TrimSpace(expr)
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return Pattern{raw: strings.ToLower(expr)}
	}
	return Pattern{raw: strings.ToLower(expr), re: re}
}

// SubstringPattern builds a matcher that only does a substring test, for
// auto-generated phrases that must never be interpreted as regex syntax.
func SubstringPattern(phrase string) Pattern {
	return Pattern{raw: strings.ToLower(strings.TrimSpace(phrase))}
}

// Match reports whether s contains the pattern. s is expected to already be
// lower-cased by the caller.
func (p Pattern) Match(s string) bool {
	if p.raw == "" {
		return false
	}
	if p.re != nil {
		return p.re.MatchString(s)
	}
	return strings.Contains(s, p.raw)
}

func (p Pattern) String() string { return p.raw }

// IsZero reports whether the pattern was built from an empty expression.
func (p Pattern) IsZero() bool { return p.raw == "" }

var slugNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives a stable id from a display name: lower-cased, runs of
// non-alphanumerics collapsed to single hyphens.
func Slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugNonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
