package window

import (
	"regexp"
	"strings"

	"github.com/ZehenForever/eqrespawn/internal/model"
)

var reAliasPunct = regexp.MustCompile(`[^a-z0-9 ]+`)

// AliasIndex maps normalized alias text to mob ids. It is a pure function of
// the catalog plus the dynamic overrides and is rebuilt from scratch on
// every change; it is never mutated in place.
type AliasIndex struct {
	byKey map[string]string
	defs  map[string]*model.MobDefinition
}

func newAliasIndex(defs []*model.MobDefinition, overrides map[string]string) *AliasIndex {
	ix := &AliasIndex{
		byKey: make(map[string]string),
		defs:  make(map[string]*model.MobDefinition, len(defs)),
	}
	for _, def := range defs {
		ix.defs[def.ID] = def
		ix.add(def.ID, def.ID)
		ix.add(def.Name, def.ID)
		for _, a := range def.Aliases {
			ix.add(a, def.ID)
		}
	}
	for alias, id := range overrides {
		if _, ok := ix.defs[id]; ok {
			ix.add(alias, id)
		}
	}
	return ix
}

// add registers every normalized variant of text. First registration wins so
// catalog order decides collisions.
func (ix *AliasIndex) add(text, id string) {
	for _, key := range aliasKeys(text) {
		if _, taken := ix.byKey[key]; !taken {
			ix.byKey[key] = id
		}
	}
}

// FindByAlias resolves free text to a mob, insensitive to case, punctuation,
// and whitespace.
func (ix *AliasIndex) FindByAlias(text string) (string, *model.MobDefinition, bool) {
	for _, key := range aliasKeys(text) {
		if id, ok := ix.byKey[key]; ok {
			return id, ix.defs[id], true
		}
	}
	return "", nil, false
}

// aliasKeys produces the candidate lookup keys for a piece of text: the
// normalized form, and the form with a leading article dropped.
func aliasKeys(text string) []string {
	base := normalizeAlias(text)
	if base == "" {
		return nil
	}
	keys := []string{base}
	for _, art := range []string{"a ", "an ", "the "} {
		if strings.HasPrefix(base, art) {
			keys = append(keys, strings.TrimSpace(strings.TrimPrefix(base, art)))
		}
	}
	return keys
}

func normalizeAlias(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = reAliasPunct.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}
