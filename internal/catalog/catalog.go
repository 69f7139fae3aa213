// Package catalog loads the static mob catalog. Entries arrive in several
// historical shapes; normalization into model.MobDefinition happens in the
// window engine so that shape ambiguity never crosses the load boundary.
package catalog

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// RawMob is a catalog entry as it appears on disk. Respawn bounds come in
// exactly one of three shapes: explicit minutes, explicit hours, or
// base+variance hours. Pointers distinguish absent from zero.
type RawMob struct {
	ID             string   `json:"id,omitempty"`
	Name           string   `json:"name"`
	Aliases        []string `json:"aliases,omitempty"`
	Zone           string   `json:"zone,omitempty"`
	Expansion      string   `json:"expansion,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	RespawnDisplay string   `json:"respawnDisplay,omitempty"`

	MinRespawnMinutes *float64 `json:"minRespawnMinutes,omitempty"`
	MaxRespawnMinutes *float64 `json:"maxRespawnMinutes,omitempty"`

	MinRespawnHours *float64 `json:"minRespawnHours,omitempty"`
	MaxRespawnHours *float64 `json:"maxRespawnHours,omitempty"`

	RespawnHours  *float64 `json:"respawnHours,omitempty"`
	VarianceHours *float64 `json:"varianceHours,omitempty"`

	KillPhrases []string `json:"killPhrases,omitempty"`
	MaxSkips    int      `json:"maxSkips,omitempty"`
}

// LoadFile reads a JSON array of raw catalog entries.
func LoadFile(path string) ([]RawMob, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var raws []RawMob
	if err := json.Unmarshal(b, &raws); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return raws, nil
}
