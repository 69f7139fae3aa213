package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "mobs.json")
	body := `[
  {"id": "lord-nagafen", "name": "Lord Nagafen", "aliases": ["Naggy"],
   "zone": "Nagafen's Lair", "minRespawnHours": 72, "maxRespawnHours": 96},
  {"name": "Lady Vox", "respawnHours": 84, "varianceHours": 12,
   "killPhrases": ["vox has been slain"]},
  {"name": "Quillmane", "minRespawnMinutes": 34, "maxRespawnMinutes": 68, "maxSkips": 3}
]`
	if err := os.WriteFile(p, []byte(body), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	raws, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(raws) != 3 {
		t.Fatalf("entries=%d want=3", len(raws))
	}
	if raws[0].ID != "lord-nagafen" || *raws[0].MinRespawnHours != 72 {
		t.Fatalf("first entry=%+v", raws[0])
	}
	if raws[1].RespawnHours == nil || *raws[1].VarianceHours != 12 {
		t.Fatalf("second entry=%+v", raws[1])
	}
	if raws[2].MaxSkips != 3 || *raws[2].MinRespawnMinutes != 34 {
		t.Fatalf("third entry=%+v", raws[2])
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	p := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(p, []byte("{not json"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFile(p); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
}
