package postgres

import "testing"

func TestKindOf(t *testing.T) {
	cases := map[string]string{
		"lines:tiny-abc":    "lines",
		"analysis:tiny-abc": "analysis",
		"bare":              "bare",
	}
	for key, want := range cases {
		if got := kindOf(key); got != want {
			t.Errorf("kindOf(%q): expected %s, got %s", key, want, got)
		}
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	data, err := migrations.ReadFile("migrations/001_map_analysis.up.sql")
	if err != nil {
		t.Fatalf("read embedded migration: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty migration")
	}
}
