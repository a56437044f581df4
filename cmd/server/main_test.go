package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/freeeve/terrainkit/internal/repository/memory"
	"github.com/freeeve/terrainkit/internal/service"
	"github.com/freeeve/terrainkit/pkg/region"
)

func TestPreloadMapsOpensBundledMaps(t *testing.T) {
	svc := service.NewMapService(memory.NewStore(), region.DefaultOptions(), nil)
	if got := preloadMaps(context.Background(), svc, filepath.Join("..", "..", "maps")); got != 2 {
		t.Errorf("expected 2 bundled maps, got %d", got)
	}
	if list := svc.List(); len(list) != 2 || list[0].Name != "plains" || list[1].Name != "ridge" {
		t.Errorf("expected plains and ridge, got %+v", list)
	}
}

func TestPreloadMapsSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("layout: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	svc := service.NewMapService(memory.NewStore(), region.DefaultOptions(), nil)
	if got := preloadMaps(context.Background(), svc, dir); got != 0 {
		t.Errorf("expected nothing opened, got %d", got)
	}
}
