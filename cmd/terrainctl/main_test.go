package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/freeeve/terrainkit/internal/auth"
)

const ridgeMap = `
name: ridge
layout: |
  ################
  #00000####33333#
  #00000bcef33333#
  #00000bcef33333#
  #00000bcef33333#
  #00000####33333#
  ################
starts:
  self: {x: 1.5, y: 1.5}
  enemy: {x: 14.5, y: 1.5}
`

func writeMap(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ridge.yaml")
	if err := os.WriteFile(path, []byte(ridgeMap), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAnalyzeWritesSnapshotAndLines(t *testing.T) {
	mapPath := writeMap(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "analysis.json")
	lines := filepath.Join(dir, "lines.json")

	var stdout bytes.Buffer
	cmd := analyzeCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{mapPath, "--out", out, "--lines", lines})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(stdout.String(), "3 regions, 1 ramps") {
		t.Errorf("unexpected summary:\n%s", stdout.String())
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var snap struct {
		Regions []json.RawMessage `json:"regions"`
	}
	if err := json.Unmarshal(data, &snap); err != nil || len(snap.Regions) != 3 {
		t.Errorf("expected 3 regions in snapshot, got %d (%v)", len(snap.Regions), err)
	}
	if _, err := os.Stat(lines); err != nil {
		t.Errorf("expected vision line cache written: %v", err)
	}

	// second run reads the cache
	cmd = analyzeCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{mapPath, "--lines", lines})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("analyze with cached lines: %v", err)
	}
}

func TestLinesCacheIsKeyedByMap(t *testing.T) {
	mapPath := writeMap(t)
	lines := filepath.Join(t.TempDir(), "lines.json")

	cmd := analyzeCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{mapPath, "--lines", lines})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	mf, _, err := analyzeFile(context.Background(), mapPath, "", "")
	if err != nil {
		t.Fatalf("analyze without cache: %v", err)
	}
	if got := readLinesCache(lines, mf.Identity()); len(got) == 0 {
		t.Fatal("expected cached lines for the same map")
	}
	if got := readLinesCache(lines, "other-0000"); got != nil {
		t.Errorf("expected no lines for another map, got %d", len(got))
	}

	other := filepath.Join(t.TempDir(), "ridge-copy.yaml")
	copyMap := strings.Replace(ridgeMap, "name: ridge", "name: ridge-copy", 1)
	if err := os.WriteFile(other, []byte(copyMap), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd = analyzeCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{other, "--lines", lines})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("analyze other map: %v", err)
	}
	data, err := os.ReadFile(lines)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	var cache linesCache
	if err := json.Unmarshal(data, &cache); err != nil {
		t.Fatalf("decode cache: %v", err)
	}
	if cache.Map == mf.Identity() || !strings.HasPrefix(cache.Map, "ridge-copy") {
		t.Errorf("expected the cache recast for ridge-copy, got %s", cache.Map)
	}
}

func TestPathCommand(t *testing.T) {
	mapPath := writeMap(t)

	var stdout bytes.Buffer
	cmd := pathCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{mapPath, "--from", "1.5,3.5", "--to", "5.5,3.5"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("path: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "4 steps, length 4.00") {
		t.Errorf("unexpected output:\n%s", stdout.String())
	}

	stdout.Reset()
	cmd = pathCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{mapPath, "--from", "1.5,1.5", "--to", "14.5,1.5", "--regions"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("region path: %v", err)
	}
	if got := strings.Count(stdout.String(), "->"); got != 2 {
		t.Errorf("expected a 3 region path, got %q", stdout.String())
	}
}

func TestParsePoint(t *testing.T) {
	p, err := parsePoint(" 3.5, 4 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.X != 3.5 || p.Y != 4 {
		t.Errorf("expected (3.5, 4), got %v", p)
	}
	for _, bad := range []string{"", "3", "a,1", "1,b"} {
		if _, err := parsePoint(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestTokenCommand(t *testing.T) {
	var stdout bytes.Buffer
	cmd := tokenCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"bot-1", "--secret", "s3cret", "--scope", "read,write"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("token: %v", err)
	}
	var pair auth.TokenPair
	if err := json.Unmarshal(stdout.Bytes(), &pair); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := auth.NewJWTManager("s3cret").ValidateToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !claims.HasScope(auth.ScopeWrite) || claims.ClientID != "bot-1" {
		t.Errorf("unexpected claims %+v", claims)
	}

	cmd = tokenCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"bot-1", "--secret", "x", "--scope", "admin"})
	if err := cmd.Execute(); err == nil {
		t.Error("expected unknown scope error")
	}
}
