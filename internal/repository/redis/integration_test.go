//go:build integration

package redis

import (
	"context"
	"testing"

	goredis "github.com/redis/go-redis/v9"

	"github.com/freeeve/terrainkit/internal/repository"
	"github.com/freeeve/terrainkit/internal/testutil"
)

var testRDB *goredis.Client

func setup(t *testing.T) *Client {
	t.Helper()
	if testRDB == nil {
		testRDB = testutil.SetupRedis(t)
	}
	testutil.CleanupRedis(t, testRDB)
	return &Client{rdb: testRDB}
}

func TestArtifactRoundTrip(t *testing.T) {
	c := setup(t)
	ctx := context.Background()
	key := repository.Key(repository.KindAnalysis, "tiny-abc")

	if err := c.Save(ctx, key, []byte(`{"regions":[]}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := c.Load(ctx, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != `{"regions":[]}` {
		t.Errorf("unexpected data %s", got)
	}
}

func TestArtifactMissing(t *testing.T) {
	c := setup(t)
	got, err := c.Load(context.Background(), "lines:none")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %s", got)
	}
}

func TestArtifactDelete(t *testing.T) {
	c := setup(t)
	ctx := context.Background()
	_ = c.Save(ctx, "lines:x", []byte("x"))
	if err := c.Delete(ctx, "lines:x"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := c.Load(ctx, "lines:x"); got != nil {
		t.Errorf("expected key removed, got %s", got)
	}
}
