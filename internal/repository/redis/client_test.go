package redis

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/freeeve/terrainkit/internal/repository"
)

func newTestClient(t *testing.T, ttl time.Duration) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewClientFromPool(rdb, ttl), mr
}

func TestSaveLoad(t *testing.T) {
	c, mr := newTestClient(t, 0)
	ctx := context.Background()
	key := repository.Key(repository.KindLines, "tiny-abc")

	if err := c.Save(ctx, key, []byte(`[{"a":0,"c":[1,2]}]`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := c.Load(ctx, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != `[{"a":0,"c":[1,2]}]` {
		t.Errorf("unexpected data %s", got)
	}
	if !mr.Exists("terrain:lines:tiny-abc") {
		t.Error("expected key stored under the terrain prefix")
	}
}

func TestLoadMissing(t *testing.T) {
	c, _ := newTestClient(t, 0)
	got, err := c.Load(context.Background(), "analysis:nope")
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing key, got %s", got)
	}
}

func TestSaveWithTTLExpires(t *testing.T) {
	c, mr := newTestClient(t, time.Minute)
	ctx := context.Background()
	if err := c.Save(ctx, "analysis:m", []byte("x")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL("terrain:analysis:m"); ttl != time.Minute {
		t.Errorf("expected 1m TTL, got %v", ttl)
	}
	mr.FastForward(2 * time.Minute)
	got, err := c.Load(ctx, "analysis:m")
	if err != nil || got != nil {
		t.Errorf("expected expired key, got %q, %v", got, err)
	}
}

func TestDeleteAndKeys(t *testing.T) {
	c, _ := newTestClient(t, 0)
	ctx := context.Background()
	for _, k := range []string{"lines:a", "lines:b", "analysis:a"} {
		if err := c.Save(ctx, k, []byte(k)); err != nil {
			t.Fatalf("save %s: %v", k, err)
		}
	}
	keys, err := c.Keys(ctx, repository.KindLines)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	slices.Sort(keys)
	if !slices.Equal(keys, []string{"lines:a", "lines:b"}) {
		t.Errorf("unexpected keys %v", keys)
	}

	if err := c.Delete(ctx, "lines:a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := c.Load(ctx, "lines:a"); got != nil {
		t.Error("expected deleted key to be gone")
	}
	if err := c.Delete(ctx, "lines:missing"); err != nil {
		t.Errorf("deleting a missing key should succeed: %v", err)
	}
}

func TestEmptyKey(t *testing.T) {
	c, _ := newTestClient(t, 0)
	if err := c.Save(context.Background(), "", nil); !errors.Is(err, repository.ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
}
