package snapshot

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/gatherhub/eventdir/internal/models"
)

func newTestRedisBackend(t *testing.T) *RedisBackend {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBackendWithClient(client)
}

func TestRedisBackend_SaveLoadRoundtrip(t *testing.T) {
	backend := newTestRedisBackend(t)
	ctx := context.Background()

	in := &Snapshot{
		Data: sampleData(),
		Diagnostics: models.Diagnostics{
			RunID:           "run-1",
			GroupsProcessed: 1,
			DataHash:        "abc123",
		},
		Populated: true,
	}
	if err := backend.Save(ctx, in); err != nil {
		t.Fatalf("Expected save to succeed, got %v", err)
	}

	out, err := backend.Load(ctx)
	if err != nil {
		t.Fatalf("Expected load to succeed, got %v", err)
	}
	if out == nil {
		t.Fatal("Expected a snapshot, got nil")
	}
	if out.Diagnostics.RunID != "run-1" || out.Diagnostics.DataHash != "abc123" {
		t.Errorf("Diagnostics did not survive roundtrip: %+v", out.Diagnostics)
	}
	group, ok := out.Data["go-denver"]
	if !ok {
		t.Fatal("Expected group go-denver in loaded snapshot")
	}
	if group.Name != "Go Denver" {
		t.Errorf("Expected group name 'Go Denver', got %q", group.Name)
	}
}

func TestRedisBackend_LoadMissingKey(t *testing.T) {
	backend := newTestRedisBackend(t)

	snap, err := backend.Load(context.Background())
	if err != nil {
		t.Fatalf("Expected no error for absent key, got %v", err)
	}
	if snap != nil {
		t.Errorf("Expected nil snapshot for absent key, got %+v", snap)
	}
}

func TestRedisBackend_SaveOverwrites(t *testing.T) {
	backend := newTestRedisBackend(t)
	ctx := context.Background()

	first := &Snapshot{Data: sampleData(), Diagnostics: models.Diagnostics{RunID: "run-1"}}
	second := &Snapshot{Data: sampleData(), Diagnostics: models.Diagnostics{RunID: "run-2"}}

	if err := backend.Save(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := backend.Save(ctx, second); err != nil {
		t.Fatal(err)
	}

	out, err := backend.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if out.Diagnostics.RunID != "run-2" {
		t.Errorf("Expected latest snapshot, got run %s", out.Diagnostics.RunID)
	}
}
