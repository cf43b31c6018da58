package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis, skipping the test when none is
// running. The integration suite covers the same paths against a container.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestManager_SetGetDelete(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := Key{Path: "/pokemons/1"}

	entry := &Entry{
		Body:       []byte(`{"name":"bulbasaur"}`),
		ETag:       `"b1"`,
		StatusCode: 200,
		Expires:    time.Now().Add(time.Minute),
	}
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Body) != string(entry.Body) || got.ETag != entry.ETag {
		t.Errorf("Get() = %+v", got)
	}

	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() after delete error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_SkipsExpiredEntry(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := Key{Path: "/pokemons/2"}

	if err := manager.Set(ctx, key, &Entry{Expires: time.Now().Add(-time.Second)}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_RefreshTTL(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := Key{Path: "/pokemons/3"}

	if err := manager.Set(ctx, key, &Entry{Body: []byte(`{}`), Expires: time.Now().Add(time.Second)}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	later := time.Now().Add(time.Hour)
	if err := manager.RefreshTTL(ctx, key, later); err != nil {
		t.Fatalf("RefreshTTL() error = %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.TTL() < 59*time.Minute {
		t.Errorf("TTL() = %v, want ~1h", got.TTL())
	}
}

func TestManager_SetNil(t *testing.T) {
	manager := NewManager(redis.NewClient(&redis.Options{Addr: "localhost:0"}))
	if err := manager.Set(context.Background(), Key{}, nil); err == nil {
		t.Error("expected error for nil entry")
	}
}
