package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"tenant-quiz-service/internal/domain"
	"tenant-quiz-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestClientCacheStoresAndEvictsKeys(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := memory.NewClientStore()
	record := domain.Client{
		ID:         "c1",
		Name:       "acme",
		ClientID:   "cid-1",
		SecretHash: "hash",
		Active:     true,
		CreatedAt:  time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := store.Insert(ctx, record); err != nil {
		t.Fatalf("insert: %v", err)
	}
	cache := NewClientCache(client, store, time.Minute)

	got, err := cache.GetByClientID(ctx, "cid-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "c1" || !got.Active {
		t.Fatalf("unexpected client %+v", got)
	}
	if !mr.Exists("client:cid-1") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("client:cid-1"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl within jitter bounds, got %s", ttl)
	}

	record.ClientID = "cid-2"
	if err := cache.Update(ctx, record); err != nil {
		t.Fatalf("update: %v", err)
	}
	if mr.Exists("client:cid-1") {
		t.Fatalf("expected the old client_id key to be removed")
	}
	if _, err := cache.GetByClientID(ctx, "cid-1"); !errors.Is(err, domain.ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound for the rotated id, got %v", err)
	}
}

func TestClientCacheWithoutTTLDoesNotCache(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := memory.NewClientStore()
	if err := store.Insert(ctx, domain.Client{ID: "c1", Name: "acme", ClientID: "cid-1", Active: true}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	cache := NewClientCache(client, store, 0)

	if _, err := cache.GetByClientID(ctx, "cid-1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if mr.Exists("client:cid-1") {
		t.Fatalf("expected no redis key without a ttl")
	}
}
