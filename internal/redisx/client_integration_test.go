//go:build integration

package redisx_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-checkout-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	addr, err := c.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	rdb := redisx.New(addr)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisIntegration(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	t.Run("replay_reservation", func(t *testing.T) {
		s := &redisx.ReplayStore{RDB: rdb}

		rv, err := s.Reserve(ctx, "k1", "fp-a")
		if err != nil || rv.State != redisx.Reserved {
			t.Fatalf("first reserve: %+v err=%v", rv, err)
		}
		if ttl := rdb.PTTL(ctx, "idem:checkout:k1").Val(); ttl <= 0 || ttl > redisx.TTLIdempotencyPending {
			t.Fatalf("unexpected pending ttl %v", ttl)
		}
		if rv, _ := s.Reserve(ctx, "k1", "fp-a"); rv.State != redisx.InFlight {
			t.Fatalf("expected in flight, got %+v", rv)
		}
		if rv, _ := s.Reserve(ctx, "k1", "fp-b"); rv.State != redisx.Mismatch {
			t.Fatalf("expected mismatch, got %+v", rv)
		}

		if err := s.Complete(ctx, "k1", []byte(`{"id":"pref-1"}`)); err != nil {
			t.Fatalf("complete: %v", err)
		}
		rv, err = s.Reserve(ctx, "k1", "fp-a")
		if err != nil || rv.State != redisx.Completed || string(rv.Body) != `{"id":"pref-1"}` {
			t.Fatalf("expected replay, got %+v err=%v", rv, err)
		}
		if ttl := rdb.TTL(ctx, "idem:checkout:k1").Val(); ttl <= redisx.TTLIdempotencyPending || ttl > redisx.TTLIdempotency {
			t.Fatalf("unexpected completed ttl %v", ttl)
		}

		if err := s.Release(ctx, "k1"); err != nil {
			t.Fatalf("release: %v", err)
		}
		if rv, _ := s.Reserve(ctx, "k1", "fp-b"); rv.State != redisx.Reserved {
			t.Fatalf("expected key free after release, got %+v", rv)
		}
	})

	t.Run("replay_concurrent_reserve", func(t *testing.T) {
		s := &redisx.ReplayStore{RDB: rdb}
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rv, err := s.Reserve(ctx, "k2", "fp")
				if err == nil && rv.State == redisx.Reserved {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if wins != 1 {
			t.Fatalf("expected exactly one owner, got %d", wins)
		}
	})

	t.Run("dedup_marks_after_success", func(t *testing.T) {
		a := &redisx.Deduper{RDB: rdb, Service: "notifier"}
		b := &redisx.Deduper{RDB: rdb, Service: "audit"}

		// dicek dua kali tanpa Mark: attempt gagal tidak boleh dianggap selesai
		for i := 0; i < 2; i++ {
			if seen, err := a.Seen(ctx, "evt-1"); err != nil || seen {
				t.Fatalf("check %d before mark: seen=%v err=%v", i, seen, err)
			}
		}
		if err := a.Mark(ctx, "evt-1"); err != nil {
			t.Fatalf("mark: %v", err)
		}
		if seen, err := a.Seen(ctx, "evt-1"); err != nil || !seen {
			t.Fatalf("after mark: seen=%v err=%v", seen, err)
		}
		if seen, err := b.Seen(ctx, "evt-1"); err != nil || seen {
			t.Fatalf("other service shares dedup space: seen=%v err=%v", seen, err)
		}
		if ttl := rdb.TTL(ctx, "dedup:notifier:evt-1").Val(); ttl <= 0 || ttl > redisx.TTLDedup {
			t.Fatalf("unexpected ttl %v", ttl)
		}
	})
}
