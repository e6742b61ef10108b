package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memOrderStore struct {
	mu     sync.Mutex
	orders map[string]Order
	clock  time.Time

	// afterRead, kalau diisi, dipanggil setelah GetOrderByID membaca row
	afterRead func()
}

func (s *memOrderStore) CreateOrder(_ context.Context, o Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	return nil
}

func (s *memOrderStore) GetOrderByID(_ context.Context, id string) (Order, error) {
	s.mu.Lock()
	o, ok := s.orders[id]
	s.mu.Unlock()
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	if s.afterRead != nil {
		s.afterRead()
	}
	return o, nil
}

func (s *memOrderStore) SetOrderStatus(_ context.Context, id string, st Status, at time.Time) (Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, false, ErrOrderNotFound
	}
	if o.StatusObservedAt != nil && o.StatusObservedAt.After(at) {
		return Order{}, false, nil
	}
	s.clock = s.clock.Add(time.Second)
	o.Status, o.StatusObservedAt, o.UpdatedAt = st, &at, s.clock
	s.orders[id] = o
	return o, true, nil
}

// memOrderCache mirrors the versioned put of RedisOrderCache.
type memOrderCache struct {
	mu     sync.Mutex
	m      map[string]Order
	putErr error
	forgot int
}

func (c *memOrderCache) Get(_ context.Context, id string) (Order, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.m[id]
	return o, ok, nil
}

func (c *memOrderCache) Put(_ context.Context, o Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.putErr != nil {
		return c.putErr
	}
	if cur, ok := c.m[o.ID]; ok && cacheVersion(cur) > cacheVersion(o) {
		return nil
	}
	c.m[o.ID] = o
	return nil
}

func (c *memOrderCache) Forget(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, id)
	c.forgot++
	return nil
}

func newCachedFixture() (*CachedRepo, *memOrderStore, *memOrderCache) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &memOrderStore{
		orders: map[string]Order{"order-1": {ID: "order-1", Status: StatusPending, CreatedAt: t0, UpdatedAt: t0}},
		clock:  t0,
	}
	cache := &memOrderCache{m: map[string]Order{}}
	return &CachedRepo{Store: store, Cache: cache}, store, cache
}

func TestCachedRepoReadThrough(t *testing.T) {
	t.Parallel()

	repo, store, cache := newCachedFixture()
	ctx := context.Background()

	if _, err := repo.GetOrderByID(ctx, "order-1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "order-1"); !ok {
		t.Fatal("expected order cached after first read")
	}

	// DB berubah diam-diam: read kedua harus dari cache
	store.mu.Lock()
	o := store.orders["order-1"]
	o.PayerName = "changed"
	store.orders["order-1"] = o
	store.mu.Unlock()
	got, _ := repo.GetOrderByID(ctx, "order-1")
	if got.PayerName == "changed" {
		t.Fatal("expected cached snapshot to be served")
	}

	if _, err := repo.GetOrderByID(ctx, "missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCachedRepoStaleReaderLosesToUpdate(t *testing.T) {
	t.Parallel()

	repo, store, cache := newCachedFixture()
	ctx := context.Background()

	loaded := make(chan struct{})
	release := make(chan struct{})
	store.afterRead = func() {
		close(loaded)
		<-release
	}

	done := make(chan Order)
	go func() {
		o, _ := repo.GetOrderByID(ctx, "order-1")
		done <- o
	}()

	// reader sudah pegang row pending, update commit di tengah-tengah
	<-loaded
	store.afterRead = nil
	applied, err := repo.UpdateOrderStatus(ctx, "order-1", StatusApproved, time.Now())
	if err != nil || !applied {
		t.Fatalf("update: applied=%v err=%v", applied, err)
	}
	close(release)
	if stale := <-done; stale.Status != StatusPending {
		t.Fatalf("reader should have seen the pre-update row, got %s", stale.Status)
	}

	cached, ok, _ := cache.Get(ctx, "order-1")
	if !ok || cached.Status != StatusApproved {
		t.Fatalf("expected approved in cache, got ok=%v status=%s", ok, cached.Status)
	}
	got, err := repo.GetOrderByID(ctx, "order-1")
	if err != nil || got.Status != StatusApproved {
		t.Fatalf("expected approved on read, got %s err=%v", got.Status, err)
	}
}

func TestCachedRepoUpdateFallsBackToForget(t *testing.T) {
	t.Parallel()

	repo, _, cache := newCachedFixture()
	ctx := context.Background()
	if _, err := repo.GetOrderByID(ctx, "order-1"); err != nil {
		t.Fatalf("get: %v", err)
	}

	cache.putErr = errors.New("redis down")
	applied, err := repo.UpdateOrderStatus(ctx, "order-1", StatusApproved, time.Now())
	if err != nil || !applied {
		t.Fatalf("cache failure must not fail the update: applied=%v err=%v", applied, err)
	}
	if _, ok, _ := cache.Get(ctx, "order-1"); ok || cache.forgot != 1 {
		t.Fatalf("expected cached entry dropped, forgot=%d", cache.forgot)
	}
}

func TestCachedRepoStaleUpdateKeepsCache(t *testing.T) {
	t.Parallel()

	repo, _, cache := newCachedFixture()
	ctx := context.Background()
	now := time.Now()

	if _, err := repo.UpdateOrderStatus(ctx, "order-1", StatusApproved, now); err != nil {
		t.Fatalf("update: %v", err)
	}
	applied, err := repo.UpdateOrderStatus(ctx, "order-1", StatusPending, now.Add(-time.Minute))
	if err != nil || applied {
		t.Fatalf("expected stale update skipped, applied=%v err=%v", applied, err)
	}
	if o, _, _ := cache.Get(ctx, "order-1"); o.Status != StatusApproved {
		t.Fatalf("expected approved to stay cached, got %s", o.Status)
	}
}
