package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ariefcatur/go-checkout-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// OrderStore is the durable side of CachedRepo; *Repo implements it.
type OrderStore interface {
	CreateOrder(ctx context.Context, o Order) error
	GetOrderByID(ctx context.Context, id string) (Order, error)
	SetOrderStatus(ctx context.Context, id string, status Status, observedAt time.Time) (Order, bool, error)
}

// OrderCache stores order snapshots tagged with a version. Put must refuse a
// snapshot older than the one already cached.
type OrderCache interface {
	Get(ctx context.Context, id string) (Order, bool, error)
	Put(ctx context.Context, o Order) error
	Forget(ctx context.Context, id string) error
}

// CachedRepo adds the read-through order cache on top of the store. The
// database stays the source of truth; cache errors only cost a DB round trip.
//
// Status changes are written through instead of deleted. A reader that
// loaded the row before the change then loses the versioned Put, so a stale
// snapshot cannot be cached after the update.
type CachedRepo struct {
	Store OrderStore
	Cache OrderCache
	Log   *slog.Logger
}

func (r *CachedRepo) CreateOrder(ctx context.Context, o Order) error {
	return r.Store.CreateOrder(ctx, o)
}

func (r *CachedRepo) GetOrderByID(ctx context.Context, id string) (Order, error) {
	if o, ok, err := r.Cache.Get(ctx, id); err == nil && ok {
		return o, nil
	}

	o, err := r.Store.GetOrderByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	_ = r.Cache.Put(ctx, o)
	return o, nil
}

func (r *CachedRepo) UpdateOrderStatus(ctx context.Context, id string, status Status, observedAt time.Time) (bool, error) {
	o, applied, err := r.Store.SetOrderStatus(ctx, id, status, observedAt)
	if err != nil || !applied {
		return applied, err
	}
	if err := r.Cache.Put(ctx, o); err != nil {
		// fallback: hapus saja, reader berikutnya isi ulang dari DB
		if ferr := r.Cache.Forget(ctx, id); ferr != nil {
			r.log().Warn("order cache may be stale", slog.String("order_id", id), slog.Any("err", errors.Join(err, ferr)))
		}
	}
	return true, nil
}

func (r *CachedRepo) log() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}

// cacheVersion orders snapshots of one order. Microseconds match the
// precision of Postgres timestamps and stay exact as Lua numbers.
func cacheVersion(o Order) int64 { return o.UpdatedAt.UnixMicro() }

// putIfNewer keeps the hash {v, data} at KEYS[1] unless it already holds a
// higher version.
var putIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// RedisOrderCache is the OrderCache behind `order:{id}`.
type RedisOrderCache struct {
	RDB *redis.Client
	TTL time.Duration
}

func (c *RedisOrderCache) Get(ctx context.Context, id string) (Order, bool, error) {
	b, err := c.RDB.HGet(ctx, fmt.Sprintf(redisx.KeyOrder, id), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, err
	}
	var o Order
	if err := json.Unmarshal(b, &o); err != nil {
		return Order{}, false, err
	}
	return o, true, nil
}

func (c *RedisOrderCache) Put(ctx context.Context, o Order) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = redisx.TTLOrderCache
	}
	return putIfNewer.Run(ctx, c.RDB, []string{fmt.Sprintf(redisx.KeyOrder, o.ID)},
		strconv.FormatInt(cacheVersion(o), 10), b, ttl.Milliseconds()).Err()
}

func (c *RedisOrderCache) Forget(ctx context.Context, id string) error {
	return c.RDB.Del(ctx, fmt.Sprintf(redisx.KeyOrder, id)).Err()
}
