package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// ReplayStore guards create_preference Idempotency-Keys. A key is reserved
// atomically before the work starts and bound to a fingerprint of the
// request, then completed with the response to replay.
type ReplayStore struct {
	RDB *redis.Client
	TTL time.Duration

	// PendingTTL bounds a reservation whose owner died before Complete.
	PendingTTL time.Duration
}

type ReserveState int

const (
	Reserved  ReserveState = iota // caller owns the key and must Complete or Release it
	InFlight                      // another request with the key is still running
	Completed                     // Body holds the response to replay
	Mismatch                      // key was used with a different request
)

type Reservation struct {
	State ReserveState
	Body  []byte
}

// reserveKey: KEYS[1]=key ARGV[1]=fingerprint ARGV[2]=pending ttl ms
var reserveKey = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], 'fp', ARGV[1]) == 1 then
  redis.call('HSET', KEYS[1], 'state', 'pending')
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
  return {'reserved', ''}
end
local v = redis.call('HMGET', KEYS[1], 'fp', 'state', 'body')
if v[1] ~= ARGV[1] then
  return {'mismatch', ''}
end
if v[2] == 'done' then
  return {'done', v[3] or ''}
end
return {'in_flight', ''}
`)

func (s *ReplayStore) Reserve(ctx context.Context, key, fingerprint string) (Reservation, error) {
	pending := s.PendingTTL
	if pending <= 0 {
		pending = TTLIdempotencyPending
	}
	vals, err := reserveKey.Run(ctx, s.RDB, []string{fmt.Sprintf(KeyIdemCheckout, key)},
		fingerprint, pending.Milliseconds()).StringSlice()
	if err != nil {
		return Reservation{}, err
	}
	if len(vals) != 2 {
		return Reservation{}, fmt.Errorf("reserve %s: unexpected reply %q", key, vals)
	}
	switch vals[0] {
	case "reserved":
		return Reservation{State: Reserved}, nil
	case "done":
		return Reservation{State: Completed, Body: []byte(vals[1])}, nil
	case "mismatch":
		return Reservation{State: Mismatch}, nil
	default:
		return Reservation{State: InFlight}, nil
	}
}

// Complete stores the response for replay and extends the key to TTL.
func (s *ReplayStore) Complete(ctx context.Context, key string, body []byte) error {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = TTLIdempotency
	}
	k := fmt.Sprintf(KeyIdemCheckout, key)
	_, err := s.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k, "state", "done", "body", body)
		p.Expire(ctx, k, ttl)
		return nil
	})
	return err
}

// Release drops a reservation so the client may retry after a failure.
func (s *ReplayStore) Release(ctx context.Context, key string) error {
	return s.RDB.Del(ctx, fmt.Sprintf(KeyIdemCheckout, key)).Err()
}

// Deduper remembers processed ids. Seen only reads; Mark is called once the
// work for the id is done, so a failed attempt can be redelivered.
type Deduper struct {
	RDB     *redis.Client
	Service string
}

func (d *Deduper) Seen(ctx context.Context, id string) (bool, error) {
	n, err := d.RDB.Exists(ctx, fmt.Sprintf(KeyDedup, d.Service, id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *Deduper) Mark(ctx context.Context, id string) error {
	return d.RDB.Set(ctx, fmt.Sprintf(KeyDedup, d.Service, id), "1", TTLDedup).Err()
}
