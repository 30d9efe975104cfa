// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package proxy

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// redisEvaler is the minimal surface this package needs from a Redis
// client, kept narrow so a logging-only implementation can stand in for
// tests without a live broker.
type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
	Get(ctx context.Context, key string) (string, error)
}

// loggingRedisEvaler is a dependency-free stand-in used in tests and demos
// that don't have a Redis instance handy. Not for production use.
type loggingRedisEvaler struct {
	mu   sync.Mutex
	incr map[string]uint64
}

func newLoggingRedisEvaler() *loggingRedisEvaler {
	return &loggingRedisEvaler{incr: make(map[string]uint64)}
}

func (l *loggingRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if len(keys) != 1 {
		return nil, fmt.Errorf("redis-demo: expected 1 key, got %d", len(keys))
	}
	n, _ := args[0].(uint64)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.incr[keys[0]] += n
	fmt.Printf("[redis-demo] INCRBY %s %d -> %d\n", keys[0], n, l.incr[keys[0]])
	return int64(l.incr[keys[0]]), nil
}

func (l *loggingRedisEvaler) Get(ctx context.Context, key string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprintf("%d", l.incr[key]), nil
}

// goRedisEvaler wraps a real github.com/redis/go-redis/v9 client.
type goRedisEvaler struct{ c *redis.Client }

func newGoRedisEvaler(addr string) *goRedisEvaler {
	return &goRedisEvaler{c: redis.NewClient(&redis.Options{Addr: addr})}
}

func (g *goRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return g.c.Eval(ctx, script, keys, args...).Result()
}

func (g *goRedisEvaler) Get(ctx context.Context, key string) (string, error) {
	v, err := g.c.Get(ctx, key).Result()
	if err == redis.Nil {
		return "0", nil
	}
	return v, err
}

// incrByScript is a tiny Lua script performing an atomic INCRBY with an
// optional key TTL, so the write and the (re)expire happen in one round trip.
const incrByScript = `
local v = redis.call("INCRBY", KEYS[1], ARGV[1])
if tonumber(ARGV[2]) > 0 then
	redis.call("EXPIRE", KEYS[1], ARGV[2])
end
return v
`

// RedisLedger shares live per-initiator byte counters across multiple proxy
// processes via a Redis instance they all point at. It satisfies the same
// Ledger contract as MemoryLedger: each increment is atomic because Redis
// serializes commands on a single connection/keyspace.
//
// This does not reintroduce quota persistence across restarts as a default:
// an operator opts into this backend explicitly, and by default
// (--redis-key-ttl=0) keys carry no TTL of their own, leaving persistence
// policy to the Redis deployment, not this program.
type RedisLedger struct {
	evaler  redisEvaler
	keyTTL  time.Duration
	prefix  string
	timeout time.Duration
}

// RedisLedgerOptions configures a RedisLedger.
type RedisLedgerOptions struct {
	Addr      string        // empty uses a dependency-free logging client
	KeyTTL    time.Duration // 0 disables key expiry
	KeyPrefix string        // defaults to "fproxy:ledger:"
	Timeout   time.Duration // per-call context timeout; defaults to 2s
}

// NewRedisLedger builds a RedisLedger. When opts.Addr is empty it falls back
// to a logging-only client so callers can exercise this path without a live
// broker.
func NewRedisLedger(opts RedisLedgerOptions) *RedisLedger {
	var evaler redisEvaler
	if opts.Addr != "" {
		evaler = newGoRedisEvaler(opts.Addr)
	} else {
		evaler = newLoggingRedisEvaler()
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "fproxy:ledger:"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RedisLedger{evaler: evaler, keyTTL: opts.KeyTTL, prefix: prefix, timeout: timeout}
}

func (r *RedisLedger) key(initiator string) string {
	return r.prefix + initiator
}

func (r *RedisLedger) Add(initiator string, n uint64) {
	if n == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	ttlSeconds := int64(0)
	if r.keyTTL > 0 {
		ttlSeconds = int64(r.keyTTL / time.Second)
	}
	if _, err := r.evaler.Eval(ctx, incrByScript, []string{r.key(initiator)}, n, ttlSeconds); err != nil {
		fmt.Printf("ERROR: ledger: redis incrby %s: %v\n", initiator, err)
	}
}

func (r *RedisLedger) Reached(initiator string, quota uint64) bool {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	v, err := r.evaler.Get(ctx, r.key(initiator))
	if err != nil {
		fmt.Printf("ERROR: ledger: redis get %s: %v\n", initiator, err)
		// Fail closed on limited/blocked initiators: treat as reached so a
		// broker outage cannot silently bypass a quota.
		return true
	}
	var sum uint64
	fmt.Sscanf(v, "%d", &sum)
	return sum >= quota
}
