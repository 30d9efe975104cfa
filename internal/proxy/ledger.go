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
	"runtime"
	"sync"
	"sync/atomic"
)

// Ledger is the process-wide (or, with the Redis backend, process-group-wide)
// mapping of initiator to bytes delivered server→client. Never decremented,
// never persisted by the in-memory implementation.
type Ledger interface {
	// Add accumulates n bytes delivered to the client for initiator.
	Add(initiator string, n uint64)
	// Reached reports whether the bytes accumulated for initiator are at
	// least quota. A never-seen initiator is treated as zero.
	Reached(initiator string, quota uint64) bool
}

// padSize over-pads an atomic counter to a full cache line so that two
// initiators' stripes never false-share.
const padSize = 64 - 8

type stripe struct {
	val atomic.Uint64
	_   [padSize]byte
}

// stripedCounter is a monotonic counter split across N shards, so that one
// hot initiator (e.g. the mandated "youtube.com" bucket absorbing many
// concurrent tunnels) doesn't serialize every connection crediting it.
// Proxied bytes are never refunded, so unlike a consume/refund accumulator
// this only ever needs a sum of shards, never a rollback.
type stripedCounter struct {
	shards []stripe
	mask   uint64
	next   atomic.Uint64
}

func newStripedCounter(shards int) *stripedCounter {
	n := nextPow2(shards)
	return &stripedCounter{shards: make([]stripe, n), mask: uint64(n - 1)}
}

func (c *stripedCounter) add(n uint64) {
	idx := c.next.Add(1) & c.mask
	c.shards[idx].val.Add(n)
}

func (c *stripedCounter) sum() uint64 {
	var total uint64
	for i := range c.shards {
		total += c.shards[i].val.Load()
	}
	return total
}

func nextPow2(x int) int {
	if x < 1 {
		x = 1
	}
	p := 1
	for p < x {
		p <<= 1
	}
	return p
}

// MemoryLedger is the default Ledger: a sync.Map of per-initiator striped
// counters. A plain Load is tried first so the hot path (initiator already
// seen) never allocates, and only a genuine miss constructs a new counter.
type MemoryLedger struct {
	counters sync.Map // string -> *stripedCounter
	shards   int
}

// NewMemoryLedger creates a Ledger whose per-initiator counters are split
// into shards stripes each. shards <= 0 defaults to GOMAXPROCS.
func NewMemoryLedger(shards int) *MemoryLedger {
	if shards <= 0 {
		shards = runtime.GOMAXPROCS(0)
	}
	return &MemoryLedger{shards: shards}
}

func (l *MemoryLedger) getOrCreate(initiator string) *stripedCounter {
	if v, ok := l.counters.Load(initiator); ok {
		return v.(*stripedCounter)
	}
	created := newStripedCounter(l.shards)
	actual, _ := l.counters.LoadOrStore(initiator, created)
	return actual.(*stripedCounter)
}

func (l *MemoryLedger) Add(initiator string, n uint64) {
	if n == 0 {
		return
	}
	l.getOrCreate(initiator).add(n)
}

func (l *MemoryLedger) Reached(initiator string, quota uint64) bool {
	v, ok := l.counters.Load(initiator)
	if !ok {
		return 0 >= quota
	}
	return v.(*stripedCounter).sum() >= quota
}
