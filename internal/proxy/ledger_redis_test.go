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

import "testing"

// These tests exercise RedisLedger against the dependency-free logging
// client (Addr left empty), so they run without a live Redis broker.

func TestRedisLedger_AddAndReached(t *testing.T) {
	l := NewRedisLedger(RedisLedgerOptions{})
	l.Add("vk.com", 100)
	l.Add("vk.com", 50)

	if !l.Reached("vk.com", 150) {
		t.Errorf("expected vk.com to have reached 150")
	}
	if l.Reached("vk.com", 151) {
		t.Errorf("did not expect vk.com to have reached 151")
	}
}

func TestRedisLedger_UnseenInitiatorIsZero(t *testing.T) {
	l := NewRedisLedger(RedisLedgerOptions{})
	if l.Reached("never-seen", 1) {
		t.Errorf("unseen initiator should not have reached a positive quota")
	}
	if !l.Reached("never-seen", 0) {
		t.Errorf("unseen initiator should trip a zero quota")
	}
}

func TestRedisLedger_KeyPrefixIsolatesInitiators(t *testing.T) {
	l := NewRedisLedger(RedisLedgerOptions{KeyPrefix: "test:"})
	l.Add("a", 10)
	l.Add("b", 20)

	if !l.Reached("a", 10) {
		t.Errorf("initiator a should have reached 10")
	}
	if l.Reached("a", 11) {
		t.Errorf("initiator a should not have reached 11 (b's bytes must not leak in)")
	}
}
