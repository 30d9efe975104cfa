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

func TestInitiator_VKBucket(t *testing.T) {
	cases := []string{
		"vk.com",
		"im.vk.com",
		"st1-2.vk.com",
		"queuev12.vk.com",
		"audio.vkuseraudio.net",
		"sun3-12.userapi.com",
	}
	for _, host := range cases {
		if got := Initiator(host); got != "vk.com" {
			t.Errorf("Initiator(%q) = %q, want vk.com", host, got)
		}
	}
}

func TestInitiator_YouTubeBucket(t *testing.T) {
	cases := []string{
		"youtube.com",
		"i.ytimg.com",
		"r1---sn-abc.googlevideo.com",
		"somethingyt123.com",
	}
	for _, host := range cases {
		if got := Initiator(host); got != "youtube.com" {
			t.Errorf("Initiator(%q) = %q, want youtube.com", host, got)
		}
	}
}

func TestInitiator_Unmatched(t *testing.T) {
	if got := Initiator("example.com"); got != "example.com" {
		t.Errorf("Initiator(example.com) = %q, want example.com", got)
	}
}

func TestClassify_BlockPrecedesLimit(t *testing.T) {
	cfg := &Config{
		blockSet:  map[string]struct{}{"example.com": {}},
		limitMap:  map[string]uint64{"example.com": 1000},
		BlockBody: []byte("blocked"),
		LimitBody: []byte("limited"),
	}
	cls := Classify(cfg, "example.com")
	if cls.Verdict != VerdictBlocked {
		t.Errorf("verdict = %v, want Blocked (block takes precedence over limit)", cls.Verdict)
	}
}

func TestClassify_Limited(t *testing.T) {
	cfg := &Config{
		blockSet: map[string]struct{}{},
		limitMap: map[string]uint64{"youtube.com": 500},
	}
	cls := Classify(cfg, "i.ytimg.com")
	if cls.Verdict != VerdictLimited {
		t.Errorf("verdict = %v, want Limited", cls.Verdict)
	}
	if cls.Initiator != "youtube.com" {
		t.Errorf("initiator = %q, want youtube.com", cls.Initiator)
	}
	if cls.Quota != 500 {
		t.Errorf("quota = %d, want 500", cls.Quota)
	}
}

func TestClassify_Allow(t *testing.T) {
	cfg := &Config{blockSet: map[string]struct{}{}, limitMap: map[string]uint64{}}
	cls := Classify(cfg, "example.com")
	if cls.Verdict != VerdictAllow {
		t.Errorf("verdict = %v, want Allow", cls.Verdict)
	}
}
