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

import "regexp"

// bucketRule folds a set of sibling hostnames onto one canonical initiator.
// The table below is mandated by spec: it must be preserved verbatim.
type bucketRule struct {
	initiator string
	patterns  []*regexp.Regexp
}

var initiatorBuckets = []bucketRule{
	{
		initiator: "vk.com",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^vk\.com$`),
			regexp.MustCompile(`^im\.vk\.com$`),
			regexp.MustCompile(`^st\d{1,2}-\d{1,2}\.vk\.com$`),
			regexp.MustCompile(`^queuev\d{1,2}\.vk\.com$`),
			regexp.MustCompile(`\.vkuseraudio\.net$`),
			regexp.MustCompile(`^sun\d-\d{1,2}\.userapi`),
		},
	},
	{
		initiator: "youtube.com",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^youtube\.com$`),
			regexp.MustCompile(`^i\.ytimg\.com$`),
			regexp.MustCompile(`yt.*\.com$`),
			regexp.MustCompile(`\.googlevideo\.com$`),
		},
	},
}

// Initiator maps a hostname onto its canonical policy key. Hostnames that
// match none of the mandated buckets are their own initiator.
func Initiator(hostname string) string {
	for _, b := range initiatorBuckets {
		for _, p := range b.patterns {
			if p.MatchString(hostname) {
				return b.initiator
			}
		}
	}
	return hostname
}

// Verdict is the classification outcome for a connection's initiator.
type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictBlocked
	VerdictLimited
)

func (v Verdict) String() string {
	switch v {
	case VerdictBlocked:
		return "blocked"
	case VerdictLimited:
		return "limited"
	default:
		return "allow"
	}
}

// Classification is the result of running a hostname through the Policy
// Classifier: its canonical initiator and the verdict that applies to it.
type Classification struct {
	Initiator string
	Verdict   Verdict
	Quota     uint64 // only meaningful when Verdict == VerdictLimited
	Body      []byte // canned HTML body to show on deny, HTTP path only
}

// Classify consults the loaded Config and returns the verdict for hostname.
// A blocked initiator is denied even if it also carries a quota.
func Classify(cfg *Config, hostname string) Classification {
	initiator := Initiator(hostname)

	if cfg.isBlocked(initiator) {
		return Classification{
			Initiator: initiator,
			Verdict:   VerdictBlocked,
			Quota:     0,
			Body:      cfg.BlockBody,
		}
	}
	if quota, ok := cfg.limitFor(initiator); ok {
		return Classification{
			Initiator: initiator,
			Verdict:   VerdictLimited,
			Quota:     quota,
			Body:      cfg.LimitBody,
		}
	}
	return Classification{Initiator: initiator, Verdict: VerdictAllow}
}
