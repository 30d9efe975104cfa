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

// Package proxy implements the forward HTTP/HTTPS proxy's data path: parsing
// the first client message, classifying it against policy, accounting bytes
// per initiator, and splicing client and upstream sockets together.
package proxy

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// Scheme distinguishes a plaintext HTTP request from an opaque CONNECT tunnel.
type Scheme int

const (
	SchemeHTTP Scheme = iota
	SchemeHTTPS
)

func (s Scheme) String() string {
	if s == SchemeHTTPS {
		return "HTTPS"
	}
	return "HTTP"
}

// Greeting is the parsed first message of a client connection. It is
// immutable once built and lives for exactly one connection.
type Greeting struct {
	Method      string
	Scheme      Scheme
	AbsoluteURL string
	Hostname    string
	Port        int
	Raw         []byte
}

var (
	methodRe = regexp.MustCompile(`^(\w+)`)
	targetRe = regexp.MustCompile(`(?s)\w+ (.+?) HTTP/\d\.\d`)
	hostRe   = regexp.MustCompile(`(?i)^(https?://)?(www\.)?([A-Za-z0-9.\-]+)`)
	portRe   = regexp.MustCompile(`:(\d+)$`)
)

// ErrMalformedGreeting is returned when the first bytes of a client stream
// do not contain a recognizable HTTP/1.x request line.
var ErrMalformedGreeting = errors.New("proxy: malformed greeting")

// ParseGreeting decodes the first bytes of a client stream into a Greeting.
// It is a pure function: no I/O, no mutation of shared state. raw is kept
// verbatim on the returned Greeting so the HTTP path can forward it
// unmodified to the origin.
func ParseGreeting(raw []byte) (Greeting, error) {
	text := string(raw)

	m := methodRe.FindStringSubmatch(text)
	if m == nil {
		return Greeting{}, ErrMalformedGreeting
	}
	method := strings.ToUpper(m[1])

	t := targetRe.FindStringSubmatch(text)
	if t == nil {
		return Greeting{}, ErrMalformedGreeting
	}
	absURL := t[1]

	scheme := SchemeHTTP
	if method == "CONNECT" {
		scheme = SchemeHTTPS
	}

	h := hostRe.FindStringSubmatch(absURL)
	if h == nil || h[3] == "" {
		return Greeting{}, ErrMalformedGreeting
	}
	hostname := h[3]

	port := 80
	if scheme == SchemeHTTPS {
		port = 443
	}
	if p := portRe.FindStringSubmatch(absURL); p != nil {
		n, err := strconv.Atoi(p[1])
		if err != nil || n < 1 || n > 65535 {
			return Greeting{}, ErrMalformedGreeting
		}
		port = n
	}

	if hostname == "" || port < 1 || port > 65535 {
		return Greeting{}, ErrMalformedGreeting
	}

	return Greeting{
		Method:      method,
		Scheme:      scheme,
		AbsoluteURL: absURL,
		Hostname:    hostname,
		Port:        port,
		Raw:         raw,
	}, nil
}
