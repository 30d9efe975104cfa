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

func TestParseGreeting_Connect(t *testing.T) {
	raw := []byte("CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n")
	g, err := ParseGreeting(raw)
	if err != nil {
		t.Fatalf("ParseGreeting: %v", err)
	}
	if g.Method != "CONNECT" {
		t.Errorf("method = %q, want CONNECT", g.Method)
	}
	if g.Scheme != SchemeHTTPS {
		t.Errorf("scheme = %v, want HTTPS", g.Scheme)
	}
	if g.Hostname != "example.com" {
		t.Errorf("hostname = %q, want example.com", g.Hostname)
	}
	if g.Port != 443 {
		t.Errorf("port = %d, want 443", g.Port)
	}
}

func TestParseGreeting_HTTPDefaultPort(t *testing.T) {
	raw := []byte("GET http://example.com/path HTTP/1.1\r\nHost: example.com\r\n\r\n")
	g, err := ParseGreeting(raw)
	if err != nil {
		t.Fatalf("ParseGreeting: %v", err)
	}
	if g.Port != 80 {
		t.Errorf("port = %d, want 80", g.Port)
	}
	if g.Hostname != "example.com" {
		t.Errorf("hostname = %q, want example.com", g.Hostname)
	}
}

func TestParseGreeting_StripsSchemeAndWWW(t *testing.T) {
	raw := []byte("GET https://www.example.com:8443 HTTP/1.1\r\n\r\n")
	g, err := ParseGreeting(raw)
	if err != nil {
		t.Fatalf("ParseGreeting: %v", err)
	}
	if g.Hostname != "example.com" {
		t.Errorf("hostname = %q, want example.com", g.Hostname)
	}
	if g.Port != 8443 {
		t.Errorf("port = %d, want 8443", g.Port)
	}
}

func TestParseGreeting_PreservesAbsoluteURLWithPort(t *testing.T) {
	// The trailing :<digits> port rule anchors to the end of TARGET; a path
	// after the port is outside the rule's scope.
	raw := []byte("GET example.com:8080 HTTP/1.1\r\n\r\n")
	g, err := ParseGreeting(raw)
	if err != nil {
		t.Fatalf("ParseGreeting: %v", err)
	}
	if g.AbsoluteURL != "example.com:8080" {
		t.Errorf("abs_url = %q, want port preserved verbatim", g.AbsoluteURL)
	}
	if g.Port != 8080 {
		t.Errorf("port = %d, want 8080", g.Port)
	}
}

func TestParseGreeting_Malformed(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte(""),
		[]byte("not a request line at all"),
		[]byte("GET HTTP/1.1\r\n\r\n"),
	}
	for _, c := range cases {
		if _, err := ParseGreeting(c); err == nil {
			t.Errorf("ParseGreeting(%q) = nil error, want ErrMalformedGreeting", c)
		}
	}
}

func TestParseGreeting_RawVerbatim(t *testing.T) {
	raw := []byte("GET http://example.com/ HTTP/1.1\r\nX-Custom: yes\r\n\r\n")
	g, err := ParseGreeting(raw)
	if err != nil {
		t.Fatalf("ParseGreeting: %v", err)
	}
	if string(g.Raw) != string(raw) {
		t.Errorf("raw not preserved verbatim")
	}
}
