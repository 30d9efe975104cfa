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
	"fmt"
	"net"
	"runtime/debug"
)

// HandleConnection is the per-accept orchestrator: it reads the greeting,
// classifies it, either short-circuits to the canned deny response or dials
// upstream, and then runs the splice loops. It never returns an error: every
// failure path is terminal for this one connection and is logged in place.
func HandleConnection(conn net.Conn, cfg *Config, ledger Ledger, metrics *Metrics) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("ERROR: panic handling connection from %s: %v\n%s\n", conn.RemoteAddr(), r, debug.Stack())
			_ = conn.Close()
		}
	}()

	client := NewEndpoint(conn)

	buf := make([]byte, chunkSize)
	n, _ := client.Read(buf)
	if n == 0 {
		_ = client.Close()
		return
	}

	greeting, perr := ParseGreeting(buf[:n])
	if perr != nil {
		_ = client.Close()
		return
	}

	fmt.Printf("%-7s %s\n", greeting.Method, greeting.AbsoluteURL)

	cls := Classify(cfg, greeting.Hostname)
	metrics.connectionAccepted(greeting.Scheme)
	metrics.verdict(cls.Verdict)

	if cls.Verdict == VerdictBlocked {
		// Fast-path denial: no upstream socket is ever opened.
		sendBadResponse(client, greeting.Scheme, cls.Body)
		metrics.connectionFinished()
		return
	}

	upstream, derr := net.Dial("tcp", fmt.Sprintf("%s:%d", greeting.Hostname, greeting.Port))
	if derr != nil {
		fmt.Printf("Connection refused: %s %s\n", greeting.Method, greeting.AbsoluteURL)
		_ = client.Close()
		metrics.dialError()
		metrics.connectionFinished()
		return
	}
	server := NewEndpoint(upstream)

	if greeting.Scheme == SchemeHTTPS {
		if werr := client.Write([]byte(tunnelEstablished)); werr != nil {
			_ = client.Close()
			_ = server.Close()
			metrics.connectionFinished()
			return
		}
	} else {
		if werr := server.Write(greeting.Raw); werr != nil {
			_ = client.Close()
			_ = server.Close()
			metrics.connectionFinished()
			return
		}
	}

	Splice(client, server, greeting, cls, ledger, metrics)
	metrics.connectionFinished()
}
