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
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
)

// chunkSize is the fixed read size for both forwarding directions. It is
// part of the observable memory envelope: both directions cap a single
// read at 1 MiB.
const chunkSize = 1 << 20

// Verbose gates the per-chunk forwarding log line. Off by default so
// normal operation stays quiet.
var Verbose = false

// Splice drives the two concurrent forwarding loops for one connection and
// blocks until both have finished. It owns client and server for the
// duration of the call; both are guaranteed closed by the time it returns.
//
// cls carries the verdict and initiator the Handler already computed; ledger
// is the process-wide (or Redis-shared) byte accounter. metrics may be nil
// in tests that don't care about Prometheus observability.
func Splice(client, server *Endpoint, greeting Greeting, cls Classification, ledger Ledger, metrics *Metrics) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer recoverSplice(client, server, greeting)
		clientToServer(client, server, greeting)
	}()
	go func() {
		defer wg.Done()
		defer recoverSplice(client, server, greeting)
		serverToClient(client, server, greeting, cls, ledger, metrics)
	}()

	wg.Wait()
}

// recoverSplice stops a panic raised inside one of Splice's two forwarding
// goroutines from escaping to the goroutine's own caller, which for a
// wholly unrecovered goroutine means crashing the process: recover() only
// catches a panic on the same goroutine's stack, so Handler's own deferred
// recover cannot reach in here. Both endpoints are closed so the other
// forwarding goroutine unblocks and the connection is torn down cleanly.
func recoverSplice(client, server *Endpoint, greeting Greeting) {
	if r := recover(); r != nil {
		fmt.Printf("ERROR: panic splicing %s: %v\n%s\n", greeting.AbsoluteURL, r, debug.Stack())
		_ = client.Close()
		_ = server.Close()
	}
}

// clientToServer relays client writes upstream. It never meters bytes
// (accounting is server-to-client only) and never
// substitutes a canned response; any policy trip is handled entirely by the
// S2C loop that shares this connection's endpoints.
func clientToServer(client, server *Endpoint, greeting Greeting) {
	buf := make([]byte, chunkSize)
	for {
		n, err := client.Read(buf)
		if n > 0 {
			if werr := server.Write(buf[:n]); werr != nil {
				logForwardingError(werr, greeting)
				break
			}
			logForwarding(client, n, greeting)
		}
		if err != nil {
			break
		}
		if n == 0 {
			break
		}
	}
	_ = server.CloseWrite()
	_ = server.Close()
}

// serverToClient relays server reads down to the client, applying the
// metering overlay before each write when the
// connection's verdict is Limited or Blocked.
func serverToClient(client, server *Endpoint, greeting Greeting, cls Classification, ledger Ledger, metrics *Metrics) {
	metered := cls.Verdict == VerdictLimited || cls.Verdict == VerdictBlocked
	buf := make([]byte, chunkSize)
	for {
		n, err := server.Read(buf)
		if n > 0 {
			if metered && ledger.Reached(cls.Initiator, cls.Quota) {
				if metrics != nil {
					metrics.limitTripped(cls.Initiator)
				}
				sendBadResponse(client, greeting.Scheme, cls.Body)
				_ = client.Close()
				break
			}
			if werr := client.Write(buf[:n]); werr != nil {
				logForwardingError(werr, greeting)
				break
			}
			logForwarding(server, n, greeting)
			if metered {
				ledger.Add(cls.Initiator, uint64(n))
				if metrics != nil {
					metrics.bytesDelivered(cls.Initiator, uint64(n))
				}
			}
		}
		if err != nil {
			break
		}
		if n == 0 {
			break
		}
	}
	_ = client.CloseWrite()
	_ = client.Close()
}

// logForwarding prints a per-chunk debug line, distinguishing request
// traffic from "Response from server" by comparing the sender against the
// loopback address. Gated by Verbose so default operation is quiet.
func logForwarding(from *Endpoint, n int, greeting Greeting) {
	if !Verbose {
		return
	}
	sender := "unknown"
	if addr := from.RemoteAddr(); addr != nil {
		if h, _, err := net.SplitHostPort(addr.String()); err == nil {
			sender = h
		}
	}
	query := fmt.Sprintf("%s %s", greeting.Method, greeting.AbsoluteURL)
	if sender != "127.0.0.1" && sender != "::1" && sender != "localhost" {
		query = "Response from server"
	}
	fmt.Printf("%-15s %s %d\n", sender, query, n)
}

// logForwardingError logs a write failure during forwarding at info level,
// peer resets and ordinary closes during splice are
// swallowed here, not propagated as a task failure.
func logForwardingError(err error, greeting Greeting) {
	if errors.Is(err, net.ErrClosed) {
		return
	}
	fmt.Printf("Connection closed: %s (%v)\n", greeting.AbsoluteURL, err)
}
