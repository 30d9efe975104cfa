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
	"sync"
	"time"
)

// Acceptor binds a listening socket and spawns one Handler goroutine per
// accepted connection. Its shutdown sequence is two-phase, the same shape
// as an *http.Server's Shutdown but applied to a raw net.Listener: stop
// accepting, then give in-flight handlers a bounded grace period to drain.
type Acceptor struct {
	ln      net.Listener
	cfg     *Config
	ledger  Ledger
	metrics *Metrics

	wg sync.WaitGroup
}

// NewAcceptor binds TCP on host:port (localhost, IPv4/IPv6, no
// TLS on the listener) and returns an Acceptor ready to Serve.
func NewAcceptor(addr string, cfg *Config, ledger Ledger, metrics *Metrics) (*Acceptor, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Acceptor{ln: ln, cfg: cfg, ledger: ledger, metrics: metrics}, nil
}

// Addr returns the bound listener address, useful in tests that bind an
// ephemeral port.
func (a *Acceptor) Addr() net.Addr {
	return a.ln.Addr()
}

// Serve accepts connections until the listener is closed by Shutdown. It
// spawns one goroutine per accepted connection and returns once the
// listener's accept loop exits.
func (a *Acceptor) Serve() {
	for {
		conn, err := a.ln.Accept()
		if err != nil {
			// Shutdown closes the listener; that's the expected exit path.
			return
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			HandleConnection(conn, a.cfg, a.ledger, a.metrics)
		}()
	}
}

// Shutdown stops accepting new connections and waits up to grace for
// in-flight handlers to finish. It returns false if the grace period
// elapsed with handlers still running (this maps to the CLI's
// exit code 1 case).
func (a *Acceptor) Shutdown(grace time.Duration) bool {
	_ = a.ln.Close()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(grace):
		return false
	}
}
