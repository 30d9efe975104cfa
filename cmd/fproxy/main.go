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

// Package main is the entry point for fproxy, a forward HTTP/HTTPS proxy
// with per-initiator byte quotas.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fproxy/internal/proxy"
)

func main() {
	port := flag.Int("port", 8080, "Listen port (1-65535)")
	configPath := flag.String("config", "config.json", `Policy document with "black-list" and "limited" keys`)
	blockBodyPath := flag.String("block-body", "blocked.html", "HTML body served on a blocked HTTP request")
	limitBodyPath := flag.String("limit-body", "limited.html", "HTML body served once a limited initiator's quota is reached")
	shutdownGrace := flag.Duration("shutdown-grace", 10*time.Second, "How long to let in-flight connections drain on shutdown")

	ledgerBackend := flag.String("ledger-backend", "memory", `Quota ledger backend: "memory" or "redis"`)
	ledgerShards := flag.Int("ledger-shards", 0, "Stripes per initiator in the memory ledger; 0 uses GOMAXPROCS")
	redisAddr := flag.String("redis-addr", "", "Redis address for --ledger-backend=redis (empty uses a dependency-free logging client)")
	redisKeyTTL := flag.Duration("redis-key-ttl", 0, "Optional TTL for Redis ledger keys; 0 disables expiry")

	metricsAddr := flag.String("metrics-addr", "", "If non-empty, expose Prometheus /metrics on this address")
	summaryInterval := flag.Duration("summary-interval", 0, "If > 0, periodically log a top-N ledger summary")
	summaryTopN := flag.Int("summary-top-n", 10, "Top N initiators by bytes delivered to include in the periodic summary")
	verbose := flag.Bool("verbose", false, "Log a line per forwarded chunk (debug)")
	flag.Parse()

	// Apply sane defaults if flags are explicitly set empty/zero.
	if *port <= 0 || *port > 65535 {
		*port = 8080
	}
	if *shutdownGrace <= 0 {
		*shutdownGrace = 10 * time.Second
	}

	proxy.Verbose = *verbose

	cfg, err := proxy.LoadConfig(*configPath, *blockBodyPath, *limitBodyPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var ledger proxy.Ledger
	switch *ledgerBackend {
	case "", "memory":
		ledger = proxy.NewMemoryLedger(*ledgerShards)
	case "redis":
		ledger = proxy.NewRedisLedger(proxy.RedisLedgerOptions{
			Addr:   *redisAddr,
			KeyTTL: *redisKeyTTL,
		})
	default:
		log.Fatalf("unknown ledger backend: %s", *ledgerBackend)
	}

	metrics := proxy.NewMetrics()
	if *metricsAddr != "" {
		go func() {
			if err := metrics.ListenAndServe(*metricsAddr); err != nil {
				fmt.Printf("ERROR: metrics server: %v\n", err)
			}
		}()
	}

	summaryStop := make(chan struct{})
	if *summaryInterval > 0 {
		go metrics.RunSummaryLogger(*summaryInterval, *summaryTopN, summaryStop)
	}

	addr := fmt.Sprintf("localhost:%d", *port)
	acceptor, err := proxy.NewAcceptor(addr, cfg, ledger, metrics)
	if err != nil {
		log.Fatalf("could not listen on %s: %v", addr, err)
	}

	go func() {
		fmt.Printf("fproxy listening on %s\n", acceptor.Addr())
		acceptor.Serve()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	fmt.Println("\nShutting down...")
	close(summaryStop)
	if !acceptor.Shutdown(*shutdownGrace) {
		fmt.Println("Shutdown grace period exceeded; exiting with in-flight connections still open.")
		os.Exit(1)
	}
	fmt.Println("fproxy stopped.")
}
