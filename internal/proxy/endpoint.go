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
	"bufio"
	"net"
	"sync"
)

// Endpoint wraps one TCP socket's read and write halves behind read/write/
// close primitives. close is idempotent and safe from either direction
// regardless of whether the peer has half-closed.
type Endpoint struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	closeOnce sync.Once
	closeErr  error
}

// NewEndpoint wraps conn. The read buffer is sized to the Splice Engine's
// chunk size so a single read syscall can fill it.
func NewEndpoint(conn net.Conn) *Endpoint {
	return &Endpoint{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, chunkSize),
		writer: bufio.NewWriterSize(conn, chunkSize),
	}
}

// Read returns up to len(buf) bytes. At EOF it returns 0 bytes and io.EOF.
func (e *Endpoint) Read(buf []byte) (int, error) {
	return e.reader.Read(buf)
}

// Write sends data and flushes before returning, so the caller observes a
// blocking-until-flushed write.
func (e *Endpoint) Write(data []byte) error {
	if _, err := e.writer.Write(data); err != nil {
		return err
	}
	return e.writer.Flush()
}

// CloseWrite signals a half-close on the write side, if the underlying
// connection supports it (TCP does), so the peer observes EOF on its read
// side. It does not close the socket; Close does that.
func (e *Endpoint) CloseWrite() error {
	if cw, ok := e.conn.(interface{ CloseWrite() error }); ok {
		_ = e.writer.Flush()
		return cw.CloseWrite()
	}
	return nil
}

// Close flushes any buffered writes and closes the underlying socket. It is
// idempotent: calling it more than once, from either forwarder, is safe.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		_ = e.writer.Flush()
		e.closeErr = e.conn.Close()
	})
	return e.closeErr
}

// RemoteAddr exposes the peer address, used only for the optional verbose
// forwarding log.
func (e *Endpoint) RemoteAddr() net.Addr {
	return e.conn.RemoteAddr()
}
