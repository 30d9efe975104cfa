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

const (
	httpsDenyStatusLine = "HTTP/1.1 403\r\n\r\n"
	httpOKStatusLine    = "HTTP/1.1 200 OK\r\n\r\n"
	tunnelEstablished   = "HTTP/1.1 200 Connection established\r\n\r\n"
)

// sendBadResponse writes the canned deny response to client and closes it.
// On the HTTPS path it is a bare 403 status line (no body: the tunnel never
// carries anything origin-shaped past this point). On the HTTP path it is a
// 200 OK followed by the policy's HTML body, so a browser renders a notice
// instead of a connection error. Used both by the fast pre-dial path
// (Blocked) and by the Splice Engine when a Limited quota trips mid-stream.
func sendBadResponse(client *Endpoint, scheme Scheme, body []byte) {
	if scheme == SchemeHTTPS {
		_ = client.Write([]byte(httpsDenyStatusLine))
	} else {
		_ = client.Write(append([]byte(httpOKStatusLine), body...))
	}
	_ = client.Close()
}
