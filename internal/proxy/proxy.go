// Copyright 2026 The proj Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package proxy virtual-hosts incoming HTTP requests onto the upstream
// port a project's supervised child has been discovered listening on.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"proj.sh/proj/internal/portdetect"
	"proj.sh/proj/internal/registry"
)

// dialTimeout bounds how long an upstream connect attempt may take.
const dialTimeout = 2 * time.Second

// forwardTransport is shared across every forwarded request so a dead
// upstream fails the connect within dialTimeout instead of
// http.DefaultTransport's much longer default.
var forwardTransport = &http.Transport{
	DialContext: (&net.Dialer{Timeout: dialTimeout}).DialContext,
}

// Proxy virtual-hosts requests by the leftmost label of the Host header.
type Proxy struct {
	reg    *registry.Registry
	verify portdetect.Capability
}

// New creates a Proxy consulting reg for routing. verify, if non-nil, is
// used to re-poll a project's listening ports before invalidating a stale
// one on dial failure (the capability the Port Detector already uses).
func New(reg *registry.Registry, verify portdetect.Capability) *Proxy {
	return &Proxy{reg: reg, verify: verify}
}

func leftmostLabel(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	label, _, _ := strings.Cut(host, ".")
	return label
}

// ServeHTTP implements http.Handler.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	label := leftmostLabel(req.Host)
	project, err := p.reg.Get(label)
	if errors.Is(err, registry.ErrNotFound) {
		http.Error(w, "unknown project", http.StatusNotFound)
		return
	}
	if project.Port == 0 {
		http.Error(w, "project not running", http.StatusServiceUnavailable)
		return
	}

	upstream := fmt.Sprintf("127.0.0.1:%d", project.Port)
	if isUpgrade(req) {
		p.splice(w, req, project, upstream)
		return
	}
	p.forward(w, req, project, upstream)
}

func isUpgrade(req *http.Request) bool {
	return req.Header.Get("Upgrade") != ""
}

// hopByHopHeaders are stripped before forwarding; the upstream HTTP client
// re-adds the ones it needs (e.g. Content-Length) itself.
var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Proxy-Connection", "TE", "Trailer", "Transfer-Encoding", "Upgrade",
}

func (p *Proxy) forward(w http.ResponseWriter, req *http.Request, project registry.Project, upstream string) {
	target := &url.URL{Scheme: "http", Host: upstream}
	clientIP := req.RemoteAddr
	if h, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		clientIP = h
	}
	originalHost := req.Host

	rp := &httputil.ReverseProxy{
		Transport: forwardTransport,
		Director: func(r *http.Request) {
			r.URL.Scheme = target.Scheme
			r.URL.Host = target.Host
			r.Host = target.Host
			for _, h := range hopByHopHeaders {
				r.Header.Del(h)
			}
			r.Header.Set("X-Forwarded-Host", originalHost)
			r.Header.Set("X-Forwarded-For", clientIP)
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			p.invalidate(project)
			log.Printf("proxy: %s: upstream %s unavailable: %v", project.Name, upstream, err)
			http.Error(w, "bad gateway", http.StatusBadGateway)
		},
	}
	rp.ServeHTTP(w, req)
}

// invalidate clears project's port, unless verify shows the port is still
// genuinely owned by the supervised pid (a transient dial hiccup rather
// than the port having been reused by an unrelated process).
func (p *Proxy) invalidate(project registry.Project) {
	if p.verify != nil && project.PID != 0 {
		ports, err := p.verify(project.PID)
		if err == nil {
			for _, port := range ports {
				if port == project.Port {
					return
				}
			}
		}
	}
	p.reg.InvalidatePort(project.Name)
}

// splice hijacks the client connection, dials the upstream, replays the
// original request line/headers, and copies bytes in both directions until
// either side closes. Used for Upgrade requests (WebSockets and friends),
// where parsing the subprotocol is unnecessary and would only add risk.
func (p *Proxy) splice(w http.ResponseWriter, req *http.Request, project registry.Project, upstream string) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "upgrade not supported", http.StatusInternalServerError)
		return
	}

	dialCtx, cancel := context.WithTimeout(req.Context(), dialTimeout)
	defer cancel()
	var d net.Dialer
	upConn, err := d.DialContext(dialCtx, "tcp", upstream)
	if err != nil {
		p.invalidate(project)
		log.Printf("proxy: %s: upstream %s unavailable: %v", project.Name, upstream, err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer upConn.Close()

	clientConn, _, err := hijacker.Hijack()
	if err != nil {
		log.Printf("proxy: %s: hijack failed: %v", project.Name, err)
		return
	}
	defer clientConn.Close()

	req.Header.Set("X-Forwarded-Host", req.Host)
	if h, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		req.Header.Set("X-Forwarded-For", h)
	}
	if err := req.Write(upConn); err != nil {
		log.Printf("proxy: %s: replay request to upstream: %v", project.Name, err)
		return
	}

	done := make(chan struct{}, 2)
	go func() { copyAndSignal(upConn, clientConn, done) }()
	go func() { copyAndSignal(clientConn, upConn, done) }()
	<-done
}

func copyAndSignal(dst, src net.Conn, done chan<- struct{}) {
	io.Copy(dst, src)
	done <- struct{}{}
}
