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

package service

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"

	oversight "cirello.io/oversight/easy"

	"proj.sh/proj/internal/control"
	"proj.sh/proj/internal/portdetect"
	"proj.sh/proj/internal/proxy"
	"proj.sh/proj/internal/registry"
	"proj.sh/proj/internal/supervisor"
)

// Service is the booted daemon: registry, supervisor, proxy and control
// server wired together and running.
type Service struct {
	cfg Config
	reg *registry.Registry
	sup *supervisor.Supervisor
	ctl *control.Server

	sockListener net.Listener
	httpServer   *http.Server

	shutdownOnce sync.Once
}

// Boot performs the full startup sequence: bind the IPC socket exclusively
// (the loser of an auto-spawn race exits silently), bind the HTTP port,
// write the pidfile, load the Registry from disk, and return a running
// Service. The listener goroutines run until ctx is cancelled.
func Boot(ctx context.Context, cfg Config) (*Service, error) {
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, fmt.Errorf("service: create home %q: %w", cfg.Home, err)
	}

	sockListener, err := control.Listen(cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("service: bind socket: %w", err)
	}

	httpListener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.HTTPPort))
	if err != nil {
		sockListener.Close()
		return nil, fmt.Errorf("service: bind http port %d: %w", cfg.HTTPPort, err)
	}

	if err := writePidfile(cfg.PidPath()); err != nil {
		sockListener.Close()
		httpListener.Close()
		return nil, fmt.Errorf("service: write pidfile: %w", err)
	}

	reg := registry.New(registry.NewDiskStore(cfg.Home))
	if err := reg.Load(); err != nil {
		log.Printf("service: load registry: %v", err)
	}

	sup := supervisor.New(reg, portdetect.GopsutilCapability)
	proxyHandler := proxy.New(reg, portdetect.GopsutilCapability)
	ctl := control.New(reg, sup, cfg.HTTPPort)

	s := &Service{
		cfg:          cfg,
		reg:          reg,
		sup:          sup,
		ctl:          ctl,
		sockListener: sockListener,
		httpServer:   &http.Server{Handler: proxyHandler},
	}

	oCtx := oversight.WithContext(ctx, oversight.WithLogger(log.New(os.Stderr, "", 0)))
	oversight.Add(oCtx, func(context.Context) error {
		return s.ctl.Serve(ctx, sockListener)
	}, oversight.RestartWith(oversight.Permanent()))
	oversight.Add(oCtx, func(context.Context) error {
		if err := s.httpServer.Serve(httpListener); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}, oversight.RestartWith(oversight.Permanent()))

	log.Printf("service: listening on http 127.0.0.1:%d, socket %s", cfg.HTTPPort, cfg.SocketPath)
	return s, nil
}

// Shutdown stops accepting new IPC and HTTP connections, terminates every
// running child in parallel, and removes the pidfile and socket. It is
// idempotent.
func (s *Service) Shutdown(ctx context.Context) {
	s.shutdownOnce.Do(func() {
		log.Println("service: shutting down")
		s.httpServer.Shutdown(ctx)
		s.sockListener.Close()
		s.sup.StopAll()
		os.Remove(s.cfg.SocketPath)
		os.Remove(s.cfg.PidPath())
	})
}

func writePidfile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}
