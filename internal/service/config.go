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

// Package service wires the Registry, Supervisor, Reverse Proxy and
// Control Server together and drives the daemon's boot and shutdown
// sequence.
package service

import (
	"os"
	"path/filepath"
	"strconv"
)

// DefaultHTTPPort is used when PROJ_HTTP_PORT is unset.
const DefaultHTTPPort = 8080

// Config is the resolved set of paths and ports the service boots with.
type Config struct {
	Home       string
	HTTPPort   int
	SocketPath string
}

// LoadConfig resolves Config from the environment, applying the defaults
// documented for PROJ_HOME, PROJ_HTTP_PORT and PROJ_SOCKET.
func LoadConfig() (Config, error) {
	home := os.Getenv("PROJ_HOME")
	if home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return Config{}, err
		}
		home = filepath.Join(dir, ".proj")
	}

	port := DefaultHTTPPort
	if raw := os.Getenv("PROJ_HTTP_PORT"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, err
		}
		port = p
	}

	socket := os.Getenv("PROJ_SOCKET")
	if socket == "" {
		socket = filepath.Join(home, "daemon.sock")
	}

	return Config{Home: home, HTTPPort: port, SocketPath: socket}, nil
}

// PidPath is the location of the service's pidfile.
func (c Config) PidPath() string {
	return filepath.Join(c.Home, "daemon.pid")
}
