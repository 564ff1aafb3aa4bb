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

//go:build !windows
// +build !windows

// Package daemonize forks a detached copy of the current binary running
// as the service, for clients that find no daemon listening on the IPC
// socket.
package daemonize

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Spawn execs argv0 with args "daemon -f" in the background, detached from
// the current terminal and session, and returns without waiting for it.
// "-f" selects the foreground service loop; detachment itself comes from
// Setsid and the redirected standard streams below, not from argv0 forking
// again.
func Spawn(argv0 string, env []string) error {
	cmd := exec.Command(argv0, "daemon", "-f")
	cmd.Env = env
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("daemonize: open %s: %w", os.DevNull, err)
	}
	defer devnull.Close()
	cmd.Stdin = devnull
	cmd.Stdout = devnull
	cmd.Stderr = devnull

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("daemonize: start: %w", err)
	}
	return cmd.Process.Release()
}
