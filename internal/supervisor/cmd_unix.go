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

package supervisor

import (
	"os/exec"
	"syscall"
)

// prepareProcAttr puts the child in its own process group so the whole
// tree it spawns (grandchildren included) can be terminated at once.
func prepareProcAttr(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup sends SIGTERM (graceful) or SIGKILL (forced) to the child's
// process group.
func signalGroup(c *exec.Cmd, graceful bool) error {
	pgid := -c.Process.Pid
	sig := syscall.SIGKILL
	if graceful {
		sig = syscall.SIGTERM
	}
	return syscall.Kill(pgid, sig)
}
