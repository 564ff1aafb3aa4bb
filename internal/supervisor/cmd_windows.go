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

//go:build windows
// +build windows

package supervisor

import (
	"os/exec"
	"syscall"
)

// prepareProcAttr starts the child in its own process group. No
// CTRL_BREAK_EVENT is ever sent to that group; see signalGroup.
func prepareProcAttr(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// signalGroup has no POSIX-style signal-to-process-group equivalent on
// Windows; graceful requests simply fall through to a hard kill. Only the
// child process itself is killed; processes it started are not.
func signalGroup(c *exec.Cmd, graceful bool) error {
	return c.Process.Kill()
}
