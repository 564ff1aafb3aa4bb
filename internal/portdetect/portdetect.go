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

// Package portdetect discovers the first TCP port a supervised child
// process opens for listening.
package portdetect

import (
	"context"
	"sort"
	"time"
)

// PollInterval is the cadence at which a pid's sockets are inspected.
const PollInterval = 250 * time.Millisecond

// Ceiling is the number of polls after which a pid that never listens is
// given up on; a non-server process should not be polled forever.
const Ceiling = 120 // ~30s at PollInterval

// Capability yields the listening TCP ports currently owned by pid. The
// default implementation asks the OS via gopsutil; tests supply a
// fake that answers from a script, per the design note that this step
// should be abstracted behind a single narrow function.
type Capability func(pid int) ([]int, error)

// Detect polls cap for pid's listening ports until one is found, the
// process exits (signaled by alive returning false), the ceiling is
// reached, or ctx is canceled. It reports at most once on found, and never
// blocks the caller beyond the channel send.
//
// If several ports are listening in one scan, the lowest is reported.
// A single scan's parse/probe failure is tolerated; it does not abort
// detection.
func Detect(ctx context.Context, pid int, cap Capability, alive func() bool) <-chan int {
	found := make(chan int, 1)
	go func() {
		defer close(found)
		ticker := time.NewTicker(PollInterval)
		defer ticker.Stop()
		for polls := 0; polls < Ceiling; polls++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if alive != nil && !alive() {
				return
			}
			ports, err := cap(pid)
			if err != nil || len(ports) == 0 {
				continue
			}
			sort.Ints(ports)
			select {
			case found <- ports[0]:
			case <-ctx.Done():
			}
			return
		}
	}()
	return found
}
