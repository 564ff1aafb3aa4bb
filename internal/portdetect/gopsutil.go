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

package portdetect

import (
	psnet "github.com/shirou/gopsutil/v3/net"
)

// GopsutilCapability enumerates listening TCP sockets system-wide via
// gopsutil and filters to the ones owned by pid. This replaces shelling out
// to "lsof -iTCP -sTCP:LISTEN -P -n -p <pid>": gopsutil already parses
// /proc (and the platform equivalents) into structured connection records,
// pid and all.
func GopsutilCapability(pid int) ([]int, error) {
	conns, err := psnet.Connections("tcp")
	if err != nil {
		return nil, err
	}
	var ports []int
	for _, c := range conns {
		if c.Status != "LISTEN" {
			continue
		}
		if int(c.Pid) != pid {
			continue
		}
		ports = append(ports, int(c.Laddr.Port))
	}
	return ports, nil
}
