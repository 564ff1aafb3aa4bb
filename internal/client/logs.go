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

package client

import (
	"fmt"
	"os"

	terminal "github.com/buildkite/terminal-to-html/v3"
)

// RenderLogsHTML writes recentOutput, an ANSI-colored capture of a
// project's dev-server stdout/stderr as returned by an "info" response, to
// path as a static HTML snippet. This is a purely client-side convenience:
// the daemon never renders HTML itself.
func RenderLogsHTML(recentOutput, path string) error {
	html := terminal.Render([]byte(recentOutput))
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return fmt.Errorf("client: write %s: %w", path, err)
	}
	return nil
}
