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

package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DiskStore persists manifests under <root>/projects/<name>/project.json.
type DiskStore struct {
	root string
}

// NewDiskStore returns a Store rooted at root (normally $PROJ_HOME).
func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: root}
}

func (d *DiskStore) dir(name string) string {
	return filepath.Join(d.root, "projects", name)
}

func (d *DiskStore) manifestPath(name string) string {
	return filepath.Join(d.dir(name), "project.json")
}

// Write persists m for name via write-temp-then-rename so readers never
// observe a partial manifest.
func (d *DiskStore) Write(name string, m manifest) error {
	dir := d.dir(name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("manifest: mkdir %q: %w", dir, err)
	}

	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: encode %q: %w", name, err)
	}

	tmp, err := os.CreateTemp(dir, "project.json.tmp-*")
	if err != nil {
		return fmt.Errorf("manifest: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("manifest: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("manifest: close temp: %w", err)
	}
	if err := os.Rename(tmpName, d.manifestPath(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("manifest: rename: %w", err)
	}
	return nil
}

// Remove deletes name's manifest directory entirely, including the lazily
// created chrome/ profile directory.
func (d *DiskStore) Remove(name string) error {
	if err := os.RemoveAll(d.dir(name)); err != nil {
		return fmt.Errorf("manifest: remove %q: %w", name, err)
	}
	return nil
}

// Load scans <root>/projects for manifests and decodes each, skipping
// entries that fail to parse rather than aborting the whole scan.
func (d *DiskStore) Load() (map[string]manifest, error) {
	out := make(map[string]manifest)
	base := filepath.Join(d.root, "projects")
	entries, err := os.ReadDir(base)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("manifest: scan %q: %w", base, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := decodeManifest(filepath.Join(base, e.Name(), "project.json"))
		if err != nil {
			continue
		}
		out[m.Name] = m
	}
	return out, nil
}

func decodeManifest(path string) (manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return manifest{}, err
	}
	var m manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return manifest{}, err
	}
	return m, nil
}
