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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/tools/txtar"
)

// TestManifestDecode feeds fixed project.json bodies (and one malformed
// entry) captured as a txtar archive through decodeManifest, the same
// archive-of-named-files shape the teacher uses for its env file fixtures.
func TestManifestDecode(t *testing.T) {
	archive, err := txtar.ParseFile(filepath.Join("_testdata", "manifests.txtar"))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	for _, f := range archive.Files {
		full := filepath.Join(dir, f.Name)
		if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, f.Data, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	cases := map[string]string{}
	for _, f := range archive.Files {
		if strings.HasSuffix(f.Name, "/expected") {
			cases[strings.TrimSuffix(f.Name, "/expected")] = strings.TrimSpace(string(f.Data))
		}
	}

	for name, expected := range cases {
		t.Run(name, func(t *testing.T) {
			m, err := decodeManifest(filepath.Join(dir, name, "project.json"))
			if expected == "ERROR" {
				if err == nil {
					t.Fatal("expected decode error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			got := fmt.Sprintf("name=%s path=%s created_at=%s", m.Name, m.Path, m.CreatedAt.Format(time.RFC3339))
			if got != expected {
				t.Errorf("got %q, want %q", got, expected)
			}
		})
	}
}

// TestManifestRoundTrip checks decode(encode(record)) == record for a
// handful of valid records.
func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewDiskStore(dir)

	records := []manifest{
		{Name: "a", Path: "/tmp/a", CreatedAt: time.Now().UTC().Truncate(time.Second)},
		{Name: "my-app", Path: "/home/user/my-app", CreatedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, m := range records {
		if err := store.Write(m.Name, m); err != nil {
			t.Fatal(err)
		}
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range records {
		got, ok := loaded[m.Name]
		if !ok {
			t.Fatalf("manifest %q missing after load", m.Name)
		}
		if diff := cmp.Diff(m, got); diff != "" {
			t.Errorf("manifest %q round-trip mismatch (-want +got):\n%s", m.Name, diff)
		}
	}
}

func TestValidName(t *testing.T) {
	valid := []string{"a", "my-app", strings.Repeat("a", 63)}
	invalid := []string{"", "-x", "x-", "MyApp", strings.Repeat("a", 64), "my.app"}
	for _, n := range valid {
		if !ValidName(n) {
			t.Errorf("ValidName(%q) = false, want true", n)
		}
	}
	for _, n := range invalid {
		if ValidName(n) {
			t.Errorf("ValidName(%q) = true, want false", n)
		}
	}
}

func TestCreateAlreadyExists(t *testing.T) {
	dir := t.TempDir()
	r := New(NewDiskStore(dir))
	if _, err := r.Create("demo", "/tmp/demo"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Create("demo", "/tmp/other"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("got %v, want ErrAlreadyExists", err)
	}
	p, err := r.Get("demo")
	if err != nil || p.Path != "/tmp/demo" {
		t.Fatalf("existing record disturbed: %+v, %v", p, err)
	}
}

func TestCreateInvalidName(t *testing.T) {
	r := New(NewDiskStore(t.TempDir()))
	if _, err := r.Create("Bad.Name", "/tmp/x"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("got %v, want ErrInvalidName", err)
	}
}

func TestGetByPathLongestMatch(t *testing.T) {
	r := New(NewDiskStore(t.TempDir()))
	if _, err := r.Create("outer", "/tmp/work"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Create("inner", "/tmp/work/inner"); err != nil {
		t.Fatal(err)
	}

	p, err := r.GetByPath("/tmp/work/inner/sub")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "inner" {
		t.Fatalf("got %q, want inner (longest prefix match)", p.Name)
	}

	p, err = r.GetByPath("/tmp/work/other")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "outer" {
		t.Fatalf("got %q, want outer", p.Name)
	}

	if _, err := r.GetByPath("/tmp/elsewhere"); !errors.Is(err, ErrNotInProject) {
		t.Fatalf("got %v, want ErrNotInProject", err)
	}
}

func TestRuntimeSequence(t *testing.T) {
	r := New(NewDiskStore(t.TempDir()))
	if _, err := r.Create("demo", "/tmp/demo"); err != nil {
		t.Fatal(err)
	}

	if err := r.SetRunning("demo", 123); err != nil {
		t.Fatal(err)
	}
	r.SetPort("demo", 54321)
	p, _ := r.Get("demo")
	if p.PID != 123 || p.Port != 54321 {
		t.Fatalf("got %+v", p)
	}

	r.ClearRuntime("demo")
	p, _ = r.Get("demo")
	if p.PID != 0 || p.Port != 0 {
		t.Fatalf("runtime state not cleared: %+v", p)
	}

	// Idempotent: calling twice is safe.
	r.ClearRuntime("demo")

	// set_port after clear_runtime is silently dropped.
	r.SetPort("demo", 9999)
	p, _ = r.Get("demo")
	if p.Port != 0 {
		t.Fatalf("stale set_port after clear_runtime was not dropped: %+v", p)
	}
}

func TestInvalidatePortLeavesPidAlone(t *testing.T) {
	r := New(NewDiskStore(t.TempDir()))
	if _, err := r.Create("demo", "/tmp/demo"); err != nil {
		t.Fatal(err)
	}
	if err := r.SetRunning("demo", 123); err != nil {
		t.Fatal(err)
	}
	r.SetPort("demo", 54321)

	r.InvalidatePort("demo")
	p, _ := r.Get("demo")
	if p.Port != 0 {
		t.Fatalf("port not cleared: %+v", p)
	}
	if p.PID != 123 {
		t.Fatalf("pid should survive invalidation: %+v", p)
	}

	// A no-op on an unknown project, and safe to call twice.
	r.InvalidatePort("nosuch")
	r.InvalidatePort("demo")
}

func TestDeleteRequiresIdle(t *testing.T) {
	r := New(NewDiskStore(t.TempDir()))
	if _, err := r.Create("demo", "/tmp/demo"); err != nil {
		t.Fatal(err)
	}
	if err := r.SetRunning("demo", 1); err != nil {
		t.Fatal(err)
	}
	if err := r.Delete("demo"); !errors.Is(err, ErrRunning) {
		t.Fatalf("got %v, want ErrRunning", err)
	}
	r.ClearRuntime("demo")
	if err := r.Delete("demo"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Get("demo"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
