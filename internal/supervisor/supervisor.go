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

// Package supervisor spawns and supervises one child process per project,
// capturing its output and handing its pid to the Port Detector.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"time"

	oversight "cirello.io/oversight/easy"

	"proj.sh/proj/internal/portdetect"
	"proj.sh/proj/internal/registry"
)

// Errors returned by Supervisor operations.
var (
	ErrAlreadyRunning = errors.New("project is already running")
	ErrEmptyArgv      = errors.New("argv must not be empty")
)

// SpawnError wraps an OS failure to exec the child, carrying the
// underlying error string on the wire per the SpawnFailed error kind.
type SpawnError struct{ Err error }

func (e *SpawnError) Error() string { return fmt.Sprintf("spawn failed: %v", e.Err) }
func (e *SpawnError) Unwrap() error { return e.Err }

// gracePeriod is how long Stop waits after the graceful signal before
// escalating to a forced kill.
const gracePeriod = 2 * time.Second

type run struct {
	cmd    *exec.Cmd
	out    *ringBuffer
	exited chan struct{}
}

// Supervisor owns every currently-running child process. Each running
// child has one logical owner (the Supervisor) and two observers (the
// wait-for-exit watcher and the Port Detector); both are funneled through
// the run's exited channel so cleanup happens exactly once.
type Supervisor struct {
	reg    *registry.Registry
	detect portdetect.Capability

	mu      sync.Mutex
	runs    map[string]*run
	outputs map[string]*ringBuffer
}

// New creates a Supervisor backed by reg, discovering ports with detect.
func New(reg *registry.Registry, detect portdetect.Capability) *Supervisor {
	return &Supervisor{
		reg:     reg,
		detect:  detect,
		runs:    make(map[string]*run),
		outputs: make(map[string]*ringBuffer),
	}
}

// Run spawns argv in project's working directory under its own process
// group, capturing stdout/stderr, and returns its pid immediately without
// waiting for it to finish (or for its port to be discovered).
func (s *Supervisor) Run(ctx context.Context, project registry.Project, argv []string) (int, error) {
	if len(argv) == 0 {
		return 0, ErrEmptyArgv
	}

	s.mu.Lock()
	if _, ok := s.runs[project.Name]; ok {
		s.mu.Unlock()
		return 0, ErrAlreadyRunning
	}
	s.mu.Unlock()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = project.Path
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("PROJECT_ID=%s", project.Name),
		fmt.Sprintf("PROJECT_HOST=%s.localhost", project.Name),
	)
	prepareProcAttr(cmd)

	out := newRingBuffer(ringBufferSize)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, &SpawnError{Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, &SpawnError{Err: err}
	}

	if err := cmd.Start(); err != nil {
		return 0, &SpawnError{Err: err}
	}

	s.mu.Lock()
	if _, ok := s.runs[project.Name]; ok {
		// Lost a race against a concurrent Run; kill the one we just
		// started and defer to the winner.
		s.mu.Unlock()
		signalGroup(cmd, false)
		cmd.Wait()
		return 0, ErrAlreadyRunning
	}
	r := &run{cmd: cmd, out: out, exited: make(chan struct{})}
	s.runs[project.Name] = r
	s.outputs[project.Name] = out
	s.mu.Unlock()

	go drain(stdout, out)
	go drain(stderr, out)

	if err := s.reg.SetRunning(project.Name, cmd.Process.Pid); err != nil {
		log.Printf("supervisor: %s: set_running: %v", project.Name, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	alive := func() bool {
		select {
		case <-r.exited:
			return false
		default:
			return true
		}
	}

	oCtx := oversight.WithContext(ctx, oversight.WithLogger(log.New(os.Stderr, "", log.LstdFlags)))
	oversight.Add(oCtx, func(context.Context) error {
		found := portdetect.Detect(runCtx, cmd.Process.Pid, s.detect, alive)
		select {
		case port, ok := <-found:
			if ok {
				s.reg.SetPort(project.Name, port)
			}
		case <-runCtx.Done():
		}
		return nil
	}, oversight.RestartWith(oversight.Temporary()))

	oversight.Add(oCtx, func(context.Context) error {
		waitErr := cmd.Wait()
		cancel()

		s.mu.Lock()
		delete(s.runs, project.Name)
		s.mu.Unlock()

		s.reg.ClearRuntime(project.Name)
		close(r.exited)
		if waitErr != nil {
			log.Printf("supervisor: %s: exited: %v", project.Name, waitErr)
		}
		return nil
	}, oversight.RestartWith(oversight.Temporary()))

	return cmd.Process.Pid, nil
}

// Stop terminates project's supervised child, if any. Not running is a
// no-op success. It signals the process group gracefully, waits up to
// gracePeriod, then escalates to a forced kill, and does not return until
// the exit observer has reaped the child and cleared runtime state.
func (s *Supervisor) Stop(name string) error {
	s.mu.Lock()
	r, ok := s.runs[name]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if err := signalGroup(r.cmd, true); err != nil {
		log.Printf("supervisor: %s: graceful signal failed: %v", name, err)
	}

	select {
	case <-r.exited:
		return nil
	case <-time.After(gracePeriod):
	}

	if err := signalGroup(r.cmd, false); err != nil {
		log.Printf("supervisor: %s: forced kill failed: %v", name, err)
	}
	<-r.exited
	return nil
}

// Output returns a snapshot of the most recently captured stdout/stderr for
// name, across the current or most recent run. It never touches disk.
func (s *Supervisor) Output(name string) []byte {
	s.mu.Lock()
	out, ok := s.outputs[name]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return out.Bytes()
}

// StopAll terminates every running child, in parallel, and waits for all of
// them to be reaped. Used on service shutdown.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	names := make([]string, 0, len(s.runs))
	for name := range s.runs {
		names = append(names, name)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			s.Stop(name)
		}(name)
	}
	wg.Wait()
}

func drain(r io.Reader, out *ringBuffer) {
	io.Copy(out, r)
}
