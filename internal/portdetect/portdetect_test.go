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
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestDetectFindsLowestPort(t *testing.T) {
	var calls int32
	fake := func(pid int) ([]int, error) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return nil, nil
		}
		return []int{5173, 3000, 9000}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	found := Detect(ctx, 42, fake, func() bool { return true })
	select {
	case port, ok := <-found:
		if !ok {
			t.Fatal("channel closed without a port")
		}
		if port != 3000 {
			t.Fatalf("got %d, want 3000 (lowest)", port)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for detection")
	}
}

func TestDetectStopsOnProcessExit(t *testing.T) {
	fake := func(pid int) ([]int, error) { return nil, nil }
	alive := func() bool { return false }

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	found := Detect(ctx, 1, fake, alive)
	select {
	case _, ok := <-found:
		if ok {
			t.Fatal("expected channel to close without a value")
		}
	case <-ctx.Done():
		t.Fatal("detector did not stop after process exit")
	}
}

func TestDetectTolerantOfScanErrors(t *testing.T) {
	var calls int32
	fake := func(pid int) ([]int, error) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return nil, errors.New("parse failure")
		}
		return []int{4000}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	found := Detect(ctx, 7, fake, func() bool { return true })
	select {
	case port := <-found:
		if port != 4000 {
			t.Fatalf("got %d, want 4000", port)
		}
	case <-ctx.Done():
		t.Fatal("detector did not recover from scan errors")
	}
}
