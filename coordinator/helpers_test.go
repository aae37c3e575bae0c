package coordinator_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jacentio/devicekv/coordinator"
	"github.com/jacentio/devicekv/replica"
	"github.com/jacentio/devicekv/replica/replicatest"
)

var testIdentity = replica.Identity{BundleName: "com.example.notes", DeviceID: "tablet"}

// logBuffer collects log output from several goroutines.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Contains reports whether any line has every fragment.
func (b *logBuffer) Contains(fragments ...string) bool {
	for _, line := range strings.Split(b.String(), "\n") {
		match := true
		for _, f := range fragments {
			if !strings.Contains(line, f) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func newLogger() (*slog.Logger, *logBuffer) {
	buf := &logBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// recordingScheduler captures scheduled functions instead of running them.
type recordingScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
	funcs  []func()
}

func (s *recordingScheduler) AfterFunc(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.funcs = append(s.funcs, f)
}

// RunAll runs every captured function in order.
func (s *recordingScheduler) RunAll() {
	s.mu.Lock()
	funcs := s.funcs
	s.funcs = nil
	s.mu.Unlock()
	for _, f := range funcs {
		f()
	}
}

func (s *recordingScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// outcomes records callback results.
type outcomes struct {
	mu      sync.Mutex
	results []bool
}

func (o *outcomes) Callback() coordinator.Callback {
	return func(success bool) {
		o.mu.Lock()
		o.results = append(o.results, success)
		o.mu.Unlock()
	}
}

func (o *outcomes) Results() []bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]bool(nil), o.results...)
}

// newReady returns an initialized coordinator backed by a fresh fake manager.
func newReady(t *testing.T, onChange coordinator.ChangeListener, opts ...coordinator.Option) (*coordinator.Coordinator, *replicatest.Manager) {
	t.Helper()
	mgr := replicatest.NewManager()
	c := coordinator.New(mgr.Factory(nil), opts...)
	c.Initialize(context.Background(), testIdentity, onChange)
	if c.State() != coordinator.StateReady {
		t.Fatalf("expected state ready, got %s", c.State())
	}
	return c, mgr
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
