package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/volo-kola/kola/internal/infra/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// ─── Checker Tests ──────────────────────────────────────────────────────────

func TestChecker_NotHealthyBeforeFirstRun(t *testing.T) {
	c := NewChecker(newTestDB(t), nil)
	if c.IsHealthy() {
		t.Error("IsHealthy() should be false before any check ran")
	}
}

func TestChecker_StoreHealthy(t *testing.T) {
	c := NewChecker(newTestDB(t), nil)
	c.RunOnce(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 1 {
		t.Fatalf("Statuses() = %d, want 1", len(statuses))
	}
	if !statuses[0].Healthy || statuses[0].Name != "store" {
		t.Errorf("unexpected status %+v", statuses[0])
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true")
	}
}

func TestChecker_ClosedStoreUnhealthy(t *testing.T) {
	db := newTestDB(t)
	c := NewChecker(db, nil)
	db.Close()

	c.RunOnce(context.Background())
	if c.IsHealthy() {
		t.Error("closed store should be unhealthy")
	}
	if s := c.Statuses()[0]; s.Error == "" {
		t.Error("expected an error message")
	}
}

func TestChecker_RecoverCalledOnFailure(t *testing.T) {
	c := NewChecker(pingFunc(func(context.Context) error { return nil }), nil)
	recovered := false
	c.Add(Check{
		Name:      "flaky",
		CheckFn:   func(context.Context) error { return errors.New("down") },
		RecoverFn: func(context.Context) error { recovered = true; return nil },
	})

	c.RunOnce(context.Background())
	if !recovered {
		t.Error("RecoverFn should run after a failed check")
	}
	if c.IsHealthy() {
		t.Error("one failing check makes the checker unhealthy")
	}
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	c := NewChecker(pingFunc(func(context.Context) error { return nil }), nil)
	c.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if !c.IsHealthy() {
		t.Error("expected healthy after run")
	}
}
