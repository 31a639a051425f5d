package daemon_test

import (
	"context"
	"testing"
	"time"

	"clipforge/internal/daemon"
	"clipforge/internal/queue"
	"clipforge/internal/reaper"
	"clipforge/internal/stage"
	"clipforge/internal/testsupport"
	"clipforge/internal/workflow"
)

type noopPipeline struct{}

func (noopPipeline) Prepare(context.Context, *queue.Job) error { return nil }
func (noopPipeline) Execute(context.Context, *queue.Job) error { return nil }
func (noopPipeline) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("noop")
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManager(cfg, store, nil)
	mgr.Register(queue.KindClip, noopPipeline{})
	rp := reaper.New(cfg, store, nil)

	d, err := daemon.New(cfg, store, nil, mgr, rp)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	time.Sleep(50 * time.Millisecond)
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonRequiresDependencies(t *testing.T) {
	if _, err := daemon.New(nil, nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
