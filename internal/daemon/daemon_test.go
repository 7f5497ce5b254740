package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/api"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/bus"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/config"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/lock"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/model"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/remote/memdb"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/session"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/status"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/store"
	intsync "github.com/madhurmehta007/Chatalyst-AI-sub000/internal/sync"
)

// shortTempDir keeps socket paths under the 104-char Unix socket limit on macOS.
func shortTempDir(t *testing.T, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", pattern)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func TestServerRoundTrip(t *testing.T) {
	tmpDir := shortTempDir(t, "chatalyst-srv-*")
	socketPath := filepath.Join(tmpDir, "d.sock")

	db, err := store.Open(filepath.Join(tmpDir, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	b := bus.New()
	machine := status.NewMachine(b)
	rdb := memdb.New()
	engine := intsync.NewEngine(db, rdb, b, machine, nil)
	defer engine.StopSyncing()

	p := Params{SessionName: "test", SocketPath: socketPath}
	srv, err := NewServer(p, zap.NewNop(),
		api.NewSessionService("test", machine, engine, db),
		api.NewSyncService(engine, b, machine, "test"),
		api.NewConversationService(db, engine),
		api.NewMessageService(db, engine),
		api.NewUserService(db, engine),
	)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())

	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatalf("socket not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("socket mode = %o, want 600", perm)
	}

	client, err := api.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Session.GetStatus(ctx, &api.GetStatusRequest{})
	if err != nil {
		t.Fatalf("GetStatus error = %v", err)
	}
	if resp.Session != "test" || resp.State != string(status.Idle) {
		t.Errorf("status = %+v, want session test in IDLE", resp)
	}

	if err := rdb.Update(ctx, map[string]any{
		"conversations/c1":         model.Conversation{Name: "Chat", Participants: map[string]bool{"me": true}},
		"user-conversations/me/c1": true,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Sync.StartSync(ctx, &api.StartSyncRequest{Principal: "me"}); err != nil {
		t.Fatalf("StartSync error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		convs, err := client.Conversation.List(ctx, &api.ListConversationsRequest{})
		if err != nil {
			t.Fatal(err)
		}
		if len(convs.Conversations) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for the conversation to be cached")
		}
		time.Sleep(10 * time.Millisecond)
	}

	stop, err := client.Sync.StopSync(ctx, &api.StopSyncRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if stop.State != string(status.Idle) {
		t.Errorf("state after stop = %s, want IDLE", stop.State)
	}
}

func TestStopCutsOpenStreams(t *testing.T) {
	tmpDir := shortTempDir(t, "chatalyst-stream-*")
	socketPath := filepath.Join(tmpDir, "d.sock")

	b := bus.New()
	machine := status.NewMachine(b)
	srv, err := NewServer(Params{SessionName: "s", SocketPath: socketPath}, zap.NewNop(),
		api.NewSessionService("s", machine, nil, nil),
		api.NewSyncService(nil, b, machine, "s"),
		api.NewConversationService(nil, nil),
		api.NewMessageService(nil, nil),
		api.NewUserService(nil, nil),
	)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Start() }()

	client, err := api.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = client.Close() }()

	events, err := client.Sync.WatchEvents(context.Background(), &api.WatchEventsRequest{})
	if err != nil {
		t.Fatal(err)
	}
	received := make(chan error, 1)
	go func() {
		_, err := events.Recv()
		received <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	stopped := make(chan struct{})
	go func() {
		srv.Stop(ctx)
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop() blocked on an open event stream")
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket still present after Stop: %v", err)
	}
	select {
	case err := <-received:
		if err == nil {
			t.Error("Recv() should fail once the server is gone")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("stream was not closed")
	}
}

// TestFxModuleValidates checks the dependency graph resolves without running
// any constructor.
func TestFxModuleValidates(t *testing.T) {
	err := fx.ValidateApp(Module(Params{SessionName: "fxtest"}), fx.NopLogger)
	if err != nil {
		t.Fatalf("ValidateApp() error = %v", err)
	}
}

func TestDaemonLifecycle(t *testing.T) {
	home := shortTempDir(t, "chatalyst-fx-*")
	t.Setenv("CHATALYST_HOME", home)

	cfg := config.Default()
	cfg.Principal = "me"
	cfg.Responder.Enabled = false

	app := fxtest.New(t, Module(Params{SessionName: "fx", Config: cfg}), fx.NopLogger)
	app.RequireStart()

	info, err := lock.Read(session.Dir("fx"))
	if err != nil {
		t.Fatal(err)
	}
	if info.PID != os.Getpid() || info.Principal != "me" {
		t.Errorf("lock info = %+v", info)
	}

	client, err := api.Dial(session.SocketPath("fx"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Session.GetStatus(ctx, &api.GetStatusRequest{})
	if err != nil {
		t.Fatalf("GetStatus error = %v", err)
	}
	if resp.Principal != "me" {
		t.Errorf("principal = %q, want the configured principal", resp.Principal)
	}

	app.RequireStop()

	if _, err := os.Stat(session.SocketPath("fx")); !os.IsNotExist(err) {
		t.Errorf("socket still present after stop: %v", err)
	}
	// The lock is free again.
	lk, err := lock.Acquire(session.Dir("fx"), "me")
	if err != nil {
		t.Fatalf("lock not released: %v", err)
	}
	_ = lk.Release()
}

func TestHealthFunc(t *testing.T) {
	b := bus.New()
	machine := status.NewMachine(b)
	engine := intsync.NewEngine(nil, memdb.New(), b, machine, nil)
	health := healthFunc(machine, engine)

	h, ok := health()
	if !ok || h.Status != string(status.Idle) {
		t.Errorf("idle health = %+v, %v", h, ok)
	}

	_ = machine.Transition(status.Syncing)
	_ = machine.Transition(status.Degraded)
	h, ok = health()
	if ok || h.Status != string(status.Degraded) {
		t.Errorf("degraded health = %+v, %v; want unhealthy", h, ok)
	}
}
