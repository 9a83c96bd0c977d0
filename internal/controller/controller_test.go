package controller_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sunsetr/sunsetr/internal/backend/nullbackend"
	"github.com/sunsetr/sunsetr/internal/config"
	"github.com/sunsetr/sunsetr/internal/controller"
	"github.com/sunsetr/sunsetr/internal/ipc"
	"github.com/sunsetr/sunsetr/internal/sim"
)

type harness struct {
	t    *testing.T
	drv  *nullbackend.Driver
	sock string
}

// newHarness writes a base sunsetr.toml, starts a Controller against a
// fast-forward virtual clock and a recording backend, and waits for
// its startup apply to land before returning.
func newHarness(t *testing.T, tomlBody string) *harness {
	t.Helper()
	root := t.TempDir()
	t.Setenv("XDG_STATE_HOME", filepath.Join(root, "state"))
	if err := os.WriteFile(filepath.Join(root, "sunsetr.toml"), []byte(tomlBody), 0o644); err != nil {
		t.Fatal(err)
	}
	store := config.NewStore(root)

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	v := sim.NewVirtual(start, 0)
	drv := nullbackend.New(v.NowWall)

	sock := filepath.Join(t.TempDir(), "ctrl.sock")
	srv, err := ipc.Listen(sock, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	ctrl := controller.New(v, drv, store, srv, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ctrl.Run(ctx)

	h := &harness{t: t, drv: drv, sock: sock}
	h.waitForLog(1)
	return h
}

func (h *harness) waitForLog(n int) {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(h.drv.Log()) >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	h.t.Fatalf("timed out waiting for at least %d applied states", n)
}

func (h *harness) send(req ipc.Request) map[string]any {
	h.t.Helper()
	conn, err := net.DialTimeout("unix", h.sock, time.Second)
	if err != nil {
		h.t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	data, _ := json.Marshal(req)
	conn.Write(append(data, '\n'))

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		h.t.Fatalf("read reply: %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal(line, &resp); err != nil {
		h.t.Fatalf("decode reply: %v", err)
	}
	return resp
}

func TestControllerStatusOnceReflectsStaticConfig(t *testing.T) {
	h := newHarness(t, "transition_mode = \"static\"\nstatic_temp = 4000\nstatic_gamma = 85\n")
	resp := h.send(ipc.Request{Cmd: "status_once"})
	if resp["ok"] != true {
		t.Fatalf("status_once ok = %v, want true", resp["ok"])
	}
	if temp, _ := resp["target_temp"].(float64); int(temp) != 4000 {
		t.Errorf("target_temp = %v, want 4000", resp["target_temp"])
	}
}

func TestControllerGetReadsRawField(t *testing.T) {
	h := newHarness(t, "transition_mode = \"static\"\nstatic_temp = 4000\nstatic_gamma = 85\n")
	resp := h.send(ipc.Request{Cmd: "get", Fields: []string{"static_temp"}})
	if resp["ok"] != true {
		t.Fatalf("get ok = %v, want true", resp["ok"])
	}
	if temp, _ := resp["static_temp"].(float64); int(temp) != 4000 {
		t.Errorf("static_temp = %v, want 4000", resp["static_temp"])
	}
	if _, present := resp["day_temp"]; present {
		t.Error("day_temp should be absent: it was never set in this config")
	}
}

func TestControllerSetWritesAndReapplies(t *testing.T) {
	h := newHarness(t, "transition_mode = \"static\"\nstatic_temp = 4000\nstatic_gamma = 85\n")
	resp := h.send(ipc.Request{Cmd: "set", Set: []string{"static_temp=3000"}})
	if resp["ok"] != true {
		t.Fatalf("set ok = %v, want true: %v", resp["ok"], resp)
	}

	deadline := time.Now().Add(2 * time.Second)
	var sawTarget bool
	for time.Now().Before(deadline) {
		for _, a := range h.drv.Log() {
			if a.State.TempK == 3000 {
				sawTarget = true
			}
		}
		if sawTarget {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !sawTarget {
		t.Fatal("expected the backend log to eventually include the new static_temp value")
	}
}

func TestControllerPresetToggleReturnsToBase(t *testing.T) {
	root := t.TempDir()
	t.Setenv("XDG_STATE_HOME", filepath.Join(root, "state"))
	os.WriteFile(filepath.Join(root, "sunsetr.toml"), []byte("transition_mode = \"static\"\nstatic_temp = 4000\nstatic_gamma = 85\n"), 0o644)
	os.MkdirAll(filepath.Join(root, "presets", "reading"), 0o755)
	os.WriteFile(filepath.Join(root, "presets", "reading", "sunsetr.toml"), []byte("static_temp = 2500\n"), 0o644)

	store := config.NewStore(root)
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	v := sim.NewVirtual(start, 0)
	drv := nullbackend.New(v.NowWall)
	sock := filepath.Join(t.TempDir(), "ctrl.sock")
	srv, err := ipc.Listen(sock, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()
	ctrl := controller.New(v, drv, store, srv, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.Run(ctx)

	h := &harness{t: t, drv: drv, sock: sock}
	h.waitForLog(1)

	resp := h.send(ipc.Request{Cmd: "preset", Name: strPtr("reading")})
	if resp["ok"] != true {
		t.Fatalf("preset reading ok = %v, want true: %v", resp["ok"], resp)
	}
	if resp["active_preset"] != "reading" {
		t.Errorf("active_preset = %v, want reading", resp["active_preset"])
	}

	resp = h.send(ipc.Request{Cmd: "preset", Name: strPtr("reading")})
	if resp["ok"] != true {
		t.Fatalf("preset reading (toggle off) ok = %v, want true: %v", resp["ok"], resp)
	}
	if resp["active_preset"] != nil {
		t.Errorf("active_preset after toggling off = %v, want nil", resp["active_preset"])
	}
}

func strPtr(s string) *string { return &s }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
