package ipc

import (
	"bufio"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "sunsetr.sock")
	srv, err := Listen(sock, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv, sock
}

func dial(t *testing.T, sock string) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("unix", sock, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRequestReplyRoundTrip(t *testing.T) {
	srv, sock := testServer(t)

	go func() {
		cmd := <-srv.Commands()
		cmd.Reply(Ok(map[string]any{"echo": cmd.Request.Cmd}))
	}()

	conn := dial(t, sock)
	name := "status_once"
	req := Request{Cmd: name}
	data, _ := json.Marshal(req)
	conn.Write(append(data, '\n'))

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal(line, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["ok"] != true {
		t.Errorf("ok = %v, want true", resp["ok"])
	}
	if resp["echo"] != "status_once" {
		t.Errorf("echo = %v, want status_once", resp["echo"])
	}
}

func TestMalformedRequestGetsErrorReply(t *testing.T) {
	_, sock := testServer(t)
	conn := dial(t, sock)
	conn.Write([]byte("not json\n"))

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var resp map[string]any
	json.Unmarshal(line, &resp)
	if resp["ok"] != false {
		t.Errorf("ok = %v, want false for a malformed request", resp["ok"])
	}
}

func TestStatusFollowReceivesBroadcast(t *testing.T) {
	srv, sock := testServer(t)

	go func() {
		cmd := <-srv.Commands()
		if cmd.Promote != nil {
			cmd.Promote()
		}
		cmd.Reply(Ok(nil))
	}()

	conn := dial(t, sock)
	req := Request{Cmd: "status_follow"}
	data, _ := json.Marshal(req)
	conn.Write(append(data, '\n'))

	reader := bufio.NewReader(conn)
	if _, err := reader.ReadBytes('\n'); err != nil {
		t.Fatalf("read initial reply: %v", err)
	}

	// Give the promote goroutine a moment to register the subscriber.
	deadline := time.Now().Add(time.Second)
	for srv.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if srv.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", srv.SubscriberCount())
	}

	srv.Broadcast(NewStateApplied())
	conn.SetReadDeadline(time.Now().Add(time.Second))
	line, err := reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	var ev map[string]any
	json.Unmarshal(line, &ev)
	if ev["event_type"] != "state_applied" {
		t.Errorf("event_type = %v, want state_applied", ev["event_type"])
	}
}

func TestBroadcastDropsSlowConsumer(t *testing.T) {
	srv, sock := testServer(t)

	go func() {
		cmd := <-srv.Commands()
		if cmd.Promote != nil {
			cmd.Promote()
		}
		cmd.Reply(Ok(nil))
	}()

	conn := dial(t, sock)
	req := Request{Cmd: "status_follow"}
	data, _ := json.Marshal(req)
	conn.Write(append(data, '\n'))
	bufio.NewReader(conn).ReadBytes('\n')

	deadline := time.Now().Add(time.Second)
	for srv.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	// Flood well past the bounded queue depth without ever reading, so
	// the broadcaster must drop this subscriber instead of blocking.
	for i := 0; i < subscriberQueueSize*4; i++ {
		srv.Broadcast(NewPeriodChanged())
	}

	deadline = time.Now().Add(time.Second)
	for srv.SubscriberCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if srv.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d, want 0 after overwhelming its queue", srv.SubscriberCount())
	}
}
