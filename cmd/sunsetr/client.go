package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/sunsetr/sunsetr/internal/apperr"
	"github.com/sunsetr/sunsetr/internal/ipc"
	"github.com/sunsetr/sunsetr/internal/xdg"
)

// dialTimeout bounds the connect attempt so a subcommand fails fast
// with exit code 3 (spec §6) when no instance is running, rather than
// hanging on a stale socket.
const dialTimeout = 2 * time.Second

// sendRequest dials the running instance's IPC socket, sends req as a
// single JSON line, and returns its decoded Response. A dial failure
// is reported as apperr.Ipc so callers exit 3 ("IPC connection
// refused (no running instance)").
func sendRequest(req ipc.Request) (ipc.Response, error) {
	conn, err := net.DialTimeout("unix", xdg.SocketPath(flags.configRoot), dialTimeout)
	if err != nil {
		return ipc.Response{}, apperr.Wrap(apperr.Ipc, "dial", err)
	}
	defer conn.Close()

	data, err := json.Marshal(req)
	if err != nil {
		return ipc.Response{}, apperr.Wrap(apperr.Internal, "encode request", err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return ipc.Response{}, apperr.Wrap(apperr.Ipc, "write request", err)
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return ipc.Response{}, apperr.Wrap(apperr.Ipc, "read response", err)
	}

	var resp struct {
		OK    bool           `json:"ok"`
		Error string         `json:"error"`
		Kind  string         `json:"kind"`
		Rest  map[string]any `json:"-"`
	}
	var fields map[string]any
	if err := json.Unmarshal(line, &fields); err != nil {
		return ipc.Response{}, apperr.Wrap(apperr.Internal, "decode response", err)
	}
	if v, ok := fields["ok"].(bool); ok {
		resp.OK = v
	}
	if v, ok := fields["error"].(string); ok {
		resp.Error = v
	}
	if v, ok := fields["kind"].(string); ok {
		resp.Kind = v
	}
	delete(fields, "ok")
	delete(fields, "error")
	delete(fields, "kind")

	out := ipc.Response{OK: resp.OK, Error: resp.Error, Kind: resp.Kind, Fields: fields}
	if !out.OK {
		return out, apperr.Wrap(apperr.Kind(out.Kind), "request", fmt.Errorf("%s", out.Error))
	}
	return out, nil
}

// sendStatusFollow dials the socket in follow mode and invokes onEvent
// for every broadcast frame received, until the connection closes or
// onEvent returns false.
func sendStatusFollow(req ipc.Request, onEvent func(map[string]any) bool) error {
	conn, err := net.DialTimeout("unix", xdg.SocketPath(flags.configRoot), dialTimeout)
	if err != nil {
		return apperr.Wrap(apperr.Ipc, "dial", err)
	}
	defer conn.Close()

	data, err := json.Marshal(req)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "encode request", err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return apperr.Wrap(apperr.Ipc, "write request", err)
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return nil
		}
		var fields map[string]any
		if err := json.Unmarshal(line, &fields); err != nil {
			continue
		}
		if !onEvent(fields) {
			return nil
		}
	}
}
