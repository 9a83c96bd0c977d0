// Package wire implements just enough of the Wayland wire protocol to
// enumerate globals and drive a handful of requests against them. No
// Wayland client library appears anywhere in the retrieved corpus, so
// this talks directly to the compositor's AF_UNIX socket rather than
// depending on one (spec §4.E, §9: "the protocol transport itself is
// the spec's core deliverable").
//
// Only the subset needed by wlrgamma and hyprctm is implemented:
// wl_display.sync/error/delete_id, wl_registry.global/bind, and raw
// request/event framing for arbitrary protocol objects.
package wire

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// header is the 8-byte Wayland message header: object id, then a
// 32-bit word packing opcode (low 16 bits) and message size in bytes
// (high 16 bits), both little-endian per the protocol's native byte
// order on Linux.
type header struct {
	ObjectID uint32
	Opcode   uint16
	Size     uint16
}

// Message is one decoded wire message: a header plus its raw argument
// bytes, undecoded (callers know their own argument shapes).
type Message struct {
	Header header
	Args   []byte
}

// well-known object ids and opcodes for wl_display/wl_registry, the
// only two interfaces every Wayland connection has bound in advance.
const (
	displayObjectID uint32 = 1
	registryStartID uint32 = 2

	displayOpSync        uint16 = 0
	displayOpGetRegistry uint16 = 1

	displayEvError       uint16 = 0
	displayEvDeleteID    uint16 = 1

	registryOpBind uint16 = 0

	registryEvGlobal       uint16 = 0
	registryEvGlobalRemove uint16 = 1

	callbackEvDone uint16 = 0
)

// Global is one entry advertised by wl_registry.global.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// Conn is a single-threaded Wayland client connection: one goroutine
// reads and dispatches events, callers send requests synchronously.
// Cross-goroutine use only happens through SendRequest/Roundtrip,
// never by sharing the connection's internal state directly, matching
// spec §5's "any cross-thread handoff is via channels of owned
// frames, never shared mutable state".
type Conn struct {
	c net.Conn

	mu      sync.Mutex
	nextID  uint32
	globals map[uint32]Global

	events chan Message
	errs   chan error
	done   chan struct{}

	registryID uint32
}

// Dial connects to the compositor socket named by $WAYLAND_DISPLAY
// under $XDG_RUNTIME_DIR (falling back to "wayland-0"), as the
// protocol itself mandates, and performs the initial
// wl_display.get_registry + wl_display.sync roundtrip to populate
// Globals().
func Dial() (*Conn, error) {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return nil, fmt.Errorf("wire: XDG_RUNTIME_DIR not set")
	}
	display := os.Getenv("WAYLAND_DISPLAY")
	if display == "" {
		display = "wayland-0"
	}
	path := display
	if !filepath.IsAbs(display) {
		path = filepath.Join(runtimeDir, display)
	}

	sock, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("wire: dial %s: %w", path, err)
	}

	conn := &Conn{
		c:          sock,
		nextID:     3, // 1 = wl_display, 2 = wl_registry (allocated below)
		globals:    make(map[uint32]Global),
		events:     make(chan Message, 64),
		errs:       make(chan error, 1),
		done:       make(chan struct{}),
		registryID: registryStartID,
	}
	go conn.readLoop()

	if err := conn.sendRequest(displayObjectID, displayOpGetRegistry, encodeUint32(conn.registryID)); err != nil {
		sock.Close()
		return nil, err
	}

	if err := conn.drainRegistry(); err != nil {
		sock.Close()
		return nil, err
	}

	return conn, nil
}

// drainRegistry consumes wl_registry.global events until the initial
// wl_display.sync callback fires, the standard pattern for a
// synchronous global enumeration.
func (c *Conn) drainRegistry() error {
	callbackID := c.allocID()
	if err := c.sendRequest(displayObjectID, displayOpSync, encodeUint32(callbackID)); err != nil {
		return err
	}

	for {
		select {
		case msg := <-c.events:
			switch {
			case msg.Header.ObjectID == c.registryID && msg.Header.Opcode == registryEvGlobal:
				g, ok := decodeGlobal(msg.Args)
				if ok {
					c.mu.Lock()
					c.globals[g.Name] = g
					c.mu.Unlock()
				}
			case msg.Header.ObjectID == callbackID && msg.Header.Opcode == callbackEvDone:
				return nil
			case msg.Header.ObjectID == displayObjectID && msg.Header.Opcode == displayEvError:
				return fmt.Errorf("wire: display error during registry sync")
			}
		case err := <-c.errs:
			return err
		}
	}
}

// Globals returns a snapshot of every global currently advertised.
func (c *Conn) Globals() map[uint32]Global {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uint32]Global, len(c.globals))
	for k, v := range c.globals {
		out[k] = v
	}
	return out
}

// FindGlobal returns the first global whose Interface matches iface.
func (c *Conn) FindGlobal(iface string) (Global, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, g := range c.globals {
		if g.Interface == iface {
			return g, true
		}
	}
	return Global{}, false
}

// NewID allocates a fresh client-side object id for a request that
// introduces a new protocol object (e.g. registry.bind).
func (c *Conn) NewID() uint32 { return c.allocID() }

func (c *Conn) allocID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	return id
}

// Bind issues wl_registry.bind for global g, returning the client-side
// object id assigned to the new protocol object.
func (c *Conn) Bind(g Global, version uint32) (uint32, error) {
	newID := c.allocID()
	args := append(encodeUint32(g.Name), encodeString(g.Interface)...)
	args = append(args, encodeUint32(version)...)
	args = append(args, encodeUint32(newID)...)
	if err := c.sendRequest(c.registryID, registryOpBind, args); err != nil {
		return 0, err
	}
	return newID, nil
}

// SendRequest submits a raw request against objID with pre-encoded
// argument bytes; adapters that know their own protocol's argument
// layout call this directly.
func (c *Conn) SendRequest(objID uint32, opcode uint16, args []byte) error {
	return c.sendRequest(objID, opcode, args)
}

// SendRequestFD submits a raw request against objID carrying a single
// file-descriptor argument. A Wayland "fd" argument is never inlined
// into the message body (it contributes nothing to the header's size
// field); it travels out-of-band as SCM_RIGHTS ancillary data on the
// same AF_UNIX socket, so this requires the raw unix socket, not a
// buffered io.Writer. args is any additional fixed-layout arguments
// that precede the fd in the request's argument list (none of the
// requests this package issues have any, but the signature stays
// general).
func (c *Conn) SendRequestFD(objID uint32, opcode uint16, args []byte, fd int) error {
	unixConn, ok := c.c.(*net.UnixConn)
	if !ok {
		return fmt.Errorf("wire: send fd: underlying connection is not a unix socket")
	}

	size := uint16(8 + len(args))
	buf := make([]byte, 8, size)
	binary.LittleEndian.PutUint32(buf[0:4], objID)
	binary.LittleEndian.PutUint16(buf[4:6], opcode)
	binary.LittleEndian.PutUint16(buf[6:8], size)
	buf = append(buf, args...)

	oob := unix.UnixRights(fd)
	n, oobn, err := unixConn.WriteMsgUnix(buf, oob, nil)
	if err != nil {
		return fmt.Errorf("wire: write request with fd: %w", err)
	}
	if n != len(buf) || oobn != len(oob) {
		return fmt.Errorf("wire: write request with fd: short write (%d/%d bytes, %d/%d oob)", n, len(buf), oobn, len(oob))
	}
	return nil
}

func (c *Conn) sendRequest(objID uint32, opcode uint16, args []byte) error {
	size := uint16(8 + len(args))
	buf := make([]byte, 8, size)
	binary.LittleEndian.PutUint32(buf[0:4], objID)
	binary.LittleEndian.PutUint16(buf[4:6], opcode)
	binary.LittleEndian.PutUint16(buf[6:8], size)
	buf = append(buf, args...)
	_, err := c.c.Write(buf)
	if err != nil {
		return fmt.Errorf("wire: write request: %w", err)
	}
	return nil
}

// Events returns the channel of decoded events the read loop
// delivers; adapters register their own object ids and filter this
// stream for messages addressed to them.
func (c *Conn) Events() <-chan Message { return c.events }

// Errs returns the channel the read loop reports fatal I/O errors on.
func (c *Conn) Errs() <-chan error { return c.errs }

// Roundtrip issues wl_display.sync and blocks until the compositor's
// done callback for it arrives, guaranteeing every request sent
// before the call has been processed. Any other event observed while
// waiting (e.g. a newly-bound object's first events) is preserved and
// requeued onto Events() in its original order rather than discarded,
// so a caller that hasn't started its own dispatch loop yet can still
// synchronously drain those events right after Roundtrip returns.
func (c *Conn) Roundtrip() error {
	callbackID := c.allocID()
	if err := c.sendRequest(displayObjectID, displayOpSync, encodeUint32(callbackID)); err != nil {
		return err
	}
	var pending []Message
	for {
		select {
		case msg := <-c.events:
			if msg.Header.ObjectID == callbackID && msg.Header.Opcode == callbackEvDone {
				c.requeue(pending)
				return nil
			}
			if msg.Header.ObjectID == displayObjectID && msg.Header.Opcode == displayEvError {
				return fmt.Errorf("wire: display error during roundtrip")
			}
			pending = append(pending, msg)
		case err := <-c.errs:
			return err
		case <-c.done:
			return fmt.Errorf("wire: connection closed")
		}
	}
}

// requeue pushes msgs back onto the events channel in order, dropping
// the oldest already-queued event to make room if it is full (the
// same slow-consumer policy readLoop applies).
func (c *Conn) requeue(msgs []Message) {
	for _, m := range msgs {
		select {
		case c.events <- m:
		default:
			select {
			case <-c.events:
			default:
			}
			c.events <- m
		}
	}
}

// DrainEvents returns every event currently buffered on Events()
// without blocking, for a caller that needs to synchronously inspect
// the traffic a just-completed Roundtrip produced before handing the
// connection off to a background dispatch loop.
func (c *Conn) DrainEvents() []Message {
	var out []Message
	for {
		select {
		case msg := <-c.events:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func (c *Conn) readLoop() {
	hdr := make([]byte, 8)
	for {
		if _, err := readFull(c.c, hdr); err != nil {
			select {
			case c.errs <- fmt.Errorf("wire: read header: %w", err):
			default:
			}
			close(c.done)
			return
		}
		objID := binary.LittleEndian.Uint32(hdr[0:4])
		opSize := binary.LittleEndian.Uint32(hdr[4:8])
		opcode := uint16(opSize & 0xffff)
		size := uint16(opSize >> 16)

		argLen := int(size) - 8
		if argLen < 0 {
			argLen = 0
		}
		args := make([]byte, argLen)
		if argLen > 0 {
			if _, err := readFull(c.c, args); err != nil {
				select {
				case c.errs <- fmt.Errorf("wire: read args: %w", err):
				default:
				}
				close(c.done)
				return
			}
		}

		msg := Message{Header: header{ObjectID: objID, Opcode: opcode, Size: size}, Args: args}

		if objID == c.registryID && opcode == registryEvGlobalRemove {
			if name, ok := decodeUint32(args); ok {
				c.mu.Lock()
				delete(c.globals, name)
				c.mu.Unlock()
			}
		}

		select {
		case c.events <- msg:
		default:
			// Slow consumer: drop the oldest queued event rather than
			// block the read loop, matching the bounded-queue policy
			// spec §5 describes for IPC subscribers.
			select {
			case <-c.events:
			default:
			}
			c.events <- msg
		}
	}
}

// Close tears down the underlying socket.
func (c *Conn) Close() error { return c.c.Close() }

func readFull(c net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func encodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func decodeUint32(b []byte) (uint32, bool) {
	if len(b) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

// encodeString encodes a Wayland "string" argument: a uint32 length
// (including the trailing NUL), the bytes, NUL, then padding to a
// 4-byte boundary.
func encodeString(s string) []byte {
	raw := append([]byte(s), 0)
	padded := padTo4(raw)
	out := encodeUint32(uint32(len(raw)))
	return append(out, padded...)
}

func padTo4(b []byte) []byte {
	pad := (4 - len(b)%4) % 4
	if pad == 0 {
		return b
	}
	return append(b, make([]byte, pad)...)
}

// decodeGlobal decodes a wl_registry.global event's arguments: name
// (uint32), interface (string), version (uint32).
func decodeGlobal(args []byte) (Global, bool) {
	if len(args) < 8 {
		return Global{}, false
	}
	name := binary.LittleEndian.Uint32(args[0:4])
	strLen := binary.LittleEndian.Uint32(args[4:8])
	start := 8
	end := start + int(strLen)
	if end > len(args) {
		return Global{}, false
	}
	iface := string(args[start : start+int(strLen)-1]) // drop trailing NUL
	padded := (4 - int(strLen)%4) % 4
	verOff := end + padded
	if verOff+4 > len(args) {
		return Global{}, false
	}
	version := binary.LittleEndian.Uint32(args[verOff : verOff+4])
	return Global{Name: name, Interface: iface, Version: version}, true
}
