package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sunsetr/sunsetr/internal/apperr"
)

func jsonMarshal(v any) ([]byte, error) { return json.Marshal(v) }

// requestFrameTimeout is the read deadline for the initial request
// line on a freshly-accepted connection (spec §5: "IPC client sockets
// have a 5-second read timeout for request framing").
const requestFrameTimeout = 5 * time.Second

// subscriberQueueSize is the default bounded outgoing queue depth per
// follower (spec §4.I: "bounded (default 64 frames)").
const subscriberQueueSize = 64

// Command is one decoded request handed to the controller's single-
// consumer channel, along with how to reply. Reply must be called
// exactly once per Command.
type Command struct {
	Request Request
	Reply   func(Response)
	// Promote is non-nil only for a status_follow request: calling it
	// registers the connection as a Subscriber and returns it, after
	// which the controller (not this package) owns pushing events to
	// it via Server.Broadcast.
	Promote func() *Subscriber
}

// Subscriber is an accepted connection in "follow" mode (spec §3's
// IpcSubscriber): its own bounded outgoing queue, fed by Broadcast.
type Subscriber struct {
	ID       string
	outgoing chan []byte
	conn     net.Conn
	closed   chan struct{}
	closeOne sync.Once
}

func (s *Subscriber) writeLoop(logger *slog.Logger) {
	w := bufio.NewWriter(s.conn)
	for {
		select {
		case frame, ok := <-s.outgoing:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				s.close(logger, "write error")
				return
			}
			if err := w.Flush(); err != nil {
				s.close(logger, "write error")
				return
			}
		case <-s.closed:
			return
		}
	}
}

func (s *Subscriber) close(logger *slog.Logger, reason string) {
	s.closeOne.Do(func() {
		close(s.closed)
		s.conn.Close()
		if logger != nil {
			logger.Debug("subscriber disconnected", "subscriber_id", s.ID, "reason", reason)
		}
	})
}

// Server owns the listening socket and the vector of subscribers
// (spec §3: "I owns the listening socket and the vector of
// subscribers; it passes received commands to H via a single-consumer
// channel").
type Server struct {
	listener net.Listener
	commands chan Command
	logger   *slog.Logger

	mu          sync.Mutex
	subscribers map[string]*Subscriber
}

// Listen creates the Unix socket at path with 0600 permissions (spec
// §5), removing any stale socket file first, and starts the accept
// goroutine. Commands returns the channel the controller reads from.
func Listen(path string, logger *slog.Logger) (*Server, error) {
	os.Remove(path)

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, apperr.Wrap(apperr.Ipc, "listen", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		l.Close()
		return nil, apperr.Wrap(apperr.Ipc, "chmod", err)
	}

	s := &Server{
		listener:    l,
		commands:    make(chan Command, 32),
		logger:      logger,
		subscribers: make(map[string]*Subscriber),
	}
	go s.acceptLoop()
	return s, nil
}

// Commands returns the single-consumer channel of decoded requests.
func (s *Server) Commands() <-chan Command { return s.commands }

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	conn.SetReadDeadline(time.Now().Add(requestFrameTimeout))
	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		conn.Close()
		return
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		writeOnce(conn, Err("ipc", fmt.Sprintf("malformed request: %v", err)))
		conn.Close()
		return
	}

	replyCh := make(chan Response, 1)
	cmd := Command{
		Request: req,
		Reply: func(r Response) {
			select {
			case replyCh <- r:
			default:
			}
		},
	}

	if req.Cmd == "status_follow" {
		cmd.Promote = func() *Subscriber {
			sub := &Subscriber{
				ID:       uuid.New().String(),
				outgoing: make(chan []byte, subscriberQueueSize),
				conn:     conn,
				closed:   make(chan struct{}),
			}
			s.mu.Lock()
			s.subscribers[sub.ID] = sub
			s.mu.Unlock()
			conn.SetReadDeadline(time.Time{})
			go sub.writeLoop(s.logger)
			go s.watchDisconnect(sub)
			return sub
		}
	}

	s.commands <- cmd

	resp := <-replyCh
	conn.SetWriteDeadline(time.Now().Add(requestFrameTimeout))
	writeOnce(conn, resp)

	if req.Cmd != "status_follow" {
		conn.Close()
	}
}

// watchDisconnect notices when a promoted connection's peer closes it
// (a read of 0 bytes / EOF) and removes it from the subscriber set.
func (s *Server) watchDisconnect(sub *Subscriber) {
	buf := make([]byte, 1)
	sub.conn.SetReadDeadline(time.Time{})
	for {
		if _, err := sub.conn.Read(buf); err != nil {
			s.removeSubscriber(sub.ID)
			sub.close(s.logger, "client disconnected")
			return
		}
	}
}

func (s *Server) removeSubscriber(id string) {
	s.mu.Lock()
	delete(s.subscribers, id)
	s.mu.Unlock()
}

func writeOnce(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	data = append(data, '\n')
	conn.Write(data)
}

// Broadcast sends event to every current subscriber's outgoing queue.
// A subscriber whose queue is full is dropped with a slow_consumer
// close reason rather than blocking the broadcaster (spec §4.I).
func (s *Server) Broadcast(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	subs := make([]*Subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.outgoing <- data:
		default:
			s.removeSubscriber(sub.ID)
			sub.close(s.logger, "slow_consumer")
		}
	}
}

// SubscriberCount reports the current number of followers.
func (s *Server) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// Close stops accepting new connections, disconnects every
// subscriber, and unlinks the socket file (spec §5: "unlinked on
// clean exit").
func (s *Server) Close() error {
	err := s.listener.Close()
	s.mu.Lock()
	subs := make([]*Subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.subscribers = make(map[string]*Subscriber)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.close(s.logger, "server closing")
	}
	if unixAddr, ok := s.listener.Addr().(*net.UnixAddr); ok {
		os.Remove(unixAddr.Name)
	}
	return apperr.Wrap(apperr.Ipc, "close", err)
}
