package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/edgedrop/internal/protocol/codec"
)

func tcpPair(t *testing.T) (client net.Conn, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			accepted <- nil
			return
		}
		accepted <- c
	}()
	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	server = <-accepted
	if server == nil {
		t.Fatalf("accept failed")
	}
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client, server
}

func testConfig(name string) Config {
	cfg := DefaultConfig()
	c, err := codec.ByName(name, cfg.Limits)
	if err != nil {
		panic(err)
	}
	cfg.Codec = c
	return cfg
}

func runPair(t *testing.T, cfg Config, src Source, sink Sink) (sent Result, received Result) {
	t.Helper()
	client, server := tcpPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		done <- NewReceiver(server, sink, cfg).Run(ctx)
	}()
	sent = NewSender(client, src, cfg).Run(ctx)
	received = <-done
	return sent, received
}

type bytesSource struct {
	name string
	size uint64
	r    io.Reader
}

func newSource(name string, data []byte) *bytesSource {
	return &bytesSource{name: name, size: uint64(len(data)), r: bytes.NewReader(data)}
}

func (s *bytesSource) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *bytesSource) Name() string               { return s.name }
func (s *bytesSource) Size() uint64               { return s.size }

// memSink records uploads in memory.
type memSink struct {
	mu        sync.Mutex
	begun     []string
	aborted   int
	stored    map[string][]byte
	beginErr  error
	writeErr  error
	failAfter int
}

func newMemSink() *memSink {
	return &memSink{stored: make(map[string][]byte)}
}

func (m *memSink) Begin(name string, size uint64) (Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	m.begun = append(m.begun, name)
	return &memUpload{sink: m, name: name, size: size}, nil
}

func (m *memSink) Begun() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.begun)
}

func (m *memSink) Artifact(stored string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.stored[stored]
	return b, ok
}

type memUpload struct {
	sink *memSink
	name string
	size uint64
	buf  bytes.Buffer
}

func (u *memUpload) Write(p []byte) (int, error) {
	if u.sink.writeErr != nil && u.buf.Len()+len(p) > u.sink.failAfter {
		return 0, u.sink.writeErr
	}
	return u.buf.Write(p)
}

func (u *memUpload) Commit() (string, error) {
	if uint64(u.buf.Len()) != u.size {
		return "", errors.New("memsink: size mismatch")
	}
	u.sink.mu.Lock()
	defer u.sink.mu.Unlock()
	stored := fmt.Sprintf("%03d_%s", len(u.sink.stored), u.name)
	u.sink.stored[stored] = append([]byte(nil), u.buf.Bytes()...)
	return stored, nil
}

func (u *memUpload) Abort() error {
	u.sink.mu.Lock()
	defer u.sink.mu.Unlock()
	u.sink.aborted++
	return nil
}

// rawClient drives a receiver with hand-written delimited bytes.
type rawClient struct {
	t    *testing.T
	conn net.Conn
}

func (c rawClient) expect(token string) {
	c.t.Helper()
	buf := make([]byte, len(token))
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		c.t.Fatalf("read %q: %v", token, err)
	}
	if string(buf) != token {
		c.t.Fatalf("expected %q, got %q", token, buf)
	}
}

func (c rawClient) send(parts ...string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(strings.Join(parts, ""))); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c rawClient) rest() string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	// a reset after the final token is tolerated; only the bytes matter
	b, _ := io.ReadAll(c.conn)
	return string(b)
}

func runRawReceiver(t *testing.T, sink Sink, script func(c rawClient)) Result {
	t.Helper()
	client, server := tcpPair(t)
	cfg := testConfig(codec.NameDelimited)
	done := make(chan Result, 1)
	go func() {
		done <- NewReceiver(server, sink, cfg).Run(context.Background())
	}()
	script(rawClient{t: t, conn: client})
	_ = client.Close()
	select {
	case res := <-done:
		return res
	case <-time.After(10 * time.Second):
		t.Fatalf("receiver did not finish")
	}
	return Result{}
}
