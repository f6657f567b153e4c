package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/danmuck/edgedrop/internal/protocol"
	"github.com/danmuck/edgedrop/internal/protocol/codec"
	"github.com/danmuck/edgedrop/internal/testutil/testlog"
)

func TestEndToEndReport(t *testing.T) {
	testlog.Start(t)
	for _, name := range codec.Names() {
		sink := newMemSink()
		sent, received := runPair(t, testConfig(name), newSource("report.txt", []byte("Hello, world!")), sink)
		if !sent.Success() || !received.Success() {
			t.Fatalf("%s expected success, sent=%+v received=%+v", name, sent, received)
		}
		if sent.StoredName != received.StoredName {
			t.Fatalf("%s stored name mismatch sender=%q receiver=%q", name, sent.StoredName, received.StoredName)
		}
		data, ok := sink.Artifact(received.StoredName)
		if !ok || string(data) != "Hello, world!" {
			t.Fatalf("%s artifact mismatch ok=%v data=%q", name, ok, data)
		}
		if received.Filename != "report.txt" || received.Size != 13 || received.Bytes != 13 || sent.Bytes != 13 {
			t.Fatalf("%s unexpected accounting sent=%+v received=%+v", name, sent, received)
		}
		if received.State != StateSendResult || sent.State != StateAwaitResult {
			t.Fatalf("%s unexpected last states sent=%s received=%s", name, sent.State, received.State)
		}
	}
}

func TestEndToEndSizes(t *testing.T) {
	testlog.Start(t)
	sizes := []int{1, protocol.ReadChunk - 1, protocol.ReadChunk, protocol.ReadChunk + 1, 1 << 20, protocol.MaxFileSize}
	for _, name := range codec.Names() {
		for _, size := range sizes {
			payload := bytes.Repeat([]byte{0xA5}, size)
			payload[0] = 'x'
			payload[size-1] = 'y'
			sink := newMemSink()
			sent, received := runPair(t, testConfig(name), newSource("blob.bin", payload), sink)
			if !sent.Success() || !received.Success() {
				t.Fatalf("%s size=%d expected success, sent=%+v received=%+v", name, size, sent, received)
			}
			data, _ := sink.Artifact(received.StoredName)
			if !bytes.Equal(data, payload) {
				t.Fatalf("%s size=%d artifact length=%d", name, size, len(data))
			}
		}
	}
}

func TestOversizedDeclarationRejectedBeforePayload(t *testing.T) {
	testlog.Start(t)
	for _, name := range codec.Names() {
		sink := newMemSink()
		src := &bytesSource{name: "big.bin", size: 11000000, r: io.LimitReader(zeroReader{}, 11000000)}
		sent, received := runPair(t, testConfig(name), src, sink)
		if sent.Success() || sent.Reason != protocol.MsgNotApproved || !errors.Is(sent.Err, ErrNotApproved) {
			t.Fatalf("%s expected sender not approved, got %+v", name, sent)
		}
		if received.Reason != protocol.MsgInvalidSize || !errors.Is(received.Err, protocol.ErrSizeLimitExceeded) {
			t.Fatalf("%s expected invalid size on receiver, got %+v", name, received)
		}
		if sink.Begun() != 0 || received.Bytes != 0 || sent.Bytes != 0 {
			t.Fatalf("%s payload touched: begun=%d recv=%d sent=%d", name, sink.Begun(), received.Bytes, sent.Bytes)
		}
	}
}

func TestInvalidSizeFieldsOnWire(t *testing.T) {
	testlog.Start(t)
	fields := []string{"0", "-1", "+5", strconv.Itoa(protocol.MaxFileSize + 1), " 5", "5 5", "1,000"}
	for _, field := range fields {
		sink := newMemSink()
		var reply string
		res := runRawReceiver(t, sink, func(c rawClient) {
			c.expect("READY")
			c.send("a.txt", protocol.FilenameMarker, field, protocol.SizeMarker)
			reply = c.rest()
		})
		if reply != "ERROR: Invalid file size" {
			t.Fatalf("size %q: unexpected reply %q", field, reply)
		}
		if res.Success() || res.Reason != protocol.MsgInvalidSize || sink.Begun() != 0 {
			t.Fatalf("size %q: unexpected result %+v begun=%d", field, res, sink.Begun())
		}
	}
}

func TestInvalidFilenameOnWire(t *testing.T) {
	testlog.Start(t)
	for _, raw := range []string{"", "..", "dir/", "a\x00b"} {
		sink := newMemSink()
		var reply string
		res := runRawReceiver(t, sink, func(c rawClient) {
			c.expect("READY")
			c.send(raw, protocol.FilenameMarker)
			reply = c.rest()
		})
		if reply != "ERROR: Invalid filename format" {
			t.Fatalf("name %q: unexpected reply %q", raw, reply)
		}
		if res.Reason != protocol.MsgInvalidFilename || !errors.Is(res.Err, protocol.ErrInvalidFilename) {
			t.Fatalf("name %q: unexpected result %+v", raw, res)
		}
	}
}

func TestTraversalNameReducedToBasename(t *testing.T) {
	testlog.Start(t)
	for _, raw := range []string{"../../etc/passwd", `..\..\windows\passwd`, "/abs/passwd"} {
		sink := newMemSink()
		sent, received := runPair(t, testConfig(codec.NameFramed), newSource(raw, []byte("root")), sink)
		if !sent.Success() || !received.Success() {
			t.Fatalf("%q expected success, sent=%+v received=%+v", raw, sent, received)
		}
		if received.Filename != "passwd" || len(sink.begun) != 1 || sink.begun[0] != "passwd" {
			t.Fatalf("%q expected basename passwd, got filename=%q begun=%v", raw, received.Filename, sink.begun)
		}
	}
}

func TestTruncatedPayload(t *testing.T) {
	testlog.Start(t)
	sink := newMemSink()
	var reply string
	res := runRawReceiver(t, sink, func(c rawClient) {
		c.expect("READY")
		c.send("cut.bin", protocol.FilenameMarker, "100", protocol.SizeMarker)
		c.expect("START_TRANSFER")
		c.send("0123456789")
		if err := closeWrite(c); err != nil {
			t.Fatalf("close write: %v", err)
		}
		reply = c.rest()
	})
	if res.Success() || res.Reason != protocol.MsgIncomplete || !errors.Is(res.Err, protocol.ErrConnectionClosed) {
		t.Fatalf("expected incomplete transfer, got %+v", res)
	}
	if res.Bytes != 10 {
		t.Fatalf("expected 10 bytes received, got %d", res.Bytes)
	}
	if sink.aborted != 1 || len(sink.stored) != 0 {
		t.Fatalf("expected aborted upload and no artifact, aborted=%d stored=%d", sink.aborted, len(sink.stored))
	}
	if reply != "ERROR: incomplete file transfer" {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestSinkBeginFailure(t *testing.T) {
	testlog.Start(t)
	sink := newMemSink()
	sink.beginErr = errors.New("disk full")
	var reply string
	res := runRawReceiver(t, sink, func(c rawClient) {
		c.expect("READY")
		c.send("a.txt", protocol.FilenameMarker, "5", protocol.SizeMarker)
		reply = c.rest()
	})
	if reply != "ERROR: file save failed" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if res.Reason != protocol.MsgSaveFailed || !errors.Is(res.Err, protocol.ErrPersistenceFailure) {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSinkWriteFailure(t *testing.T) {
	testlog.Start(t)
	sink := newMemSink()
	sink.writeErr = errors.New("io error")
	sink.failAfter = 0
	sent, received := runPair(t, testConfig(codec.NameFramed), newSource("a.bin", bytes.Repeat([]byte("q"), 9000)), sink)
	if received.Reason != protocol.MsgSaveFailed || !errors.Is(received.Err, protocol.ErrPersistenceFailure) {
		t.Fatalf("unexpected receiver result %+v", received)
	}
	if sent.Success() {
		t.Fatalf("sender should fail, got %+v", sent)
	}
	if sink.aborted != 1 {
		t.Fatalf("expected one aborted upload, got %d", sink.aborted)
	}
}

func TestSenderServerNotReady(t *testing.T) {
	testlog.Start(t)
	client, server := tcpPair(t)
	go func() {
		_, _ = server.Write([]byte("HELLO"))
		_ = server.Close()
	}()
	res := NewSender(client, newSource("a.txt", []byte("x")), testConfig(codec.NameDelimited)).Run(context.Background())
	if res.Success() || res.Reason != protocol.MsgNotReady || !errors.Is(res.Err, ErrNotReady) {
		t.Fatalf("expected server not ready, got %+v", res)
	}
}

func TestSenderRemoteErrorIsReason(t *testing.T) {
	testlog.Start(t)
	client, server := tcpPair(t)
	go func() {
		defer server.Close()
		handshake := "a.txt" + protocol.FilenameMarker + "1" + protocol.SizeMarker
		_, _ = server.Write([]byte("READY"))
		if _, err := io.ReadFull(server, make([]byte, len(handshake))); err != nil {
			return
		}
		_, _ = server.Write([]byte("START_TRANSFER"))
		if _, err := io.ReadFull(server, make([]byte, 1)); err != nil {
			return
		}
		_, _ = server.Write([]byte("ERROR: file save failed"))
	}()
	res := NewSender(client, newSource("a.txt", []byte("x")), testConfig(codec.NameDelimited)).Run(context.Background())
	if res.Success() || res.Reason != "ERROR: file save failed" || !errors.Is(res.Err, ErrRemoteFailure) {
		t.Fatalf("expected remote failure reason, got %+v", res)
	}
}

// writeLimitConn fails every Write after the first ok calls.
type writeLimitConn struct {
	net.Conn
	ok int
	n  int
}

func (c *writeLimitConn) Write(p []byte) (int, error) {
	if c.n >= c.ok {
		return 0, errors.New("write: broken pipe")
	}
	c.n++
	return c.Conn.Write(p)
}

func TestSenderPayloadWriteFailureIsConnectionLost(t *testing.T) {
	testlog.Start(t)
	client, server := tcpPair(t)
	go func() {
		defer server.Close()
		handshake := "a.txt" + protocol.FilenameMarker + "5" + protocol.SizeMarker
		_, _ = server.Write([]byte("READY"))
		if _, err := io.ReadFull(server, make([]byte, len(handshake))); err != nil {
			return
		}
		_, _ = server.Write([]byte("START_TRANSFER"))
		_, _ = io.Copy(io.Discard, server)
	}()
	// filename and size go out; the first payload write fails
	conn := &writeLimitConn{Conn: client, ok: 2}
	res := NewSender(conn, newSource("a.txt", []byte("hello")), testConfig(codec.NameDelimited)).Run(context.Background())
	if res.Success() || res.Reason != protocol.MsgConnectionLost || !errors.Is(res.Err, protocol.ErrConnectionClosed) {
		t.Fatalf("expected connection lost, got %+v", res)
	}
	if res.State != StateStreamPayload || res.Bytes != 0 {
		t.Fatalf("expected failure while streaming with no bytes sent, got state=%s bytes=%d", res.State, res.Bytes)
	}
}

func TestSenderShortSource(t *testing.T) {
	testlog.Start(t)
	sink := newMemSink()
	src := &bytesSource{name: "short.bin", size: 10, r: bytes.NewReader([]byte("12345"))}
	sent, received := runPair(t, testConfig(codec.NameDelimited), src, sink)
	if sent.Reason != protocol.MsgIncomplete || !errors.Is(sent.Err, ErrShortSource) {
		t.Fatalf("expected short source failure, got %+v", sent)
	}
	if received.Reason != protocol.MsgIncomplete || len(sink.stored) != 0 {
		t.Fatalf("expected receiver incomplete, got %+v", received)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	testlog.Start(t)
	client, server := tcpPair(t)
	go func() {
		_ = server.Close()
	}()
	s := NewSender(client, newSource("a.txt", []byte("x")), testConfig(codec.NameFramed))
	first := s.Run(context.Background())
	second := s.Run(context.Background())
	if first.SessionID != second.SessionID || first.Reason != second.Reason || first.Finished != second.Finished {
		t.Fatalf("expected identical results, first=%+v second=%+v", first, second)
	}
	if s.State() != StateFailed {
		t.Fatalf("expected FAILED state, got %s", s.State())
	}
}

func TestContextCancelUnblocksSession(t *testing.T) {
	testlog.Start(t)
	_, server := tcpPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() {
		done <- NewReceiver(server, newMemSink(), testConfig(codec.NameFramed)).Run(ctx)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case res := <-done:
		if res.Success() || !errors.Is(res.Err, context.Canceled) {
			t.Fatalf("expected cancellation failure, got %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("session did not unblock on cancel")
	}
}

func TestIdleTimeout(t *testing.T) {
	testlog.Start(t)
	_, server := tcpPair(t)
	cfg := testConfig(codec.NameFramed)
	cfg.IdleTimeout = 100 * time.Millisecond
	res := NewReceiver(server, newMemSink(), cfg).Run(context.Background())
	if res.Success() || res.Reason != protocol.MsgConnectionLost || !errors.Is(res.Err, os.ErrDeadlineExceeded) {
		t.Fatalf("expected idle timeout, got %+v", res)
	}
	if res.State != StateRecvFilename {
		t.Fatalf("expected timeout while reading filename, got %s", res.State)
	}
}

func TestFramedFilenameKeepsMarkerText(t *testing.T) {
	testlog.Start(t)
	sink := newMemSink()
	name := "odd:FILENAME_END:name.txt"
	sent, received := runPair(t, testConfig(codec.NameFramed), newSource(name, []byte("ok")), sink)
	if !sent.Success() || received.Filename != name {
		t.Fatalf("expected marker text preserved, sent=%+v received=%+v", sent, received)
	}
}

func TestNilEndpoints(t *testing.T) {
	testlog.Start(t)
	client, server := tcpPair(t)
	if res := NewSender(client, nil, DefaultConfig()).Run(context.Background()); !errors.Is(res.Err, ErrNilEndpoint) {
		t.Fatalf("expected ErrNilEndpoint for sender, got %+v", res)
	}
	if res := NewReceiver(server, nil, DefaultConfig()).Run(context.Background()); !errors.Is(res.Err, ErrNilEndpoint) {
		t.Fatalf("expected ErrNilEndpoint for receiver, got %+v", res)
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func closeWrite(c rawClient) error {
	type halfCloser interface{ CloseWrite() error }
	if hc, ok := c.conn.(halfCloser); ok {
		return hc.CloseWrite()
	}
	return c.conn.Close()
}
