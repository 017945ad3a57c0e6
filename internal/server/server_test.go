package server

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"rkv/internal/config"
	"rkv/internal/replication"
	"rkv/internal/store"
)

func startTestServer(t *testing.T) (addr string, shutdown func()) {
	t.Helper()

	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	db := store.NewDatabase()
	repl := replication.New(replication.Master, "127.0.0.1:0")

	srv := New(cfg, db, repl)

	// Start listens on cfg.Port, so reserve a free ephemeral port,
	// release it, and point cfg.Port at it before Start binds.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	cfg.Port = listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	go func() {
		close(started)
		srv.Start(ctx)
	}()
	<-started
	time.Sleep(50 * time.Millisecond)

	return cfg.Host + ":" + itoa(cfg.Port), func() {
		cancel()
		time.Sleep(50 * time.Millisecond)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestServerPingAndSetGet(t *testing.T) {
	addr, shutdown := startTestServer(t)
	defer shutdown()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)

	send := func(frame string) string {
		if _, err := conn.Write([]byte(frame)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("ReadString: %v", err)
		}
		return strings.TrimRight(line, "\r\n")
	}

	if got := send("*1\r\n$4\r\nPING\r\n"); got != "+PONG" {
		t.Fatalf("PING reply = %q, want +PONG", got)
	}

	if got := send("*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n"); got != "+OK" {
		t.Fatalf("SET reply = %q, want +OK", got)
	}

	if got := send("*2\r\n$3\r\nGET\r\n$1\r\nk\r\n"); got != "$1" {
		t.Fatalf("GET reply first line = %q, want $1", got)
	}
	value, _ := reader.ReadString('\n')
	if strings.TrimRight(value, "\r\n") != "v" {
		t.Fatalf("GET value = %q, want v", value)
	}
}

func TestServerKeepsConnectionOpenAfterProtocolError(t *testing.T) {
	addr, shutdown := startTestServer(t)
	defer shutdown()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)

	send := func(frame string) string {
		if _, err := conn.Write([]byte(frame)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("ReadString: %v", err)
		}
		return strings.TrimRight(line, "\r\n")
	}

	// An unknown type byte is a protocol error, not an I/O failure —
	// the server must reply with an Error and keep the connection open
	// for the next, well-formed command.
	got := send("@not-a-valid-frame\r\n")
	if !strings.HasPrefix(got, "-") {
		t.Fatalf("malformed frame reply = %q, want a RESP Error", got)
	}

	if got := send("*1\r\n$4\r\nPING\r\n"); got != "+PONG" {
		t.Fatalf("PING after protocol error = %q, want +PONG", got)
	}
}

func TestServerShutdownClosesListener(t *testing.T) {
	addr, shutdown := startTestServer(t)
	shutdown()

	if _, err := net.DialTimeout("tcp", addr, 200*time.Millisecond); err == nil {
		t.Fatal("expected dial to fail after shutdown")
	}
}
