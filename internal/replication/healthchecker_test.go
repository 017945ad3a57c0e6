package replication

import (
	"net"
	"testing"
	"time"

	"rkv/internal/resp"
)

// fakeReplica accepts one connection, reads whatever frame it is sent,
// and replies with the given operation.
func fakeReplica(t *testing.T, reply resp.Operation) *Member {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		defer listener.Close()

		reader := resp.NewFrameReader(conn)
		if _, err := reader.ReadOperation(); err != nil {
			return
		}
		out, err := resp.Serialize(reply)
		if err != nil {
			return
		}
		conn.Write(out)
	}()

	return NewMember(Slave, "replica-id", listener.Addr().String())
}

func TestPollOneParsesAckOffset(t *testing.T) {
	replica := fakeReplica(t, resp.BulkStrings("REPLCONF", "ACK", "42"))

	frame, err := resp.Serialize(resp.BulkStrings("REPLCONF", "GETACK", "*"))
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	offset, err := pollOne(replica, frame)
	if err != nil {
		t.Fatalf("pollOne: %v", err)
	}
	if offset != 42 {
		t.Fatalf("offset = %d, want 42", offset)
	}
}

func TestPollOneRejectsMalformedReply(t *testing.T) {
	replica := fakeReplica(t, resp.SimpleString("OK"))

	frame, err := resp.Serialize(resp.BulkStrings("REPLCONF", "GETACK", "*"))
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	if _, err := pollOne(replica, frame); err == nil {
		t.Fatal("expected an error for a non-Array reply")
	}
}

func TestHealthCheckerNoopOnSlave(t *testing.T) {
	r := New(Slave, "127.0.0.1:7001")
	h := NewHealthChecker(r, time.Millisecond)
	stop := make(chan struct{})
	defer close(stop)

	h.Run(stop)
	// No assertion beyond "this does not panic or block" — Run must
	// return immediately on a slave without spawning the poll loop.
}

func TestPollAllLogsEachReplica(t *testing.T) {
	r := New(Master, "127.0.0.1:6378")
	replica := fakeReplica(t, resp.BulkStrings("REPLCONF", "ACK", "7"))
	if err := r.JoinReplica(replica.Address); err != nil {
		t.Fatalf("JoinReplica: %v", err)
	}

	h := NewHealthChecker(r, time.Millisecond)
	h.pollAll()
}
