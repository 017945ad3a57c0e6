package replication

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"rkv/internal/resp"
)

// Handshake drives the slave side of the master/replica handshake:
// PING, REPLCONF listening-port, REPLCONF capa psync2, PSYNC ? -1,
// then the File-framed RDB baseline.
func (r *Replicator) Handshake(masterAddress string, selfPort int, rdbPath string) error {
	if r.IsMaster() {
		return nil
	}

	conn, err := net.Dial("tcp", masterAddress)
	if err != nil {
		return fmt.Errorf("replication: dialing master %s: %w", masterAddress, err)
	}
	defer conn.Close()

	reader := resp.NewFrameReader(conn)

	if _, err := sendCommand(conn, reader, "PING"); err != nil {
		return fmt.Errorf("replication handshake PING: %w", err)
	}

	if _, err := sendCommand(conn, reader, "REPLCONF", "listening-port", strconv.Itoa(selfPort)); err != nil {
		return fmt.Errorf("replication handshake REPLCONF listening-port: %w", err)
	}

	if _, err := sendCommand(conn, reader, "REPLCONF", "capa", "psync2"); err != nil {
		return fmt.Errorf("replication handshake REPLCONF capa: %w", err)
	}

	psyncReply, err := sendCommand(conn, reader, "PSYNC", "?", "-1")
	if err != nil {
		return fmt.Errorf("replication handshake PSYNC: %w", err)
	}

	masterID, err := parseFullResync(psyncReply)
	if err != nil {
		return fmt.Errorf("replication handshake: %w", err)
	}
	r.adoptMaster(masterID, masterAddress)

	blob, err := reader.ReadRawFile()
	if err != nil {
		return fmt.Errorf("replication handshake: receiving RDB baseline: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(rdbPath), 0o755); err != nil {
		return fmt.Errorf("replication handshake: %w", err)
	}
	if err := os.WriteFile(rdbPath, blob, 0o644); err != nil {
		return fmt.Errorf("replication handshake: writing %s: %w", rdbPath, err)
	}

	return nil
}

// sendCommand writes command as a RESP array and reads back a single
// reply Operation, as the source's Client.send does. reader must be
// the same FrameReader for the whole handshake so bytes read ahead of
// a frame boundary (e.g. the start of the RDB blob) aren't dropped.
func sendCommand(conn net.Conn, reader *resp.FrameReader, command ...string) (resp.Operation, error) {
	frame, err := resp.Serialize(resp.BulkStrings(command...))
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(frame); err != nil {
		return nil, err
	}
	return reader.ReadOperation()
}

// parseFullResync extracts the master replication id from a
// "+FULLRESYNC <id> <offset>" reply.
func parseFullResync(op resp.Operation) (string, error) {
	reply, ok := op.(resp.SimpleString)
	if !ok {
		return "", fmt.Errorf("expected +FULLRESYNC reply, got %T", op)
	}

	fields := strings.Fields(string(reply))
	if len(fields) != 3 || fields[0] != "FULLRESYNC" {
		return "", fmt.Errorf("malformed FULLRESYNC reply: %q", reply)
	}
	return fields[1], nil
}
