package replication

import (
	"fmt"
	"net"
	"sync"

	"rkv/internal/resp"
)

// Member is a peer in the replication topology: the master as seen by
// a slave, or a registered replica as seen by the master.
type Member struct {
	ID      string
	Role    Role
	Address string

	mu     sync.Mutex
	conn   net.Conn
	reader *resp.FrameReader
}

// NewMember builds a Member with no live connection yet.
func NewMember(role Role, id, address string) *Member {
	return &Member{Role: role, ID: id, Address: address}
}

// Connect returns the member's live outbound connection, dialing it
// lazily on first use and reusing it afterward. Matches the source's
// `connect` on ReplicationMember.
func (m *Member) Connect() (net.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		conn, err := net.Dial("tcp", m.Address)
		if err != nil {
			return nil, fmt.Errorf("replication: dialing %s: %w", m.Address, err)
		}
		m.conn = conn
		m.reader = resp.NewFrameReader(conn)
	}
	return m.conn, nil
}

// Reader returns the FrameReader paired with the member's current
// connection, preserving any bytes buffered past the last frame
// boundary across calls. Connect must be called first.
func (m *Member) Reader() *resp.FrameReader {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reader
}

// Reset drops the cached connection, e.g. after a write to it failed,
// so the next Connect call dials fresh.
func (m *Member) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
		m.reader = nil
	}
}
