// Package replication implements the single-leader replication
// subsystem: role/roster bookkeeping, the slave-to-master handshake,
// master-side write fan-out, and offset health checking.
package replication

import (
	"sync"
	"sync/atomic"
)

// Replicator holds the process's replication role, self identity, its
// view of the master (when a slave), its replica roster (when a
// master), and the broadcast queue write commands are enqueued on for
// the Distributor. It is guarded by its own mutex, held disjointly
// from the Database lock to avoid deadlock.
type Replicator struct {
	mu       sync.Mutex
	role     Role
	selfID   string
	master   *Member
	replicas map[string]*Member

	queue  *unboundedQueue
	offset atomic.Uint32
}

// New builds a Replicator for the given role. selfAddress is this
// process's own "host:port", recorded as the address of the
// placeholder master member until a slave's handshake adopts the real
// master.
func New(role Role, selfAddress string) *Replicator {
	selfID := NewIdentity()
	return &Replicator{
		role: role,
		// Until a slave completes its handshake, "master" is a
		// placeholder referring to this process's own identity —
		// matches the source's Replicator::new, which seeds it with
		// config.repl_id so INFO's master_replid is meaningful even
		// on a plain master.
		selfID:   selfID,
		master:   NewMember(Master, selfID, selfAddress),
		replicas: make(map[string]*Member),
		queue:    newUnboundedQueue(),
	}
}

// RoleString returns "master" or "slave", the literal INFO replication
// and REPLCONF field value.
func (r *Replicator) RoleString() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.role.String()
}

// IsMaster reports whether this process is the replication leader.
func (r *Replicator) IsMaster() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.role == Master
}

// IsSlave reports whether this process replicates from an upstream
// master.
func (r *Replicator) IsSlave() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.role == Slave
}

// SelfID returns this process's own replication id.
func (r *Replicator) SelfID() string {
	return r.selfID
}

// Master returns a copy of the current master member (its id may be
// the placeholder identity until a slave completes its handshake).
func (r *Replicator) Master() Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Member{ID: r.master.ID, Role: r.master.Role, Address: r.master.Address}
}

// adoptMaster replaces the tracked master identity, called once the
// slave's handshake receives the FULLRESYNC reply.
func (r *Replicator) adoptMaster(id, address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.master = NewMember(Master, id, address)
}

// JoinReplica registers address as a replica of this master. It is an
// error to call this on a slave (a slave cannot itself be a master to
// further replicas — chained replication is out of scope).
func (r *Replicator) JoinReplica(address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.role == Slave {
		return errCannotJoinSlaveToSlave(r.master.Address)
	}

	if _, exists := r.replicas[address]; !exists {
		r.replicas[address] = NewMember(Slave, "", address)
	}
	return nil
}

// Replicas returns a snapshot of the current replica roster.
func (r *Replicator) Replicas() []*Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Member, 0, len(r.replicas))
	for _, m := range r.replicas {
		out = append(out, m)
	}
	return out
}

// ReplicaCount returns the number of registered replicas.
func (r *Replicator) ReplicaCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.replicas)
}

// AddOffset increments the cumulative replication byte offset by n,
// called by the connection handler after every processed write-command
// frame.
func (r *Replicator) AddOffset(n int) {
	r.offset.Add(uint32(n))
}

// Offset returns the cumulative replication byte offset.
func (r *Replicator) Offset() uint32 {
	return r.offset.Load()
}
