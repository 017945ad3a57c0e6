package replication

import (
	"log"
	"strconv"
	"time"

	"rkv/internal/resp"
)

// HealthChecker periodically asks every replica to report its applied
// offset via REPLCONF GETACK * and logs each replica's acked offset, or
// the error for a replica that did not answer. It does not compare
// offsets to detect lagging replicas, and it never removes a replica
// from the roster on its own; that stays an operator/router decision.
type HealthChecker struct {
	replicator *Replicator
	interval   time.Duration
}

// NewHealthChecker builds a HealthChecker that polls every interval.
func NewHealthChecker(replicator *Replicator, interval time.Duration) *HealthChecker {
	return &HealthChecker{replicator: replicator, interval: interval}
}

// Run launches the polling loop in a goroutine. It is a no-op on a
// slave. stop ends the loop when closed.
func (h *HealthChecker) Run(stop <-chan struct{}) {
	if h.replicator.IsSlave() {
		return
	}
	go h.loop(stop)
}

func (h *HealthChecker) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.pollAll()
		}
	}
}

func (h *HealthChecker) pollAll() {
	getack := resp.BulkStrings("REPLCONF", "GETACK", "*")
	frame, err := resp.Serialize(getack)
	if err != nil {
		log.Printf("[healthcheck] cannot serialize GETACK: %v", err)
		return
	}

	for _, replica := range h.replicator.Replicas() {
		offset, err := pollOne(replica, frame)
		if err != nil {
			log.Printf("[healthcheck] replica %s did not answer: %v", replica.Address, err)
			continue
		}
		log.Printf("[healthcheck] replica %s acked offset %d", replica.Address, offset)
	}
}

func pollOne(replica *Member, frame []byte) (uint64, error) {
	conn, err := replica.Connect()
	if err != nil {
		return 0, err
	}

	if _, err := conn.Write(frame); err != nil {
		replica.Reset()
		return 0, err
	}

	reply, err := replica.Reader().ReadOperation()
	if err != nil {
		replica.Reset()
		return 0, err
	}

	arr, ok := reply.(resp.Array)
	if !ok || len(arr) < 3 {
		return 0, errMalformedAck
	}

	offsetText, err := resp.OnlyBulk(arr[2])
	if err != nil {
		return 0, err
	}

	offset, err := strconv.ParseUint(offsetText, 10, 64)
	if err != nil {
		return 0, err
	}
	return offset, nil
}
