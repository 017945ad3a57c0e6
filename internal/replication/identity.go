package replication

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"time"
)

// NewIdentity generates a 40-character hex replication id, the same
// shape real Redis uses for its run/replication ids. Grounded on the
// teacher's generateReplID (crypto/rand.Read of 20 bytes, hex-encoded).
func NewIdentity() string {
	b := make([]byte, 20) // 20 bytes -> 40 hex characters
	if _, err := rand.Read(b); err != nil {
		log.Printf("[replication] crypto/rand unavailable, falling back to a timestamp-derived id: %v", err)
		return fmt.Sprintf("%040d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
