package store

import (
	"math/rand"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// globMetacharacters are the characters search treats as pattern
// syntax. A pattern containing none of them can only ever match
// itself, so Search can skip glob compilation entirely.
const globMetacharacters = "*?[]-^"

// Database owns the keyspace: value storage, per-key TTL metadata, and
// a key list used for O(1) random sampling (Expiration) and KEYS
// iteration. The list is in insertion order until a Del, which moves
// the last key into the freed slot.
//
// It is guarded by a single mutex. Every public method acquires the
// lock only for its own span and releases it before returning, so a
// caller about to write to a socket never holds the lock across I/O.
type Database struct {
	mu       sync.Mutex
	storage  map[string][]byte
	metadata map[string]Metadata
	keys     []string
	index    map[string]int // key -> position in keys, for O(1) Del
}

// NewDatabase returns an empty Database.
func NewDatabase() *Database {
	return &Database{
		storage:  make(map[string][]byte),
		metadata: make(map[string]Metadata),
		keys:     make([]string, 0),
		index:    make(map[string]int),
	}
}

// Set upserts value and metadata for key. Re-setting an existing key
// replaces its value and metadata without duplicating it in the key
// list (the source has a duplicate-append bug here; this implementation
// keeps keys duplicate-free per the corrected design).
func (d *Database) Set(key string, value []byte, meta Metadata) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.storage[key] = value
	d.metadata[key] = meta
	if _, exists := d.index[key]; !exists {
		d.index[key] = len(d.keys)
		d.keys = append(d.keys, key)
	}
}

// Get returns a copy of key's value, or ok=false if the key is absent
// or has expired. An expired key is lazily deleted on this access.
func (d *Database) Get(key string) (value []byte, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.getLocked(key)
}

func (d *Database) getLocked(key string) ([]byte, bool) {
	if d.isExpiredLocked(key) {
		d.delLocked(key)
		return nil, false
	}

	v, ok := d.storage[key]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

// Del removes key from all three containers. Deleting a missing key is
// a no-op.
func (d *Database) Del(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delLocked(key)
}

func (d *Database) delLocked(key string) {
	if _, exists := d.index[key]; !exists {
		return
	}

	pos := d.index[key]
	last := len(d.keys) - 1
	d.keys[pos] = d.keys[last]
	d.index[d.keys[pos]] = pos
	d.keys = d.keys[:last]

	delete(d.storage, key)
	delete(d.metadata, key)
	delete(d.index, key)
}

// TryExpire deletes key if its metadata says it has expired, reporting
// whether it did. A present-but-unexpired or absent key reports false.
func (d *Database) TryExpire(key string) (wasExpired bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isExpiredLocked(key) {
		d.delLocked(key)
		return true
	}
	return false
}

func (d *Database) isExpiredLocked(key string) bool {
	meta, ok := d.metadata[key]
	if !ok {
		return false
	}
	return meta.IsExpired()
}

// SetExpire replaces key's metadata if the key currently exists and has
// not yet expired, returning the new absolute millisecond deadline. If
// the key is missing (or just expired), it returns ok=false.
func (d *Database) SetExpire(key string, meta Metadata) (expireAtMs uint64, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.getLocked(key); !exists {
		return 0, false
	}
	d.metadata[key] = meta
	return meta.ExpireAtMs, true
}

// TTL returns -2 if key is absent, -1 if present but never expiring,
// else the remaining whole seconds until expiration. It lazily expires
// key first.
func (d *Database) TTL(key string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.getLocked(key); !exists {
		return -2
	}

	meta := d.metadata[key]
	seconds, ok := meta.ExpireDuration()
	if !ok {
		return -1
	}
	return seconds
}

// Search returns the keys matching pattern. "*" returns every key (a
// snapshot of the key list, in its current order); a pattern with no glob
// metacharacters can only match itself; any other pattern is compiled
// with the glob library and matched against every key. Keys found
// expired during the scan are silently dropped from the result rather
// than raising an error (a racing delete between snapshot and filter
// must never surface as a failure).
func (d *Database) Search(pattern string) []string {
	if pattern == "*" {
		d.mu.Lock()
		snapshot := make([]string, len(d.keys))
		copy(snapshot, d.keys)
		d.mu.Unlock()

		result := make([]string, 0, len(snapshot))
		for _, key := range snapshot {
			if _, ok := d.Get(key); ok {
				result = append(result, key)
			}
		}
		return result
	}

	if !strings.ContainsAny(pattern, globMetacharacters) {
		if _, ok := d.Get(pattern); ok {
			return []string{pattern}
		}
		return []string{}
	}

	compiled, err := glob.Compile(pattern)
	if err != nil {
		return []string{}
	}

	d.mu.Lock()
	snapshot := make([]string, len(d.keys))
	copy(snapshot, d.keys)
	d.mu.Unlock()

	result := make([]string, 0)
	for _, key := range snapshot {
		if !compiled.Match(key) {
			continue
		}
		if _, ok := d.Get(key); ok {
			result = append(result, key)
		}
	}
	return result
}

// GetRandom returns a uniformly-chosen key, or ok=false if the
// keyspace is empty.
func (d *Database) GetRandom() (key string, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.keys) == 0 {
		return "", false
	}
	return d.keys[rand.Intn(len(d.keys))], true
}

// Size returns the number of stored keys.
func (d *Database) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.storage)
}

// Entry is a single key's value and TTL descriptor, used by the RDB
// writer to build a snapshot.
type Entry struct {
	Key   string
	Value []byte
	Meta  Metadata
}

// Snapshot returns every non-expired key with its value and metadata,
// for the RDB writer. It does not mutate the Database.
func (d *Database) Snapshot() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries := make([]Entry, 0, len(d.keys))
	for _, key := range d.keys {
		meta := d.metadata[key]
		if meta.IsExpired() {
			continue
		}
		entries = append(entries, Entry{Key: key, Value: d.storage[key], Meta: meta})
	}
	return entries
}
