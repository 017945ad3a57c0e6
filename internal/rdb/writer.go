package rdb

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"rkv/internal/store"
)

// WriteEmpty produces the minimal valid RDB file (header plus
// immediate EOF) at path. This is the template a master streams to a
// freshly-handshaking replica as the full-resync baseline before any
// keys exist to forward.
func WriteEmpty(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("rdb: creating %q: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	writeHeader(w)
	w.WriteByte(opEOF)
	return w.Flush()
}

// WriteSnapshot serializes db's current keyspace to path, in the same
// opcode stream Parse reads: a SELECTDB/RESIZEDB pair, one TypeString
// entry per key (preceded by EXPIRETIME_MS when the key has a
// deadline), terminated by EOF.
func WriteSnapshot(path string, db *store.Database) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("rdb: creating %q: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	writeHeader(w)

	entries := db.Snapshot()

	w.WriteByte(opSelectDB)
	writeLength(w, 0)

	w.WriteByte(opResizeDB)
	writeLength(w, uint32(len(entries)))
	writeLength(w, 0)

	for _, e := range entries {
		if _, ok := e.Meta.ExpireDuration(); ok {
			w.WriteByte(opExpireMs)
			binary.Write(w, binary.LittleEndian, e.Meta.ExpireAtMs)
		}
		w.WriteByte(typeString)
		writeString(w, e.Key)
		writeBlob(w, e.Value)
	}

	w.WriteByte(opEOF)
	return w.Flush()
}

func writeHeader(w io.Writer) {
	io.WriteString(w, magic)
	io.WriteString(w, version)
}

func writeString(w io.Writer, s string) {
	writeBlob(w, []byte(s))
}

// writeBlob writes a raw (unencoded) length-prefixed byte string —
// this writer never emits integer- or LZF-encoded payloads, matching
// the source's write path, which only ever compresses on read.
func writeBlob(w io.Writer, b []byte) {
	writeLength(w, uint32(len(b)))
	w.Write(b)
}

// writeLength writes the length-with-encoding prefix Parse's
// readLength expects, choosing the narrowest form that fits.
func writeLength(w io.Writer, length uint32) {
	switch {
	case length < 1<<6:
		w.Write([]byte{byte(length)})
	case length < 1<<14:
		w.Write([]byte{
			0x40 | byte(length>>8),
			byte(length),
		})
	default:
		w.Write([]byte{0x80})
		binary.Write(w, binary.LittleEndian, length)
	}
}
