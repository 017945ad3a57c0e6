package rdb

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/zhuyie/golzf"

	"rkv/internal/store"
)

// Parser decodes an RDB snapshot and inserts its keys into a Database.
// It is grounded on the source's storage/parser.rs: the 32-bit length
// form is deliberately read little-endian, matching the source exactly
// rather than the big-endian form real Redis uses, because this
// snapshot format is this server's own private wire format shared only
// between its own master and replica processes.
type Parser struct {
	reader     *bufio.Reader
	pendingExp uint64
	hasExpire  bool
}

// NewParser wraps r for parsing.
func NewParser(r io.Reader) *Parser {
	return &Parser{reader: bufio.NewReader(r)}
}

// Load opens path and parses it into db. A missing file is not an
// error — boot simply proceeds with an empty keyspace. Any other
// failure (bad magic, truncated read, unsupported value type) aborts
// the parse; the caller may proceed with whatever was loaded before
// the error.
func Load(path string, db *store.Database) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("rdb: opening %q: %w", path, err)
	}
	defer f.Close()

	return NewParser(f).Parse(db)
}

// Parse consumes the header and the opcode stream, inserting decoded
// string entries into db.
func (p *Parser) Parse(db *store.Database) error {
	if err := p.verifyHeader(); err != nil {
		return err
	}

	for {
		opcode, err := p.readByte()
		if err != nil {
			return fmt.Errorf("rdb: reading opcode: %w", err)
		}

		switch opcode {
		case opAux:
			if _, err := p.readString(); err != nil {
				return fmt.Errorf("rdb: reading aux key: %w", err)
			}
			if _, err := p.readString(); err != nil {
				return fmt.Errorf("rdb: reading aux value: %w", err)
			}

		case opSelectDB:
			if _, _, err := p.readLength(); err != nil {
				return fmt.Errorf("rdb: reading SELECTDB index: %w", err)
			}

		case opResizeDB:
			if _, _, err := p.readLength(); err != nil {
				return fmt.Errorf("rdb: reading RESIZEDB total: %w", err)
			}
			if _, _, err := p.readLength(); err != nil {
				return fmt.Errorf("rdb: reading RESIZEDB expires: %w", err)
			}

		case opExpireSec:
			var seconds uint32
			if err := binary.Read(p.reader, binary.LittleEndian, &seconds); err != nil {
				return fmt.Errorf("rdb: reading EXPIRETIME: %w", err)
			}
			p.pendingExp = uint64(seconds) * 1000
			p.hasExpire = true

		case opExpireMs:
			var ms uint64
			if err := binary.Read(p.reader, binary.LittleEndian, &ms); err != nil {
				return fmt.Errorf("rdb: reading EXPIRETIME_MS: %w", err)
			}
			p.pendingExp = ms
			p.hasExpire = true

		case opEOF:
			return nil

		case typeString:
			key, err := p.readString()
			if err != nil {
				return fmt.Errorf("rdb: reading key: %w", err)
			}
			value, err := p.readBlob()
			if err != nil {
				return fmt.Errorf("rdb: reading value for key %q: %w", key, err)
			}

			meta := store.NeverExpire()
			if p.hasExpire {
				meta = store.FromDeadlineMs(p.pendingExp)
			}
			db.Set(key, value, meta)
			p.pendingExp = 0
			p.hasExpire = false

		default:
			return fmt.Errorf("rdb: unsupported value-type opcode: 0x%02x", opcode)
		}
	}
}

func (p *Parser) verifyHeader() error {
	buf := make([]byte, 5)
	if _, err := io.ReadFull(p.reader, buf); err != nil {
		return fmt.Errorf("rdb: reading magic: %w", err)
	}
	if string(buf) != magic {
		return fmt.Errorf("rdb: bad magic %q", buf)
	}

	ver := make([]byte, 4)
	if _, err := io.ReadFull(p.reader, ver); err != nil {
		return fmt.Errorf("rdb: reading version: %w", err)
	}
	return nil
}

// readLength reads the length-with-encoding prefix: the top two bits
// of the first byte select 6-bit, 14-bit, 32-bit, or encoded form.
// isEncoded is true for the encoded (`11`) form, in which case the
// caller must treat the low 6 bits as an encoding selector, not a
// length.
func (p *Parser) readLength() (length uint32, isEncoded bool, err error) {
	first, err := p.readByte()
	if err != nil {
		return 0, false, err
	}

	switch (first & 0xC0) >> 6 {
	case 0:
		return uint32(first & 0x3F), false, nil
	case 1:
		second, err := p.readByte()
		if err != nil {
			return 0, false, err
		}
		return uint32(first&0x3F)<<8 | uint32(second), false, nil
	case 2:
		var v uint32
		if err := binary.Read(p.reader, binary.LittleEndian, &v); err != nil {
			return 0, false, err
		}
		return v, false, nil
	default: // 3
		return uint32(first & 0x3F), true, nil
	}
}

// readBlob reads a length-with-encoding string payload: raw bytes for
// an unencoded length, a decimal-ASCII rendering for an encoded
// integer, or the LZF-decompressed bytes for an encoded compressed
// blob.
func (p *Parser) readBlob() ([]byte, error) {
	length, encoded, err := p.readLength()
	if err != nil {
		return nil, err
	}

	if !encoded {
		buf := make([]byte, length)
		if _, err := io.ReadFull(p.reader, buf); err != nil {
			return nil, fmt.Errorf("reading %d raw bytes: %w", length, err)
		}
		return buf, nil
	}

	switch length {
	case intEncodingI8:
		b, err := p.readByte()
		if err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(int64(int8(b)), 10)), nil

	case intEncodingI16:
		var v int16
		if err := binary.Read(p.reader, binary.LittleEndian, &v); err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(int64(v), 10)), nil

	case intEncodingI32:
		var v int32
		if err := binary.Read(p.reader, binary.LittleEndian, &v); err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(int64(v), 10)), nil

	case lzfEncoding:
		compressedLen, _, err := p.readLength()
		if err != nil {
			return nil, fmt.Errorf("reading LZF compressed length: %w", err)
		}
		realLen, _, err := p.readLength()
		if err != nil {
			return nil, fmt.Errorf("reading LZF real length: %w", err)
		}

		compressed := make([]byte, compressedLen)
		if _, err := io.ReadFull(p.reader, compressed); err != nil {
			return nil, fmt.Errorf("reading %d LZF-compressed bytes: %w", compressedLen, err)
		}

		decompressed := make([]byte, realLen)
		n, err := golzf.Decompress(compressed, decompressed)
		if err != nil {
			return nil, fmt.Errorf("decompressing LZF blob: %w", err)
		}
		return decompressed[:n], nil

	default:
		return nil, fmt.Errorf("unsupported encoded length sub-type: %d", length)
	}
}

// readString is readBlob rendered as a (lossy, if necessary) UTF-8
// string, matching the source's invariant that every string emerges as
// UTF-8.
func (p *Parser) readString() (string, error) {
	b, err := p.readBlob()
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(b), "�"), nil
}

func (p *Parser) readByte() (byte, error) {
	return p.reader.ReadByte()
}
