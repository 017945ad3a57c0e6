package rdb

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestReadLengthEncodings(t *testing.T) {
	cases := []struct {
		name   string
		buf    []byte
		length uint32
		coded  bool
	}{
		{"6-bit", []byte{0x05}, 5, false},
		{"14-bit", []byte{0x40 | 0x01, 0xF4}, 500, false},
		{"32-bit little-endian", append([]byte{0x80}, le32(70000)...), 70000, false},
		{"encoded i8", []byte{0xC0}, 0, true},
		{"encoded i16", []byte{0xC1}, 1, true},
		{"encoded lzf", []byte{0xC3}, 3, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewParser(bytes.NewReader(tc.buf))
			length, isEncoded, err := p.readLength()
			if err != nil {
				t.Fatalf("readLength: %v", err)
			}
			if isEncoded != tc.coded {
				t.Fatalf("isEncoded = %v, want %v", isEncoded, tc.coded)
			}
			if length != tc.length {
				t.Fatalf("length = %d, want %d", length, tc.length)
			}
		})
	}
}

func TestReadBlobIntegerEncodings(t *testing.T) {
	cases := []struct {
		name string
		buf  []byte
		want string
	}{
		{"i8 positive", []byte{0xC0, 42}, "42"},
		{"i8 negative", []byte{0xC0, 0xFF}, "-1"},
		{"i16", append([]byte{0xC1}, le16(-300)...), "-300"},
		{"i32", append([]byte{0xC2}, le32u(int32(-70000))...), "-70000"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewParser(bytes.NewReader(tc.buf))
			got, err := p.readBlob()
			if err != nil {
				t.Fatalf("readBlob: %v", err)
			}
			if string(got) != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestReadBlobRawBytes(t *testing.T) {
	buf := []byte{5, 'h', 'e', 'l', 'l', 'o'}
	p := NewParser(bytes.NewReader(buf))
	got, err := p.readBlob()
	if err != nil {
		t.Fatalf("readBlob: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want hello", got)
	}
}

func le16(v int16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(v))
	return b
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func le32u(v int32) []byte {
	return le32(uint32(v))
}
