// Package rdb implements the binary RDB snapshot format: the opcode
// stream, length-prefixed encodings, integer encodings, and LZF
// decompression.
package rdb

const (
	magic   = "REDIS"
	version = "0009"

	opAux          = 0xFA
	opSelectDB     = 0xFE
	opResizeDB     = 0xFB
	opExpireSec    = 0xFD
	opExpireMs     = 0xFC
	opEOF          = 0xFF
	typeString     = 0x00
	intEncodingI8  = 0
	intEncodingI16 = 1
	intEncodingI32 = 2
	lzfEncoding    = 3
)
