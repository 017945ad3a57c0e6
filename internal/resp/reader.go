package resp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// FrameReader accumulates bytes from an underlying connection until a
// complete Operation can be parsed, then hands back any bytes read
// past the frame boundary for the next call. This is the RESP analogue
// of the source's BytesMut-based read loop: parse, and if
// ErrInsufficientData comes back, read more and retry.
type FrameReader struct {
	r   io.Reader
	buf []byte
}

// NewFrameReader wraps r for frame-at-a-time reads.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadOperation returns the next complete Operation, blocking on the
// underlying reader as needed. It returns io.EOF exactly when the
// connection closed with no partial frame buffered (a half-received
// frame followed by EOF is reported as io.ErrUnexpectedEOF, not as a
// clean close).
func (f *FrameReader) ReadOperation() (Operation, error) {
	for {
		if len(f.buf) > 0 {
			op, n, err := Parse(f.buf)
			if err == nil {
				f.buf = f.buf[n:]
				return op, nil
			}
			if !errors.Is(err, ErrInsufficientData) {
				return nil, err
			}
		}

		chunk := make([]byte, 4096)
		n, err := f.r.Read(chunk)
		if n > 0 {
			f.buf = append(f.buf, chunk[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				if len(f.buf) == 0 {
					return nil, io.EOF
				}
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}

// ReadRawFile reads a File-framed blob: a "$<n>" header line terminated
// by '\n' (an optional preceding '\r' is tolerated), followed by
// exactly n raw bytes with no trailing CRLF. This is deliberately not
// routed through Parse/ReadOperation — the File wire shape looks like a
// Bulk header but omits the closing CRLF that parseBulk requires, so
// reading it with the normal Bulk rule would desync the stream.
func (f *FrameReader) ReadRawFile() ([]byte, error) {
	for {
		if idx := bytes.IndexByte(f.buf, '\n'); idx != -1 {
			header := bytes.TrimSuffix(f.buf[:idx], []byte("\r"))
			if len(header) == 0 || header[0] != '$' {
				return nil, fmt.Errorf("resp: malformed file header %q", header)
			}
			length, err := strconv.Atoi(string(header[1:]))
			if err != nil {
				return nil, fmt.Errorf("resp: invalid file length %q: %w", header[1:], err)
			}
			f.buf = f.buf[idx+1:]
			return f.readExact(length)
		}

		chunk := make([]byte, 4096)
		n, err := f.r.Read(chunk)
		if n > 0 {
			f.buf = append(f.buf, chunk[:n]...)
		}
		if err != nil {
			return nil, err
		}
	}
}

func (f *FrameReader) readExact(n int) ([]byte, error) {
	for len(f.buf) < n {
		chunk := make([]byte, 4096)
		read, err := f.r.Read(chunk)
		if read > 0 {
			f.buf = append(f.buf, chunk[:read]...)
		}
		if err != nil {
			if len(f.buf) >= n {
				break
			}
			return nil, err
		}
	}

	data := make([]byte, n)
	copy(data, f.buf[:n])
	f.buf = f.buf[n:]
	return data, nil
}
