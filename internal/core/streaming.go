package core

// streaming.go holds the reader chain every CSV upload passes through before
// it reaches encoding/csv:
//
//   - bomSkippingReader drops a leading UTF-8 BOM written by Excel on Windows
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?'
//   - sizeLimitReader fails with ErrFileTooLarge once the limit is crossed
//
// Use wrapUpload to apply them in the correct order.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// bomSkippingReader strips a UTF-8 byte order mark from the start of the stream.
type bomSkippingReader struct {
	br      *bufio.Reader
	checked bool
}

func newBOMSkippingReader(r io.Reader) *bomSkippingReader {
	return &bomSkippingReader{br: bufio.NewReader(r)}
}

func (r *bomSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		head, err := r.br.Peek(len(utf8BOM))
		if err != nil && err != io.EOF {
			return 0, err
		}
		if bytes.Equal(head, utf8BOM) {
			r.br.Discard(len(utf8BOM))
		}
	}
	return r.br.Read(p)
}

// utf8Sanitizer rewrites invalid UTF-8 bytes to '?' without growing the
// data. A multi-byte sequence split across two reads is held back until the
// next call completes it.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	off := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[off:])
	n += off
	if n == 0 {
		return 0, err
	}

	data := p[:n]
	atEOF := err == io.EOF

	w := 0
	for i := 0; i < len(data); {
		if data[i] < utf8.RuneSelf {
			data[w] = data[i]
			w++
			i++
			continue
		}
		rest := data[i:]
		if !atEOF && len(p) >= utf8.UTFMax && !utf8.FullRune(rest) {
			s.pending = append(s.pending, rest...)
			break
		}
		r, size := utf8.DecodeRune(rest)
		if r == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			i++
			continue
		}
		w += copy(data[w:], rest[:size])
		i += size
	}

	// Everything was held back; ask the caller to read again.
	if w == 0 && err == nil {
		return s.Read(p)
	}
	return w, err
}

// sizeLimitReader counts bytes and fails once more than limit have been read.
type sizeLimitReader struct {
	r         io.Reader
	limit     int64
	BytesRead int64
}

func (l *sizeLimitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.BytesRead += int64(n)
	if l.limit > 0 && l.BytesRead > l.limit {
		return n, ErrFileTooLarge
	}
	return n, err
}

// wrapUpload applies the size limit to the raw bytes, then strips the BOM,
// then sanitizes. A limit of 0 disables the size check.
func wrapUpload(r io.Reader, limit int64) io.Reader {
	counted := &sizeLimitReader{r: r, limit: limit}
	return newUTF8Sanitizer(newBOMSkippingReader(counted))
}
