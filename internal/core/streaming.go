package core

// streaming.go wraps source readers to handle common export issues without
// loading the whole file into memory:
//
//   - bomReader: drops a leading UTF-8 BOM written by spreadsheet tools
//   - utf8Sanitizer: replaces invalid UTF-8 bytes with '?'
//   - CountingReader: tracks bytes read for diagnostics
//
// Use WrapSource to apply all transforms in the correct order.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// bomReader skips the UTF-8 BOM if the stream starts with one.
type bomReader struct {
	r       *bufio.Reader
	checked bool
}

func newBOMReader(r io.Reader) *bomReader {
	return &bomReader{r: bufio.NewReader(r)}
}

func (b *bomReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head, err := b.r.Peek(len(utf8BOM))
		if err == nil && bytes.Equal(head, utf8BOM) {
			if _, err := b.r.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		}
	}
	return b.r.Read(p)
}

// utf8Sanitizer replaces invalid UTF-8 sequences with '?' on the fly.
// A multi-byte sequence split across reads is held back until the next call.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
	out     []byte
	err     error
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		buf := make([]byte, max(len(p), 512))
		n, err := s.r.Read(buf)
		s.err = err
		s.pending = append(s.pending, buf[:n]...)
		s.sanitize(err != nil)
	}

	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

// sanitize moves complete runes from pending to out. At EOF everything left
// is flushed, with a truncated trailing sequence becoming '?'.
func (s *utf8Sanitizer) sanitize(atEOF bool) {
	read := 0
	for read < len(s.pending) {
		c := s.pending[read]
		if c < utf8.RuneSelf {
			s.out = append(s.out, c)
			read++
			continue
		}

		if !atEOF && !utf8.FullRune(s.pending[read:]) {
			break
		}

		r, size := utf8.DecodeRune(s.pending[read:])
		if r == utf8.RuneError && size == 1 {
			s.out = append(s.out, '?')
			read++
			continue
		}
		s.out = append(s.out, s.pending[read:read+size]...)
		read += size
	}
	s.pending = s.pending[read:]
}

// CountingReader tracks bytes read from the wrapped reader.
type CountingReader struct {
	r         io.Reader
	BytesRead int64
}

// Read implements io.Reader.
func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.BytesRead += int64(n)
	return n, err
}

// WrapSource strips a BOM, sanitizes UTF-8 and counts bytes.
//
// The order matters:
// 1. BOM must be stripped first (before any processing)
// 2. UTF-8 sanitization happens next
// 3. Counting wraps everything
func WrapSource(r io.Reader) *CountingReader {
	return &CountingReader{r: newUTF8Sanitizer(newBOMReader(r))}
}
