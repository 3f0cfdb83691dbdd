// Package netutil holds the HTTP plumbing the catalog client is built on:
// a retrying transport, response size limits, and URL hygiene for untrusted
// download locations.
package netutil

import (
	"errors"
	"fmt"
	"io"
)

// SizeLimitExceededError is returned when a response body exceeds its
// allowed size.
type SizeLimitExceededError struct {
	Limit int64
	Read  int64
}

func (e *SizeLimitExceededError) Error() string {
	return fmt.Sprintf("size limit exceeded: read %d bytes, limit is %d bytes", e.Read, e.Limit)
}

// IsSizeLimitExceeded reports whether err is a SizeLimitExceededError.
func IsSizeLimitExceeded(err error) bool {
	var target *SizeLimitExceededError
	return errors.As(err, &target)
}

// LimitedReader reads at most Limit bytes and fails instead of silently
// truncating. Catalog responses are untrusted, so an oversized body is an
// error, not a prefix.
type LimitedReader struct {
	r         io.Reader
	remaining int64
	limit     int64
	read      int64
}

// NewLimitedReader creates a LimitedReader over r.
func NewLimitedReader(r io.Reader, limit int64) *LimitedReader {
	return &LimitedReader{r: r, remaining: limit, limit: limit}
}

// Read implements io.Reader.
func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, &SizeLimitExceededError{Limit: l.limit, Read: l.read}
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}

	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	l.read += int64(n)

	if l.remaining == 0 && err == nil {
		// Peek one byte to distinguish "exactly at the limit" from "over".
		var buf [1]byte
		extra, extraErr := l.r.Read(buf[:])
		if extra > 0 {
			return n, &SizeLimitExceededError{Limit: l.limit, Read: l.read + 1}
		}
		if extraErr != nil && extraErr != io.EOF {
			return n, extraErr
		}
	}
	return n, err
}

// BytesRead returns the number of bytes consumed so far.
func (l *LimitedReader) BytesRead() int64 { return l.read }
