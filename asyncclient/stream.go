package asyncclient

import (
	"errors"
	"io"
	"iter"
	"sync"
)

// DefaultChunkSize is the chunk bound used when no WithChunkSize option is
// given.
const DefaultChunkSize = 1024

// ErrStreamClosed is returned by Next after the stream has been released.
var ErrStreamClosed = errors.New("asyncclient: stream is closed")

// StreamOption configures a Stream at creation time.
type StreamOption func(*Stream)

// WithChunkSize bounds the size of chunks returned by Next. Values below 1
// are ignored.
func WithChunkSize(n int) StreamOption {
	return func(s *Stream) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// Stream is the streaming content handle returned by generated binary
// endpoints. It wraps the still-open response body; the connection is held
// until the stream is released. The caller owns the stream and must release
// it with Close (or consume it through Use), on every path including errors.
//
// A Stream is not safe for concurrent use.
type Stream struct {
	body      io.ReadCloser
	chunkSize int

	closeOnce sync.Once
	closed    bool
	err       error
}

// NewStream wraps a response body in a stream handle.
func NewStream(body io.ReadCloser, opts ...StreamOption) *Stream {
	s := &Stream{body: body, chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns the next chunk of the body, at most the configured chunk size
// and never empty. An exhausted stream returns io.EOF, also on repeated
// calls; a released stream returns ErrStreamClosed. A body of N bytes yields
// ceil(N/chunkSize) chunks whose concatenation is the exact body.
func (s *Stream) Next() ([]byte, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.err != nil {
		return nil, s.err
	}

	buf := make([]byte, s.chunkSize)
	n, err := io.ReadFull(s.body, buf)
	if n > 0 {
		// A read error arriving with the final bytes is replayed on the
		// next call, after the partial chunk.
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			s.err = err
		}
		return buf[:n], nil
	}
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	if err != io.EOF {
		s.err = err
	}
	return nil, err
}

// Chunks iterates over the remaining chunks. Iteration stops on io.EOF or on
// a read error; check Err afterwards to distinguish the two.
func (s *Stream) Chunks() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for {
			chunk, err := s.Next()
			if err != nil {
				if err != io.EOF {
					s.err = err
				}
				return
			}
			if !yield(chunk) {
				return
			}
		}
	}
}

// Err returns the error that terminated iteration, if any. A normally
// exhausted stream reports nil.
func (s *Stream) Err() error {
	return s.err
}

// Body exposes the raw response body, for callers that want to consume it
// directly (io.Copy and the like). The caller still owns releasing the
// stream.
func (s *Stream) Body() io.ReadCloser {
	return s.body
}

// Close releases the stream and the connection holding it. Close is
// idempotent and returns the body's close error from the first call only.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed = true
		err = s.body.Close()
	})
	return err
}

// Use runs fn against the stream and releases it exactly once on return,
// whether fn succeeds, fails or panics.
func (s *Stream) Use(fn func(*Stream) error) error {
	defer s.Close()
	return fn(s)
}
