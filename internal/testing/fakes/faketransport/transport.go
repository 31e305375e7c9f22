// Package faketransport provides a scripted transport for testing expect
// logic without a real process.
package faketransport

import (
	"bytes"
	"io"
	"sync"
)

// Transport is a fake transport. Output is scripted chunk by chunk; each
// ReadAvailable call delivers the next chunk, then empty reads, then EOF
// once the stream is ended.
type Transport struct {
	mu       sync.Mutex
	chunks   [][]byte     // Queued output chunks, one per read
	chunkIdx int          // Next chunk to deliver
	written  bytes.Buffer // Captures all written data
	ended    bool         // Stream ended; reads past the queue return io.EOF
	closed   bool         // Whether Close() was called
	status   int          // Exit status reported once ended
	hasCode  bool         // Whether status is known
}

// New creates a fake transport with no queued output.
func New() *Transport {
	return &Transport{status: -1}
}

// Feed queues an output chunk to be returned by a future ReadAvailable.
func (t *Transport) Feed(data string) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chunks = append(t.chunks, []byte(data))
	return t
}

// FeedAll queues several output chunks.
func (t *Transport) FeedAll(chunks ...string) *Transport {
	for _, c := range chunks {
		t.Feed(c)
	}
	return t
}

// End marks the stream as ended. Reads past the queued chunks return io.EOF
// and Alive reports false.
func (t *Transport) End() *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ended = true
	return t
}

// EndWithStatus ends the stream with a known exit status.
func (t *Transport) EndWithStatus(code int) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ended = true
	t.status = code
	t.hasCode = true
	return t
}

// ReadAvailable returns the next queued chunk. Once the queue is drained it
// returns (nil, nil) until End is called, then (nil, io.EOF).
func (t *Transport) ReadAvailable(max int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.chunkIdx >= len(t.chunks) {
		if t.ended {
			return nil, io.EOF
		}
		return nil, nil
	}

	chunk := t.chunks[t.chunkIdx]
	if max > 0 && len(chunk) > max {
		t.chunks[t.chunkIdx] = chunk[max:]
		return chunk[:max], nil
	}
	t.chunkIdx++
	return chunk, nil
}

// Write captures written data for later inspection.
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	return t.written.Write(p)
}

// Alive reports whether the stream has not ended yet.
func (t *Transport) Alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.ended
}

// ExitStatus returns the scripted exit status once the stream has ended.
func (t *Transport) ExitStatus() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended && t.hasCode {
		return t.status, true
	}
	return -1, false
}

// Close marks the transport closed and ends the stream.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.ended = true
	return nil
}

// --- Test inspection methods ---

// Written returns all data that was written to the transport.
func (t *Transport) Written() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.written.String()
}

// IsClosed returns true if Close() was called.
func (t *Transport) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
