// Package zstream provides incremental zlib compression and decompression
// with caller-supplied sinks, as required for telnet MCCP2/MCCP3 streams:
// compressed output must be produced per message (sync flush) and compressed
// input arrives in arbitrary socket-read chunks.
package zstream

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// FlushMode selects how much pending output a Write forces out.
type FlushMode int

const (
	// FlushNone lets the codec buffer freely.
	FlushNone FlushMode = iota
	// FlushSync emits all pending output ending on a byte boundary.
	FlushSync
	// FlushFull is FlushSync at the flate layer; the underlying codec
	// does not distinguish the two.
	FlushFull
	// FlushFinish terminates the stream. Subsequent writes fail.
	FlushFinish
)

// ErrStreamEnded is returned by writes after the stream was finished.
var ErrStreamEnded = errors.New("zstream: stream already ended")

// Sink receives produced chunks. The chunk is only valid for the duration
// of the call.
type Sink func(chunk []byte)

// DeflateStream is an incremental zlib compressor.
type DeflateStream struct {
	level int
	buf   bytes.Buffer
	zw    *zlib.Writer
	ended bool
}

// NewDeflateStream creates a compressor at the given zlib level.
func NewDeflateStream(level int) (*DeflateStream, error) {
	s := &DeflateStream{level: level}
	zw, err := zlib.NewWriterLevel(&s.buf, level)
	if err != nil {
		return nil, fmt.Errorf("zstream: deflate init: %w", err)
	}
	s.zw = zw
	return s, nil
}

// Write pushes input through the compressor, handing each produced chunk
// to sink. Returns the number of compressed bytes produced.
func (s *DeflateStream) Write(input []byte, sink Sink, flush FlushMode) (int, error) {
	if s.ended {
		return 0, ErrStreamEnded
	}
	if _, err := s.zw.Write(input); err != nil {
		return 0, fmt.Errorf("zstream: deflate: %w", err)
	}
	switch flush {
	case FlushNone:
	case FlushSync, FlushFull:
		if err := s.zw.Flush(); err != nil {
			return 0, fmt.Errorf("zstream: deflate flush: %w", err)
		}
	case FlushFinish:
		if err := s.zw.Close(); err != nil {
			return 0, fmt.Errorf("zstream: deflate finish: %w", err)
		}
		s.ended = true
	}
	return s.drain(sink), nil
}

// Finish flushes all pending output and terminates the stream.
func (s *DeflateStream) Finish(sink Sink) (int, error) {
	return s.Write(nil, sink, FlushFinish)
}

// Reset discards all state and re-initializes at the given level.
func (s *DeflateStream) Reset(level int) error {
	s.buf.Reset()
	zw, err := zlib.NewWriterLevel(&s.buf, level)
	if err != nil {
		return fmt.Errorf("zstream: deflate init: %w", err)
	}
	s.level = level
	s.zw = zw
	s.ended = false
	return nil
}

func (s *DeflateStream) drain(sink Sink) int {
	produced := s.buf.Len()
	if produced > 0 && sink != nil {
		sink(s.buf.Bytes())
	}
	s.buf.Reset()
	return produced
}

// inflateFeeder adapts pushed input chunks to the pull-based flate reader.
// When the reader drains all pending input it signals idle, telling the
// pushing side that every completed block's output has reached the sink.
type inflateFeeder struct {
	in   chan []byte
	idle chan struct{}
	cur  []byte
}

func (f *inflateFeeder) Read(p []byte) (int, error) {
	for len(f.cur) == 0 {
		var ok bool
		select {
		case f.cur, ok = <-f.in:
		default:
			f.idle <- struct{}{}
			f.cur, ok = <-f.in
		}
		if !ok {
			return 0, io.EOF
		}
	}
	n := copy(p, f.cur)
	f.cur = f.cur[n:]
	return n, nil
}

// InflateStream is an incremental zlib decompressor fed by pushed chunks.
type InflateStream struct {
	feeder *inflateFeeder
	done   chan struct{}

	mu      sync.Mutex
	out     bytes.Buffer
	readErr error

	started bool
	ended   bool
}

// NewInflateStream creates a decompressor. The decode goroutine starts
// lazily on the first Write.
func NewInflateStream() *InflateStream {
	return &InflateStream{}
}

func (s *InflateStream) start() {
	s.feeder = &inflateFeeder{
		in:   make(chan []byte),
		idle: make(chan struct{}),
	}
	s.done = make(chan struct{})
	s.started = true

	go func() {
		defer close(s.done)
		zr, err := zlib.NewReader(s.feeder)
		if err != nil {
			s.mu.Lock()
			s.readErr = err
			s.mu.Unlock()
			return
		}
		scratch := make([]byte, 16*1024)
		for {
			n, err := zr.Read(scratch)
			s.mu.Lock()
			if n > 0 {
				s.out.Write(scratch[:n])
			}
			if err != nil {
				s.readErr = err
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
		}
	}()
}

// Write pushes compressed input through the decompressor, handing each
// produced chunk to sink. Returns the number of decompressed bytes
// produced. Input that ends mid-block is held until the next Write.
func (s *InflateStream) Write(input []byte, sink Sink) (int, error) {
	if s.ended {
		return 0, ErrStreamEnded
	}
	if !s.started {
		s.start()
	}

	chunk := make([]byte, len(input))
	copy(chunk, input)

	// Hand over the input, absorbing an idle signal raised before the
	// decoder saw any of it.
	select {
	case s.feeder.in <- chunk:
	case <-s.feeder.idle:
		select {
		case s.feeder.in <- chunk:
		case <-s.done:
		}
	case <-s.done:
	}

	// Wait until the decoder drained the input or exited.
	select {
	case <-s.feeder.idle:
	case <-s.done:
	}

	s.mu.Lock()
	produced := s.out.Len()
	if produced > 0 && sink != nil {
		sink(s.out.Bytes())
	}
	s.out.Reset()
	err := s.readErr
	s.mu.Unlock()

	if err != nil {
		s.ended = true
		if errors.Is(err, io.EOF) {
			return produced, nil
		}
		return produced, fmt.Errorf("zstream: inflate: %w", err)
	}
	return produced, nil
}

// Reset discards all state; the next Write starts a fresh stream.
func (s *InflateStream) Reset() {
	if s.started {
		close(s.feeder.in)
		<-s.done
	}
	s.mu.Lock()
	s.out.Reset()
	s.readErr = nil
	s.mu.Unlock()
	s.started = false
	s.ended = false
}
