package video

import (
	"fmt"
	"image"
	"io"
)

// Source yields decoded RGBA frames in presentation order. Next returns
// io.EOF when the stream is exhausted.
type Source interface {
	Next() (*image.RGBA, error)
	Close() error
}

// Sink accepts composited RGBA frames in presentation order.
type Sink interface {
	Write(frame *image.RGBA) error
	Close() error
}

// Skip reads and discards count frames from the source. It fails when
// the stream ends before count frames were consumed.
func Skip(src Source, count int) error {
	for i := 0; i < count; i++ {
		if _, err := src.Next(); err != nil {
			if err == io.EOF {
				return fmt.Errorf("video skip: stream ended after %d of %d frames", i, count)
			}
			return fmt.Errorf("video skip: %w", err)
		}
	}
	return nil
}

// Clone returns a deep copy of the frame.
func Clone(frame *image.RGBA) *image.RGBA {
	out := image.NewRGBA(frame.Rect)
	copy(out.Pix, frame.Pix)
	out.Stride = frame.Stride
	return out
}

// MemorySource serves a fixed slice of frames. Used by tests and by
// calibration, which works on sampled frames rather than a stream.
type MemorySource struct {
	frames []*image.RGBA
	pos    int
}

// NewMemorySource builds a source over the given frames.
func NewMemorySource(frames ...*image.RGBA) *MemorySource {
	return &MemorySource{frames: frames}
}

// Next implements Source.
func (m *MemorySource) Next() (*image.RGBA, error) {
	if m.pos >= len(m.frames) {
		return nil, io.EOF
	}
	frame := m.frames[m.pos]
	m.pos++
	return frame, nil
}

// Close implements Source.
func (m *MemorySource) Close() error { return nil }

// MemorySink collects written frames. Frames are cloned on write so
// callers may reuse their buffers.
type MemorySink struct {
	Frames []*image.RGBA
	closed bool
}

// Write implements Sink.
func (m *MemorySink) Write(frame *image.RGBA) error {
	if m.closed {
		return fmt.Errorf("video sink: write after close")
	}
	m.Frames = append(m.Frames, Clone(frame))
	return nil
}

// Close implements Sink.
func (m *MemorySink) Close() error {
	m.closed = true
	return nil
}
