package recording

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/faiface/beep"
)

// liveSource turns a PCM byte stream into a beep.Streamer that never blocks.
// Missing samples play as silence.
type liveSource struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	format beep.Format
	limit  int
	err    error
	done   chan struct{}
}

func newLiveSource(r io.Reader, format beep.Format, limit int) *liveSource {
	s := &liveSource{format: format, limit: limit, done: make(chan struct{})}
	go s.fill(r)
	return s
}

func (s *liveSource) fill(r io.Reader) {
	defer close(s.done)

	chunk := make([]byte, 8192)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			s.mu.Lock()
			s.buf.Write(chunk[:n])
			if over := s.buf.Len() - s.limit; s.limit > 0 && over > 0 {
				w := s.format.Width()
				over += (w - over%w) % w
				s.buf.Next(over)
			}
			s.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
			}
			return
		}
	}
}

func (s *liveSource) Stream(samples [][2]float64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.format.Width()
	for i := range samples {
		if s.buf.Len() >= w {
			samples[i], _ = s.format.DecodeSigned(s.buf.Next(w))
			continue
		}
		samples[i] = [2]float64{}
	}
	return len(samples), true
}

func (s *liveSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// pcmStreamer plays back a finished PCM buffer.
type pcmStreamer struct {
	data   []byte
	format beep.Format
}

func (p *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	w := p.format.Width()
	if len(p.data) < w {
		return 0, false
	}
	n := 0
	for n < len(samples) && len(p.data) >= w {
		samples[n], _ = p.format.DecodeSigned(p.data[:w])
		p.data = p.data[w:]
		n++
	}
	return n, true
}

func (p *pcmStreamer) Err() error { return nil }
