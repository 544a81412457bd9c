package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// ErrUnsupportedFormat is returned for audio that is neither WAV nor MP3.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Format describes 16-bit signed little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// Beep returns the equivalent beep format.
func (f Format) Beep() beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(f.SampleRate),
		NumChannels: f.Channels,
		Precision:   2,
	}
}

// Duration returns how long n bytes of PCM in this format play.
func (f Format) Duration(n int) time.Duration {
	frame := f.Channels * 2
	if frame == 0 || f.SampleRate == 0 {
		return 0
	}
	return time.Duration(n/frame) * time.Second / time.Duration(f.SampleRate)
}

// Open decodes a WAV or MP3 clip into a beep stream. contentType may be
// empty, in which case the data is sniffed.
func Open(data []byte, contentType string) (beep.StreamSeekCloser, beep.Format, error) {
	switch kind := sniff(data, contentType); kind {
	case "wav":
		s, f, err := wav.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("failed to decode wav: %w", err)
		}
		return s, f, nil
	case "mp3":
		s, f, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("failed to decode mp3: %w", err)
		}
		return s, f, nil
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, contentType)
	}
}

// Decode converts a WAV or MP3 clip to PCM in the target format.
func Decode(data []byte, contentType string, target Format) ([]byte, error) {
	streamer, format, err := Open(data, contentType)
	if err != nil {
		return nil, err
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if int(format.SampleRate) != target.SampleRate {
		s = beep.Resample(4, format.SampleRate, beep.SampleRate(target.SampleRate), s)
	}

	pcm := Encode(s, target)
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audio stream: %w", err)
	}
	if len(pcm) == 0 {
		return nil, errors.New("decoded audio is empty")
	}
	return pcm, nil
}

// Encode drains s into PCM bytes in the given format.
func Encode(s beep.Streamer, target Format) []byte {
	out := target.Beep()
	frame := make([]byte, out.Width())
	samples := make([][2]float64, 512)

	var buf bytes.Buffer
	for {
		n, ok := s.Stream(samples)
		for i := 0; i < n; i++ {
			out.EncodeSigned(frame, samples[i])
			buf.Write(frame)
		}
		if !ok {
			break
		}
	}
	return buf.Bytes()
}

func sniff(data []byte, contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "wav"):
		return "wav"
	case strings.Contains(ct, "mpeg"), strings.Contains(ct, "mp3"):
		return "mp3"
	case bytes.HasPrefix(data, []byte("RIFF")):
		return "wav"
	case bytes.HasPrefix(data, []byte("ID3")), len(data) > 1 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	}
	return ""
}
