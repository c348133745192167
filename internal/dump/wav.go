package dump

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"

	"github.com/example/go-deconv/internal/deconv"
	"github.com/example/go-deconv/internal/runtime/fixed"
)

// WAV dump container format. One frame per output position, one channel
// per output channel, so the channel-last output maps onto interleaved
// PCM without reordering.
const (
	WAVSampleRate = 48000
	WAVBitDepth   = 16
)

// ErrWAVFormat is returned when a decoded dump does not match the
// expected container format.
var ErrWAVFormat = errors.New("dump: WAV format mismatch")

// EncodeWAV packs one output feature map of cfg as 16-bit PCM with CO
// channels. Values are normalized over the output precision range.
func EncodeWAV(cfg deconv.Config, values []int64) ([]byte, error) {
	if len(values)%cfg.CO != 0 {
		return nil, fmt.Errorf("dump: %d values do not fill %d channels", len(values), cfg.CO)
	}

	samples := make([]float32, len(values))
	for i, v := range values {
		samples[i] = normalize(v, cfg.Output)
	}

	var buf bytes.Buffer

	// wav.NewEncoder needs an io.WriteSeeker.
	sw := &seekBuffer{buf: &buf}

	enc := wav.NewEncoder(sw, WAVSampleRate, WAVBitDepth, cfg.CO, 1) // 1 = PCM

	pcmBuf := &goaudio.Float32Buffer{
		Data:           samples,
		Format:         &goaudio.Format{SampleRate: WAVSampleRate, NumChannels: cfg.CO},
		SourceBitDepth: WAVBitDepth,
	}

	if err := enc.Write(pcmBuf); err != nil {
		return nil, fmt.Errorf("dump: writing PCM: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("dump: closing encoder: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeWAV reads a dump written by EncodeWAV and returns the normalized
// interleaved samples and the channel count.
func DecodeWAV(data []byte) ([]float32, int, error) {
	if len(data) == 0 {
		return nil, 0, errors.New("dump: empty WAV input")
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, errors.New("dump: invalid WAV file")
	}

	if dec.SampleRate != WAVSampleRate {
		return nil, 0, fmt.Errorf("%w: sample rate %d, want %d", ErrWAVFormat, dec.SampleRate, WAVSampleRate)
	}
	if dec.BitDepth != WAVBitDepth {
		return nil, 0, fmt.Errorf("%w: bit depth %d, want %d", ErrWAVFormat, dec.BitDepth, WAVBitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("dump: reading PCM data: %w", err)
	}

	return buf.Data, int(dec.NumChans), nil
}

// normalize maps the range of p onto [-1, 1).
func normalize(v int64, p fixed.Precision) float32 {
	half := float64(int64(1) << (p.Bits - 1))
	x := float64(v)
	if !p.Signed {
		x -= half
	}
	return float32(x / half)
}

// seekBuffer wraps a bytes.Buffer to satisfy io.WriteSeeker.
type seekBuffer struct {
	buf *bytes.Buffer
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if s.pos == s.buf.Len() {
		n, err := s.buf.Write(p)
		s.pos += n
		return n, err
	}

	// Overwrite in place, appending whatever runs past the end.
	data := s.buf.Bytes()
	n := copy(data[s.pos:], p)
	if n < len(p) {
		s.buf.Write(p[n:])
	}
	s.pos += len(p)
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int
	switch whence {
	case 0:
		pos = int(offset)
	case 1:
		pos = s.pos + int(offset)
	case 2:
		pos = s.buf.Len() + int(offset)
	default:
		return 0, fmt.Errorf("dump: bad whence %d", whence)
	}
	if pos < 0 || pos > s.buf.Len() {
		return 0, fmt.Errorf("dump: seek to %d outside [0, %d]", pos, s.buf.Len())
	}
	s.pos = pos
	return int64(pos), nil
}
