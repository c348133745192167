package testutil

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/example/go-deconv/internal/dump"
)

// AssertValidWAV checks that data is a PCM WAV dump in the format written by
// the dump package: RIFF header, 48 kHz, 16-bit, one channel per output
// channel and exactly frames sample frames.
func AssertValidWAV(tb testing.TB, data []byte, channels, frames int) {
	tb.Helper()

	if len(data) < 44 {
		tb.Fatalf("WAV: %d bytes is shorter than a canonical header", len(data))
		return
	}

	for _, tag := range []struct {
		at   int
		want string
	}{{0, "RIFF"}, {8, "WAVE"}, {12, "fmt "}} {
		if got := string(data[tag.at : tag.at+4]); got != tag.want {
			tb.Fatalf("WAV: want %q at offset %d, got %q", tag.want, tag.at, got)
		}
	}

	le := binary.LittleEndian
	for _, f := range []struct {
		name      string
		got, want int
	}{
		{"format tag", int(le.Uint16(data[20:22])), 1},
		{"channels", int(le.Uint16(data[22:24])), channels},
		{"sample rate", int(le.Uint32(data[24:28])), dump.WAVSampleRate},
		{"bit depth", int(le.Uint16(data[34:36])), dump.WAVBitDepth},
	} {
		if f.got != f.want {
			tb.Fatalf("WAV: %s = %d; want %d", f.name, f.got, f.want)
		}
	}

	dataSize, err := findDataChunkSize(data)
	if err != nil {
		tb.Fatalf("WAV: %v", err)
		return
	}

	bytesPerFrame := channels * dump.WAVBitDepth / 8
	if got := int(dataSize) / bytesPerFrame; got != frames {
		tb.Fatalf("WAV: expected %d frames, got %d", frames, got)
	}
}

// findDataChunkSize returns the size in bytes of the "data" chunk.
func findDataChunkSize(data []byte) (uint32, error) {
	for off := 12; off+8 <= len(data); {
		size := binary.LittleEndian.Uint32(data[off+4 : off+8])
		if string(data[off:off+4]) == "data" {
			return size, nil
		}
		// Chunks are word aligned.
		off += 8 + int(size) + int(size&1)
	}
	return 0, errors.New("no data chunk")
}
