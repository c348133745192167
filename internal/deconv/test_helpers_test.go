package deconv

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/example/go-deconv/internal/runtime/fixed"
	"github.com/example/go-deconv/internal/runtime/stream"
)

// hlsConfig returns the u4/u8/u16 precisions of the generated headers.
func hlsConfig(k, s, p, h, w, ci, co int) Config {
	return Config{
		K: k, S: s, P: p, H: h, W: w, CI: ci, CO: co,
		PE: 1, SIMD: 1,
		Input:  fixed.Unsigned(4),
		Weight: fixed.Unsigned(8),
		Output: fixed.Unsigned(16),
	}
}

func randomTable(rng *rand.Rand, n int, p fixed.Precision) []int64 {
	out := make([]int64, n)
	span := p.Max() - p.Min() + 1
	for i := range out {
		out[i] = p.Min() + rng.Int63n(span)
	}
	return out
}

func constTable(n int, v int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func mustWeights(t *testing.T, cfg Config, raw []int64) *WeightStore {
	t.Helper()

	ws, err := LoadWeights(cfg, raw)
	if err != nil {
		t.Fatalf("LoadWeights(%s): %v", cfg, err)
	}

	return ws
}

func mustCore(t *testing.T, cfg Config, ws *WeightStore, opts ...Option) *Core {
	t.Helper()

	c, err := NewCore(cfg, ws, opts...)
	if err != nil {
		t.Fatalf("NewCore(%s): %v", cfg, err)
	}

	return c
}

func mustTransform(t *testing.T, c *Core, input []int64) []int64 {
	t.Helper()

	out, err := c.Transform(context.Background(), input)
	if err != nil {
		t.Fatalf("Transform(%s): %v", c.Config(), err)
	}

	return out
}

// mustWrite prefills a stream; the stream must have room for v.
func mustWrite(t *testing.T, in *stream.Stream[[]int64], v []int64) {
	t.Helper()

	if err := in.Write(context.Background(), v); err != nil {
		t.Fatalf("Write(%v): %v", v, err)
	}
}

func assertErrContains(t *testing.T, err error, substr string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected error containing %q, got nil", substr)
	}

	if !strings.Contains(err.Error(), substr) {
		t.Fatalf("error %q does not contain %q", err.Error(), substr)
	}
}
