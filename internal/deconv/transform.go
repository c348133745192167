package deconv

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/example/go-deconv/internal/runtime/fixed"
	"github.com/example/go-deconv/internal/runtime/stream"
)

// Transform runs one feature map given as a flat raster slice
// [H][W][CI] and returns the flat output [Hout][Wout][CO].
func (c *Core) Transform(ctx context.Context, input []int64) ([]int64, error) {
	cfg := c.cfg
	if len(input) != cfg.InputLen() {
		reason := "input shorter than one feature map"
		if len(input) > cfg.InputLen() {
			reason = "input longer than one feature map"
		}
		return nil, &StreamProtocolError{Consumed: len(input), Expected: cfg.InputLen(), Reason: reason}
	}

	in := stream.New[[]int64]("deconv.in", c.streamCap)
	out := stream.New[[]int64]("deconv.out", c.streamCap)
	result := make([]int64, 0, cfg.OutputLen())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return Feed(gctx, in, cfg, input)
	})
	g.Go(func() error {
		defer out.Close()
		return c.RunFeatureMap(gctx, in, out)
	})
	g.Go(func() error {
		vecs, err := stream.Drain(gctx, out)
		for _, v := range vecs {
			result = append(result, v...)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Feed splits a flat raster feature map into SIMD-wide vectors, writes
// them to in and closes it.
func Feed(ctx context.Context, in *stream.Stream[[]int64], cfg Config, input []int64) error {
	defer in.Close()
	for lo := 0; lo < len(input); lo += cfg.SIMD {
		hi := min(lo+cfg.SIMD, len(input))
		vec := append([]int64(nil), input[lo:hi]...)
		if err := in.Write(ctx, vec); err != nil {
			return fmt.Errorf("deconv: feed input: %w", err)
		}
	}
	return nil
}

// Reference computes the layer by direct gather over the output, without
// streaming or banding. It is the brute-force oracle for the core.
func Reference(cfg Config, w *WeightStore, input []int64) ([]int64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(input) != cfg.InputLen() {
		return nil, &StreamProtocolError{Consumed: len(input), Expected: cfg.InputLen(), Reason: "reference input length"}
	}

	hout, wout := cfg.OutHeight(), cfg.OutWidth()
	out := make([]int64, 0, cfg.OutputLen())
	for oh := range hout {
		for ow := range wout {
			for co := range cfg.CO {
				var acc int64
				for kh := range cfg.K {
					ih, ok := sourceIndex(oh, kh, cfg.S, cfg.P, cfg.H)
					if !ok {
						continue
					}
					for kw := range cfg.K {
						iw, ok := sourceIndex(ow, kw, cfg.S, cfg.P, cfg.W)
						if !ok {
							continue
						}
						for ci := range cfg.CI {
							acc += input[(ih*cfg.W+iw)*cfg.CI+ci] * w.At(kh*cfg.K+kw, co, ci)
						}
					}
				}
				out = append(out, fixed.Narrow(acc, cfg.OutputShift, cfg.Output))
			}
		}
	}
	return out, nil
}

// ReferenceTaps counts, by brute force over every (output, tap) pair, how
// many input pixels scatter into each output position. Result is
// [Hout][Wout] flattened.
func ReferenceTaps(cfg Config) []int {
	hout, wout := cfg.OutHeight(), cfg.OutWidth()
	taps := make([]int, hout*wout)
	for oh := range hout {
		for ow := range wout {
			for kh := range cfg.K {
				for kw := range cfg.K {
					_, okH := sourceIndex(oh, kh, cfg.S, cfg.P, cfg.H)
					_, okW := sourceIndex(ow, kw, cfg.S, cfg.P, cfg.W)
					if okH && okW {
						taps[oh*wout+ow]++
					}
				}
			}
		}
	}
	return taps
}

// sourceIndex inverts o = i*s + k - p for i, reporting whether such an
// in-range i exists.
func sourceIndex(o, k, s, p, n int) (int, bool) {
	num := o + p - k
	if num < 0 || num%s != 0 {
		return 0, false
	}
	i := num / s
	return i, i < n
}
