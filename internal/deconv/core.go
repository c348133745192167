// Package deconv implements a fixed-point transposed convolution core that
// consumes a raster-ordered activation stream and produces a raster-ordered
// output stream by scatter-accumulate.
//
// Input vectors carry SIMD scalars of one pixel (channel lanes innermost),
// output vectors carry PE scalars. Only a band of K output rows is held in
// flight; a position is emitted once all of its contributing taps have
// arrived and every earlier position in raster order has been emitted.
package deconv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/example/go-deconv/internal/runtime/fixed"
	"github.com/example/go-deconv/internal/runtime/stream"
)

// Finalized describes one output position at the moment it is emitted.
type Finalized struct {
	Row      int
	Col      int
	Taps     int // pixel-tap contributions received
	Expected int
}

// Option configures a Core.
type Option func(*Core)

// WithWorkers sets the number of goroutines splitting PE groups. A
// negative value falls back to the SetLaneWorkers default.
func WithWorkers(n int) Option { return func(c *Core) { c.workers = n } }

// WithLogger sets the logger used for debug tracing.
func WithLogger(l *slog.Logger) Option { return func(c *Core) { c.logger = l } }

// WithOverflowCheck enables the per-addition accumulator range check.
func WithOverflowCheck(on bool) Option { return func(c *Core) { c.checkOverflow = on } }

// WithFinalizeHook registers fn to observe every emitted position.
func WithFinalizeHook(fn func(Finalized)) Option { return func(c *Core) { c.onFinalize = fn } }

// WithStreamCapacity sets the FIFO depth used by Transform.
func WithStreamCapacity(n int) Option { return func(c *Core) { c.streamCap = n } }

// Core is a restartable deconvolution engine bound to one configuration
// and weight store. Runs on the same Core are serialized.
type Core struct {
	cfg Config
	w   *WeightStore

	workers       int
	logger        *slog.Logger
	checkOverflow bool
	onFinalize    func(Finalized)
	streamCap     int

	hout, wout int
	acc        fixed.Precision
	rowTaps    []int
	colTaps    []int

	mu       sync.Mutex
	band     []int64 // [K rows][wout][CO] accumulators
	counts   []int   // [K rows][wout] contributions received
	pixel    []int64 // CI scalars of the current input pixel
	inBounds []int   // taps of the current pixel that land inside the output
	emitted  int
	maps     int
}

// NewCore validates cfg and binds it to w. A store built for the same
// layer with a different PE/SIMD is retiled.
func NewCore(cfg Config, w *WeightStore, opts ...Option) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if w == nil {
		return nil, errors.New("deconv: nil weight store")
	}
	if w.Config() != cfg {
		if w.Config().WithTiling(cfg.PE, cfg.SIMD) != cfg {
			return nil, &ConfigurationError{
				Param:  "weights",
				Value:  w.Config().WeightCount(),
				Reason: fmt.Sprintf("store built for %s, core configured for %s", w.Config(), cfg),
			}
		}
		var err error
		if w, err = w.Retile(cfg.PE, cfg.SIMD); err != nil {
			return nil, err
		}
	}

	c := &Core{
		cfg:       cfg,
		w:         w,
		workers:   -1,
		logger:    slog.Default(),
		streamCap: stream.DefaultCapacity,
		hout:      cfg.OutHeight(),
		wout:      cfg.OutWidth(),
		acc:       cfg.Accumulator(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.rowTaps = axisTaps(cfg.H, cfg.K, cfg.S, cfg.P, c.hout)
	c.colTaps = axisTaps(cfg.W, cfg.K, cfg.S, cfg.P, c.wout)
	c.band = make([]int64, cfg.K*c.wout*cfg.CO)
	c.counts = make([]int, cfg.K*c.wout)
	c.pixel = make([]int64, cfg.CI)
	c.inBounds = make([]int, 0, cfg.Taps())

	return c, nil
}

// axisTaps counts, per output index along one axis, the (input, kernel)
// index pairs that scatter into it.
func axisTaps(in, k, s, p, out int) []int {
	taps := make([]int, out)
	for i := range in {
		for kk := range k {
			if o := i*s + kk - p; o >= 0 && o < out {
				taps[o]++
			}
		}
	}
	return taps
}

// Config returns the descriptor the core runs.
func (c *Core) Config() Config { return c.cfg }

// Weights returns the store in the core's tiling.
func (c *Core) Weights() *WeightStore { return c.w }

// FeatureMaps returns how many feature maps completed so far.
func (c *Core) FeatureMaps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maps
}

// BandRows is the number of output rows held in flight.
func (c *Core) BandRows() int { return c.cfg.K }

// errEndOfInput marks a clean end of input at a feature-map boundary.
var errEndOfInput = errors.New("deconv: end of input")

// RunFeatureMap consumes exactly H*W*CI input scalars from in and writes
// Hout*Wout*CO output scalars to out. Returning nil signals the end of
// the feature map; the core is then ready for the next one.
func (c *Core) RunFeatureMap(ctx context.Context, in, out *stream.Stream[[]int64]) error {
	err := c.runMap(ctx, in, out)
	if errors.Is(err, errEndOfInput) {
		return &StreamProtocolError{Consumed: 0, Expected: c.cfg.InputLen(), Reason: "input ended before the first element"}
	}
	return err
}

// Run processes feature maps until in is closed on a map boundary and
// returns the number of completed maps. out is not closed.
func (c *Core) Run(ctx context.Context, in, out *stream.Stream[[]int64]) (int, error) {
	n := 0
	for {
		err := c.runMap(ctx, in, out)
		if errors.Is(err, errEndOfInput) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

func (c *Core) runMap(ctx context.Context, in, out *stream.Stream[[]int64]) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()
	cfg := c.cfg
	workers := c.workers
	if workers < 0 {
		workers = getLaneWorkers()
	}

	consumed := 0
	for ih := range cfg.H {
		for iw := range cfg.W {
			if err := c.readPixel(ctx, in, &consumed); err != nil {
				return err
			}
			if ih == 0 && iw == 0 {
				c.logger.Debug("deconv: feature map start", "config", cfg.Tag(), "map", c.maps, "workers", workers)
			}
			if err := c.scatter(ih, iw, workers); err != nil {
				return err
			}
			if err := c.release(ctx, out); err != nil {
				return err
			}
		}
	}

	if total := c.hout * c.wout; c.emitted != total {
		return fmt.Errorf("deconv: internal: emitted %d of %d positions at end of feature map", c.emitted, total)
	}
	c.maps++
	c.logger.Debug("deconv: feature map done", "config", cfg.Tag(), "map", c.maps-1, "outputs", cfg.OutputLen())
	return nil
}

func (c *Core) reset() {
	clear(c.band)
	clear(c.counts)
	c.emitted = 0
}

// readPixel pulls the SIMD groups of one input pixel into c.pixel.
func (c *Core) readPixel(ctx context.Context, in *stream.Stream[[]int64], consumed *int) error {
	cfg := c.cfg
	for sg := range cfg.SIMDGroups() {
		vec, err := in.Read(ctx)
		if errors.Is(err, io.EOF) {
			if *consumed == 0 {
				return errEndOfInput
			}
			return &StreamProtocolError{Consumed: *consumed, Expected: cfg.InputLen(), Reason: "input ended mid feature map"}
		}
		if err != nil {
			return fmt.Errorf("deconv: read input: %w", err)
		}
		if len(vec) != cfg.SIMD {
			return &StreamProtocolError{
				Consumed: *consumed,
				Expected: cfg.InputLen(),
				Reason:   fmt.Sprintf("input vector has %d lanes, want SIMD=%d", len(vec), cfg.SIMD),
			}
		}
		for lane, v := range vec {
			if !cfg.Input.Contains(v) {
				return &StreamProtocolError{
					Consumed: *consumed + lane,
					Expected: cfg.InputLen(),
					Reason:   fmt.Sprintf("input value %d does not fit %s", v, cfg.Input),
				}
			}
			c.pixel[sg*cfg.SIMD+lane] = v
		}
		*consumed += cfg.SIMD
	}
	return nil
}

// scatter adds the contribution of the current pixel at (ih, iw) to every
// in-bounds output position. Taps falling outside the output are dropped.
func (c *Core) scatter(ih, iw, workers int) error {
	cfg := c.cfg
	c.inBounds = c.inBounds[:0]
	for kh := range cfg.K {
		oh := ih*cfg.S + kh - cfg.P
		if oh < 0 || oh >= c.hout {
			continue
		}
		for kw := range cfg.K {
			ow := iw*cfg.S + kw - cfg.P
			if ow < 0 || ow >= c.wout {
				continue
			}
			c.inBounds = append(c.inBounds, kh*cfg.K+kw)
			c.counts[(oh%cfg.K)*c.wout+ow]++
		}
	}
	if len(c.inBounds) == 0 {
		return nil
	}

	return parallelFor(cfg.PEGroups(), workers, func(lo, hi int) error {
		for g := lo; g < hi; g++ {
			for _, tap := range c.inBounds {
				kh, kw := tap/cfg.K, tap%cfg.K
				oh := ih*cfg.S + kh - cfg.P
				ow := iw*cfg.S + kw - cfg.P
				base := ((oh%cfg.K)*c.wout + ow) * cfg.CO
				if err := c.accumulate(g, tap, base, oh, ow); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// accumulate folds one tap of the current pixel into the PE lanes of one
// output-channel group.
func (c *Core) accumulate(g, tap, base, oh, ow int) error {
	cfg := c.cfg
	for sg := range cfg.SIMDGroups() {
		blk := c.w.Block(g, tap, sg)
		x := c.pixel[sg*cfg.SIMD : (sg+1)*cfg.SIMD]
		for pe := range cfg.PE {
			co := g*cfg.PE + pe
			a := c.band[base+co]
			lane := blk[pe*cfg.SIMD : (pe+1)*cfg.SIMD]
			for s, xv := range x {
				a += xv * lane[s]
				if c.checkOverflow && !c.acc.Contains(a) {
					return &OverflowError{Row: oh, Col: ow, Channel: co, Value: a, Bits: c.acc.Bits}
				}
			}
			c.band[base+co] = a
		}
	}
	return nil
}

// release emits, in raster order, every position whose contributions are
// complete, stopping at the first one still waiting for input.
func (c *Core) release(ctx context.Context, out *stream.Stream[[]int64]) error {
	cfg := c.cfg
	total := c.hout * c.wout
	for c.emitted < total {
		oh, ow := c.emitted/c.wout, c.emitted%c.wout
		slot := (oh % cfg.K) * c.wout
		expected := c.rowTaps[oh] * c.colTaps[ow]
		got := c.counts[slot+ow]
		if got < expected {
			return nil
		}

		base := (slot + ow) * cfg.CO
		for g := range cfg.PEGroups() {
			vec := make([]int64, cfg.PE)
			for pe := range vec {
				vec[pe] = fixed.Narrow(c.band[base+g*cfg.PE+pe], cfg.OutputShift, cfg.Output)
			}
			if err := out.Write(ctx, vec); err != nil {
				return fmt.Errorf("deconv: write output (%d,%d): %w", oh, ow, err)
			}
		}
		if c.onFinalize != nil {
			c.onFinalize(Finalized{Row: oh, Col: ow, Taps: got, Expected: expected})
		}

		if ow == c.wout-1 {
			clear(c.band[slot*cfg.CO : (slot+c.wout)*cfg.CO])
			clear(c.counts[slot : slot+c.wout])
			c.logger.Debug("deconv: band row recycled", "row", oh, "slot", oh%cfg.K)
		}
		c.emitted++
	}
	return nil
}
