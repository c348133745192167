package deconv

import "fmt"

// Layout names the order of a flat weight table.
type Layout int

const (
	// LayoutCanonical is [co][kh][kw][ci], the order of the generated
	// headers at PE=SIMD=1.
	LayoutCanonical Layout = iota
	// LayoutTiled is the hardware order for the descriptor's PE/SIMD:
	// [co/PE][kh][kw][ci/SIMD][PE][SIMD].
	LayoutTiled
	// LayoutTorch is the ConvTranspose2d weight tensor [ci][co][kh][kw].
	LayoutTorch
)

func (l Layout) String() string {
	switch l {
	case LayoutCanonical:
		return "canonical"
	case LayoutTiled:
		return "tiled"
	case LayoutTorch:
		return "torch"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// ParseLayout maps a layout name back to its value.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "", "canonical":
		return LayoutCanonical, nil
	case "tiled":
		return LayoutTiled, nil
	case "torch":
		return LayoutTorch, nil
	default:
		return 0, fmt.Errorf("deconv: unknown weight layout %q (want canonical|tiled|torch)", s)
	}
}

// WeightStore is the immutable weight table of one configuration, kept in
// the tiled order so each (PE group, tap, SIMD group) block is contiguous.
type WeightStore struct {
	cfg  Config
	data []int64
}

// LoadWeights builds a store from a canonical-order table.
func LoadWeights(cfg Config, raw []int64) (*WeightStore, error) {
	return LoadWeightsLayout(cfg, raw, LayoutCanonical)
}

// LoadWeightsLayout builds a store from a table in the given layout. The
// table is copied; later changes to raw do not affect the store.
func LoadWeightsLayout(cfg Config, raw []int64, layout Layout) (*WeightStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if want := cfg.WeightCount(); len(raw) != want {
		return nil, &WeightShapeError{Got: len(raw), Want: want}
	}

	ws := &WeightStore{cfg: cfg, data: make([]int64, len(raw))}
	taps := cfg.Taps()
	for i, v := range raw {
		if !cfg.Weight.Contains(v) {
			return nil, &WeightRangeError{Index: i, Value: v, Min: cfg.Weight.Min(), Max: cfg.Weight.Max()}
		}

		var co, tap, ci int
		switch layout {
		case LayoutCanonical:
			ci = i % cfg.CI
			tap = (i / cfg.CI) % taps
			co = i / (cfg.CI * taps)
		case LayoutTiled:
			simd := i % cfg.SIMD
			rest := i / cfg.SIMD
			pe := rest % cfg.PE
			rest /= cfg.PE
			ciGroup := rest % cfg.SIMDGroups()
			rest /= cfg.SIMDGroups()
			tap = rest % taps
			coGroup := rest / taps
			co = coGroup*cfg.PE + pe
			ci = ciGroup*cfg.SIMD + simd
		case LayoutTorch:
			tap = i % taps
			co = (i / taps) % cfg.CO
			ci = i / (taps * cfg.CO)
		default:
			return nil, fmt.Errorf("deconv: unknown weight layout %v", layout)
		}
		ws.data[ws.index(tap, co, ci)] = v
	}
	return ws, nil
}

func (w *WeightStore) index(tap, co, ci int) int {
	c := w.cfg
	coGroup, pe := co/c.PE, co%c.PE
	ciGroup, simd := ci/c.SIMD, ci%c.SIMD
	return (((coGroup*c.Taps()+tap)*c.SIMDGroups()+ciGroup)*c.PE+pe)*c.SIMD + simd
}

// Config returns the descriptor the store was built for.
func (w *WeightStore) Config() Config { return w.cfg }

// At returns the weight connecting input channel ci to output channel co
// at kernel tap (kh*K + kw). Indices must be in range.
func (w *WeightStore) At(tap, co, ci int) int64 {
	return w.data[w.index(tap, co, ci)]
}

// Block returns the PE*SIMD weights of one (PE group, tap, SIMD group),
// lane-major: element pe*SIMD + simd. The slice must not be modified.
func (w *WeightStore) Block(peGroup, tap, simdGroup int) []int64 {
	c := w.cfg
	n := c.PE * c.SIMD
	base := ((peGroup*c.Taps()+tap)*c.SIMDGroups() + simdGroup) * n
	return w.data[base : base+n : base+n]
}

// Table returns a copy of the weights in the requested layout.
func (w *WeightStore) Table(layout Layout) []int64 {
	if layout == LayoutTiled {
		return append([]int64(nil), w.data...)
	}
	c := w.cfg
	taps := c.Taps()
	out := make([]int64, len(w.data))
	for co := range c.CO {
		for tap := range taps {
			for ci := range c.CI {
				var i int
				if layout == LayoutTorch {
					i = (ci*c.CO+co)*taps + tap
				} else {
					i = (co*taps+tap)*c.CI + ci
				}
				out[i] = w.At(tap, co, ci)
			}
		}
	}
	return out
}

// Retile returns a store holding the same mathematical weights laid out
// for a different PE/SIMD choice.
func (w *WeightStore) Retile(pe, simd int) (*WeightStore, error) {
	return LoadWeights(w.cfg.WithTiling(pe, simd), w.Table(LayoutCanonical))
}
