package dump

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/example/go-deconv/internal/deconv"
	"github.com/example/go-deconv/internal/weights"
)

// Golden is one reference data set: a raster input feature map, the layer
// weights and the expected channel-last output.
type Golden struct {
	Stem    string
	Input   []int64 // [H][W][CI]
	Weights *deconv.WeightStore
	Output  []int64 // [Hout][Wout][CO]
}

// LoadGolden reads <dir>/<stem>_{input,weights,output}.csv for cfg. The
// input file is NCHW, the weights file is [CI][CO][K][K]. An optional
// <stem>_shapes.csv is cross-checked when present.
func LoadGolden(dir string, cfg deconv.Config) (*Golden, error) {
	stem := GoldenStem(cfg)
	base := filepath.Join(dir, stem)

	if err := checkShapes(base+"_shapes.csv", cfg); err != nil {
		return nil, err
	}

	nchw, err := weights.ReadFile(base + "_input.csv")
	if err != nil {
		return nil, err
	}
	if len(nchw) != cfg.InputLen() {
		return nil, &deconv.StreamProtocolError{Consumed: len(nchw), Expected: cfg.InputLen(), Reason: "golden input size"}
	}

	ws, err := weights.Load(cfg, base+"_weights.csv", deconv.LayoutTorch)
	if err != nil {
		return nil, err
	}

	out, err := weights.ReadFile(base + "_output.csv")
	if err != nil {
		return nil, err
	}
	if len(out) != cfg.OutputLen() {
		return nil, fmt.Errorf("dump: %s_output.csv has %d values, want %d", stem, len(out), cfg.OutputLen())
	}

	return &Golden{Stem: stem, Input: FromNCHW(cfg, nchw), Weights: ws, Output: out}, nil
}

// FromNCHW reorders a [CI][H][W] feature map into raster order [H][W][CI].
func FromNCHW(cfg deconv.Config, nchw []int64) []int64 {
	out := make([]int64, len(nchw))
	plane := cfg.H * cfg.W
	for ci := range cfg.CI {
		for p := range plane {
			out[p*cfg.CI+ci] = nchw[ci*plane+p]
		}
	}
	return out
}

// checkShapes validates lines like "output_shape,1x3x3x3" against cfg.
// A missing file is not an error.
func checkShapes(path string, cfg deconv.Config) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("dump: open %s: %w", path, err)
	}
	defer f.Close()

	want := map[string][]int{
		"input_shape":   {1, cfg.CI, cfg.H, cfg.W},
		"weights_shape": {cfg.CI, cfg.CO, cfg.K, cfg.K},
		"output_shape":  {1, cfg.CO, cfg.OutHeight(), cfg.OutWidth()},
	}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		name, dims, ok := strings.Cut(strings.TrimSpace(sc.Text()), ",")
		if !ok {
			continue
		}
		exp, known := want[name]
		if !known {
			continue
		}
		got, err := parseDims(dims)
		if err != nil {
			return fmt.Errorf("dump: %s: %s: %w", path, name, err)
		}
		if !equalDims(got, exp) {
			return &deconv.ConfigurationError{
				Param:  name,
				Value:  product(got),
				Reason: fmt.Sprintf("golden shape %v, configuration expects %v", got, exp),
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("dump: read %s: %w", path, err)
	}
	return nil
}

func parseDims(s string) ([]int, error) {
	parts := strings.Split(strings.TrimSpace(s), "x")
	dims := make([]int, len(parts))
	for i, p := range parts {
		d, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad dimension %q", p)
		}
		dims[i] = d
	}
	return dims, nil
}

func equalDims(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// Mismatch is one output scalar that differs from the golden value.
type Mismatch struct {
	Row, Col, Channel int
	Got, Want         int64
}

func (m Mismatch) String() string {
	return fmt.Sprintf("(%d,%d) co=%d: got %d, want %d", m.Row, m.Col, m.Channel, m.Got, m.Want)
}

// Compare returns every position where got and want disagree, in raster
// order. Both slices are channel-last [Hout][Wout][CO].
func Compare(cfg deconv.Config, got, want []int64) ([]Mismatch, error) {
	if len(got) != cfg.OutputLen() || len(want) != cfg.OutputLen() {
		return nil, fmt.Errorf("dump: compare %d against %d values, want %d", len(got), len(want), cfg.OutputLen())
	}

	var out []Mismatch
	wout := cfg.OutWidth()
	for i := range got {
		if got[i] == want[i] {
			continue
		}
		pos := i / cfg.CO
		out = append(out, Mismatch{
			Row:     pos / wout,
			Col:     pos % wout,
			Channel: i % cfg.CO,
			Got:     got[i],
			Want:    want[i],
		})
	}
	return out, nil
}
