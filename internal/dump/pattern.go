// Package dump is the diagnostic harness around the compute core: it
// synthesizes input feature maps, writes output dumps (CSV or WAV) and
// compares runs against golden tensors.
package dump

import (
	"fmt"
	"strings"

	"github.com/example/go-deconv/internal/deconv"
)

// Pattern selects the synthetic input feature map.
type Pattern string

const (
	// PatternConstant drives every input scalar with the same value.
	PatternConstant Pattern = "constant"
	// PatternRamp drives pixel (h, w) with h*W + w on every channel,
	// wrapped to the input precision.
	PatternRamp Pattern = "ramp"
)

// ParsePattern accepts "constant" or "ramp", case-insensitively.
func ParsePattern(s string) (Pattern, error) {
	switch p := Pattern(strings.ToLower(strings.TrimSpace(s))); p {
	case PatternConstant, PatternRamp:
		return p, nil
	case "":
		return PatternConstant, nil
	default:
		return "", fmt.Errorf("dump: unknown input pattern %q (want constant or ramp)", s)
	}
}

// Input builds one raster feature map [H][W][CI] for cfg.
func Input(cfg deconv.Config, p Pattern, value int64) ([]int64, error) {
	out := make([]int64, 0, cfg.InputLen())

	switch p {
	case PatternConstant:
		if !cfg.Input.Contains(value) {
			return nil, fmt.Errorf("dump: constant %d does not fit %s", value, cfg.Input)
		}
		for range cfg.InputLen() {
			out = append(out, value)
		}
	case PatternRamp:
		for h := range cfg.H {
			for w := range cfg.W {
				v := cfg.Input.Wrap(int64(h*cfg.W + w))
				for range cfg.CI {
					out = append(out, v)
				}
			}
		}
	default:
		return nil, fmt.Errorf("dump: unknown input pattern %q", p)
	}

	return out, nil
}
