package main

import (
	"fmt"
	"log/slog"

	"github.com/example/go-deconv/internal/config"
	"github.com/example/go-deconv/internal/deconv"
	"github.com/example/go-deconv/internal/dump"
	"github.com/example/go-deconv/internal/registry"
	"github.com/example/go-deconv/internal/runtime/fixed"
	"github.com/example/go-deconv/internal/weights"
)

// layer is a registry entry with the configured tiling, shift, precision
// and weight overrides applied.
type layer struct {
	entry   registry.Entry
	cfg     deconv.Config
	weights *deconv.WeightStore
}

func resolveLayer(c config.Config) (layer, error) {
	e, err := registry.Lookup(c.Core.Selection)
	if err != nil {
		return layer{}, err
	}

	cfg := e.Config
	if c.Core.PE > 0 {
		cfg.PE = c.Core.PE
	}
	if c.Core.SIMD > 0 {
		cfg.SIMD = c.Core.SIMD
	}
	cfg.OutputShift = c.Core.OutputShift
	for _, o := range []struct {
		key string
		raw string
		dst *fixed.Precision
	}{
		{"core.input_precision", c.Core.InputPrecision, &cfg.Input},
		{"core.weight_precision", c.Core.WeightPrecision, &cfg.Weight},
		{"core.output_precision", c.Core.OutputPrecision, &cfg.Output},
	} {
		if o.raw == "" {
			continue
		}
		p, err := fixed.ParsePrecision(o.raw)
		if err != nil {
			return layer{}, fmt.Errorf("%s: %w", o.key, err)
		}
		*o.dst = p
	}

	var ws *deconv.WeightStore
	if c.Paths.WeightsFile != "" {
		layout, err := deconv.ParseLayout(c.Core.WeightsLayout)
		if err != nil {
			return layer{}, err
		}
		ws, err = weights.Load(cfg, c.Paths.WeightsFile, layout)
		if err != nil {
			return layer{}, err
		}
		slog.Debug("weights loaded from file", "path", c.Paths.WeightsFile, "layout", layout.String())
	} else {
		ws, err = deconv.LoadWeights(cfg, e.Weights())
		if err != nil {
			return layer{}, fmt.Errorf("registry: %s: %w", e.Name, err)
		}
	}

	return layer{entry: e, cfg: cfg, weights: ws}, nil
}

func newCore(c config.Config, cfg deconv.Config, ws *deconv.WeightStore) (*deconv.Core, error) {
	return deconv.NewCore(cfg, ws,
		deconv.WithLogger(slog.Default()),
		deconv.WithOverflowCheck(c.Core.OverflowCheck),
		deconv.WithStreamCapacity(c.Core.StreamCapacity),
	)
}

func harnessInput(c config.Config, cfg deconv.Config) ([]int64, error) {
	pattern, err := dump.ParsePattern(c.Harness.Pattern)
	if err != nil {
		return nil, err
	}
	return dump.Input(cfg, pattern, c.Harness.Value)
}
