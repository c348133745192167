// Package registry holds the generated deconvolution parameter sets and
// their frozen weight tables.
package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/example/go-deconv/internal/deconv"
	"github.com/example/go-deconv/internal/runtime/fixed"
)

const (
	tagPrefix   = "DECONV_CFG_"
	indexPrefix = "IDX_"
)

// Entry is one selectable configuration.
type Entry struct {
	Index  int
	Name   string
	Config deconv.Config

	weights []int64 // canonical [co][kh][kw][ci]
}

// Tag is the selector macro name, e.g. DECONV_CFG_K3_S1_H3_W3_CI1_CO3_P2.
func (e Entry) Tag() string { return tagPrefix + e.Name }

// IndexTag is the positional selector macro name, e.g. DECONV_CFG_IDX_0.
func (e Entry) IndexTag() string { return tagPrefix + indexPrefix + strconv.Itoa(e.Index) }

// Weights returns a copy of the frozen table in canonical order.
func (e Entry) Weights() []int64 { return append([]int64(nil), e.weights...) }

// Store loads the frozen table into a weight store for e.Config.
func (e Entry) Store() (*deconv.WeightStore, error) {
	ws, err := deconv.LoadWeights(e.Config, e.weights)
	if err != nil {
		return nil, fmt.Errorf("registry: %s: %w", e.Name, err)
	}
	return ws, nil
}

func hlsEntry(index, k, s, p, h, w, ci, co int, table []int64) Entry {
	cfg := deconv.Config{
		K: k, S: s, P: p, H: h, W: w, CI: ci, CO: co,
		PE: 1, SIMD: 1,
		Input:  fixed.Unsigned(4),
		Weight: fixed.Unsigned(8),
		Output: fixed.Unsigned(16),
	}
	return Entry{Index: index, Name: cfg.Tag(), Config: cfg, weights: table}
}

var entries = []Entry{
	hlsEntry(0, 3, 1, 2, 3, 3, 1, 3, []int64{
		0x9c, 0x9d, 0x8e, 0x32, 0x44, 0xd7, 0xd7, 0xe9, 0xf1,
		0xf7, 0xde, 0x60, 0x56, 0x8d, 0xe9, 0x89, 0x07, 0x3f,
		0x3d, 0x16, 0x39, 0x01, 0x80, 0x3c, 0xd1, 0x08, 0xd8,
	}),
	hlsEntry(1, 3, 1, 1, 3, 3, 1, 3, []int64{
		0x68, 0x16, 0x09, 0xc3, 0xe7, 0x7e, 0x17, 0x7d, 0x64,
		0x9b, 0xa5, 0x39, 0x53, 0xa6, 0x88, 0x20, 0xa2, 0x0a,
		0x17, 0x8f, 0xef, 0x57, 0x19, 0xc7, 0xf3, 0x5c, 0x4a,
	}),
	hlsEntry(2, 3, 1, 2, 5, 5, 1, 3, []int64{
		0x39, 0xf0, 0xfc, 0xd2, 0x60, 0x0d, 0x0a, 0x17, 0x7c,
		0x51, 0x87, 0x79, 0x98, 0xca, 0xdc, 0x94, 0xa0, 0x8c,
		0xc1, 0x5e, 0x3c, 0xe9, 0x98, 0x52, 0x73, 0x61, 0x82,
	}),
	hlsEntry(3, 3, 1, 1, 5, 5, 1, 3, []int64{
		0xbb, 0x8f, 0x18, 0xfb, 0x89, 0xc2, 0xc7, 0x35, 0x45,
		0xa4, 0x65, 0xf8, 0x15, 0x28, 0x4d, 0xdb, 0xb1, 0x71,
		0x2f, 0xcd, 0xa8, 0xce, 0x2d, 0x57, 0x90, 0x9c, 0xea,
	}),
}

// All returns every entry in index order.
func All() []Entry {
	return append([]Entry(nil), entries...)
}

// Default is the entry used when nothing is selected (index 0).
func Default() Entry { return entries[0] }

// Lookup resolves sel to an entry. sel may be a parameter tag
// (K3_S1_H3_W3_CI1_CO3_P2), a selector macro (DECONV_CFG_K3_..., or
// DECONV_CFG_IDX_1), an index tag (IDX_1) or a bare index. An empty
// selection returns Default.
func Lookup(sel string) (Entry, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return Default(), nil
	}

	key := strings.TrimPrefix(strings.ToUpper(sel), tagPrefix)
	for _, e := range entries {
		if key == e.Name {
			return e, nil
		}
	}

	if idx, err := strconv.Atoi(strings.TrimPrefix(key, indexPrefix)); err == nil {
		if idx >= 0 && idx < len(entries) {
			return entries[idx], nil
		}
		return Entry{}, &deconv.ConfigurationError{
			Param:  "selection",
			Value:  idx,
			Reason: fmt.Sprintf("registry has %d entries", len(entries)),
		}
	}

	return Entry{}, fmt.Errorf("registry: unknown configuration %q (known: %s): %w",
		sel, strings.Join(Names(), ", "), deconv.ErrConfiguration)
}

// Names lists the entry names in index order.
func Names() []string {
	return lo.Map(entries, func(e Entry, _ int) string { return e.Name })
}
