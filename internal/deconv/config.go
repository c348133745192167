package deconv

import (
	"fmt"

	"github.com/example/go-deconv/internal/runtime/fixed"
)

// Config is the Configuration Descriptor of one deconvolution layer.
// It is validated once and read-only afterwards.
type Config struct {
	K  int // kernel size
	S  int // stride
	P  int // padding
	H  int // input feature-map height
	W  int // input feature-map width
	CI int // input channels
	CO int // output channels

	PE   int // output-channel lanes
	SIMD int // input-channel lanes

	Input  fixed.Precision
	Weight fixed.Precision
	Output fixed.Precision

	// OutputShift is applied to the accumulator before saturation.
	OutputShift uint
	// AccBits narrows the accumulator below the derived minimum when
	// non-zero, modelling a hardware accumulator register.
	AccBits uint
}

// DefaultPadding is the generator default P = K - S, clamped at zero.
func DefaultPadding(k, s int) int {
	return max(k-s, 0)
}

// Validate checks the positivity and divisibility invariants.
func (c Config) Validate() error {
	positive := []struct {
		name string
		v    int
	}{
		{"K", c.K}, {"S", c.S}, {"H", c.H}, {"W", c.W},
		{"CI", c.CI}, {"CO", c.CO}, {"PE", c.PE}, {"SIMD", c.SIMD},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return &ConfigurationError{Param: p.name, Value: p.v, Reason: "must be positive"}
		}
	}
	if c.P < 0 {
		return &ConfigurationError{Param: "P", Value: c.P, Reason: "must not be negative"}
	}
	if c.CO%c.PE != 0 {
		return &ConfigurationError{Param: "PE", Value: c.PE, Reason: fmt.Sprintf("must divide CO=%d", c.CO)}
	}
	if c.CI%c.SIMD != 0 {
		return &ConfigurationError{Param: "SIMD", Value: c.SIMD, Reason: fmt.Sprintf("must divide CI=%d", c.CI)}
	}
	if c.OutHeight() <= 0 {
		return &ConfigurationError{Param: "P", Value: c.P, Reason: fmt.Sprintf("output height %d is not positive", c.OutHeight())}
	}
	if c.OutWidth() <= 0 {
		return &ConfigurationError{Param: "P", Value: c.P, Reason: fmt.Sprintf("output width %d is not positive", c.OutWidth())}
	}

	precisions := []struct {
		name string
		p    fixed.Precision
	}{
		{"InputBits", c.Input}, {"WeightBits", c.Weight}, {"OutputBits", c.Output},
	}
	for _, p := range precisions {
		if err := p.p.Validate(); err != nil {
			return &ConfigurationError{Param: p.name, Value: int(p.p.Bits), Reason: err.Error()}
		}
	}

	need := c.requiredAccumulator()
	if need.Bits > fixed.MaxBits {
		return &ConfigurationError{
			Param:  "AccBits",
			Value:  int(need.Bits),
			Reason: fmt.Sprintf("derived accumulator exceeds %d bits", fixed.MaxBits),
		}
	}
	if c.AccBits != 0 && (c.AccBits < 2 || c.AccBits > fixed.MaxBits) {
		return &ConfigurationError{
			Param:  "AccBits",
			Value:  int(c.AccBits),
			Reason: fmt.Sprintf("must be in [2, %d]", fixed.MaxBits),
		}
	}
	if c.OutputShift > fixed.MaxBits {
		return &ConfigurationError{Param: "OutputShift", Value: int(c.OutputShift), Reason: "shift too large"}
	}
	return nil
}

// OutHeight is S*(H-1) + K - 2*P.
func (c Config) OutHeight() int { return c.S*(c.H-1) + c.K - 2*c.P }

// OutWidth is S*(W-1) + K - 2*P.
func (c Config) OutWidth() int { return c.S*(c.W-1) + c.K - 2*c.P }

// Taps is the number of kernel positions, K*K.
func (c Config) Taps() int { return c.K * c.K }

// PEGroups is CO/PE.
func (c Config) PEGroups() int { return c.CO / c.PE }

// SIMDGroups is CI/SIMD.
func (c Config) SIMDGroups() int { return c.CI / c.SIMD }

// WeightCount is K*K*CI*CO, independent of tiling.
func (c Config) WeightCount() int { return c.Taps() * c.CI * c.CO }

// InputLen is the number of input scalars per feature map.
func (c Config) InputLen() int { return c.H * c.W * c.CI }

// OutputLen is the number of output scalars per feature map.
func (c Config) OutputLen() int { return c.OutHeight() * c.OutWidth() * c.CO }

// Accumulator returns the accumulator precision in effect.
func (c Config) Accumulator() fixed.Precision {
	acc := c.requiredAccumulator()
	if c.AccBits != 0 {
		acc.Bits = c.AccBits
	}
	return acc
}

func (c Config) requiredAccumulator() fixed.Precision {
	return fixed.AccumulatorBits(c.Input, c.Weight, c.Taps()*c.CI)
}

// WithTiling returns a copy of c with different PE/SIMD factors.
func (c Config) WithTiling(pe, simd int) Config {
	c.PE, c.SIMD = pe, simd
	return c
}

// Tag is the parameter tag used by the generated header names,
// e.g. K3_S1_H3_W3_CI1_CO3_P2.
func (c Config) Tag() string {
	return fmt.Sprintf("K%d_S%d_H%d_W%d_CI%d_CO%d_P%d", c.K, c.S, c.H, c.W, c.CI, c.CO, c.P)
}

func (c Config) String() string {
	return fmt.Sprintf("%s PE=%d SIMD=%d TI=%s TW=%s TO=%s", c.Tag(), c.PE, c.SIMD, c.Input, c.Weight, c.Output)
}
