// Package weights reads flat weight tables from text files and renders
// them as hardware parameter headers.
package weights

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/example/go-deconv/internal/deconv"
	"github.com/example/go-deconv/internal/runtime/fixed"
)

// ParseCSV reads a flat list of integers separated by commas and/or
// whitespace. Tokens may be decimal, hex (0x..) or decimal floats, which
// are truncated. Tokens that are not numbers (column headers, labels) are
// skipped.
func ParseCSV(r io.Reader) ([]int64, error) {
	var values []int64

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		fields := strings.FieldsFunc(sc.Text(), func(c rune) bool {
			return c == ',' || c == ' ' || c == '\t' || c == ';' || c == '\r'
		})
		for _, f := range fields {
			if v, ok := parseToken(f); ok {
				values = append(values, v)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("weights: read: %w", err)
	}
	return values, nil
}

func parseToken(tok string) (int64, bool) {
	neg := strings.HasPrefix(tok, "-")
	body := strings.TrimPrefix(tok, "-")
	if strings.HasPrefix(strings.ToLower(body), "0x") {
		v, err := strconv.ParseInt(body[2:], 16, 64)
		if err != nil {
			return 0, false
		}
		if neg {
			v = -v
		}
		return v, true
	}
	if v, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

// ReadFile parses the weight file at path.
func ReadFile(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("weights: open %s: %w", path, err)
	}
	defer f.Close()

	values, err := ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("weights: %s: %w", path, err)
	}
	return values, nil
}

// Load reads path and loads it into a store for cfg in the given layout.
func Load(cfg deconv.Config, path string, layout deconv.Layout) (*deconv.WeightStore, error) {
	raw, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	ws, err := deconv.LoadWeightsLayout(cfg, raw, layout)
	if err != nil {
		return nil, fmt.Errorf("weights: %s: %w", path, err)
	}
	return ws, nil
}

// Tiling is one PE/SIMD variant of a header.
type Tiling struct {
	PE   int
	SIMD int
}

// Tilings lists the PE/SIMD variants a header emits by default: the first
// three divisors of CO crossed with the first two divisors of CI.
func Tilings(cfg deconv.Config) []Tiling {
	var out []Tiling
	pes := Divisors(cfg.CO)
	simds := Divisors(cfg.CI)
	for _, pe := range pes[:min(3, len(pes))] {
		for _, simd := range simds[:min(2, len(simds))] {
			out = append(out, Tiling{PE: pe, SIMD: simd})
		}
	}
	return out
}

// Divisors returns the divisors of n in ascending order.
func Divisors(n int) []int {
	var out []int
	for i := 1; i <= n; i++ {
		if n%i == 0 {
			out = append(out, i)
		}
	}
	return out
}

// FormatHeader renders the parameter header for ws. The first tiling is
// active (#if 1); the rest sit in #else branches.
func FormatHeader(w io.Writer, ws *deconv.WeightStore, tilings []Tiling) error {
	if len(tilings) == 0 {
		tilings = []Tiling{{PE: ws.Config().PE, SIMD: ws.Config().SIMD}}
	}
	cfg := ws.Config()

	var b strings.Builder
	b.WriteString("#ifndef DECONV_TOP_HPP\n#define DECONV_TOP_HPP\n\n")
	b.WriteString("#include <ap_int.h>\n#include <hls_stream.h>\n#include <hls_vector.h>\n\n")
	fmt.Fprintf(&b, "constexpr unsigned  K = %d;\t\t// kernel Size\n", cfg.K)
	fmt.Fprintf(&b, "constexpr unsigned  S = %d; \t\t// stride\n", cfg.S)
	fmt.Fprintf(&b, "constexpr unsigned  P = %d;\t\t// padding\n", cfg.P)
	fmt.Fprintf(&b, "constexpr unsigned  H = %d;\t\t// IFM height\n", cfg.H)
	fmt.Fprintf(&b, "constexpr unsigned  W = %d;\t\t// IFM Width\n", cfg.W)
	fmt.Fprintf(&b, "constexpr unsigned  CI = %d;\t\t// input channels\n", cfg.CI)
	fmt.Fprintf(&b, "constexpr unsigned  CO = %d;\t\t// output channels\n\n", cfg.CO)
	fmt.Fprintf(&b, "using  TW = %s;\n", hlsType(cfg.Weight))
	fmt.Fprintf(&b, "using  TI = %s;\n", hlsType(cfg.Input))
	fmt.Fprintf(&b, "using  TO = %s;\n\n", hlsType(cfg.Output))

	for i, tl := range tilings {
		tiled, err := ws.Retile(tl.PE, tl.SIMD)
		if err != nil {
			return fmt.Errorf("weights: header tiling PE=%d SIMD=%d: %w", tl.PE, tl.SIMD, err)
		}
		if i == 0 {
			b.WriteString("#if 1\n\n")
		} else {
			b.WriteString("#else\n\n")
		}
		fmt.Fprintf(&b, "constexpr unsigned  PE   = %d;\n\n", tl.PE)
		fmt.Fprintf(&b, "constexpr unsigned  SIMD = %d;\n\n\n", tl.SIMD)
		writeKernel(&b, tiled)
		b.WriteString("\n")
	}
	if len(tilings) > 1 {
		b.WriteString("#endif\n")
	}

	b.WriteString("void deconv_top(\n")
	b.WriteString("    hls::stream<hls::vector<TI, SIMD>> &src,\n")
	b.WriteString("    hls::stream<hls::vector<TO, PE>>   &dst\n")
	// The generated headers end at the include guard without a newline.
	b.WriteString(");\n\n#endif")

	_, err := io.WriteString(w, b.String())
	return err
}

func writeKernel(b *strings.Builder, ws *deconv.WeightStore) {
	cfg := ws.Config()
	table := ws.Table(deconv.LayoutTiled)
	outer := cfg.PEGroups() * cfg.Taps() * cfg.SIMDGroups()

	fmt.Fprintf(b, "static TW const  KERNEL[%d][%d][%d] = {\n", outer, cfg.PE, cfg.SIMD)
	idx := 0
	for range outer {
		lanes := make([]string, cfg.PE)
		for pe := range lanes {
			vals := make([]string, cfg.SIMD)
			for s := range vals {
				vals[s] = hexWord(table[idx], cfg.Weight)
				idx++
			}
			lanes[pe] = "{" + strings.Join(vals, ",") + ",}"
		}
		fmt.Fprintf(b, "\t{%s},\n", strings.Join(lanes, ","))
	}
	b.WriteString("};\n")
}

func hlsType(p fixed.Precision) string {
	kind := "ap_uint"
	if p.Signed {
		kind = "ap_int"
	}
	return fmt.Sprintf("%s<%2d>", kind, p.Bits)
}

// hexWord prints v as its two's complement bit pattern at p's width.
func hexWord(v int64, p fixed.Precision) string {
	mask := uint64(1)<<p.Bits - 1
	digits := int((p.Bits + 3) / 4)
	return fmt.Sprintf("0x%0*x", digits, uint64(v)&mask)
}
