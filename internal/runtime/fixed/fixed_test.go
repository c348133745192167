package fixed

import "testing"

func TestPrecisionRange(t *testing.T) {
	tests := []struct {
		name    string
		p       Precision
		min     int64
		max     int64
		display string
	}{
		{"u4", Unsigned(4), 0, 15, "ap_uint<4>"},
		{"u8", Unsigned(8), 0, 255, "ap_uint<8>"},
		{"u16", Unsigned(16), 0, 65535, "ap_uint<16>"},
		{"s8", Signed(8), -128, 127, "ap_int<8>"},
		{"s2", Signed(2), -2, 1, "ap_int<2>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Min(); got != tt.min {
				t.Errorf("Min() = %d; want %d", got, tt.min)
			}
			if got := tt.p.Max(); got != tt.max {
				t.Errorf("Max() = %d; want %d", got, tt.max)
			}
			if got := tt.p.String(); got != tt.display {
				t.Errorf("String() = %q; want %q", got, tt.display)
			}
		})
	}
}

func TestSaturateClampsInsteadOfWrapping(t *testing.T) {
	u16 := Unsigned(16)
	if got := u16.Saturate(70000); got != 65535 {
		t.Fatalf("Saturate(70000) = %d; want 65535", got)
	}
	if got := u16.Saturate(-3); got != 0 {
		t.Fatalf("Saturate(-3) = %d; want 0", got)
	}
	if got := u16.Wrap(70000); got != 70000-65536 {
		t.Fatalf("Wrap(70000) = %d; want %d", got, 70000-65536)
	}

	s8 := Signed(8)
	if got := s8.Saturate(-1000); got != -128 {
		t.Fatalf("Saturate(-1000) = %d; want -128", got)
	}
	if got := s8.Wrap(0xff); got != -1 {
		t.Fatalf("Wrap(0xff) = %d; want -1", got)
	}
}

func TestNarrow(t *testing.T) {
	out := Unsigned(8)
	tests := []struct {
		acc   int64
		shift uint
		want  int64
	}{
		{100, 0, 100},
		{1000, 0, 255},
		{1000, 2, 250},
		{1023, 2, 255},
		{-5, 1, 0},
	}
	for _, tt := range tests {
		if got := Narrow(tt.acc, tt.shift, out); got != tt.want {
			t.Errorf("Narrow(%d, %d) = %d; want %d", tt.acc, tt.shift, got, tt.want)
		}
	}

	if got := ShiftRight(-5, 1); got != -3 {
		t.Fatalf("ShiftRight(-5, 1) = %d; want -3", got)
	}
}

func TestAccumulatorBits(t *testing.T) {
	// 4-bit inputs, 8-bit weights, 3x3 kernel, one input channel.
	acc := AccumulatorBits(Unsigned(4), Unsigned(8), 9)
	if acc.Bits != 16 || acc.Signed {
		t.Fatalf("AccumulatorBits = %v; want ap_uint<16>", acc)
	}

	mixed := AccumulatorBits(Unsigned(4), Signed(8), 1)
	if mixed.Bits != 13 || !mixed.Signed {
		t.Fatalf("AccumulatorBits mixed = %v; want ap_int<13>", mixed)
	}

	for n, want := range map[int]uint{0: 0, 1: 0, 2: 1, 3: 2, 8: 3, 9: 4} {
		if got := CeilLog2(n); got != want {
			t.Errorf("CeilLog2(%d) = %d; want %d", n, got, want)
		}
	}
}

func TestParsePrecision(t *testing.T) {
	tests := []struct {
		in      string
		want    Precision
		wantErr bool
	}{
		{"u4", Unsigned(4), false},
		{"s16", Signed(16), false},
		{"i8", Signed(8), false},
		{"ap_uint<16>", Unsigned(16), false},
		{"ap_int< 12>", Signed(12), false},
		{"u0", Precision{}, true},
		{"u64", Precision{}, true},
		{"float", Precision{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePrecision(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParsePrecision(%q) = %v, nil; want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePrecision(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("ParsePrecision(%q) = %v; want %v", tt.in, got, tt.want)
			}
		})
	}
}
