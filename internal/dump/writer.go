package dump

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/example/go-deconv/internal/deconv"
)

// Format selects the dump container.
type Format string

const (
	FormatCSV Format = "csv"
	FormatWAV Format = "wav"
)

// ParseFormat accepts "csv" or "wav".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatWAV:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("dump: unknown format %q (want csv or wav)", s)
	}
}

// FileName is the dump name for cfg, e.g.
// deconv_3x3_in1_out3_k3_s1_p2_output_hls.csv. Width comes before height.
func FileName(cfg deconv.Config, f Format) string {
	return fmt.Sprintf("deconv_%dx%d_in%d_out%d_k%d_s%d_p%d_output_hls.%s",
		cfg.W, cfg.H, cfg.CI, cfg.CO, cfg.K, cfg.S, cfg.P, f)
}

// GoldenStem is the prefix of the golden tensor files for cfg, e.g.
// deconv_3x3_in1_out3_k3_s1_p2. Height comes before width.
func GoldenStem(cfg deconv.Config) string {
	return fmt.Sprintf("deconv_%dx%d_in%d_out%d_k%d_s%d_p%d",
		cfg.H, cfg.W, cfg.CI, cfg.CO, cfg.K, cfg.S, cfg.P)
}

// WriteCSV writes one scalar per line.
func WriteCSV(w io.Writer, values []int64) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 24)
	for _, v := range values {
		buf = strconv.AppendInt(buf[:0], v, 10)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("dump: write csv: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("dump: write csv: %w", err)
	}
	return nil
}

// WriteFile writes the output of one feature map of cfg into dir using
// the dump naming convention and returns the path written.
func WriteFile(dir string, cfg deconv.Config, values []int64, f Format) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("dump: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName(cfg, f))

	switch f {
	case FormatWAV:
		data, err := EncodeWAV(cfg, values)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("dump: write %s: %w", path, err)
		}
	case FormatCSV:
		file, err := os.Create(path)
		if err != nil {
			return "", fmt.Errorf("dump: create %s: %w", path, err)
		}
		if err := WriteCSV(file, values); err != nil {
			_ = file.Close()
			return "", err
		}
		if err := file.Close(); err != nil {
			return "", fmt.Errorf("dump: close %s: %w", path, err)
		}
	default:
		return "", fmt.Errorf("dump: unknown format %q", f)
	}
	return path, nil
}
