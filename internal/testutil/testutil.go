// Package testutil provides shared skip helpers and dump assertions for
// integration tests.
//
// Each Require helper calls t.Skip with a clear human-readable reason when
// the named prerequisite is absent, so integration tests remain runnable in
// partial environments without failing noisily.
//
// Typical usage:
//
//	func TestGolden(t *testing.T) {
//	    dir := testutil.RequireGoldenData(t, cfg)
//	    ...
//	}
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-deconv/internal/deconv"
	"github.com/example/go-deconv/internal/dump"
)

// GoldenDirEnv names the directory holding golden data produced by the
// benchmark script. It is the same variable the CLI reads.
const GoldenDirEnv = "DECONV_PATHS_GOLDEN_DIR"

// RequireGoldenData skips the test unless the golden output for cfg exists
// under $DECONV_PATHS_GOLDEN_DIR, and returns that directory.
func RequireGoldenData(tb testing.TB, cfg deconv.Config) string {
	tb.Helper()

	dir := os.Getenv(GoldenDirEnv)
	if dir == "" {
		tb.Skipf("golden data not configured; set %s to the benchmark output directory", GoldenDirEnv)
		return ""
	}

	p := filepath.Join(dir, dump.GoldenStem(cfg)+"_output.csv")
	if _, err := os.Stat(p); err != nil {
		tb.Skipf("golden data for %s not available at %q", cfg.Tag(), p)
		return ""
	}
	return dir
}
