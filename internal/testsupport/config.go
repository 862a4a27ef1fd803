package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MaFalana/HWC-POTREE-API/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The storage backend defaults to "memory" so no cloud credentials are needed.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Storage.Backend = "memory"
	cfgVal.Storage.Bucket = "test-bucket"
	cfgVal.Worker.PollInterval = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	return builder.cfg
}

// WithRetentionHours overrides the job retention window.
func WithRetentionHours(hours int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Worker.RetentionHours = hours
	}
}

// WithStubbedBinaries writes the provided stub scripts into a per-test bin
// directory, points the tool config at them, and returns via the config. The
// map key is the tool name ("pdal" or "PotreeConverter"); the value is the
// shell script body.
func WithStubbedBinaries(scripts map[string]string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for name, script := range scripts {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
			switch name {
			case "pdal":
				b.cfg.Tools.PDALBinary = target
			case "PotreeConverter":
				b.cfg.Tools.PotreeConverter = target
			}
		}
	}
}

// StubBinary writes a standalone stub executable and returns its path.
func StubBinary(t testing.TB, name, script string) string {
	t.Helper()
	dir := t.TempDir()
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}
