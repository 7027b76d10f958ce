package config

import (
	"fmt"
	"os"
	"testing"
)

// TestMain refuses to run outside GO_ENV=test and runs the package from an
// empty directory so Load never picks up a developer's .env files
func TestMain(m *testing.M) {
	if env := os.Getenv("GO_ENV"); env != "test" {
		fmt.Fprintf(os.Stderr, "SAFETY CHECK FAILED: config tests must run with GO_ENV=test (current: %q)\n", env)
		os.Exit(1)
	}

	dir, err := os.MkdirTemp("", "config-test")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}
	if err := os.Chdir(dir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to enter temp dir: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}
