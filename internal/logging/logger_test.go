// Package logging includes tests for the zap logger helpers.
package logging

import "testing"

// TestNewDebugLogger confirms the development logger builds and logs.
func TestNewDebugLogger(t *testing.T) {
	t.Parallel()

	logger, err := New("harvester", true)
	if err != nil {
		t.Fatalf("New(true) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("debug logger ready")
}

// TestNewProductionLogger ensures the production logger configuration succeeds.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New("harvester", false)
	if err != nil {
		t.Fatalf("New(false) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Named("upload").Info("production logger ready")
}
