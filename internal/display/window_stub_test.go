//go:build !gocv

package display

import (
	"errors"
	"testing"

	"github.com/ironsheep/positioning-tools/internal/faults"
)

func TestNewWindowReporter_NotCompiledIn(t *testing.T) {
	if _, err := NewWindowReporter("positioning", DefaultStyle()); !errors.Is(err, faults.ErrResource) {
		t.Errorf("expected ErrResource, got %v", err)
	}
}
