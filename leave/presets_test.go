package leave_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
)

func TestDefaultPresets_AllValid(t *testing.T) {
	// Every preset in the catalog must survive registry validation.
	f := newFixture(t)
	r := newRegistry(f)

	seen := map[string]bool{}
	for _, cfg := range leave.DefaultPresets() {
		created, err := r.CreateType(context.Background(), cfg)
		require.NoError(t, err, "preset %q", cfg.Name)
		assert.True(t, created.IsActive)
		assert.False(t, seen[created.Name], "preset names must be unique")
		seen[created.Name] = true
	}
}
