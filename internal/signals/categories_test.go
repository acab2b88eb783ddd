package signals

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

func TestLoadCategories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
signals:
  - signal: demo_request
    category: demo_request
    weight: 80
  - signal: open
    category: engagement
    weight: 5
`), 0o644))

	weights, err := LoadCategories(path)
	require.NoError(t, err)
	require.Len(t, weights, 2)
	assert.Equal(t, model.CategoryDemoRequest, weights[0].Category)
	assert.Equal(t, 80, weights[0].Weight)
	assert.Equal(t, "open", weights[1].Signal)
}

func TestParseCategories_Errors(t *testing.T) {
	tests := []struct {
		name, yaml, want string
	}{
		{"missing name", "signals:\n  - weight: 10\n", "without signal name"},
		{"duplicate", "signals:\n  - signal: a\n    weight: 10\n  - signal: a\n    weight: 20\n", "duplicate"},
		{"out of range", "signals:\n  - signal: a\n    weight: 150\n", "between 0 and 100"},
		{"bad yaml", "signals: [", "parse categories"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCategories([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadCategories_MissingFile(t *testing.T) {
	_, err := LoadCategories(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
