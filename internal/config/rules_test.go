package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadRules(t *testing.T) {
	path := writeRules(t, `
warn_on_unmapped: true
rules:
  - target: Tesco
    category: groceries
    patterns:
      - tesco
  - target: Amazon
    patterns:
      - amazon
      - amzn
`)

	cfg, err := LoadRules(path)
	require.NoError(t, err)

	assert.True(t, cfg.WarnOnUnmapped)
	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, "Tesco", cfg.Rules[0].Target)
	assert.Equal(t, "groceries", cfg.Rules[0].Category)
	assert.Equal(t, []string{"amazon", "amzn"}, cfg.Rules[1].Patterns)
}

func TestLoadRules_MissingFileIsEmpty(t *testing.T) {
	cfg, err := LoadRules(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Rules)
}

func TestLoadRules_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "empty target",
			content: `
rules:
  - target: ""
    patterns: [tesco]
`,
		},
		{
			name: "no patterns",
			content: `
rules:
  - target: Tesco
    patterns: []
`,
		},
		{
			name:    "malformed yaml",
			content: "rules: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRules(writeRules(t, tt.content))
			assert.Error(t, err)
		})
	}
}
