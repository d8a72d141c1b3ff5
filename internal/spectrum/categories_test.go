package spectrum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()

	require.Len(t, table.Categories, len(models.Spectrums))
	for i, c := range table.Categories {
		assert.Equal(t, models.Spectrums[i], c.Name)
		assert.Equal(t, 1.0, c.Weight)
		assert.NotEmpty(t, c.Keywords)
		assert.NotEmpty(t, c.Contextual)
	}
	assert.Contains(t, table.Categories[0].Keywords, "tax the rich")
}

func TestParseTable_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", "categories: []"},
		{"unknown name", "categories:\n  - name: anarchist\n    weight: 1\n"},
		{"duplicate", "categories:\n  - name: left\n    weight: 1\n  - name: left\n    weight: 2\n"},
		{"malformed", "categories: [::"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTable([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrInvalidTable)
		})
	}
}

func TestParseTable_LowercasesPhrases(t *testing.T) {
	table, err := ParseTable([]byte("categories:\n  - name: center\n    weight: 1\n    keywords: [' Moderate ', '']\n    contextual: [Common Ground]\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"moderate"}, table.Categories[0].Keywords)
	assert.Equal(t, []string{"common ground"}, table.Categories[0].Contextual)
}

func TestLoadTable(t *testing.T) {
	table, err := LoadTable("")
	require.NoError(t, err)
	assert.Len(t, table.Categories, 7)

	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  - name: right\n    weight: 2\n    keywords: [tariffs]\n"), 0o600))
	table, err = LoadTable(path)
	require.NoError(t, err)
	require.Len(t, table.Categories, 1)
	assert.Equal(t, 2.0, table.Categories[0].Weight)

	_, err = LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
