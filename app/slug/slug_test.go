package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func neverTaken(string) (bool, error) { return false, nil }

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple name", input: "Felix Mueller", expected: "felix-mueller"},
		{name: "mixed case and punctuation", input: "J.P. O'Brien", expected: "j-p-o-brien"},
		{name: "collapses repeats", input: "Anna   Lee", expected: "anna-lee"},
		{name: "trims hyphens", input: "  Bo  ", expected: "bo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Generate(tt.input, neverTaken)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestGenerate_EmptyNameFallsBack(t *testing.T) {
	got, err := Generate("???", neverTaken)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "user-"))
	assert.True(t, ValidFormat(got))
}

func TestGenerate_CollisionGetsSuffix(t *testing.T) {
	got, err := Generate("Felix Mueller", func(s string) (bool, error) {
		return s == "felix-mueller", nil
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "felix-mueller-"))
	assert.Len(t, got, len("felix-mueller-")+4)
	assert.True(t, ValidFormat(got))
}

func TestValidFormat(t *testing.T) {
	assert.True(t, ValidFormat("felix-mueller"))
	assert.True(t, ValidFormat("abc"))
	assert.False(t, ValidFormat("ab"))
	assert.False(t, ValidFormat("Felix"))
	assert.False(t, ValidFormat("has space"))
	assert.False(t, ValidFormat(strings.Repeat("a", 51)))
}
