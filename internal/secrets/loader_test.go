package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("  sk-from-file\n"), 0o600))
	t.Setenv("LIQA_TEST_KEY", "sk-from-env")

	got, err := Load(Source{Name: "openai api key", Value: "sk-stored", Env: "LIQA_TEST_KEY", File: path})
	require.NoError(t, err)
	assert.Equal(t, "sk-from-file", got)
}

func TestLoadFallsBackToEnvThenValue(t *testing.T) {
	t.Setenv("LIQA_TEST_KEY", " sk-from-env ")

	got, err := Load(Source{Value: "sk-stored", Env: "LIQA_TEST_KEY"})
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", got)

	t.Setenv("LIQA_TEST_KEY", "")
	got, err = Load(Source{Value: " sk-stored ", Env: "LIQA_TEST_KEY"})
	require.NoError(t, err)
	assert.Equal(t, "sk-stored", got)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(Source{Name: "gemini api key"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini api key is not configured")

	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	_, err = Load(Source{File: empty, Value: "sk-stored"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "is empty"))

	_, err = Load(Source{File: filepath.Join(t.TempDir(), "missing")})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestMask(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "not set"},
		{"short", "*****"},
		{"sk-abcdefghijklmnop", "sk-******mnop"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Mask(tt.in), tt.in)
	}
}
